package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/obdai/obdai/internal/config"
	"github.com/obdai/obdai/internal/database"
	"github.com/spf13/cobra"
)

const defaultRetention = 90 * 24 * time.Hour

var pruneOlderThan time.Duration

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage stored diagnosis history",
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete diagnosis history older than a cutoff",
	Long: `Delete diagnosis history entries recorded before now minus --older-than,
for every account.

Examples:
  obdai history prune
  obdai history prune --older-than 720h`,
	Args: cobra.NoArgs,
	RunE: runHistoryPrune,
}

func init() {
	historyPruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", defaultRetention, "Age of the oldest entry to keep")
	historyCmd.AddCommand(historyPruneCmd)
}

func runHistoryPrune(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(config.RequireDatabase); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	return pruneHistory(ctx, db, time.Now(), pruneOlderThan, cmd.OutOrStdout())
}

type historyPruner interface {
	DeleteOldDiagnoses(ctx context.Context, olderThan time.Time) (int64, error)
}

func pruneHistory(ctx context.Context, p historyPruner, now time.Time, olderThan time.Duration, out io.Writer) error {
	if olderThan <= 0 {
		return errors.New("--older-than must be positive")
	}

	cutoff := now.Add(-olderThan)
	deleted, err := p.DeleteOldDiagnoses(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}
	fmt.Fprintf(out, "Deleted %d diagnoses recorded before %s\n", deleted, cutoff.UTC().Format(time.RFC3339))
	return nil
}
