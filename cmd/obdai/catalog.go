package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/obdai/obdai/internal/catalog"
	"github.com/spf13/cobra"
)

var catalogJSON bool

var catalogCmd = &cobra.Command{
	Use:   "catalog [year [make [model]]]",
	Short: "Browse vehicle years, makes, models and trims",
	Long: `List the options for the next vehicle field.

With no arguments, lists model years. Each additional argument selects a
field and lists the options of the one after it.

Examples:
  obdai catalog
  obdai catalog 2018
  obdai catalog 2018 Ford
  obdai catalog 2018 Ford F-150`,
	Args: cobra.MaximumNArgs(3),
	RunE: runCatalog,
}

func init() {
	catalogCmd.Flags().BoolVar(&catalogJSON, "json", false, "Output options as a JSON array")
}

func runCatalog(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := catalog.NewClient(cfg.Catalog.CacheSize,
		catalog.WithBaseURL(cfg.Catalog.BaseURL),
		catalog.WithLogger(newLogger(cfg)),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	options, err := listOptions(ctx, client, time.Now(), args)
	if err != nil {
		return err
	}
	return printOptions(cmd.OutOrStdout(), options, catalogJSON)
}

// listOptions walks the selector through args and returns the options of the
// next field.
func listOptions(ctx context.Context, lookup catalog.Lookup, now time.Time, args []string) ([]string, error) {
	if len(args) == 0 {
		return catalog.Years(now), nil
	}

	sel := catalog.NewSelector(lookup)
	steps := []struct {
		set  func(string) error
		next catalog.Field
	}{
		{set: func(v string) error { return sel.SetYear(ctx, v) }, next: catalog.FieldMake},
		{set: func(v string) error { return sel.SetMake(ctx, v) }, next: catalog.FieldModel},
		{set: func(v string) error { return sel.SetModel(ctx, v) }, next: catalog.FieldTrim},
	}

	var field catalog.Field
	for i, arg := range args {
		if err := steps[i].set(arg); err != nil {
			return nil, fmt.Errorf("failed to load %s options: %w", steps[i].next, err)
		}
		field = steps[i].next
	}

	state := sel.State(field)
	if len(state.Values) == 0 {
		return nil, fmt.Errorf("no %s options found for %s", field, sel.Vehicle().String())
	}
	return state.Values, nil
}

func printOptions(w io.Writer, options []string, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(options)
	}
	for _, o := range options {
		fmt.Fprintln(w, o)
	}
	return nil
}
