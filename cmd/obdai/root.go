// Command obdai diagnoses OBD2 trouble codes from the terminal.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/obdai/obdai/internal/config"
	"github.com/obdai/obdai/internal/diagnosis"
	"github.com/obdai/obdai/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "obdai",
	Short: "AI diagnosis for OBD2 trouble codes",
	Long: `obdai explains OBD2 trouble codes for a specific vehicle and suggests
likely fixes ranked by probability, with a difficulty rating for each.

Settings come from an optional YAML file, a .env file and the environment
(GEMINI_API_KEY, DATABASE_URL, ...).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show log output")

	rootCmd.AddCommand(diagnoseCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// printError writes the user-facing text of err.
func printError(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold)
	_, _ = red.Fprint(w, "Error: ")
	fmt.Fprintln(w, errorMessage(err))
}

func errorMessage(err error) string {
	if e, ok := diagnosis.AsError(err); ok {
		return e.UserMessage()
	}
	return err.Error()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newLogger logs to stderr. Without --verbose only errors are shown so logs do
// not interleave with progress output.
func newLogger(cfg *config.Config) zerolog.Logger {
	level := "error"
	if verbose {
		level = cfg.LogLevel
	}
	return logging.New(os.Stderr, level, stderrIsTerminal())
}

func stderrIsTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

var errVehicleRequired = errors.New("please select your vehicle year, make, and model (--year, --make, --model)")
