package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/obdai/obdai/internal/config"
	"github.com/obdai/obdai/internal/diagnosis"
	"github.com/obdai/obdai/internal/llm"
	"github.com/obdai/obdai/pkg/models"
	"github.com/spf13/cobra"
)

var (
	diagYear   string
	diagMake   string
	diagModel  string
	diagTrim   string
	jsonOutput bool
	strict     bool
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <codes...>",
	Short: "Diagnose OBD2 trouble codes for a vehicle",
	Long: `Diagnose one or more OBD2 trouble codes for a vehicle.

Codes may be separated by spaces or commas.

Examples:
  obdai diagnose P0420 --year 2018 --make Ford --model F-150
  obdai diagnose "P0171, P0174" --year 2012 --make Subaru --model Outback --trim 2.5i
  obdai diagnose P0300 --year 2015 --make Honda --model Civic --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDiagnose,
}

func init() {
	diagnoseCmd.Flags().StringVar(&diagYear, "year", "", "Model year")
	diagnoseCmd.Flags().StringVar(&diagMake, "make", "", "Manufacturer")
	diagnoseCmd.Flags().StringVar(&diagModel, "model", "", "Model")
	diagnoseCmd.Flags().StringVar(&diagTrim, "trim", "", "Trim (optional)")
	diagnoseCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output result as JSON")
	diagnoseCmd.Flags().BoolVar(&strict, "strict", false, "Reject responses that would need repair")
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	vehicle := models.VehicleContext{Year: diagYear, Make: diagMake, Model: diagModel, Trim: diagTrim}
	codes := strings.Join(args, " ")
	if err := checkInput(vehicle, codes); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(config.RequireGemini); err != nil {
		return err
	}

	pipeline, err := newPipeline(cfg, strict)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return diagnose(ctx, pipeline, vehicle, codes, cmd.OutOrStdout(), cmd.ErrOrStderr(), stderrIsTerminal() && !verbose)
}

func newPipeline(cfg *config.Config, strict bool) (*diagnosis.Pipeline, error) {
	client, err := llm.NewClient(cfg.Gemini.APIKey,
		llm.WithModel(cfg.Gemini.Model),
		llm.WithBaseURL(cfg.Gemini.BaseURL),
	)
	if err != nil {
		return nil, err
	}
	return diagnosis.New(client,
		diagnosis.WithStrict(strict || cfg.Diagnose.Strict),
		diagnosis.WithLogger(newLogger(cfg)),
	), nil
}

// checkInput rejects input the pipeline would refuse, before any setup.
func checkInput(vehicle models.VehicleContext, codes string) error {
	if models.NormalizeCodes(codes) == "" {
		return &diagnosis.Error{Kind: diagnosis.KindEmptyInput, Message: "Please enter at least one error code."}
	}
	if !vehicle.IsComplete() {
		return errVehicleRequired
	}
	return nil
}

type diagnoser interface {
	DiagnoseWithProgress(ctx context.Context, vehicle models.VehicleContext, rawCodes string, emitter diagnosis.ProgressEmitter) (*models.DiagnosisResult, error)
}

// diagnose runs one diagnosis with progress on stderr and the result on stdout.
func diagnose(ctx context.Context, d diagnoser, vehicle models.VehicleContext, codes string, stdout, stderr io.Writer, animate bool) error {
	var emitter diagnosis.ProgressEmitter = &diagnosis.TextEmitter{W: stderr}
	if animate {
		se := newSpinnerEmitter(stderr)
		defer se.Stop()
		emitter = se
	}

	start := time.Now()
	result, err := d.DiagnoseWithProgress(ctx, vehicle, codes, emitter)
	if s, ok := emitter.(*spinnerEmitter); ok {
		s.Stop()
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	dim := color.New(color.FgHiBlack)
	_, _ = dim.Fprintf(stderr, "Diagnosis complete (%.1fs)\n\n", time.Since(start).Seconds())
	if color.NoColor {
		fmt.Fprintf(stdout, "%s  %s\n\n%s", vehicle.String(), models.NormalizeCodes(codes), result.FormatText())
		return nil
	}
	printDiagnosis(stdout, vehicle, models.NormalizeCodes(codes), result)
	return nil
}

// spinnerEmitter shows step messages as the suffix of a terminal spinner.
type spinnerEmitter struct {
	s       *spinner.Spinner
	stopped bool
}

func newSpinnerEmitter(w io.Writer) *spinnerEmitter {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " Starting..."
	s.Start()
	return &spinnerEmitter{s: s}
}

func (e *spinnerEmitter) Emit(ev diagnosis.ProgressEvent) {
	if ev.Type != diagnosis.EventStep {
		return
	}
	e.s.Lock()
	e.s.Suffix = fmt.Sprintf(" [%d/%d] %s", ev.Step, ev.MaxStep, ev.Message)
	e.s.Unlock()
}

func (e *spinnerEmitter) Stop() {
	if !e.stopped {
		e.s.Stop()
		e.stopped = true
	}
}

// printDiagnosis renders a colored report for terminals. Plain output uses
// DiagnosisResult.FormatText.
func printDiagnosis(w io.Writer, vehicle models.VehicleContext, codes string, r *models.DiagnosisResult) {
	bold := color.New(color.Bold)
	dim := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen, color.Bold)

	_, _ = bold.Fprintf(w, "%s  ", vehicle.String())
	_, _ = dim.Fprintln(w, codes)
	_, _ = dim.Fprintln(w, strings.Repeat("━", 50))
	fmt.Fprintln(w)

	_, _ = bold.Fprintln(w, "EXPLANATION")
	fmt.Fprintln(w, r.Explanation)
	fmt.Fprintln(w)

	_, _ = bold.Fprintln(w, "HOW COMMON")
	fmt.Fprintln(w, r.Commonality)
	fmt.Fprintln(w)

	_, _ = bold.Fprintln(w, "SUGGESTED FIXES")
	for i, f := range r.SuggestedFixes {
		fmt.Fprintf(w, "%d. %s", i+1, f.Name)
		if f.IsMostLikely {
			_, _ = green.Fprint(w, "  [Most Likely]")
		}
		fmt.Fprintln(w)

		fmt.Fprint(w, "   Difficulty: ")
		_, _ = difficultyColor(f.Difficulty).Fprint(w, models.DifficultyMeter(f.Difficulty))
		_, _ = dim.Fprintf(w, " (%d/%d)\n", f.Difficulty, models.MaxDifficulty)
		if f.Description != "" {
			fmt.Fprintf(w, "   %s\n", f.Description)
		}
	}
}

func difficultyColor(level int) *color.Color {
	switch {
	case level <= 2:
		return color.New(color.FgGreen)
	case level == 3:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}
