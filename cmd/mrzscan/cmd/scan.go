package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/idcheck/mrzscan/internal/docscan/domain"
	"github.com/idcheck/mrzscan/internal/docscan/processor"
	"github.com/idcheck/mrzscan/internal/docscan/storage"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan [images...]",
	Short: "Read the MRZ from document images",
	Long: `Read the MRZ from PNG or JPEG document images. The MRZ region is located
first; when that fails the whole image is read. Image bytes are zeroed as
soon as each file has been processed.

Examples:
  mrzscan scan passport.jpg
  mrzscan scan scans/*.png --format text`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

// scanFileResult is the JSON output for one file
type scanFileResult struct {
	File    string              `json:"file"`
	Outcome *domain.ScanOutcome `json:"outcome,omitempty"`
	Error   string              `json:"error,omitempty"`
}

func runScan(cmd *cobra.Command, args []string) error {
	engine, err := newEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	registry := processor.NewDefaultRegistry(engine, newParser(), log)
	processors := registry.FindProcessors(domain.InputImage)

	results := make([]scanFileResult, 0, len(args))
	failed := 0
	for _, file := range args {
		res := scanFile(cmd.Context(), processors, file)
		if res.Outcome == nil {
			failed++
		}
		results = append(results, res)
	}

	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		if err := writeJSON(out, results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Outcome == nil {
				fmt.Fprintf(out, "%s: %s\n", r.File, r.Error)
				continue
			}
			if err := writeResult(out, r.File, r.Outcome.MRZ); err != nil {
				return err
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files without MRZ", failed, len(args))
	}
	return nil
}

func scanFile(ctx context.Context, processors []processor.Processor, file string) scanFileResult {
	data, err := os.ReadFile(file)
	if err != nil {
		return scanFileResult{File: file, Error: err.Error()}
	}
	defer storage.ZeroBytes(data)

	var lastErr error
	for _, p := range processors {
		outcome, err := p.Process(ctx, data, domain.InputImage)
		if err == nil {
			return scanFileResult{File: file, Outcome: outcome}
		}
		log.Debug().Err(err).Str("file", file).Str("processor", p.Name()).Msg("processor failed, trying next")
		lastErr = err
	}
	return scanFileResult{File: file, Error: lastErr.Error()}
}
