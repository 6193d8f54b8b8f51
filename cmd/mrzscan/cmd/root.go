package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/idcheck/mrzscan/internal/mrz"
	"github.com/idcheck/mrzscan/internal/ocr"
	"github.com/idcheck/mrzscan/pkg/config"
	"github.com/idcheck/mrzscan/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"

	// Global flags
	verbose      bool
	outputFormat string

	cfg *config.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mrzscan",
	Short: "Read machine readable zones from passports, ID cards and visas",
	Long: `mrzscan extracts and validates ICAO 9303 machine readable zones.

Supports:
  - TD1, TD2 and TD3 documents, MRV-A and MRV-B visas
  - MRZ text, document images and camera frame sequences
  - Check digit validation with OCR error correction

Settings are read from ./config/mrzscan.yaml, /etc/mrzscan or MRZSCAN_*
environment variables.

Examples:
  # Parse MRZ text from stdin
  cat mrz.txt | mrzscan parse

  # Scan document images (requires a tesseract build)
  mrzscan scan passport.jpg id-card.png

  # Replay camera frames until the first valid MRZ
  mrzscan frames ./capture --fps 15`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd.ErrOrStderr())
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "json", "Output format (json, text)")
}

func initConfig(stderr io.Writer) error {
	var err error
	cfg, err = config.Load("mrzscan")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log = logger.NewCLI(stderr, verbose)

	switch outputFormat {
	case "json", "text":
		return nil
	default:
		return fmt.Errorf("unknown output format %q", outputFormat)
	}
}

func newParser() *mrz.Parser {
	return mrz.NewParser(mrz.WithOCRCorrection(cfg.Scanner.OCRCorrection))
}

// newEngine opens the OCR engine. Commands that read images cannot run
// without one.
func newEngine() (*ocr.Tesseract, error) {
	engine, err := ocr.NewTesseract(ocr.Config{
		Language:       cfg.Scanner.Language,
		TessdataPrefix: cfg.Scanner.TessdataPrefix,
	})
	if errors.Is(err, ocr.ErrEngineUnavailable) {
		return nil, fmt.Errorf("%w (rebuild with -tags tesseract)", err)
	}
	return engine, err
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeResult prints an MRZ in the selected output format
func writeResult(w io.Writer, source string, r mrz.Result) error {
	if outputFormat == "json" {
		return writeJSON(w, r)
	}

	if source != "" {
		fmt.Fprintf(w, "%s:\n", source)
	}
	status := "VALID"
	if !r.AllCheckDigitsValid {
		status = "CHECK DIGIT MISMATCH"
	}
	fmt.Fprintf(w, "  format:          %s (%s)\n", r.Format, status)
	fmt.Fprintf(w, "  document:        %s %s\n", r.DocumentCode, r.DocumentNumber)
	fmt.Fprintf(w, "  issuing state:   %s\n", r.IssuingState)
	fmt.Fprintf(w, "  name:            %s, %s\n", r.Surname, r.GivenNames)
	fmt.Fprintf(w, "  nationality:     %s\n", r.Nationality)
	fmt.Fprintf(w, "  birth date:      %s\n", r.BirthDate)
	fmt.Fprintf(w, "  sex:             %s\n", r.Sex)
	fmt.Fprintf(w, "  expiry date:     %s\n", r.ExpiryDate)
	for _, f := range r.Fields {
		if f.Checked && !f.Valid {
			fmt.Fprintf(w, "  ! check digit mismatch: %s\n", f.Name)
		}
	}
	return nil
}
