package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// errNoMRZ is returned when the input holds no machine readable zone
var errNoMRZ = errors.New("no MRZ found")

var parseCmd = &cobra.Command{
	Use:   "parse [lines...]",
	Short: "Parse MRZ text",
	Long: `Parse and validate MRZ text given as arguments, one line per argument,
or read from stdin when no arguments are given. Surrounding noise such as
other OCR output is ignored.

Examples:
  mrzscan parse 'P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<' 'L898902C36UTO7408122F1204159ZE184226B<<<<<10'
  tesseract passport.png - | mrzscan parse --format text`,
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, "\n")
	if len(args) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(data)
	}

	result, ok := newParser().ParseText(text)
	if !ok {
		return errNoMRZ
	}

	log.Debug().
		Str("format", result.Format.String()).
		Bool("all_check_digits_valid", result.AllCheckDigitsValid).
		Msg("parsed MRZ")

	return writeResult(cmd.OutOrStdout(), "", result)
}
