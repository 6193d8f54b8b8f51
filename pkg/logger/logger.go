// Package logger configures zerolog for the MRZ scan binaries.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger
type Logger struct {
	zerolog.Logger
}

// New creates the service logger. Development gets colored console output
// at debug level; every other environment gets JSON lines at info level.
func New(serviceName, environment string) *Logger {
	return newService(os.Stdout, serviceName, environment)
}

func newService(w io.Writer, serviceName, environment string) *Logger {
	level := zerolog.InfoLevel
	if environment == "development" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
		level = zerolog.DebugLevel
	}

	return &Logger{Logger: zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("env", environment).
		Logger()}
}

// NewCLI creates a human-readable logger for command line tools. Output
// goes to w so it never mixes with results written to stdout.
func NewCLI(w io.Writer, verbose bool) *Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	return &Logger{Logger: zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(level).
		With().
		Timestamp().
		Logger()}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

func (l *Logger) with(key, value string) *Logger {
	return &Logger{Logger: l.Logger.With().Str(key, value).Logger()}
}

// WithJobID tags entries with a scan job ID
func (l *Logger) WithJobID(jobID string) *Logger { return l.with("job_id", jobID) }

// WithComponent tags entries with the pipeline stage that wrote them
func (l *Logger) WithComponent(component string) *Logger { return l.with("component", component) }
