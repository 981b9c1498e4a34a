// Package logging sets up the run log: a human console writer on stderr at
// the selected verbosity plus an append-only file that records everything.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Options selects where and how much to log.
type Options struct {
	// Verbosity is the -v count: 0 warnings, 1 info, 2 debug, 3+ trace.
	Verbosity int
	// File is the run log path. Empty disables the file.
	File string
	// Console receives human-readable output. Nil means stderr.
	Console io.Writer
	// NoColor disables colour in the console writer.
	NoColor bool
}

// Logger is a configured run log. Close releases the log file.
type Logger struct {
	zerolog.Logger
	file *os.File
	path string
}

// LevelFor maps a -v count to a zerolog level.
func LevelFor(verbosity int) zerolog.Level {
	switch {
	case verbosity <= 0:
		return zerolog.WarnLevel
	case verbosity == 1:
		return zerolog.InfoLevel
	case verbosity == 2:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

// Setup builds the run log. If the log file cannot be opened the logger
// falls back to the console only and the error is returned alongside it.
func Setup(opts Options) (*Logger, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        console,
		TimeFormat: time.Kitchen,
		NoColor:    opts.NoColor,
	}
	writers := []io.Writer{
		&zerolog.FilteredLevelWriter{
			Writer: zerolog.LevelWriterAdapter{Writer: consoleWriter},
			Level:  LevelFor(opts.Verbosity),
		},
	}

	l := &Logger{path: opts.File}
	var fileErr error
	if opts.File != "" {
		f, err := openLogFile(opts.File)
		if err != nil {
			fileErr = err
		} else {
			l.file = f
			// the file keeps command output lines, which are logged at debug
			writers = append(writers, &zerolog.FilteredLevelWriter{
				Writer: zerolog.LevelWriterAdapter{Writer: f},
				Level:  zerolog.DebugLevel,
			})
		}
	}

	base := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(zerolog.TraceLevel).
		With().Timestamp()
	if opts.Verbosity >= 2 {
		base = base.Caller()
	}
	l.Logger = base.Logger()

	if fileErr != nil {
		l.Warn().Err(fileErr).Str("path", opts.File).Msg("Failed to open log file, logging to console only")
	}
	l.Debug().Int("verbosity", opts.Verbosity).Str("logFile", opts.File).Msg("Logger initialized")
	return l, fileErr
}

// Path returns the run log path, or "" when no file is written.
func (l *Logger) Path() string {
	if l.file == nil {
		return ""
	}
	return l.path
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Component returns a child logger tagged with a component name.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// openLogFile creates the log file and its parent directories.
func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// LogCommand logs a command execution with its arguments.
func LogCommand(logger zerolog.Logger, cmd string, args []string) {
	logger.Debug().
		Str("command", cmd).
		Strs("args", args).
		Msg("Executing command")
}

// LogDuration logs how long an operation took.
func LogDuration(logger zerolog.Logger, start time.Time, operation string) {
	logger.Info().
		Str("operation", operation).
		Dur("duration", time.Since(start)).
		Msg("Operation completed")
}
