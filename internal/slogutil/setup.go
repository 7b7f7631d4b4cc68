package slogutil

import (
	"io"
	"log/slog"
	"os"
)

// Options configures the process logger.
type Options struct {
	// Verbosity and Quiet come from -v / -q.
	Verbosity int
	Quiet     bool

	// Level is the configured level, used when no verbosity flag is given.
	Level string

	// File enables an additional log file. MaxSize ("10MB") turns on rotation.
	File       string
	MaxSize    string
	MaxBackups int

	// Stderr defaults to os.Stderr.
	Stderr io.Writer
}

// consoleLevel resolves the stderr level.
// Precedence: -q / -v flags > configured level > warn.
func (o Options) consoleLevel() slog.Level {
	if o.Quiet || o.Verbosity > 0 {
		return LevelFromVerbosity(o.Verbosity, o.Quiet)
	}
	if o.Level != "" {
		return LevelFromString(o.Level)
	}
	return slog.LevelWarn
}

// fileLevel is the configured level, info when unset. The file keeps a
// record of builds even when the console is quiet.
func (o Options) fileLevel() slog.Level {
	if o.Verbosity > 1 {
		return slog.LevelDebug
	}
	if o.Level != "" {
		return LevelFromString(o.Level)
	}
	return slog.LevelInfo
}

// Setup builds the process logger. The returned closer releases the log
// file and is never nil.
func Setup(opts Options) (*slog.Logger, io.Closer, error) {
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	if opts.File == "" {
		return NewLogger(stderr, opts.consoleLevel()), nopCloser{}, nil
	}

	rf, err := OpenRotatingFile(opts.File, ParseSize(opts.MaxSize), opts.MaxBackups)
	if err != nil {
		return NewLogger(stderr, opts.consoleLevel()), nopCloser{}, err
	}
	console := NewHandler(stderr, &slog.HandlerOptions{Level: opts.consoleLevel()})
	file := NewHandler(rf, &slog.HandlerOptions{Level: opts.fileLevel()})

	return slog.New(NewTeeHandler(console, file)), rf, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
