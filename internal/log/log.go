// Package log sets up the process logger.
package log

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxFileSizeMB  = 1
	maxFileBackups = 3
)

type Options struct {
	Level slog.Level
	// File, if set, receives the log instead of Output and is rotated.
	File string
	// Output defaults to stderr.
	Output io.Writer
}

// New builds a text logger from opts. The returned closer releases the log
// file, if any.
func New(opts Options) (*slog.Logger, io.Closer) {
	var w io.Writer = opts.Output
	var closer io.Closer = nopCloser{}
	if w == nil {
		w = os.Stderr
	}
	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxFileSizeMB,
			MaxBackups: maxFileBackups,
		}
		w, closer = lj, lj
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: opts.Level})
	return slog.New(handler), closer
}

// Init initializes the default logger.
func Init(opts Options) (*slog.Logger, io.Closer) {
	logger, closer := New(opts)
	slog.SetDefault(logger)
	return logger, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
