// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

// Package trace provides a decorator for io.ReadWriter that logs all reads
// and writes.
package trace

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Trace is a trace log on an io.ReadWriter.
//
// All reads and writes are written to the logger.
type Trace struct {
	rw    io.ReadWriter
	l     *slog.Logger
	level slog.Level
	wfmt  string
	rfmt  string
}

// Option modifies a Trace object created by New.
type Option func(*Trace)

// New creates a new trace on the io.ReadWriter.
func New(rw io.ReadWriter, options ...Option) *Trace {
	t := &Trace{
		rw:    rw,
		level: slog.LevelDebug,
		wfmt:  "w: %q",
		rfmt:  "r: %q",
	}
	for _, option := range options {
		option(t)
	}
	if t.l == nil {
		t.l = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: t.level}))
	}
	return t
}

// WithReadFormat sets the format used for read logs.
func WithReadFormat(format string) Option {
	return func(t *Trace) {
		t.rfmt = format
	}
}

// WithWriteFormat sets the format used for write logs.
func WithWriteFormat(format string) Option {
	return func(t *Trace) {
		t.wfmt = format
	}
}

// WithLogger specifies the logger to be used to log trace messages.
//
// By default traces are logged to Stdout.
func WithLogger(l *slog.Logger) Option {
	return func(t *Trace) {
		t.l = l
	}
}

// WithLevel sets the level at which trace messages are logged.
//
// The default level is Debug.
func WithLevel(level slog.Level) Option {
	return func(t *Trace) {
		t.level = level
	}
}

func (t *Trace) Read(p []byte) (n int, err error) {
	n, err = t.rw.Read(p)
	if n > 0 {
		t.l.Log(context.Background(), t.level, fmt.Sprintf(t.rfmt, p[:n]))
	}
	return n, err
}

func (t *Trace) Write(p []byte) (n int, err error) {
	n, err = t.rw.Write(p)
	if n > 0 {
		t.l.Log(context.Background(), t.level, fmt.Sprintf(t.wfmt, p[:n]))
	}
	return n, err
}
