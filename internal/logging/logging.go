// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package logging builds the logrus logger shared by the CLI commands
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// TimestampFormat is used by both the terminal and file sinks
const TimestampFormat = "2006-01-02 15:04:05"

// Options configures New
type Options struct {
	Level  string
	Dir    string
	NoFile bool

	// Console receives the terminal copy of every entry, os.Stderr when nil
	Console io.Writer

	// Now overrides the clock used to name the log file
	Now func() time.Time
}

// Logger wraps a logrus logger and the rotating file behind it
type Logger struct {
	*logrus.Logger
	file *lumberjack.Logger
}

// FileName returns the dated log file name, fmt-vending-YYYY-MM-DD.log
func FileName(t time.Time) string {
	return fmt.Sprintf("fmt-vending-%s.log", t.Format("2006-01-02"))
}

// New creates a logger writing to the console and, unless disabled, to a
// rotating dated file under opts.Dir
func New(opts Options) (*Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		if opts.Level != "" {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: TimestampFormat,
	})

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	l := &Logger{Logger: log}
	if opts.NoFile || opts.Dir == "" {
		log.SetOutput(console)
		return l, nil
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", opts.Dir, err)
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	l.file = &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, FileName(now())),
		MaxSize:    10, // megabytes
		MaxBackups: 7,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(console, l.file))
	return l, nil
}

// Discard returns a logger that drops everything, for tests and offline commands
func Discard() *Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Logger{Logger: log}
}

// Path returns the active log file, or "" when file logging is off
func (l *Logger) Path() string {
	if l.file == nil {
		return ""
	}
	return l.file.Filename
}

// DetachConsole stops writing to the console. Entries still reach the log
// file, or nowhere when file logging is off.
func (l *Logger) DetachConsole() {
	if l.file == nil {
		l.SetOutput(io.Discard)
		return
	}
	l.SetOutput(l.file)
}

// Close flushes and closes the log file
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
