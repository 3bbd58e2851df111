// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ux

import (
	"os"

	luxlog "github.com/luxfi/log"
)

// ConsoleLogger writes human readable lines to stderr, dropping anything
// below level.
func ConsoleLogger(level luxlog.Level) luxlog.Logger {
	console := luxlog.NewConsoleWriter(func(w *luxlog.ConsoleWriter) {
		w.Out = os.Stderr
	})
	return luxlog.NewWriter(&luxlog.FilteredLevelWriter{
		Writer: luxlog.LevelWriterAdapter{Writer: console},
		Level:  level,
	}).With().Timestamp().Logger()
}

// splitLogger sends every entry to the file logger and mirrors it to the
// console logger, which applies its own level.
type splitLogger struct {
	luxlog.Logger
	console luxlog.Logger
}

// Split returns a logger writing to both file and console. Context added
// through New reaches both.
func Split(file, console luxlog.Logger) luxlog.Logger {
	if console == nil {
		return file
	}
	return &splitLogger{Logger: file, console: console}
}

func (l *splitLogger) New(ctx ...interface{}) luxlog.Logger {
	return &splitLogger{Logger: l.Logger.New(ctx...), console: l.console.New(ctx...)}
}

func (l *splitLogger) Trace(msg string, ctx ...interface{}) {
	l.Logger.Trace(msg, ctx...)
	l.console.Trace(msg, ctx...)
}

func (l *splitLogger) Debug(msg string, ctx ...interface{}) {
	l.Logger.Debug(msg, ctx...)
	l.console.Debug(msg, ctx...)
}

func (l *splitLogger) Info(msg string, ctx ...interface{}) {
	l.Logger.Info(msg, ctx...)
	l.console.Info(msg, ctx...)
}

func (l *splitLogger) Warn(msg string, ctx ...interface{}) {
	l.Logger.Warn(msg, ctx...)
	l.console.Warn(msg, ctx...)
}

func (l *splitLogger) Error(msg string, ctx ...interface{}) {
	l.Logger.Error(msg, ctx...)
	l.console.Error(msg, ctx...)
}

func (l *splitLogger) Log(level luxlog.Level, msg string, ctx ...interface{}) {
	l.Logger.Log(level, msg, ctx...)
	l.console.Log(level, msg, ctx...)
}
