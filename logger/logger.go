/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package logger provides the structured, level-filtered logger used by
// every component of the session engine (goal worker, communication
// worker, listener, supervisor). It wraps logrus the way an embedding host
// is expected to: one logger per server instance, field-scoped children per
// connection pair.
package logger

import (
	"io"
	"os"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/sirupsen/logrus"

	loglvl "github.com/sabouaram/mqiserver/logger/level"
)

// Logger is the logging surface handed to every session-engine component.
// It never panics on a nil *Logger: a nil receiver behaves as a discard
// logger, so components can be constructed without a logger in tests.
type Logger interface {
	WithField(key string, val interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	SetLevel(lvl loglvl.Level)
	GetLevel() loglvl.Level

	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)

	// HCLog exposes this logger as a hashicorp/go-hclog.Logger, for wiring
	// into any third-party component that expects that interface.
	HCLog() hclog.Logger
}

type lgr struct {
	m      sync.RWMutex
	entry  *logrus.Entry
	level  loglvl.Level
}

// New creates a Logger writing to w (os.Stderr if w is nil) at the given
// level, using logrus' text formatter.
func New(w io.Writer, lvl loglvl.Level) Logger {
	if w == nil {
		w = os.Stderr
	}

	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(lvl.Logrus())
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		DisableColors:   true,
		QuoteEmptyFields: true,
	})

	return &lgr{
		entry: logrus.NewEntry(l),
		level: lvl,
	}
}

// Discard returns a Logger that drops every message; used as a safe
// zero-value default.
func Discard() Logger {
	return New(io.Discard, loglvl.NilLevel)
}

func (l *lgr) WithField(key string, val interface{}) Logger {
	if l == nil {
		return Discard()
	}
	return &lgr{entry: l.entry.WithField(key, val), level: l.level}
}

func (l *lgr) WithFields(fields map[string]interface{}) Logger {
	if l == nil {
		return Discard()
	}
	return &lgr{entry: l.entry.WithFields(fields), level: l.level}
}

func (l *lgr) WithError(err error) Logger {
	if l == nil {
		return Discard()
	}
	return &lgr{entry: l.entry.WithError(err), level: l.level}
}

func (l *lgr) SetLevel(lvl loglvl.Level) {
	if l == nil {
		return
	}
	l.m.Lock()
	defer l.m.Unlock()
	l.level = lvl
	l.entry.Logger.SetLevel(lvl.Logrus())
}

func (l *lgr) GetLevel() loglvl.Level {
	if l == nil {
		return loglvl.NilLevel
	}
	l.m.RLock()
	defer l.m.RUnlock()
	return l.level
}

func (l *lgr) Debug(msg string) {
	if l == nil {
		return
	}
	l.entry.Debug(msg)
}

func (l *lgr) Info(msg string) {
	if l == nil {
		return
	}
	l.entry.Info(msg)
}

func (l *lgr) Warn(msg string) {
	if l == nil {
		return
	}
	l.entry.Warn(msg)
}

func (l *lgr) Error(msg string) {
	if l == nil {
		return
	}
	l.entry.Error(msg)
}

func (l *lgr) HCLog() hclog.Logger {
	return &hclogAdapter{l: l}
}
