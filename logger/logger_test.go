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

package logger_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sabouaram/mqiserver/logger"
	loglvl "github.com/sabouaram/mqiserver/logger/level"
)

func TestNewLoggerWritesAtConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(&buf, loglvl.InfoLevel)

	l.Debug("should not appear")
	l.Info("should appear")

	out := buf.String()
	assert.False(t, strings.Contains(out, "should not appear"))
	assert.True(t, strings.Contains(out, "should appear"))
}

func TestWithFieldAddsContext(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(&buf, loglvl.InfoLevel).WithField("pair_id", "abc123")

	l.Info("hello")

	assert.Contains(t, buf.String(), "pair_id=abc123")
}

func TestDiscardLoggerNeverPanics(t *testing.T) {
	l := logger.Discard()
	assert.NotPanics(t, func() {
		l.Debug("x")
		l.Info("x")
		l.Warn("x")
		l.Error("x")
	})
}

func TestLevelParseCaseInsensitive(t *testing.T) {
	assert.Equal(t, loglvl.DebugLevel, loglvl.Parse("DEBUG"))
	assert.Equal(t, loglvl.InfoLevel, loglvl.Parse("unknown-value"))
}
