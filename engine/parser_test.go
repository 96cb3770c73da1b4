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

package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabouaram/mqiserver/engine"
)

func TestParseRun(t *testing.T) {
	p := engine.NewParser()
	cmd, err := p.Parse("run(member(X,[a,b,c]), -1).")
	require.NoError(t, err)
	assert.Equal(t, engine.CmdRun, cmd.Kind)
	assert.Equal(t, []string{"X"}, cmd.Vars)
	assert.Equal(t, float64(-1), cmd.Timeout)

	goal, ok := cmd.Goal.(*engine.Compound)
	require.True(t, ok)
	assert.Equal(t, "member", goal.Functor)
}

func TestParseRunAsync(t *testing.T) {
	p := engine.NewParser()
	cmd, err := p.Parse("run_async(member(X,[1,2]), -1, false).")
	require.NoError(t, err)
	assert.Equal(t, engine.CmdRunAsync, cmd.Kind)
	assert.False(t, cmd.FindAll)
}

func TestParseAsyncResultWithAndWithoutTimeout(t *testing.T) {
	p := engine.NewParser()

	cmd, err := p.Parse("async_result(0).")
	require.NoError(t, err)
	assert.Equal(t, engine.CmdAsyncResult, cmd.Kind)
	assert.Equal(t, float64(0), cmd.Timeout)

	cmd, err = p.Parse("async_result.")
	require.NoError(t, err)
	assert.Equal(t, engine.CmdAsyncResult, cmd.Kind)
	assert.Equal(t, engine.NoTimeout, cmd.Timeout)
}

func TestParseZeroArityCommands(t *testing.T) {
	p := engine.NewParser()

	for text, kind := range map[string]engine.CommandKind{
		"cancel_async.": engine.CmdCancelAsync,
		"close.":        engine.CmdClose,
		"quit.":         engine.CmdQuit,
	} {
		cmd, err := p.Parse(text)
		require.NoError(t, err)
		assert.Equal(t, kind, cmd.Kind)
	}
}

func TestParseUnknownCommand(t *testing.T) {
	p := engine.NewParser()
	_, err := p.Parse("frobnicate(1,2,3).")
	assert.ErrorIs(t, err, engine.ErrUnknownCommand)
}

func TestParseCouldNotParse(t *testing.T) {
	p := engine.NewParser()
	_, err := p.Parse("run(member(X,[a,b,c")
	assert.ErrorIs(t, err, engine.ErrCouldNotParse)
}

func TestVariablesOfDedupesInOrder(t *testing.T) {
	p := engine.NewParser()
	cmd, err := p.Parse("run(pair(X,pair(Y,X)), -1).")
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Y"}, cmd.Vars)
}
