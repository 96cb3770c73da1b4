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

package reply_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabouaram/mqiserver/engine"
	"github.com/sabouaram/mqiserver/errors"
	"github.com/sabouaram/mqiserver/reply"
)

func TestFromAnswersEmptyIsFalse(t *testing.T) {
	m := reply.FromAnswers(nil, true, true)
	body, err := reply.Encode(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"functor":"false","args":[]}`, string(body))
}

func TestFromAnswersNoVariablesIsOneEmptyRow(t *testing.T) {
	m := reply.FromAnswers([]engine.Answer{{}}, true, true)
	body, err := reply.Encode(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"functor":"true","args":[[[]]]}`, string(body))
}

func TestFromAnswersWithBindings(t *testing.T) {
	m := reply.FromAnswers([]engine.Answer{
		{{Name: "X", Value: "a"}},
		{{Name: "X", Value: "b"}},
	}, true, true)
	body, err := reply.Encode(m)
	require.NoError(t, err)

	expected := `{"functor":"true","args":[[
		[{"functor":"=","args":["X","a"]}],
		[{"functor":"=","args":["X","b"]}]
	]]}`
	assert.JSONEq(t, expected, string(body))
}

func TestFromExceptionTag(t *testing.T) {
	m := reply.FromException(reply.TagException(errors.TagNoMoreResults), false, true)
	body, err := reply.Encode(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"functor":"exception","args":["no_more_results"]}`, string(body))
}

func TestFromExceptionStructuredErrorUnwrapsInner(t *testing.T) {
	term := &engine.Compound{
		Functor: "error",
		Args:    []engine.Value{"type_error", "context_detail"},
	}
	m := reply.FromException(reply.TermException(term), false, true)
	body, err := reply.Encode(m)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "exception", decoded["functor"])
	args := decoded["args"].([]interface{})
	assert.Equal(t, "type_error", args[0])
}

func TestFromExceptionBareAtomIsItself(t *testing.T) {
	m := reply.FromException(reply.TermException("oops"), false, true)
	body, err := reply.Encode(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"functor":"exception","args":["oops"]}`, string(body))
}

func TestFromExceptionOtherCompoundReducesToFunctor(t *testing.T) {
	term := &engine.Compound{Functor: "permission_error", Args: []engine.Value{"a", "b"}}
	m := reply.FromException(reply.TermException(term), false, true)
	body, err := reply.Encode(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"functor":"exception","args":["permission_error"]}`, string(body))
}
