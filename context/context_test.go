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

package context_test

import (
	stdctx "context"
	"testing"

	"github.com/stretchr/testify/assert"

	regctx "github.com/sabouaram/mqiserver/context"
)

func TestStoreLoadDelete(t *testing.T) {
	r := regctx.New[string](nil)

	r.Store("a", 1)
	v, ok := r.Load("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	r.Delete("a")
	_, ok = r.Load("a")
	assert.False(t, ok)
}

func TestWalkVisitsEveryEntry(t *testing.T) {
	r := regctx.New[string](nil)
	r.Store("a", 1)
	r.Store("b", 2)

	seen := map[string]interface{}{}
	r.Walk(func(k string, v interface{}) bool {
		seen[k] = v
		return true
	})

	assert.Equal(t, map[string]interface{}{"a": 1, "b": 2}, seen)
	assert.Equal(t, 2, r.Len())
}

func TestStoreAfterCancelIsNoOp(t *testing.T) {
	parent, cancel := stdctx.WithCancel(stdctx.Background())
	r := regctx.New[string](parent)

	r.Store("a", 1)
	cancel()

	r.Store("b", 2)
	_, ok := r.Load("b")
	assert.False(t, ok)
}
