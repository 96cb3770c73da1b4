/*
 * MIT License
 *
 * Copyright (c) 2019 Nicolas JUHEL
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

// Package context provides a generic, concurrency-safe keyed registry built
// on top of context.Context cancellation. The query server uses it to track
// the set of live connection pairs for a server instance (§3 "the set of
// live connection pairs") so the supervisor can walk and signal all of them
// on stop.
package context

import (
	"context"
	"sync"
)

// FuncWalk is called once per stored entry by Walk; returning false stops
// the walk early.
type FuncWalk[T comparable] func(key T, val interface{}) bool

// Registry is a concurrency-safe map of key T to arbitrary values, scoped to
// a cancellable context: once the context is done, Store/LoadOrStore become
// no-ops and Clean is invoked lazily.
type Registry[T comparable] interface {
	context.Context

	Load(key T) (val interface{}, ok bool)
	Store(key T, val interface{})
	Delete(key T)
	LoadOrStore(key T, val interface{}) (actual interface{}, loaded bool)
	Walk(fct FuncWalk[T]) bool
	Len() int
	Clean()
}

func New[T comparable](parent context.Context) Registry[T] {
	if parent == nil {
		parent = context.Background()
	}
	return &registry[T]{Context: parent}
}

type registry[T comparable] struct {
	context.Context
	n sync.RWMutex
	m sync.Map
}

func (r *registry[T]) Store(key T, val interface{}) {
	if r.Err() != nil {
		r.Clean()
		return
	}
	r.n.RLock()
	defer r.n.RUnlock()
	r.m.Store(key, val)
}

func (r *registry[T]) Load(key T) (interface{}, bool) {
	r.n.RLock()
	defer r.n.RUnlock()
	return r.m.Load(key)
}

func (r *registry[T]) Delete(key T) {
	r.n.RLock()
	defer r.n.RUnlock()
	r.m.Delete(key)
}

func (r *registry[T]) LoadOrStore(key T, val interface{}) (interface{}, bool) {
	if r.Err() != nil {
		r.Clean()
		return nil, false
	}
	r.n.RLock()
	defer r.n.RUnlock()
	return r.m.LoadOrStore(key, val)
}

func (r *registry[T]) Walk(fct FuncWalk[T]) bool {
	r.n.RLock()
	defer r.n.RUnlock()

	r.m.Range(func(key, value any) bool {
		k, ok := key.(T)
		if !ok {
			return true
		}
		return fct(k, value)
	})

	return true
}

func (r *registry[T]) Len() int {
	n := 0
	r.Walk(func(T, interface{}) bool {
		n++
		return true
	})
	return n
}

func (r *registry[T]) Clean() {
	r.n.Lock()
	defer r.n.Unlock()
	r.m = sync.Map{}
}
