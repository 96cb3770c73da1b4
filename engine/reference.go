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

package engine

import (
	"context"
	"fmt"
	"time"
)

// Reference is a minimal, in-memory Session implementation good enough to
// exercise the session engine end to end without embedding a real logic
// engine. It understands five goal shapes:
//
//	true                    - succeeds once, no bindings
//	fail                    - fails (zero answers)
//	member(X, List)         - one answer per element of List, binding X
//	sleep(Seconds)          - blocks for Seconds, then succeeds once
//	throw(Term)             - raises Term as an engine exception
//
// Any other goal shape fails with zero answers. Reference is not thread
// safe for concurrent Solve calls on the same instance, which matches spec
// §5: a Session is owned by exactly one goal worker.
type Reference struct{}

// NewReference returns a Reference Session.
func NewReference() Session {
	return &Reference{}
}

func (r *Reference) Close() error { return nil }

func (r *Reference) Solve(ctx context.Context, goal Value, vars []string, fn func(Answer) error) error {
	switch g := goal.(type) {
	case string:
		switch g {
		case "true":
			return fn(Answer{})
		case "fail":
			return nil
		default:
			return nil
		}
	case *Compound:
		switch g.Functor {
		case "member":
			if len(g.Args) != 2 {
				return nil
			}
			name, ok := varName(g.Args[0])
			if !ok {
				return nil
			}
			list, ok := g.Args[1].([]Value)
			if !ok {
				return nil
			}
			for _, item := range list {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if err := fn(Answer{{Name: name, Value: item}}); err != nil {
					return err
				}
			}
			return nil
		case "sleep":
			if len(g.Args) != 1 {
				return nil
			}
			secs := asSeconds(g.Args[0])
			t := time.NewTimer(time.Duration(secs * float64(time.Second)))
			defer t.Stop()
			select {
			case <-t.C:
				return fn(Answer{})
			case <-ctx.Done():
				return ctx.Err()
			}
		case "throw":
			if len(g.Args) == 1 {
				return &ExceptionError{Term: g.Args[0]}
			}
			return &ExceptionError{Term: fmt.Sprintf("%v", g)}
		default:
			return nil
		}
	default:
		return nil
	}
}

func varName(v Value) (string, bool) {
	if x, ok := v.(Var); ok {
		return string(x), true
	}
	return "", false
}
