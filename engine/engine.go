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

// Package engine declares the contracts for the three external collaborators
// the session engine treats as trusted, out-of-scope capabilities (spec §1,
// §6): the logic engine itself, and the term parser. The term-to-JSON
// serializer's contract is folded into the reply package, since it only
// matters at the wire boundary.
//
// Nothing in this package evaluates Prolog (or any other logic language):
// Session and Parser are interfaces a host embeds a real engine behind.
package engine

import "context"

// Value is an already-structured term value, as produced by the host's
// term-to-JSON serializer contract: a string (atom), a number, a bool, a
// []Value (list), or a *Compound (functor with arguments). It is opaque to
// the session engine, which only ever forwards it to the reply layer.
type Value = interface{}

// Compound is a parsed compound term functor(args...), used both for goals
// submitted by the parser and for structured exception terms raised by the
// engine (e.g. error(Inner, Context)).
type Compound struct {
	Functor string
	Args    []Value
}

// Binding pairs a client-supplied variable name with its bound value in one
// answer (spec §3 "Answer"). Unbound variables retain their name and carry
// a Value representing an unbound variable (the parser/engine's own
// convention; this package does not interpret it).
type Binding struct {
	Name  string
	Value Value
}

// Answer is one solution of a goal: an ordered list of bindings. A
// successful goal with no free variables yields an empty, non-nil Answer.
type Answer []Binding

// ExceptionError wraps a term raised by the logic engine while solving a
// goal (spec §3 "Result message", ErrorValue). It is distinguished from a
// plain Go error, which the session engine treats as an infrastructure
// failure (connection_failed) rather than an engine exception.
type ExceptionError struct {
	Term Value
}

func (e *ExceptionError) Error() string {
	return "engine exception"
}

// AsException extracts an *ExceptionError from err, if present.
func AsException(err error) (*ExceptionError, bool) {
	e, ok := err.(*ExceptionError)
	return e, ok
}

// Session is one logic-engine session, owned exclusively by one goal
// worker (spec §5 "the engine session is owned solely by the goal
// worker"). Solve evaluates goal (already parsed) with vars as the
// client-supplied variable names in source order, invoking fn once per
// answer in the engine's natural answer order.
//
// fn may return a non-nil error to stop enumeration early; that error
// becomes Solve's return value verbatim. The goal worker's callbacks in
// this module always return nil.
//
// Solve must treat ctx as cooperative: it should check ctx.Err() between
// answers (and, where the underlying engine supports it, during a single
// long-running inference) and stop with ctx.Err() once the context is
// done. A context.DeadlineExceeded is surfaced by the caller as
// time_limit_exceeded; a context.Canceled is surfaced as cancel_goal.
// Any other non-nil, non-ExceptionError return is treated as an
// infrastructure failure (connection_failed).
type Session interface {
	Solve(ctx context.Context, goal Value, vars []string, fn func(Answer) error) error

	// Close releases the underlying engine session. Called once, when the
	// owning goal worker's connection pair is torn down.
	Close() error
}

// CommandKind identifies which top-level command a client frame decoded to
// (spec §6 "Recognized top-level commands").
type CommandKind uint8

const (
	CmdRun CommandKind = iota
	CmdRunAsync
	CmdAsyncResult
	CmdCancelAsync
	CmdClose
	CmdQuit
)

// NoTimeout is the sentinel the wire protocol and this package use for "no
// time limit" (spec §3 "-1 => unbounded").
const NoTimeout float64 = -1

// Command is the parser's decoded form of one client frame payload (spec
// §6 "payload term parsing"). Goal/Vars are populated only for
// CmdRun/CmdRunAsync. Timeout is populated for CmdRun/CmdRunAsync (the
// query timeout) and CmdAsyncResult (the dequeue patience); NoTimeout (-1)
// means unbounded, 0 means poll-without-blocking.
type Command struct {
	Kind    CommandKind
	Goal    Value
	Vars    []string
	Timeout float64
	FindAll bool
}

// Parser turns one client frame payload into a Command, or reports a parse
// failure. A failure to recognize the top-level functor/arity must be
// reported as ErrUnknownCommand; any other structural failure is
// ErrCouldNotParse.
type Parser interface {
	Parse(text string) (Command, error)
}
