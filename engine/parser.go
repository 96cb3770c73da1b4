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
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrCouldNotParse and ErrUnknownCommand are the two parse-failure classes
// spec §4.2 step 2 distinguishes: a term the grammar rejects outright, vs a
// term that parses fine but whose top-level functor/arity isn't one of the
// six recognized commands (spec §6).
var (
	ErrCouldNotParse  = errors.New("could not parse command")
	ErrUnknownCommand = errors.New("unknown command")
)

// textParser is a small recursive-descent reader for the conventional
// logic-term syntax described in spec §6: atoms, quoted atoms, variables,
// numbers, strings, lists and compound terms. No third-party library in
// the retrieved pack parses this grammar (see DESIGN.md); this is a
// minimal, faithful implementation of the trusted external capability spec
// §1(c) calls out as out of scope for the core, written so the session
// engine has something real to call against in tests.
type textParser struct{}

// NewParser returns the default Parser implementation.
func NewParser() Parser {
	return textParser{}
}

func (textParser) Parse(text string) (Command, error) {
	p := &termReader{src: []rune(strings.TrimSpace(text))}
	t, err := p.readTerm()
	if err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrCouldNotParse, err)
	}
	p.skipSpace()
	// The wire framing already terminates the payload; tolerate a
	// conventional trailing '.' too, since that's how the term would read
	// as ordinary logic-language source.
	if c, ok := p.peek(); ok && c == '.' {
		p.pos++
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return Command{}, fmt.Errorf("%w: trailing input", ErrCouldNotParse)
	}

	c, ok := t.(*Compound)
	var functor string
	var args []Value
	if ok {
		functor, args = c.Functor, c.Args
	} else if a, isAtom := t.(string); isAtom {
		functor, args = a, nil
	} else {
		return Command{}, fmt.Errorf("%w: not a command", ErrCouldNotParse)
	}

	switch {
	case functor == "run" && len(args) == 2:
		return Command{Kind: CmdRun, Goal: args[0], Vars: variablesOf(args[0]), Timeout: asSeconds(args[1])}, nil
	case functor == "run_async" && len(args) == 3:
		return Command{
			Kind:    CmdRunAsync,
			Goal:    args[0],
			Vars:    variablesOf(args[0]),
			Timeout: asSeconds(args[1]),
			FindAll: asBool(args[2]),
		}, nil
	case functor == "async_result" && len(args) == 1:
		return Command{Kind: CmdAsyncResult, Timeout: asSeconds(args[0])}, nil
	case functor == "async_result" && len(args) == 0:
		return Command{Kind: CmdAsyncResult, Timeout: NoTimeout}, nil
	case functor == "cancel_async" && len(args) == 0:
		return Command{Kind: CmdCancelAsync}, nil
	case functor == "close" && len(args) == 0:
		return Command{Kind: CmdClose}, nil
	case functor == "quit" && len(args) == 0:
		return Command{Kind: CmdQuit}, nil
	default:
		return Command{}, fmt.Errorf("%w: %s/%d", ErrUnknownCommand, functor, len(args))
	}
}

func asSeconds(v Value) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		return NoTimeout
	}
}

func asBool(v Value) bool {
	if a, ok := v.(string); ok {
		return a == "true"
	}
	return false
}

// variablesOf walks a parsed term and returns the names of every Var it
// contains, in first-occurrence source order, deduplicated (spec §3
// "captured variable-name list").
func variablesOf(t Value) []string {
	var (
		seen  = map[string]bool{}
		order []string
	)
	var walk func(Value)
	walk = func(v Value) {
		switch x := v.(type) {
		case Var:
			if !seen[string(x)] {
				seen[string(x)] = true
				order = append(order, string(x))
			}
		case *Compound:
			for _, a := range x.Args {
				walk(a)
			}
		case []Value:
			for _, a := range x {
				walk(a)
			}
		}
	}
	walk(t)
	return order
}

// Var is a textual variable reference as written by the client, before the
// engine binds it to a value (spec §3: "unbound variables retain their
// name").
type Var string

type termReader struct {
	src []rune
	pos int
}

func (r *termReader) peek() (rune, bool) {
	if r.pos >= len(r.src) {
		return 0, false
	}
	return r.src[r.pos], true
}

func (r *termReader) skipSpace() {
	for r.pos < len(r.src) && unicode.IsSpace(r.src[r.pos]) {
		r.pos++
	}
}

func (r *termReader) readTerm() (Value, error) {
	r.skipSpace()
	c, ok := r.peek()
	if !ok {
		return nil, errors.New("unexpected end of input")
	}

	switch {
	case c == '[':
		return r.readList()
	case c == '\'':
		return r.readQuotedAtom()
	case c == '"':
		return r.readString()
	case c == '-' || unicode.IsDigit(c):
		return r.readNumber()
	case unicode.IsUpper(c) || c == '_':
		return r.readVariable()
	case unicode.IsLower(c):
		return r.readAtomOrCompound()
	default:
		return nil, fmt.Errorf("unexpected character %q", c)
	}
}

func (r *termReader) readList() (Value, error) {
	r.pos++ // consume '['
	items := make([]Value, 0)
	r.skipSpace()
	if c, ok := r.peek(); ok && c == ']' {
		r.pos++
		return items, nil
	}
	for {
		v, err := r.readTerm()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		r.skipSpace()
		c, ok := r.peek()
		if !ok {
			return nil, errors.New("unterminated list")
		}
		if c == ',' {
			r.pos++
			continue
		}
		if c == ']' {
			r.pos++
			return items, nil
		}
		return nil, fmt.Errorf("unexpected character %q in list", c)
	}
}

func (r *termReader) readQuotedAtom() (Value, error) {
	return r.readDelimited('\'')
}

func (r *termReader) readString() (Value, error) {
	return r.readDelimited('"')
}

func (r *termReader) readDelimited(delim rune) (Value, error) {
	r.pos++ // consume opening delimiter
	var b strings.Builder
	for {
		c, ok := r.peek()
		if !ok {
			return nil, errors.New("unterminated quoted text")
		}
		r.pos++
		if c == delim {
			return b.String(), nil
		}
		if c == '\\' {
			if esc, ok2 := r.peek(); ok2 {
				r.pos++
				b.WriteRune(esc)
				continue
			}
		}
		b.WriteRune(c)
	}
}

func (r *termReader) readNumber() (Value, error) {
	start := r.pos
	if c, _ := r.peek(); c == '-' {
		r.pos++
	}
	for {
		c, ok := r.peek()
		if !ok || !unicode.IsDigit(c) {
			break
		}
		r.pos++
	}
	isFloat := false
	if c, ok := r.peek(); ok && c == '.' && r.pos+1 < len(r.src) && unicode.IsDigit(r.src[r.pos+1]) {
		isFloat = true
		r.pos++
		for {
			c, ok := r.peek()
			if !ok || !unicode.IsDigit(c) {
				break
			}
			r.pos++
		}
	}

	text := string(r.src[start:r.pos])
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		return f, err
	}
	n, err := strconv.ParseInt(text, 10, 64)
	return n, err
}

func (r *termReader) readVariable() (Value, error) {
	start := r.pos
	for {
		c, ok := r.peek()
		if !ok || !(unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_') {
			break
		}
		r.pos++
	}
	return Var(r.src[start:r.pos]), nil
}

func (r *termReader) readAtomOrCompound() (Value, error) {
	start := r.pos
	for {
		c, ok := r.peek()
		if !ok || !(unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_') {
			break
		}
		r.pos++
	}
	name := string(r.src[start:r.pos])

	if c, ok := r.peek(); ok && c == '(' {
		r.pos++
		args := make([]Value, 0)
		r.skipSpace()
		if c2, ok2 := r.peek(); ok2 && c2 == ')' {
			r.pos++
			return &Compound{Functor: name, Args: args}, nil
		}
		for {
			v, err := r.readTerm()
			if err != nil {
				return nil, err
			}
			args = append(args, v)
			r.skipSpace()
			c2, ok2 := r.peek()
			if !ok2 {
				return nil, errors.New("unterminated compound term")
			}
			if c2 == ',' {
				r.pos++
				r.skipSpace()
				continue
			}
			if c2 == ')' {
				r.pos++
				return &Compound{Functor: name, Args: args}, nil
			}
			return nil, fmt.Errorf("unexpected character %q in compound term", c2)
		}
	}

	return name, nil
}
