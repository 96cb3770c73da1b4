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

// Package reply implements the reply serializer (spec §4 "Reply
// serializer", §6 "Reply JSON shape"): turning a goal outcome into the
// JSON object written back to the client. It also carries the Message type
// that the goal worker enqueues on a connection pair's outbox and the
// communication worker consumes.
package reply

import (
	"encoding/json"

	"github.com/sabouaram/mqiserver/engine"
	"github.com/sabouaram/mqiserver/errors"
)

// Kind identifies which of the three reply shapes a Message carries (spec
// §3 "Result message").
type Kind uint8

const (
	KindTrue Kind = iota
	KindFalse
	KindException
)

// Binding is the wire-ready form of an engine.Binding.
type Binding struct {
	Name  string
	Value engine.Value
}

// Exception carries either a protocol/control Tag (password_mismatch,
// cancel_goal, no_more_results, ...) or a raw Term raised by the logic
// engine. Exactly one of the two is set.
type Exception struct {
	Tag  errors.Tag
	Term engine.Value
}

func TagException(tag errors.Tag) Exception {
	return Exception{Tag: tag}
}

func TermException(term engine.Value) Exception {
	return Exception{Term: term}
}

// Message is one element of a connection pair's goal outbox (spec §3
// "Result message"). Terminal marks whether this is the last message for
// the query it belongs to (always true for find-all queries; true only on
// the final message of a streamed query).
type Message struct {
	Kind     Kind
	Answers  [][]Binding // one row per answer, only for KindTrue
	Err      Exception   // only for KindException
	FindAll  bool
	Terminal bool
}

func FromAnswers(answers []engine.Answer, findAll, terminal bool) Message {
	if len(answers) == 0 {
		return Message{Kind: KindFalse, FindAll: findAll, Terminal: terminal}
	}
	rows := make([][]Binding, 0, len(answers))
	for _, a := range answers {
		row := make([]Binding, 0, len(a))
		for _, b := range a {
			row = append(row, Binding{Name: b.Name, Value: b.Value})
		}
		rows = append(rows, row)
	}
	return Message{Kind: KindTrue, Answers: rows, FindAll: findAll, Terminal: terminal}
}

func FromException(exc Exception, findAll, terminal bool) Message {
	return Message{Kind: KindException, Err: exc, FindAll: findAll, Terminal: terminal}
}

// term is the generic {"functor":..., "args":[...]} JSON shape every reply
// uses (spec §6).
type term struct {
	Functor string        `json:"functor"`
	Args    []interface{} `json:"args"`
}

type bindingJSON struct {
	Functor string        `json:"functor"`
	Args    []interface{} `json:"args"`
}

func bindingTerm(b Binding) bindingJSON {
	return bindingJSON{Functor: "=", Args: []interface{}{b.Name, b.Value}}
}

// ToTerm converts a Message into the generic functor/args term the wire
// format expects.
func ToTerm(m Message) term {
	switch m.Kind {
	case KindFalse:
		return term{Functor: "false", Args: []interface{}{}}
	case KindException:
		return term{Functor: "exception", Args: []interface{}{errorValueJSON(m.Err)}}
	default:
		rows := make([]interface{}, 0, len(m.Answers))
		for _, row := range m.Answers {
			bindings := make([]interface{}, 0, len(row))
			for _, b := range row {
				bindings = append(bindings, bindingTerm(b))
			}
			rows = append(rows, bindings)
		}
		return term{Functor: "true", Args: []interface{}{rows}}
	}
}

// errorValueJSON implements spec §6's ErrorValueAsJSON rule: a protocol/
// control Tag is emitted as its atom; a structured error(Inner, _Context)
// term is unwrapped to Inner; a bare atom is itself; any other compound is
// reduced to its functor name.
func errorValueJSON(e Exception) interface{} {
	if e.Tag != errors.UnknownTag {
		return string(e.Tag)
	}
	switch v := e.Term.(type) {
	case *engine.Compound:
		if v.Functor == "error" && len(v.Args) == 2 {
			return v.Args[0]
		}
		return v.Functor
	default:
		return v
	}
}

// Encode marshals a Message into the wire-ready JSON bytes for one reply
// frame's payload.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(ToTerm(m))
}

// ToJSONValue exposes the same conversion for callers that want the
// generic value rather than already-marshaled bytes (e.g. logging).
func ToJSONValue(m Message) interface{} {
	return ToTerm(m)
}
