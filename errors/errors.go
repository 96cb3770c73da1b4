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

// Package errors provides the coded error taxonomy for the query server: the
// protocol errors, query-control errors, and infrastructure failures it can
// surface to a client, plus a light parent-chain error type compatible with
// errors.Is/errors.As.
package errors

import (
	"errors"
	"fmt"
)

// Tag is a stable protocol/control error tag, carried verbatim as the atom
// in an `exception(<tag>)` reply.
type Tag string

const (
	UnknownTag Tag = ""

	// Protocol errors (§7): connection continues, except PasswordMismatch.
	TagPasswordMismatch       Tag = "password_mismatch"
	TagCouldNotParseCommand   Tag = "could_not_parse_command"
	TagUnknownCommand         Tag = "unknown_command"
	TagFrameError             Tag = "frame_error"

	// Query control errors (§7): normal protocol values, not bugs.
	TagNoQuery             Tag = "no_query"
	TagResultNotAvailable  Tag = "result_not_available"
	TagNoMoreResults       Tag = "no_more_results"
	TagTimeLimitExceeded   Tag = "time_limit_exceeded"
	TagCancelGoal          Tag = "cancel_goal"

	// Infrastructure failures (§7).
	TagConnectionFailed Tag = "connection_failed"

	// Startup/configuration errors (§4.5): raised before the server ever
	// accepts a connection.
	TagDomainError Tag = "domain_error"
)

// TagError is a Go error wrapping one of the Tag constants above, so that
// internal plumbing can use errors.Is/errors.As instead of comparing raw
// strings.
type TagError struct {
	Tag    Tag
	Parent error
}

func New(tag Tag) *TagError {
	return &TagError{Tag: tag}
}

func Wrap(tag Tag, parent error) *TagError {
	return &TagError{Tag: tag, Parent: parent}
}

func (e *TagError) Error() string {
	if e.Parent != nil {
		return fmt.Sprintf("%s: %s", e.Tag, e.Parent.Error())
	}
	return string(e.Tag)
}

func (e *TagError) Unwrap() error {
	return e.Parent
}

func (e *TagError) Is(target error) bool {
	var t *TagError
	if errors.As(target, &t) {
		return t.Tag == e.Tag
	}
	return false
}

// IsTag reports whether err carries the given Tag anywhere in its chain.
func IsTag(err error, tag Tag) bool {
	var t *TagError
	if errors.As(err, &t) {
		return t.Tag == tag
	}
	return false
}

// AsTag extracts the Tag carried by err, if any.
func AsTag(err error) (Tag, bool) {
	var t *TagError
	if errors.As(err, &t) {
		return t.Tag, true
	}
	return UnknownTag, false
}
