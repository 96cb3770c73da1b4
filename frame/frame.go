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

// Package frame implements the length-prefixed text framing of spec §4.1:
//
//	<decimal-length>.\n<payload-bytes>.\n
//
// where decimal-length is the UTF-8 byte count of the payload including its
// trailing ".\n". The codec is content-oblivious: it has no opinion about
// what the payload means, only about its envelope.
package frame

import (
	"bufio"
	"io"
	"strconv"
)

// HeartbeatByte is the single raw byte written by the communication worker
// while awaiting a goal-outbox message during a synchronous run (spec §9
// "Heartbeat design"). It is never wrapped in a frame, and a client must
// strip leading HeartbeatByte bytes before reading a length prefix.
const HeartbeatByte byte = '.'

var (
	// ErrFrameError covers every malformed-frame condition spec §4.1 calls
	// out: a non-numeric length, a missing length terminator, a payload
	// shorter than declared, or a payload not ending in ".\n".
	ErrFrameError = &frameErr{"frame_error"}

	// ErrConnectionClosed is returned when the peer closes the connection
	// cleanly at a frame boundary (no bytes of a new frame were read).
	ErrConnectionClosed = &frameErr{"connection_closed"}
)

type frameErr struct{ msg string }

func (e *frameErr) Error() string { return e.msg }

// Encode returns the wire bytes for one frame carrying payload.
func Encode(payload string) []byte {
	body := payload + ".\n"
	prefix := strconv.Itoa(len(body)) + ".\n"
	out := make([]byte, 0, len(prefix)+len(body))
	out = append(out, prefix...)
	out = append(out, body...)
	return out
}

// Decode reads exactly one frame from r and returns its payload with the
// trailing ".\n" stripped.
func Decode(r *bufio.Reader) (string, error) {
	first, err := r.ReadByte()
	if err != nil {
		if err == io.EOF {
			return "", ErrConnectionClosed
		}
		return "", ErrConnectionClosed
	}

	var digits []byte
	b := first
	for b != '.' {
		if b < '0' || b > '9' {
			return "", ErrFrameError
		}
		digits = append(digits, b)
		if b, err = r.ReadByte(); err != nil {
			return "", ErrFrameError
		}
	}
	if len(digits) == 0 {
		return "", ErrFrameError
	}

	n, err := strconv.Atoi(string(digits))
	if err != nil || n < 2 {
		return "", ErrFrameError
	}

	nl, err := r.ReadByte()
	if err != nil || nl != '\n' {
		return "", ErrFrameError
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", ErrFrameError
	}

	if buf[n-2] != '.' || buf[n-1] != '\n' {
		return "", ErrFrameError
	}

	return string(buf[:n-2]), nil
}

// WriteHeartbeat writes the single raw heartbeat byte described by spec
// §4.2 state 3 (Running-sync).
func WriteHeartbeat(w io.Writer) error {
	_, err := w.Write([]byte{HeartbeatByte})
	return err
}

// WriteFrame encodes and writes payload as one frame.
func WriteFrame(w io.Writer, payload string) error {
	_, err := w.Write(Encode(payload))
	return err
}

// NewReader wraps r for use with Decode.
func NewReader(r io.Reader) *bufio.Reader {
	return bufio.NewReader(r)
}
