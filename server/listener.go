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

// Package server implements the listener and supervisor of spec §4.5: bind
// the endpoint, accept connections, spawn one worker pair per connection,
// and track every live pair so Stop can signal all of them.
package server

import (
	"fmt"
	"net"
	"os"

	"github.com/google/uuid"

	regctx "github.com/sabouaram/mqiserver/context"
	"github.com/sabouaram/mqiserver/engine"
	"github.com/sabouaram/mqiserver/logger"
	"github.com/sabouaram/mqiserver/session"
)

// bindEndpoint implements spec §4.5's "create the endpoint atomically":
// for a local socket, remove any stale file and bind; for TCP, bind
// loopback on the requested port (0 lets the kernel pick). It does not
// check that a socket path is absolute: config.Options.Validate (run by
// config.Load) rejects a relative path before the supervisor is built.
func bindEndpoint(port int, unixPath string) (net.Listener, error) {
	if unixPath != "" {
		if err := os.Remove(unixPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("server: removing stale socket file: %w", err)
		}
		return net.Listen("unix", unixPath)
	}
	return net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
}

// listener owns the accept loop and the registry of live connection pairs
// (spec §3 "the set of live connection pairs").
type listener struct {
	ln   net.Listener
	log  logger.Logger
	reg  regctx.Registry[string]
	opts session.Options

	engineFactory func() engine.Session
	parser        engine.Parser

	onPairDone func(id string, err error)
}

func newListenerWorker(ln net.Listener, engineFactory func() engine.Session, parser engine.Parser, opts session.Options, log logger.Logger, onPairDone func(string, error)) *listener {
	return &listener{
		ln:            ln,
		log:           log,
		reg:           regctx.New[string](nil),
		opts:          opts,
		engineFactory: engineFactory,
		parser:        parser,
		onPairDone:    onPairDone,
	}
}

// acceptLoop runs until ln is closed (by Supervisor.Stop), spawning one
// worker pair per accepted connection.
func (l *listener) acceptLoop() {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			l.log.WithError(err).Info("accept loop stopped")
			return
		}
		go l.handle(conn)
	}
}

func (l *listener) handle(conn net.Conn) {
	id := uuid.NewString()
	pair := session.NewPair(conn, l.engineFactory(), l.parser, l.log, l.opts)
	l.reg.Store(id, pair)
	defer l.reg.Delete(id)

	err := pair.Serve()
	_ = conn.Close()
	if l.onPairDone != nil {
		l.onPairDone(id, err)
	}
}

// abortAll signals every live pair's goal worker to stop and closes every
// live pair's connection, unblocking its communication worker (spec §4.5
// "Server stop ... signals every registered connection pair to abort").
func (l *listener) abortAll() {
	l.reg.Walk(func(_ string, v interface{}) bool {
		if pair, ok := v.(*session.Pair); ok {
			pair.Goal.Abort()
			_ = pair.Conn.Close()
		}
		return true
	})
}

func (l *listener) close() error {
	return l.ln.Close()
}
