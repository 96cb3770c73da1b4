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

// Package session implements the per-connection worker pair (spec §3, §4):
// one communication worker running the wire protocol state machine and one
// goal worker serially executing queries against a logic-engine session.
package session

import (
	"net"

	"github.com/google/uuid"

	"github.com/sabouaram/mqiserver/engine"
	"github.com/sabouaram/mqiserver/logger"
)

// Pair owns one accepted connection's worker pair (spec §3 "connection
// pair"). query_in_progress (invariant I2) is tracked by the pair's
// communication worker (CommWorker.queryInProgress) rather than on the goal
// worker: it is set when the communication worker dispatches a goal, and
// cleared only once it has consumed a terminal outbox message for it.
type Pair struct {
	CommID string
	GoalID string

	Conn net.Conn
	Goal *GoalWorker
	Comm *CommWorker

	log logger.Logger
}

// Options configures a new Pair (spec §6 recognized option table, the
// subset relevant to one connection).
type Options struct {
	Secret            []byte
	HeartbeatInterval int // seconds; 0 uses the protocol default of 2s
	OnQuit            func()
}

// NewPair wires a goal worker and communication worker around conn and eng,
// but does not start either goroutine (call Serve to do that).
func NewPair(conn net.Conn, eng engine.Session, parser engine.Parser, log logger.Logger, opts Options) *Pair {
	commID := uuid.NewString()
	goalID := uuid.NewString()

	gw := NewGoalWorker(goalID, eng, log.WithField("goal_id", goalID))

	p := &Pair{
		CommID: commID,
		GoalID: goalID,
		Conn:   conn,
		Goal:   gw,
		log:    log.WithFields(map[string]interface{}{"comm_id": commID, "goal_id": goalID}),
	}

	p.Comm = NewCommWorker(p, conn, parser, p.log, opts)
	return p
}

// Serve runs the pair to completion: the goal worker's serial loop in one
// goroutine, the communication worker's protocol loop in the caller's
// goroutine (so Serve blocks until the connection ends). It always leaves
// both workers torn down before returning.
func (p *Pair) Serve() error {
	goalDone := make(chan struct{})
	go func() {
		defer close(goalDone)
		p.Goal.Run()
	}()

	err := p.Comm.Serve()

	p.Goal.Abort()
	<-goalDone
	_ = p.Goal.eng.Close()

	return err
}
