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

package session

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"github.com/sabouaram/mqiserver/engine"
	liberr "github.com/sabouaram/mqiserver/errors"
	"github.com/sabouaram/mqiserver/frame"
	"github.com/sabouaram/mqiserver/logger"
	"github.com/sabouaram/mqiserver/password"
	"github.com/sabouaram/mqiserver/reply"
)

const defaultHeartbeatInterval = 2 * time.Second

// CommWorker runs the wire-protocol state machine of spec §4.2: Greeting,
// Ready, Running-sync, Running-async, Draining, Terminal.
type CommWorker struct {
	pair   *Pair
	conn   net.Conn
	reader *bufio.Reader
	parser engine.Parser
	log    logger.Logger

	secret    []byte
	heartbeat time.Duration
	onQuit    func()

	queryInProgress atomic.Bool
}

// NewCommWorker builds the communication worker half of a Pair.
func NewCommWorker(pair *Pair, conn net.Conn, parser engine.Parser, log logger.Logger, opts Options) *CommWorker {
	hb := time.Duration(opts.HeartbeatInterval) * time.Second
	if hb <= 0 {
		hb = defaultHeartbeatInterval
	}
	return &CommWorker{
		pair:      pair,
		conn:      conn,
		reader:    frame.NewReader(conn),
		parser:    parser,
		log:       log,
		secret:    opts.Secret,
		heartbeat: hb,
		onQuit:    opts.OnQuit,
	}
}

// wireTerm is used only for the two reply shapes reply.Message can't
// express: the greeting's threads(CommId,GoalId) answer and bare protocol
// exceptions (tags that never flow through the goal worker's outbox).
type wireTerm struct {
	Functor string        `json:"functor"`
	Args    []interface{} `json:"args"`
}

func tagException(tag liberr.Tag) wireTerm {
	return wireTerm{Functor: "exception", Args: []interface{}{string(tag)}}
}

func (c *CommWorker) writeTerm(t wireTerm) error {
	body, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return frame.WriteFrame(c.conn, string(body))
}

func (c *CommWorker) writeMessage(m reply.Message) error {
	body, err := reply.Encode(m)
	if err != nil {
		return err
	}
	return frame.WriteFrame(c.conn, string(body))
}

// ackTrue is the `true([[]])` acknowledgment reply used by run_async,
// cancel_async, close and quit: a single answer row with no bindings, the
// same shape a goal with no variables produces (spec §8 "Goal with no
// variables").
func ackTrue() reply.Message {
	return reply.FromAnswers([]engine.Answer{{}}, true, true)
}

// Serve runs the protocol loop to completion. It returns nil on a clean
// client-initiated close/quit, or when the connection was closed after the
// pair's goal worker had been aborted (server stop), and a non-nil error on
// a malformed frame or an unexpected disconnect (spec §7 "Disconnect path").
func (c *CommWorker) Serve() error {
	if err := c.greet(); err != nil {
		return err
	}

	for {
		payload, err := frame.Decode(c.reader)
		if err != nil {
			if errors.Is(err, frame.ErrConnectionClosed) {
				if c.pair.Goal.sessionCtx.Err() != nil {
					c.log.Info("connection closed after abort")
					return nil
				}
				c.log.Info("connection closed by peer")
				return err
			}
			c.log.WithError(err).Warn("frame error on connection")
			return err
		}

		cmd, perr := c.parser.Parse(payload)
		if perr != nil {
			tag := liberr.TagCouldNotParseCommand
			if errors.Is(perr, engine.ErrUnknownCommand) {
				tag = liberr.TagUnknownCommand
			}
			if err := c.writeTerm(tagException(tag)); err != nil {
				return err
			}
			continue
		}

		done, err := c.dispatch(cmd)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (c *CommWorker) greet() error {
	payload, err := frame.Decode(c.reader)
	if err != nil {
		return err
	}
	if !password.Equal([]byte(payload), c.secret) {
		_ = c.writeTerm(tagException(liberr.TagPasswordMismatch))
		return liberr.New(liberr.TagPasswordMismatch)
	}
	threads := wireTerm{Functor: "threads", Args: []interface{}{c.pair.CommID, c.pair.GoalID}}
	row := []interface{}{threads}
	return c.writeTerm(wireTerm{Functor: "true", Args: []interface{}{[]interface{}{row}}})
}

// dispatch handles one decoded command. The returned bool reports whether
// the connection should be torn down (close/quit).
func (c *CommWorker) dispatch(cmd engine.Command) (bool, error) {
	switch cmd.Kind {
	case engine.CmdRun:
		return false, c.runSync(cmd)
	case engine.CmdRunAsync:
		return false, c.runAsync(cmd)
	case engine.CmdAsyncResult:
		return false, c.asyncResult(cmd)
	case engine.CmdCancelAsync:
		return false, c.cancelAsync()
	case engine.CmdClose:
		return true, c.closeConn()
	case engine.CmdQuit:
		return true, c.quit()
	default:
		return false, c.writeTerm(tagException(liberr.TagUnknownCommand))
	}
}

// drain discards outstanding outbox messages from an abandoned query until
// its terminal message, if any query is in progress (spec §4.2 "Draining":
// entered when a new run/run_async arrives while query_in_progress).
func (c *CommWorker) drain() {
	if !c.queryInProgress.Load() {
		return
	}
	for m := range c.pair.Goal.Outbox {
		if m.Terminal {
			c.queryInProgress.Store(false)
			return
		}
	}
}

func (c *CommWorker) runSync(cmd engine.Command) error {
	c.drain()

	c.queryInProgress.Store(true)
	c.pair.Goal.Dispatch(GoalRequest{
		Goal:    cmd.Goal,
		Vars:    cmd.Vars,
		Timeout: secondsToDuration(cmd.Timeout),
		FindAll: true,
	})

	msg, err := c.waitTerminal()
	c.queryInProgress.Store(false)
	if err != nil {
		return err
	}
	return c.writeMessage(msg)
}

func (c *CommWorker) runAsync(cmd engine.Command) error {
	c.drain()

	c.queryInProgress.Store(true)
	c.pair.Goal.Dispatch(GoalRequest{
		Goal:    cmd.Goal,
		Vars:    cmd.Vars,
		Timeout: secondsToDuration(cmd.Timeout),
		FindAll: cmd.FindAll,
	})

	return c.writeMessage(ackTrue())
}

// waitTerminal blocks on the goal outbox for a synchronous run, writing a
// raw heartbeat byte every c.heartbeat while waiting (spec §4.2 state 3,
// §9 "Heartbeat design"). A synchronous run always dispatches with
// FindAll: true, so exactly one (terminal) message is ever produced.
//
// A heartbeat write failure means the peer is gone (spec §9 "a write
// failure here means the peer is gone and triggers the disconnect path");
// it is returned rather than discarded so runSync's caller tears the
// connection down the same way a frame-decode error would.
func (c *CommWorker) waitTerminal() (reply.Message, error) {
	t := time.NewTicker(c.heartbeat)
	defer t.Stop()
	for {
		select {
		case m := <-c.pair.Goal.Outbox:
			return m, nil
		case <-t.C:
			if err := frame.WriteHeartbeat(c.conn); err != nil {
				return reply.Message{}, err
			}
		}
	}
}

func (c *CommWorker) asyncResult(cmd engine.Command) error {
	if !c.queryInProgress.Load() {
		return c.writeTerm(tagException(liberr.TagNoQuery))
	}

	var (
		m  reply.Message
		ok bool
	)

	switch {
	case cmd.Timeout == engine.NoTimeout:
		m = <-c.pair.Goal.Outbox
		ok = true
	case cmd.Timeout == 0:
		select {
		case m = <-c.pair.Goal.Outbox:
			ok = true
		default:
			ok = false
		}
	default:
		timer := time.NewTimer(secondsToDuration(cmd.Timeout))
		defer timer.Stop()
		select {
		case m = <-c.pair.Goal.Outbox:
			ok = true
		case <-timer.C:
			ok = false
		}
	}

	if !ok {
		return c.writeTerm(tagException(liberr.TagResultNotAvailable))
	}
	if m.Terminal {
		c.queryInProgress.Store(false)
	}
	return c.writeMessage(m)
}

// cancelAsync implements spec §4.3 "cancel_async". Open Question (a) is
// resolved in favor of the engine's actual MQI behavior: the acknowledgment
// is true([[]]) whenever a query is in progress, whether or not it was
// actually safe to cancel at this instant; the real outcome (a
// cancel_goal exception, or the query's ordinary result if it finished
// first) only becomes visible on the next async_result.
func (c *CommWorker) cancelAsync() error {
	if !c.queryInProgress.Load() {
		return c.writeTerm(tagException(liberr.TagNoQuery))
	}
	c.pair.Goal.CancelAsync()
	return c.writeMessage(ackTrue())
}

// closeConn implements spec §4.3/§9 "close": a hard abort is the only
// forcing path in the protocol, so the goal worker is cancelled first —
// unblocking a long-running run/run_async immediately — and only then is
// its outbox drained, so drain never waits on a query nothing is going to
// interrupt.
func (c *CommWorker) closeConn() error {
	c.pair.Goal.Abort()
	c.drain()
	return c.writeMessage(ackTrue())
}

func (c *CommWorker) quit() error {
	err := c.writeMessage(ackTrue())
	if c.onQuit != nil {
		c.onQuit()
	}
	return err
}

func secondsToDuration(s float64) time.Duration {
	if s < 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}
