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
	"context"
	"sync"
	"time"

	"github.com/sabouaram/mqiserver/engine"
	liberr "github.com/sabouaram/mqiserver/errors"
	"github.com/sabouaram/mqiserver/logger"
	"github.com/sabouaram/mqiserver/reply"
)

// GoalRequest is what the communication worker pushes onto a GoalWorker's
// inbox (spec §4.4 "goal(Goal, BindingNames, Timeout, FindAll)").
type GoalRequest struct {
	Goal    engine.Value
	Vars    []string
	Timeout time.Duration // <=0 means unbounded
	FindAll bool
}

const outboxCapacity = 4

// GoalWorker owns one logic-engine session (spec §4.4). It is a serial
// loop: it blocks on Inbox, executes exactly one goal to completion, and
// only then looks at the next inbox message (invariant I1).
type GoalWorker struct {
	ID  string
	log logger.Logger
	eng engine.Session

	Inbox  chan GoalRequest
	Outbox chan reply.Message

	sessionCtx    context.Context
	sessionCancel context.CancelFunc

	mu          sync.Mutex
	safe        bool // safe_to_cancel (spec §3 I3)
	queryCancel context.CancelFunc

	done chan struct{}
}

// NewGoalWorker creates a GoalWorker bound to eng. Run must be started in
// its own goroutine by the caller.
func NewGoalWorker(id string, eng engine.Session, log logger.Logger) *GoalWorker {
	ctx, cancel := context.WithCancel(context.Background())
	return &GoalWorker{
		ID:            id,
		log:           log,
		eng:           eng,
		Inbox:         make(chan GoalRequest, 1),
		Outbox:        make(chan reply.Message, outboxCapacity),
		sessionCtx:    ctx,
		sessionCancel: cancel,
		done:          make(chan struct{}),
	}
}

// Run is the goal worker's serial loop (spec §4.4). It returns once Abort
// has been called and any in-flight execution has unwound.
func (w *GoalWorker) Run() {
	defer close(w.done)
	for {
		select {
		case req := <-w.Inbox:
			w.execute(req)
		case <-w.sessionCtx.Done():
			return
		}
	}
}

// Dispatch enqueues a goal request. It never blocks the caller beyond the
// inbox's single slot, which is sufficient because invariant I1 guarantees
// at most one outstanding query per connection.
func (w *GoalWorker) Dispatch(req GoalRequest) {
	w.Inbox <- req
}

// Abort tears the worker down hard: it cancels whatever query is running
// (if any) and stops Run's loop. Used by `close` and the disconnect path
// (spec §4.2 "Terminal", "Disconnect path"); never used by cancel_async,
// which must leave the worker (and its session-local state) alive (spec §5
// "Cancellation without thread kill").
func (w *GoalWorker) Abort() {
	w.sessionCancel()
}

// Done is closed once Run has returned after Abort.
func (w *GoalWorker) Done() <-chan struct{} {
	return w.done
}

// CancelAsync attempts cooperative cancellation of the in-flight query
// (spec §4.3 "cancel_async", §5 "Cancellation semantics"). It returns true
// only if safe_to_cancel was set and the cancellation was actually
// injected; the caller (communication worker) still must check
// query_in_progress itself to decide the exception(no_query) case.
func (w *GoalWorker) CancelAsync() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.safe && w.queryCancel != nil {
		w.queryCancel()
		return true
	}
	return false
}

func (w *GoalWorker) execute(req GoalRequest) {
	ctx := w.sessionCtx
	if req.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, req.Timeout)
		defer cancelTimeout()
	}

	ctx, cancel := context.WithCancel(ctx)

	w.mu.Lock()
	w.safe = true
	w.queryCancel = cancel
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.safe = false
		w.queryCancel = nil
		w.mu.Unlock()
		cancel()
	}()

	if req.FindAll {
		w.runFindAll(ctx, req)
	} else {
		w.runStream(ctx, req)
	}
}

func (w *GoalWorker) runFindAll(ctx context.Context, req GoalRequest) {
	answers := make([]engine.Answer, 0)
	err := w.eng.Solve(ctx, req.Goal, req.Vars, func(a engine.Answer) error {
		answers = append(answers, a)
		return nil
	})

	if err == nil {
		w.push(reply.FromAnswers(answers, true, true))
		return
	}
	w.push(reply.FromException(w.classify(err), true, true))
}

func (w *GoalWorker) runStream(ctx context.Context, req GoalRequest) {
	err := w.eng.Solve(ctx, req.Goal, req.Vars, func(a engine.Answer) error {
		w.push(reply.FromAnswers([]engine.Answer{a}, false, false))
		return nil
	})

	switch {
	case err == nil:
		w.push(reply.FromException(reply.TagException(liberr.TagNoMoreResults), false, true))
	default:
		w.push(reply.FromException(w.classify(err), false, true))
	}
}

// classify maps a Solve error into the Exception shape the protocol
// expects: context deadline -> time_limit_exceeded, context cancellation
// -> cancel_goal, an engine.ExceptionError -> the raised term, anything
// else -> connection_failed (spec §7 "Infrastructure failures").
func (w *GoalWorker) classify(err error) reply.Exception {
	switch {
	case err == context.DeadlineExceeded:
		return reply.TagException(liberr.TagTimeLimitExceeded)
	case err == context.Canceled:
		return reply.TagException(liberr.TagCancelGoal)
	default:
		if exc, ok := engine.AsException(err); ok {
			return reply.TermException(exc.Term)
		}
		if w.log != nil {
			w.log.WithError(err).Error("goal worker: engine returned infrastructure failure")
		}
		return reply.TagException(liberr.TagConnectionFailed)
	}
}

func (w *GoalWorker) push(m reply.Message) {
	w.Outbox <- m
}
