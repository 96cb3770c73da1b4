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

package server

import (
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/sabouaram/mqiserver/config"
	"github.com/sabouaram/mqiserver/engine"
	"github.com/sabouaram/mqiserver/logger"
	"github.com/sabouaram/mqiserver/password"
	"github.com/sabouaram/mqiserver/session"
)

// Supervisor owns the lifecycle of one server instance: endpoint creation,
// accept loop, registered-pair bookkeeping, and the stop/halt paths of
// spec §4.5 and §6.
type Supervisor struct {
	opts   config.Options
	secret []byte
	log    logger.Logger

	engineFactory func() engine.Session
	parser        engine.Parser

	mu       sync.Mutex
	ln       *listener
	stdout   io.Writer
	quitOnce sync.Once
	stopCh   chan struct{}
	group    *errgroup.Group
}

// New builds a Supervisor. engineFactory constructs one fresh logic-engine
// session per accepted connection, matching spec §5 "the engine session is
// owned solely by the goal worker".
func New(opts config.Options, engineFactory func() engine.Session, parser engine.Parser, log logger.Logger) *Supervisor {
	if log == nil {
		log = logger.Discard()
	}
	return &Supervisor{
		opts:          opts,
		log:           log,
		engineFactory: engineFactory,
		parser:        parser,
		stdout:        os.Stdout,
		stopCh:        make(chan struct{}),
	}
}

// Start creates the endpoint, optionally emits the connection-values lines
// (spec §6 "Startup output"), installs the signal policy, and runs the
// accept loop. If opts.RunServerOnThread is true it returns immediately
// with the accept loop running in the background; otherwise it blocks
// until Stop is called.
func (s *Supervisor) Start() error {
	if s.opts.WriteOutputToFile != "" {
		f, err := os.OpenFile(s.opts.WriteOutputToFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("server: redirecting output: %w", err)
		}
		s.stdout = f
		os.Stdout = f
		os.Stderr = f
	}

	secret := []byte(s.opts.Password)
	if len(secret) == 0 {
		generated, err := password.Generate()
		if err != nil {
			return fmt.Errorf("server: generating password: %w", err)
		}
		secret = generated
	}
	s.secret = secret

	ln, err := bindEndpoint(s.opts.Port, s.opts.UnixDomainSocket)
	if err != nil {
		return err
	}

	if s.opts.WriteConnectionValues {
		endpoint := s.opts.UnixDomainSocket
		if endpoint == "" {
			endpoint = fmt.Sprintf("%d", ln.Addr().(*net.TCPAddr).Port)
		}
		fmt.Fprintf(s.stdout, "%s\n%s\n", endpoint, string(s.secret))
	}

	if s.opts.IgnoreSigInt {
		signal.Ignore(syscall.SIGINT)
	}

	sessOpts := session.Options{
		Secret: s.secret,
		OnQuit: s.Stop,
	}

	s.mu.Lock()
	s.ln = newListenerWorker(ln, s.engineFactory, s.parser, sessOpts, s.log, s.onPairDone)
	s.mu.Unlock()

	g := &errgroup.Group{}
	s.group = g
	g.Go(func() error {
		s.ln.acceptLoop()
		return nil
	})

	if s.opts.RunServerOnThread {
		return nil
	}
	return g.Wait()
}

// onPairDone runs every time a connection pair's Serve returns. A non-nil
// err is an infrastructure failure or unexpected disconnect (spec §7
// "Infrastructure failures"): when halt_on_connection_failure is set, the
// whole process is halted.
func (s *Supervisor) onPairDone(id string, err error) {
	if err == nil {
		return
	}
	s.log.WithError(err).WithField("pair_id", id).Warn("connection pair ended abnormally")
	if s.opts.HaltOnConnectionFailure {
		s.Halt(1)
	}
}

// Stop closes the listening socket (unblocking the accept loop) and
// signals every registered pair to abort (spec §4.5 "Server stop").
func (s *Supervisor) Stop() {
	s.quitOnce.Do(func() {
		s.mu.Lock()
		ln := s.ln
		s.mu.Unlock()
		if ln != nil {
			ln.abortAll()
			_ = ln.close()
		}
		if s.opts.UnixDomainSocket != "" {
			_ = os.Remove(s.opts.UnixDomainSocket)
		}
		close(s.stopCh)
	})
}

// Halt terminates the host process with code, per spec §6 "Halt-on-failure
// path: implementation-defined non-zero". Used only in embedded
// (halt_on_connection_failure) configuration.
func (s *Supervisor) Halt(code int) {
	s.Stop()
	os.Exit(code)
}

// Done is closed once Stop has run.
func (s *Supervisor) Done() <-chan struct{} {
	return s.stopCh
}
