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

package session_test

import (
	"bufio"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabouaram/mqiserver/engine"
	"github.com/sabouaram/mqiserver/frame"
	"github.com/sabouaram/mqiserver/logger"
	"github.com/sabouaram/mqiserver/session"
)

const testSecret = "s3cret"

type client struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func newTestPair(t *testing.T) (*client, func()) {
	t.Helper()
	c, _, cleanup := newTestPairWithOptions(t, session.Options{Secret: []byte(testSecret)})
	return c, cleanup
}

// newTestPairWithOptions is like newTestPair but exposes the Serve() error
// channel, for tests that need to observe the disconnect path itself rather
// than just the wire traffic leading up to it.
func newTestPairWithOptions(t *testing.T, opts session.Options) (*client, <-chan error, func()) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	if opts.Secret == nil {
		opts.Secret = []byte(testSecret)
	}

	pair := session.NewPair(serverConn, engine.NewReference(), engine.NewParser(), logger.Discard(), opts)

	done := make(chan error, 1)
	go func() { done <- pair.Serve() }()

	c := &client{t: t, conn: clientConn, reader: bufio.NewReader(clientConn)}
	return c, done, func() {
		_ = clientConn.Close()
		<-done
	}
}

func (c *client) send(payload string) {
	c.t.Helper()
	require.NoError(c.t, frame.WriteFrame(c.conn, payload))
}

func (c *client) recv() map[string]interface{} {
	c.t.Helper()
	payload, err := frame.Decode(c.reader)
	require.NoError(c.t, err)
	var v map[string]interface{}
	require.NoError(c.t, json.Unmarshal([]byte(payload), &v))
	return v
}

func TestHandshakeSuccess(t *testing.T) {
	c, cleanup := newTestPair(t)
	defer cleanup()

	c.send(testSecret)
	reply := c.recv()
	assert.Equal(t, "true", reply["functor"])
}

func TestHandshakeWrongPasswordTerminatesConnection(t *testing.T) {
	c, cleanup := newTestPair(t)
	defer cleanup()

	c.send("wrong-password")
	reply := c.recv()
	assert.Equal(t, "exception", reply["functor"])
	assert.Equal(t, []interface{}{"password_mismatch"}, reply["args"])
}

func TestRunMemberEnumeratesAllAnswers(t *testing.T) {
	c, cleanup := newTestPair(t)
	defer cleanup()

	c.send(testSecret)
	c.recv()

	c.send("run(member(X,[a,b,c]), -1).")
	reply := c.recv()
	assert.Equal(t, "true", reply["functor"])
	rows := reply["args"].([]interface{})[0].([]interface{})
	assert.Len(t, rows, 3)
}

func TestRunFailingGoalRepliesFalse(t *testing.T) {
	c, cleanup := newTestPair(t)
	defer cleanup()

	c.send(testSecret)
	c.recv()

	c.send("run(fail, -1).")
	reply := c.recv()
	assert.Equal(t, "false", reply["functor"])
}

func TestRunAsyncStreamsThenNoMoreResults(t *testing.T) {
	c, cleanup := newTestPair(t)
	defer cleanup()

	c.send(testSecret)
	c.recv()

	c.send("run_async(member(X,[1,2]), -1, false).")
	ack := c.recv()
	assert.Equal(t, "true", ack["functor"])

	c.send("async_result(-1).")
	first := c.recv()
	assert.Equal(t, "true", first["functor"])

	c.send("async_result(-1).")
	second := c.recv()
	assert.Equal(t, "true", second["functor"])

	c.send("async_result(-1).")
	third := c.recv()
	assert.Equal(t, "exception", third["functor"])
	assert.Equal(t, []interface{}{"no_more_results"}, third["args"])
}

func TestAsyncResultWithNoQueryIsNoQuery(t *testing.T) {
	c, cleanup := newTestPair(t)
	defer cleanup()

	c.send(testSecret)
	c.recv()

	c.send("async_result(-1).")
	reply := c.recv()
	assert.Equal(t, "exception", reply["functor"])
	assert.Equal(t, []interface{}{"no_query"}, reply["args"])
}

func TestCancelAsyncWithNoQueryIsNoQuery(t *testing.T) {
	c, cleanup := newTestPair(t)
	defer cleanup()

	c.send(testSecret)
	c.recv()

	c.send("cancel_async.")
	reply := c.recv()
	assert.Equal(t, "exception", reply["functor"])
	assert.Equal(t, []interface{}{"no_query"}, reply["args"])
}

func TestCancelAsyncThenAsyncResultYieldsCancelGoal(t *testing.T) {
	c, cleanup := newTestPair(t)
	defer cleanup()

	c.send(testSecret)
	c.recv()

	c.send("run_async(sleep(5), -1, true).")
	c.recv()

	// give the goal worker a moment to enter the cancellable region
	time.Sleep(20 * time.Millisecond)

	c.send("cancel_async.")
	ack := c.recv()
	assert.Equal(t, "true", ack["functor"])

	c.send("async_result(-1).")
	reply := c.recv()
	assert.Equal(t, "exception", reply["functor"])
	assert.Equal(t, []interface{}{"cancel_goal"}, reply["args"])
}

func TestTimeoutYieldsTimeLimitExceeded(t *testing.T) {
	c, cleanup := newTestPair(t)
	defer cleanup()

	c.send(testSecret)
	c.recv()

	c.send("run(sleep(5), 0.2).")
	reply := c.recv()
	assert.Equal(t, "exception", reply["functor"])
	assert.Equal(t, []interface{}{"time_limit_exceeded"}, reply["args"])
}

func TestCloseAcknowledgesAndEndsConnection(t *testing.T) {
	c, cleanup := newTestPair(t)
	defer cleanup()

	c.send(testSecret)
	c.recv()

	c.send("close.")
	reply := c.recv()
	assert.Equal(t, "true", reply["functor"])
}

func TestCloseDuringLongRunningQueryAbortsImmediately(t *testing.T) {
	c, done, _ := newTestPairWithOptions(t, session.Options{Secret: []byte(testSecret)})
	defer c.conn.Close()

	c.send(testSecret)
	c.recv()

	c.send("run_async(sleep(5), -1, true).")
	c.recv()

	c.send("close.")
	reply := c.recv()
	assert.Equal(t, "true", reply["functor"])

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("close did not end the connection while a query was in flight")
	}
}

func TestHeartbeatWriteFailureDuringSyncRunEndsConnection(t *testing.T) {
	c, done, _ := newTestPairWithOptions(t, session.Options{
		Secret:            []byte(testSecret),
		HeartbeatInterval: 1,
	})

	c.send(testSecret)
	c.recv()

	c.send("run(sleep(5), -1).")

	// Close the peer before the first heartbeat tick so the server's
	// heartbeat write fails and the disconnect path fires, rather than
	// hanging until the goal finishes.
	require.NoError(t, c.conn.Close())

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("a heartbeat write failure did not end the connection")
	}
}

func TestUnknownCommandDoesNotCloseConnection(t *testing.T) {
	c, cleanup := newTestPair(t)
	defer cleanup()

	c.send(testSecret)
	c.recv()

	c.send("frobnicate(1).")
	reply := c.recv()
	assert.Equal(t, "exception", reply["functor"])
	assert.Equal(t, []interface{}{"unknown_command"}, reply["args"])

	// connection must still be usable afterwards
	c.send("run(true, -1).")
	reply = c.recv()
	assert.Equal(t, "true", reply["functor"])
}
