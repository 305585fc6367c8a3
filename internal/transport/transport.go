/*
 *
 * Copyright 2014 gRPC authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

// Package transport drives golang.org/x/net/http2.Server directly over
// accepted net.Conns (rather than through net/http.Server), so that the
// caller keeps a handle to each connection for keepalive configuration and
// for graceful/forced teardown — the two things ServeHTTP's abstraction
// normally hides from a caller.
package transport

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/http2"

	"github.com/latticerpc/grpc/credentials"
	"github.com/latticerpc/grpc/internal/grpclog"
)

// Options configures the HTTP/2 transport a Server binds on every listener.
type Options struct {
	MaxConcurrentStreams uint32
	MaxFrameSize         uint32
	KeepaliveTime        time.Duration
	KeepaliveTimeout     time.Duration
}

// Transport owns the http2.Server configuration shared by every accepted
// connection, plus the set of live Sessions needed for shutdown.
type Transport struct {
	h2 *http2.Server

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

// New constructs a Transport from opts.
func New(opts Options) *Transport {
	return &Transport{
		h2: &http2.Server{
			MaxConcurrentStreams: opts.MaxConcurrentStreams,
			MaxReadFrameSize:     opts.MaxFrameSize,
			ReadIdleTimeout:      opts.KeepaliveTime,
			PingTimeout:          opts.KeepaliveTimeout,
		},
		sessions: make(map[*Session]struct{}),
	}
}

// Handler is invoked once per incoming stream.
type Handler func(*Stream)

// Serve accepts connections from lis until it is closed, optionally
// performing creds's handshake on each one, and dispatches streams to
// handler. It returns once lis.Accept begins failing (typically because
// the listener was closed).
func (t *Transport) Serve(lis net.Listener, creds credentials.TransportCredentials, handler Handler) error {
	for {
		conn, err := lis.Accept()
		if err != nil {
			return err
		}
		go t.serveConn(conn, creds, handler)
	}
}

func (t *Transport) serveConn(conn net.Conn, creds credentials.TransportCredentials, handler Handler) {
	if creds != nil && creds.IsSecure() {
		secured, _, err := creds.ServerHandshake(conn)
		if err != nil {
			grpclog.Warningf("transport: handshake failed: %v", err)
			conn.Close()
			return
		}
		conn = secured
	}

	session := newSession(conn)
	t.track(session)
	defer t.untrack(session)
	defer close(session.closed)

	httpHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session.wg.Add(1)
		defer session.wg.Done()
		stream := newStream(w, r, session)
		handler(stream)
		<-stream.done
	})

	t.h2.ServeConn(conn, &http2.ServeConnOpts{
		Context: session.ctx,
		Handler: httpHandler,
	})
}

func (t *Transport) track(s *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[s] = struct{}{}
}

func (t *Transport) untrack(s *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, s)
}

// Sessions returns a snapshot of the currently live sessions.
func (t *Transport) Sessions() []*Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Session, 0, len(t.sessions))
	for s := range t.sessions {
		out = append(out, s)
	}
	return out
}

// Session wraps one accepted HTTP/2 connection: it tracks outstanding
// streams so a graceful close can wait for them to drain, and exposes a
// Destroy that closes the connection immediately, cancelling every stream
// on it.
type Session struct {
	ID   string
	conn net.Conn
	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	closeOnce sync.Once
	closed    chan struct{}
}

func newSession(conn net.Conn) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:     uuid.NewString(),
		conn:   conn,
		ctx:    ctx,
		stop:   cancel,
		closed: make(chan struct{}),
	}
}

// Close starts a graceful close and returns without waiting: once every
// in-flight stream on the session has finished, the underlying connection
// is closed, and Done reports when serving has stopped. It is the graceful
// half of shutdown:
// no new streams can arrive because the caller has already stopped
// accepting new connections on the listener that produced this session.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		go func() {
			s.wg.Wait()
			s.stop()
			s.conn.Close()
		}()
	})
}

// Destroy closes the connection immediately, cancelling every in-flight
// stream's context — the forced half of shutdown.
func (s *Session) Destroy() {
	s.stop()
	s.conn.Close()
}

// Done is closed once the session's connection has fully stopped serving.
func (s *Session) Done() <-chan struct{} { return s.closed }
