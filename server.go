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

package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/latticerpc/grpc/codes"
	"github.com/latticerpc/grpc/internal/grpclog"
	"github.com/latticerpc/grpc/internal/resolver"
	"github.com/latticerpc/grpc/internal/transport"
	"github.com/latticerpc/grpc/metadata"
	"github.com/latticerpc/grpc/status"
)

// serverLifecycle tracks the states spec.md §3 names: Unbound, Bound (≥1
// listener), Started, ShuttingDown, Closed.
type serverLifecycle int

const (
	lifecycleUnbound serverLifecycle = iota
	lifecycleBound
	lifecycleStarted
	lifecycleShuttingDown
	lifecycleClosed
)

// Server is the C7 component: it owns the bound listeners, the live
// sessions (delegated to internal/transport.Transport), the handler
// registry, and the started/shutdown lifecycle.
type Server struct {
	opts      serverOptions
	registry  *methodRegistry
	transport *transport.Transport

	mu          sync.Mutex
	lifecycle   serverLifecycle
	listeners   []net.Listener
	acceptGroup *errgroup.Group

	shutdownOnce sync.Once
	closed       chan struct{}
}

// NewServer constructs a Server from opts. There is no invalid-type
// rejection to perform here the way spec.md §4.5 describes for a
// dynamically-typed host: ServerOption is already a function type, so
// passing anything else is a compile error; ParseOptions is the entry
// point that type-checks a dynamically-typed (map[string]any) config.
func NewServer(opts ...ServerOption) *Server {
	o := defaultServerOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{
		opts:     o,
		registry: newMethodRegistry(),
		transport: transport.New(transport.Options{
			MaxConcurrentStreams: o.maxConcurrentStreams,
			MaxFrameSize:         o.maxFrameSize,
			KeepaliveTime:        o.keepaliveTime,
			KeepaliveTimeout:     o.keepaliveTimeout,
		}),
		closed: make(chan struct{}),
	}
}

// RegisterService installs every method in desc, deriving each one's
// synthetic-UNIMPLEMENTED fallback via methodRegistry.register. It fails
// once the server has Started (spec.md §4.5 "Calling after start fails"),
// and on any duplicate path — in which case the methods registered before
// the failure remain registered, matching methodRegistry's own partial
// behavior.
func (s *Server) RegisterService(desc ServiceDesc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lifecycle >= lifecycleStarted {
		return fmt.Errorf("grpc: cannot register service %q after Start", desc.ServiceName)
	}
	for _, m := range desc.Methods {
		if err := s.registry.register(m); err != nil {
			return err
		}
	}
	return nil
}

// Bind resolves target per the listen-target grammar (§6), opens a
// listener for it, and adds it to the server's listener set; the set is
// additive across repeated calls, supporting the "multiple ports" scenario.
// It returns the bound TCP port, or 0 for a Unix domain socket. Bind only
// succeeds before Start: spec.md's Bound state is reached by one or more
// Binds, then Start transitions Bound -> Started.
func (s *Server) Bind(target string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lifecycle >= lifecycleStarted {
		return 0, errors.New("grpc: cannot Bind after Start")
	}
	addr, err := resolver.Resolve(target, s.opts.creds.IsSecure())
	if err != nil {
		return 0, err
	}
	lc := net.ListenConfig{Control: listenControl}
	lis, err := lc.Listen(context.Background(), addr.Network, addr.Address)
	if err != nil {
		grpclog.Warningf("grpc: failed to listen on %q: %v", target, err)
		return 0, err
	}
	s.listeners = append(s.listeners, lis)
	s.lifecycle = lifecycleBound
	if tcpAddr, ok := lis.Addr().(*net.TCPAddr); ok {
		return tcpAddr.Port, nil
	}
	return 0, nil
}

// Start begins serving every bound listener. It fails if no listener has
// been bound, or if the server has already started.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.lifecycle != lifecycleBound {
		s.mu.Unlock()
		return errors.New("grpc: Start requires at least one Bind and must not be called twice")
	}
	s.lifecycle = lifecycleStarted
	listeners := append([]net.Listener(nil), s.listeners...)
	s.mu.Unlock()

	g := new(errgroup.Group)
	for _, lis := range listeners {
		lis := lis
		g.Go(func() error {
			err := s.transport.Serve(lis, s.opts.creds, s.handleStream)
			if err == nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		})
	}
	s.mu.Lock()
	s.acceptGroup = g
	s.mu.Unlock()
	return nil
}

// GracefulStop is tryShutdown: it stops accepting new connections, asks
// every live session to drain its in-flight streams before closing, and
// blocks until every accept loop and every session has fully finished. It
// is idempotent with itself and with Stop — only the first caller (of
// either) performs any work; later callers just wait for it to finish.
func (s *Server) GracefulStop() error {
	s.shutdown(false)
	<-s.closed
	return nil
}

// Stop is forceShutdown: it stops accepting new connections and destroys
// every live session immediately, cancelling their in-flight streams rather
// than draining them. Like GracefulStop, it is idempotent with itself and
// with GracefulStop.
func (s *Server) Stop() error {
	s.shutdown(true)
	<-s.closed
	return nil
}

func (s *Server) shutdown(forced bool) {
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		s.lifecycle = lifecycleShuttingDown
		listeners := s.listeners
		s.listeners = nil
		acceptGroup := s.acceptGroup
		s.mu.Unlock()

		for _, lis := range listeners {
			lis.Close()
		}
		if acceptGroup != nil {
			if err := acceptGroup.Wait(); err != nil {
				grpclog.Warningf("grpc: accept loop error during shutdown: %v", err)
			}
		}

		sessions := s.transport.Sessions()
		g, _ := errgroup.WithContext(context.Background())
		for _, sess := range sessions {
			sess := sess
			if forced {
				sess.Destroy()
			} else {
				sess.Close()
			}
			g.Go(func() error {
				<-sess.Done()
				return nil
			})
		}
		_ = g.Wait()

		s.mu.Lock()
		s.lifecycle = lifecycleClosed
		s.mu.Unlock()
		close(s.closed)
	})
}

// handleStream is the transport.Handler invoked once per incoming HTTP/2
// stream: content-type validation, method lookup, metadata parsing, and
// dispatch to the matching call-shape adapter — spec.md §4.5's "Stream
// dispatch" in order. Any panic from framework code after the ServerCall
// exists (lookup, metadata parsing, dispatch) is recovered into INTERNAL;
// panics inside a user handler are separately recovered by safeInvoke*.
func (s *Server) handleStream(stream *transport.Stream) {
	if !strings.HasPrefix(stream.ContentType(), "application/grpc") {
		stream.RespondUnsupportedMediaType()
		return
	}

	desc, ok := s.registry.lookup(stream.Method())
	if !ok {
		desc = MethodDesc{Path: stream.Method(), Type: Unary, Handler: unimplementedHandler(stream.Method())}
	}

	call := newServerCall(stream, desc, s.opts)
	defer func() {
		if r := recover(); r != nil {
			call.sendError(status.Errorf(codes.Internal, "grpc: panic handling %s: %v", stream.Method(), r), metadata.MD{})
		}
	}()

	if !ok {
		call.sendError(status.Errorf(codes.Unimplemented, "The server does not implement the method %s", stream.Method()), metadata.MD{})
		return
	}

	if _, err := call.receiveMetadata(); err != nil {
		call.sendError(err, metadata.MD{})
		return
	}

	switch desc.Type {
	case Unary:
		dispatchUnary(call, desc.Handler.(UnaryHandler))
	case ClientStreaming:
		dispatchClientStream(call, desc.Handler.(ClientStreamHandler))
	case ServerStreaming:
		dispatchServerStream(call, desc.Handler.(ServerStreamHandler))
	case Bidi:
		dispatchBidiStream(call, desc.Handler.(BidiStreamHandler))
	}
}
