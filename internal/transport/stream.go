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

package transport

import (
	"context"
	"net/http"
	"net/textproto"
	"strings"
	"sync"

	"github.com/latticerpc/grpc/metadata"
)

// Stream is one HTTP/2 stream (one RPC attempt) as seen by the server: a
// path, a set of request headers, a body to read, and a response the
// handler builds up by writing headers, body chunks, and trailers in
// order.
//
// net/http already strips HTTP/2 pseudo-headers (:method, :path, :scheme,
// :authority) out of r.Header before a handler ever sees it — Method()
// and the other accessors below read those off the *http.Request fields
// net/http populated them into instead of re-deriving them from headers.
type Stream struct {
	w       http.ResponseWriter
	r       *http.Request
	session *Session

	mu          sync.Mutex
	wroteHeader bool

	done chan struct{}
}

func newStream(w http.ResponseWriter, r *http.Request, session *Session) *Stream {
	return &Stream{w: w, r: r, session: session, done: make(chan struct{})}
}

// Method returns the RPC path, e.g. "/package.Service/Method".
func (s *Stream) Method() string { return s.r.URL.Path }

// ContentType returns the request's Content-Type header.
func (s *Stream) ContentType() string { return s.r.Header.Get("Content-Type") }

// RequestHeader returns the value(s) of a single request header, given its
// canonical lowercase gRPC name (e.g. "grpc-timeout").
func (s *Stream) RequestHeader(name string) []string {
	return s.r.Header.Values(name)
}

// RequestMetadata converts the request's headers (pseudo-headers already
// stripped by net/http) into an MD. Key arrival order over the wire isn't
// recoverable through the http.Header map net/http hands us, so only the
// key/value contents are guaranteed, not wire order.
func (s *Stream) RequestMetadata() (metadata.MD, error) {
	fields := make([]metadata.HeaderField, 0, len(s.r.Header))
	for k, vs := range s.r.Header {
		lower := strings.ToLower(k)
		for _, v := range vs {
			fields = append(fields, metadata.HeaderField{Name: lower, Value: v})
		}
	}
	return metadata.FromHTTP2Headers(fields)
}

// Context is cancelled when the peer resets the stream or the connection
// is torn down (by the client, or by Session.Destroy for a forced server
// shutdown). It is distinct from any deadline a caller layers on top of
// it for grpc-timeout handling.
func (s *Stream) Context() context.Context { return s.r.Context() }

// Read reads from the request body.
func (s *Stream) Read(p []byte) (int, error) { return s.r.Body.Read(p) }

// WriteHeader sends the response headers built from md plus the given
// Content-Type, exactly once; subsequent calls are no-ops. It must be
// called before the first Write.
func (s *Stream) WriteHeader(contentType string, md metadata.MD) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wroteHeader {
		return
	}
	s.wroteHeader = true
	h := s.w.Header()
	h.Set("Content-Type", contentType)
	for _, f := range md.ToHTTP2Headers() {
		h.Add(textproto.CanonicalMIMEHeaderKey(f.Name), f.Value)
	}
	s.w.WriteHeader(http.StatusOK)
}

// RespondUnsupportedMediaType rejects a non-gRPC request with a plain HTTP
// 415 and no body or trailers, per spec.md §4.5/§6: a bad Content-Type
// never gets gRPC framing at all.
func (s *Stream) RespondUnsupportedMediaType() {
	s.mu.Lock()
	if s.wroteHeader {
		s.mu.Unlock()
		return
	}
	s.wroteHeader = true
	s.mu.Unlock()
	s.w.WriteHeader(http.StatusUnsupportedMediaType)
	close(s.done)
}

// HeaderSent reports whether WriteHeader has already run.
func (s *Stream) HeaderSent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wroteHeader
}

// Write writes a chunk of the response body, flushing it onto the wire.
// Backpressure from the peer's HTTP/2 flow-control window is applied by
// blocking inside this call, not through a callback.
func (s *Stream) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return n, err
}

// SetTrailer queues trailer fields to be sent when the handler returns.
// Using the http.TrailerPrefix convention lets trailers be set at any
// point before returning, without pre-declaring their names.
func (s *Stream) SetTrailer(md metadata.MD) {
	h := s.w.Header()
	for _, f := range md.ToHTTP2Headers() {
		h.Add(http.TrailerPrefix+textproto.CanonicalMIMEHeaderKey(f.Name), f.Value)
	}
}

// End signals that the handler has finished with the stream: trailers set
// so far are flushed and the HTTP/2 stream closes.
func (s *Stream) End() { close(s.done) }
