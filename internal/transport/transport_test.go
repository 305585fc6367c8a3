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
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"golang.org/x/net/http2"

	"github.com/latticerpc/grpc/credentials"
	"github.com/latticerpc/grpc/metadata"
)

func startServer(t *testing.T, tr *Transport, handler Handler) (addr string, stop func()) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() = %v", err)
	}
	go tr.Serve(lis, credentials.NewInsecure(), handler)
	return lis.Addr().String(), func() { lis.Close() }
}

// newH2CClient builds an *http.Client that speaks HTTP/2 in plaintext with
// prior knowledge, matching how a gRPC client talks to a server bound
// without TLS.
func newH2CClient(addr string) *http.Client {
	return &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLS: func(network, _ string, _ *tls.Config) (net.Conn, error) {
				return net.Dial(network, addr)
			},
		},
	}
}

func TestServeEchoesPathAndBody(t *testing.T) {
	var gotMethod string
	handler := func(s *Stream) {
		gotMethod = s.Method()
		body, _ := io.ReadAll(s)
		s.WriteHeader("application/grpc", metadata.MD{})
		s.Write(body)
		s.SetTrailer(metadata.Pairs("grpc-status", "0"))
		s.End()
	}

	tr := New(Options{MaxConcurrentStreams: 100})
	addr, stop := startServer(t, tr, handler)
	defer stop()

	client := newH2CClient(addr)
	resp, err := client.Post("http://"+addr+"/echo.Service/Echo", "application/grpc", bytesReader("hello"))
	if err != nil {
		t.Fatalf("Post() = %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll() = %v", err)
	}
	if string(body) != "hello" {
		t.Errorf("body = %q; want hello", body)
	}
	if gotMethod != "/echo.Service/Echo" {
		t.Errorf("Method() = %q; want /echo.Service/Echo", gotMethod)
	}
	if got := resp.Trailer.Get("Grpc-Status"); got != "0" {
		t.Errorf("trailer grpc-status = %q; want 0", got)
	}
}

func TestSessionDestroyCancelsInFlightStream(t *testing.T) {
	started := make(chan *Session, 1)
	cancelled := make(chan struct{})
	handler := func(s *Stream) {
		started <- s.session
		<-s.Context().Done()
		close(cancelled)
		s.End()
	}

	tr := New(Options{MaxConcurrentStreams: 100})
	addr, stop := startServer(t, tr, handler)
	defer stop()

	client := newH2CClient(addr)
	req, _ := http.NewRequest(http.MethodPost, "http://"+addr+"/a/b", bytesReader("x"))
	go client.Do(req)

	var session *Session
	select {
	case session = <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never started")
	}
	session.Destroy()

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("stream context was never cancelled")
	}
}

type byteReader struct {
	b []byte
	i int
}

func bytesReader(s string) io.Reader { return &byteReader{b: []byte(s)} }

func (r *byteReader) Read(p []byte) (int, error) {
	if r.i >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.i:])
	r.i += n
	return n, nil
}
