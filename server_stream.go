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
	"io"

	"github.com/latticerpc/grpc/codes"
	"github.com/latticerpc/grpc/metadata"
	"github.com/latticerpc/grpc/status"
)

// ClientStream is what a client-streaming or bidi-streaming handler reads
// request messages from.
type ClientStream interface {
	Context() context.Context
	Metadata() metadata.MD
	Cancelled() bool
	SendMetadata(md metadata.MD)
	// Recv returns the next decoded request message, in wire order, or
	// io.EOF once the client has half-closed its send side.
	Recv() (any, error)
}

// ServerStream is what a server-streaming or bidi-streaming handler writes
// response messages to.
type ServerStream interface {
	Context() context.Context
	Metadata() metadata.MD
	Cancelled() bool
	SendMetadata(md metadata.MD)
	Send(msg any) error
}

// BidiStream is a ClientStream and a ServerStream together: reads and
// writes proceed concurrently, with no unary prelude on either side.
type BidiStream interface {
	ClientStream
	ServerStream
}

// recvQueue turns the raw, arbitrarily-chunked bytes read off a ServerCall
// into an ordered sequence of deserialized messages. It satisfies spec.md
// §4.4's buffering discipline: frames may arrive faster than they can be
// deserialized, but only one deserialization is ever in flight and
// messages are delivered to the consumer strictly in arrival order.
type recvQueue struct {
	call *ServerCall
	ch   chan recvResult
}

type recvResult struct {
	msg any
	err error
}

func newRecvQueue(call *ServerCall) *recvQueue {
	q := &recvQueue{
		call: call,
		ch:   make(chan recvResult, 8),
	}
	go q.pump()
	return q
}

// pump reads the HTTP/2 body in fixed chunks, feeding each into the
// ServerCall's decoder and pushing out exactly one result per complete
// message frame. It stops on read error, EOF, or call cancellation.
func (q *recvQueue) pump() {
	defer close(q.ch)
	buf := make([]byte, 32*1024)
	for {
		n, err := q.call.stream.Read(buf)
		if n > 0 {
			if perr := q.decodeChunk(buf[:n]); perr != nil {
				q.ch <- recvResult{err: perr}
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				q.ch <- recvResult{err: status.Errorf(codes.Internal, "grpc: error reading request: %v", err)}
			}
			return
		}
		select {
		case <-q.call.Done():
			return
		default:
		}
	}
}

// decodeChunk deframes chunk and deserializes every complete message it
// contains, one at a time and in order, publishing each onto q.ch.
func (q *recvQueue) decodeChunk(chunk []byte) error {
	frames, err := q.call.decoder.write(chunk)
	if err != nil {
		return err
	}
	for _, f := range frames {
		msg, err := q.call.decodeFrame(f)
		if err != nil {
			return err
		}
		q.ch <- recvResult{msg: msg}
	}
	return nil
}

// recv blocks for the next message, returning io.EOF once the stream is
// exhausted with no error.
func (q *recvQueue) recv() (any, error) {
	r, ok := <-q.ch
	if !ok {
		return nil, io.EOF
	}
	return r.msg, r.err
}

// serverStream is the concrete ClientStream/ServerStream/BidiStream
// implementation every streaming call shape shares.
type serverStream struct {
	call  *ServerCall
	queue *recvQueue
}

func newServerStream(call *ServerCall) *serverStream {
	return &serverStream{call: call, queue: newRecvQueue(call)}
}

func (s *serverStream) Context() context.Context   { return s.call.Context() }
func (s *serverStream) Metadata() metadata.MD       { return s.call.Metadata() }
func (s *serverStream) Cancelled() bool             { return s.call.Cancelled() }
func (s *serverStream) SendMetadata(md metadata.MD) { s.call.SendMetadata(md) }
func (s *serverStream) Recv() (any, error)           { return s.queue.recv() }
func (s *serverStream) Send(msg any) error           { return s.call.sendMessage(msg) }

// dispatchUnary implements the C5 unary adapter: receive the single
// request, invoke handler, send the single response.
func dispatchUnary(call *ServerCall, handler UnaryHandler) {
	call.receiveUnaryMessage(func(err error, req any) {
		if err != nil {
			return // receiveUnaryMessage already ended the call with err
		}
		resp, herr := safeInvokeUnary(call.Context(), req, handler)
		call.sendUnaryMessage(herr, resp, metadata.MD{})
	})
}

// dispatchClientStream implements the C5 client-streaming adapter: the
// handler reads the readable side itself and returns one response.
func dispatchClientStream(call *ServerCall, handler ClientStreamHandler) {
	stream := newServerStream(call)
	resp, err := safeInvokeClientStream(stream, handler)
	call.sendUnaryMessage(err, resp, metadata.MD{})
}

// dispatchServerStream implements the C5 server-streaming adapter: one
// request is read up front, then the handler owns the writable side and
// the final Status.
func dispatchServerStream(call *ServerCall, handler ServerStreamHandler) {
	call.receiveUnaryMessage(func(err error, req any) {
		if err != nil {
			return
		}
		stream := newServerStream(call)
		herr := safeInvokeServerStream(req, stream, handler)
		call.sendError(herr, metadata.MD{})
	})
}

// dispatchBidiStream implements the C5 bidi adapter: no unary prelude,
// reads and writes proceed concurrently for the lifetime of the handler.
func dispatchBidiStream(call *ServerCall, handler BidiStreamHandler) {
	stream := newServerStream(call)
	herr := safeInvokeBidiStream(stream, handler)
	call.sendError(herr, metadata.MD{})
}

// safeInvoke* recover a panicking handler into an INTERNAL status, per
// spec.md §4.5 "any synchronous throw during dispatch results in an
// INTERNAL error response" generalized to the handler itself.
func safeInvokeUnary(ctx context.Context, req any, handler UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = status.Errorf(codes.Internal, "grpc: panic in handler: %v", r)
		}
	}()
	return handler(ctx, req)
}

func safeInvokeClientStream(stream ClientStream, handler ClientStreamHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = status.Errorf(codes.Internal, "grpc: panic in handler: %v", r)
		}
	}()
	return handler(stream)
}

func safeInvokeServerStream(req any, stream ServerStream, handler ServerStreamHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = status.Errorf(codes.Internal, "grpc: panic in handler: %v", r)
		}
	}()
	return handler(req, stream)
}

func safeInvokeBidiStream(stream BidiStream, handler BidiStreamHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = status.Errorf(codes.Internal, "grpc: panic in handler: %v", r)
		}
	}()
	return handler(stream)
}
