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
	"fmt"
	"sync"

	"github.com/latticerpc/grpc/codes"
	"github.com/latticerpc/grpc/status"
)

// MethodType identifies one of the four gRPC call shapes a MethodDesc can
// describe, derived the way spec.md §4.5 derives it: from the
// (requestStream, responseStream) boolean pair.
type MethodType int

const (
	Unary MethodType = iota
	ClientStreaming
	ServerStreaming
	Bidi
)

func methodType(requestStream, responseStream bool) MethodType {
	switch {
	case requestStream && responseStream:
		return Bidi
	case requestStream:
		return ClientStreaming
	case responseStream:
		return ServerStreaming
	default:
		return Unary
	}
}

// Serializer turns a user value into its wire bytes; Deserializer does the
// reverse, allocating and returning the decoded value itself. Both are
// opaque to this package: spec.md §1 keeps protobuf (de)serialization out
// of scope, so these are supplied by the generated-code layer a real
// service would sit behind. Deserializer is called with a nil data for a
// request body with no message frame at all.
type Serializer func(v any) ([]byte, error)
type Deserializer func(data []byte) (any, error)

// UnaryHandler implements a unary RPC: it receives the decoded request and
// returns the response value (or an error, mapped to a Status per
// spec.md §7).
type UnaryHandler func(ctx context.Context, req any) (any, error)

// ClientStreamHandler implements a client-streaming RPC: it reads request
// messages from stream until io.EOF and returns the single response.
type ClientStreamHandler func(stream ClientStream) (any, error)

// ServerStreamHandler implements a server-streaming RPC: req is the
// single decoded request; the handler sends zero or more responses on
// stream and returns a final error (nil for success).
type ServerStreamHandler func(req any, stream ServerStream) error

// BidiStreamHandler implements a bidirectional-streaming RPC, reading and
// writing stream concurrently.
type BidiStreamHandler func(stream BidiStream) error

// MethodDesc describes one RPC method. Handler holds one of the four
// Handler function types above, chosen to match Type; a nil Handler marks
// a method the service declares but does not implement, which
// RegisterService replaces with a synthetic UNIMPLEMENTED handler
// (spec.md §4.4 "Default handlers").
type MethodDesc struct {
	Path                string
	Type                MethodType
	RequestSerialize    Serializer
	RequestDeserialize  Deserializer
	ResponseSerialize   Serializer
	ResponseDeserialize Deserializer
	Handler             any
}

// ServiceDesc groups the MethodDescs that make up one gRPC service.
type ServiceDesc struct {
	ServiceName string
	Methods     []MethodDesc
}

// NewMethodDesc builds a MethodDesc from the (requestStreaming,
// responseStreaming) boolean pair a generated-code layer would naturally
// produce, deriving Type via methodType rather than requiring the caller to
// pick one of the four MethodType constants directly.
func NewMethodDesc(path string, requestStreaming, responseStreaming bool, reqDeserialize Deserializer, respSerialize Serializer, handler any) MethodDesc {
	return MethodDesc{
		Path:               path,
		Type:               methodType(requestStreaming, responseStreaming),
		RequestDeserialize: reqDeserialize,
		ResponseSerialize:  respSerialize,
		Handler:            handler,
	}
}

func unimplementedHandler(path string) UnaryHandler {
	return func(ctx context.Context, req any) (any, error) {
		return nil, status.Errorf(codes.Unimplemented, "The server does not implement the method %s", path)
	}
}

// methodRegistry is the frozen-after-Start map from path to MethodDesc
// (spec.md §3 "Handler registry").
type methodRegistry struct {
	mu      sync.RWMutex
	methods map[string]MethodDesc
}

func newMethodRegistry() *methodRegistry {
	return &methodRegistry{methods: make(map[string]MethodDesc)}
}

// register installs desc under desc.Path, substituting a synthetic
// UNIMPLEMENTED handler when desc.Handler is nil. It fails if the path is
// already registered (spec.md §8 invariant 7).
func (r *methodRegistry) register(desc MethodDesc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.methods[desc.Path]; exists {
		return fmt.Errorf("grpc: method %q is already registered", desc.Path)
	}
	if desc.Handler == nil {
		desc.Type = Unary
		desc.Handler = unimplementedHandler(desc.Path)
	}
	r.methods[desc.Path] = desc
	return nil
}

func (r *methodRegistry) lookup(path string) (MethodDesc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.methods[path]
	return d, ok
}
