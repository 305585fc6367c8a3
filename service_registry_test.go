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
	"testing"

	"github.com/latticerpc/grpc/status"
)

func TestMethodRegistryRegisterAndLookup(t *testing.T) {
	r := newMethodRegistry()
	h := UnaryHandler(func(ctx context.Context, req any) (any, error) { return req, nil })
	if err := r.register(MethodDesc{Path: "/pkg.Service/Echo", Type: Unary, Handler: h}); err != nil {
		t.Fatalf("register() = %v", err)
	}
	d, ok := r.lookup("/pkg.Service/Echo")
	if !ok {
		t.Fatal("lookup() = false; want true")
	}
	if d.Type != Unary {
		t.Fatalf("Type = %v; want Unary", d.Type)
	}
}

func TestMethodRegistryDuplicatePathFails(t *testing.T) {
	r := newMethodRegistry()
	desc := MethodDesc{Path: "/pkg.Service/Echo", Type: Unary, Handler: UnaryHandler(func(context.Context, any) (any, error) { return nil, nil })}
	if err := r.register(desc); err != nil {
		t.Fatalf("first register() = %v", err)
	}
	if err := r.register(desc); err == nil {
		t.Fatal("second register() with same path = nil error; want error")
	}
	if _, ok := r.lookup("/pkg.Service/Echo"); !ok {
		t.Fatal("lookup() after failed re-register = false; registry should be unchanged, not wiped")
	}
}

func TestMethodRegistryNilHandlerBecomesUnimplemented(t *testing.T) {
	r := newMethodRegistry()
	if err := r.register(MethodDesc{Path: "/pkg.Service/Missing", Type: Unary}); err != nil {
		t.Fatalf("register() = %v", err)
	}
	d, ok := r.lookup("/pkg.Service/Missing")
	if !ok {
		t.Fatal("lookup() = false; want true")
	}
	h, ok := d.Handler.(UnaryHandler)
	if !ok {
		t.Fatalf("Handler type = %T; want UnaryHandler", d.Handler)
	}
	_, err := h(context.Background(), nil)
	st, _ := status.FromError(err)
	if st.Code().String() != "Unimplemented" {
		t.Fatalf("code = %v; want Unimplemented", st.Code())
	}
	wantMsg := "The server does not implement the method /pkg.Service/Missing"
	if st.Message() != wantMsg {
		t.Fatalf("message = %q; want %q", st.Message(), wantMsg)
	}
}

func TestMethodTypeFromStreamFlags(t *testing.T) {
	tests := []struct {
		req, resp bool
		want      MethodType
	}{
		{false, false, Unary},
		{true, false, ClientStreaming},
		{false, true, ServerStreaming},
		{true, true, Bidi},
	}
	for _, tc := range tests {
		if got := methodType(tc.req, tc.resp); got != tc.want {
			t.Errorf("methodType(%v, %v) = %v; want %v", tc.req, tc.resp, got, tc.want)
		}
	}
}
