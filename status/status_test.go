/*
 *
 * Copyright 2017 gRPC authors.
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

package status

import (
	"errors"
	"fmt"
	"testing"

	"github.com/latticerpc/grpc/codes"
	"github.com/latticerpc/grpc/metadata"
)

func TestErrorsWithSameParameters(t *testing.T) {
	const description = "some description"
	e1 := Error(codes.AlreadyExists, description)
	e2 := Error(codes.AlreadyExists, description)
	if e1 == e2 {
		t.Fatalf("Error values should be distinct pointers: e1 == e2")
	}
	s1, _ := FromError(e1)
	s2, _ := FromError(e2)
	if s1.Code() != s2.Code() || s1.Message() != s2.Message() {
		t.Fatalf("expected equivalent statuses, got %v and %v", s1, s2)
	}
}

func TestError(t *testing.T) {
	err := Error(codes.Internal, "test description")
	if got, want := err.Error(), "rpc error: code = Internal desc = test description"; got != want {
		t.Fatalf("err.Error() = %q; want %q", got, want)
	}
	s, _ := FromError(err)
	if got, want := s.Code(), codes.Internal; got != want {
		t.Fatalf("err.Code() = %s; want %s", got, want)
	}
	if got, want := s.Message(), "test description"; got != want {
		t.Fatalf("err.Message() = %s; want %s", got, want)
	}
}

func TestErrorOK(t *testing.T) {
	err := Error(codes.OK, "foo")
	if err != nil {
		t.Fatalf("Error(codes.OK, _) = %v; want nil", err)
	}
}

func TestFromError(t *testing.T) {
	code, message := codes.Internal, "test description"
	err := Error(code, message)
	s, ok := FromError(err)
	if !ok || s.Code() != code || s.Message() != message || s.Err() == nil {
		t.Fatalf("FromError(%v) = %v, %v; want <Code()=%s, Message()=%q, Err()!=nil>, true", err, s, ok, code, message)
	}
}

func TestFromErrorNil(t *testing.T) {
	s, ok := FromError(nil)
	if !ok || s.Code() != codes.OK || s.Message() != "" || s.Err() != nil {
		t.Fatalf("FromError(nil) = %v, %v; want <Code()=OK, Message()=\"\", Err()=nil>, true", s, ok)
	}
}

func TestFromErrorUnknownError(t *testing.T) {
	err := errors.New("unadorned error")
	s, ok := FromError(err)
	if ok || s.Code() != codes.Unknown || s.Message() != err.Error() {
		t.Fatalf("FromError(%v) = %v, %v; want <Code()=Unknown, Message()=%q>, false", err, s, ok, err.Error())
	}
}

func TestFromErrorWrapped(t *testing.T) {
	const code, message = codes.Internal, "test description"
	err := fmt.Errorf("wrapped: %w", Error(code, message))
	s, ok := FromError(err)
	if !ok || s.Code() != code || s.Message() != message {
		t.Fatalf("FromError(%v) = %v, %v; want <Code()=%s, Message()=%q>, true", err, s, ok, code, message)
	}
}

func TestCode(t *testing.T) {
	if got, want := Code(Error(codes.NotFound, "x")), codes.NotFound; got != want {
		t.Fatalf("Code() = %v; want %v", got, want)
	}
	if got, want := Code(nil), codes.OK; got != want {
		t.Fatalf("Code(nil) = %v; want %v", got, want)
	}
	if got, want := Code(errors.New("x")), codes.Unknown; got != want {
		t.Fatalf("Code(unadorned) = %v; want %v", got, want)
	}
}

func TestWithTrailer(t *testing.T) {
	md := metadata.Pairs("trailer-present", "yes")
	s := New(codes.Aborted, "retry").WithTrailer(md)
	if !metadataEqual(s.Trailer(), md) {
		t.Fatalf("s.Trailer() = %v; want %v", s.Trailer(), md)
	}
	if s.Code() != codes.Aborted || s.Message() != "retry" {
		t.Fatalf("WithTrailer altered code/message: %v/%q", s.Code(), s.Message())
	}
}

func metadataEqual(a, b metadata.MD) bool {
	if a.Len() != b.Len() {
		return false
	}
	for _, k := range a.Keys() {
		av, bv := a.Get(k), b.Get(k)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
	}
	return true
}
