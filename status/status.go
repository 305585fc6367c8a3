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

// Package status implements errors returned by gRPC. These errors carry a
// gRPC code and a textual description, and optionally the trailing
// Metadata that should ride along with them to the peer.
package status // import "github.com/latticerpc/grpc/status"

import (
	"errors"
	"fmt"

	"github.com/latticerpc/grpc/codes"
	"github.com/latticerpc/grpc/metadata"
)

// Status represents an RPC status code, message, and optional trailing
// metadata. It is immutable and safe for concurrent use.
type Status struct {
	code    codes.Code
	message string
	trailer metadata.MD
}

// New returns a Status representing code and msg.
func New(code codes.Code, msg string) *Status {
	return &Status{code: code, message: msg}
}

// Newf returns New(code, fmt.Sprintf(format, a...)).
func Newf(code codes.Code, format string, a ...any) *Status {
	return New(code, fmt.Sprintf(format, a...))
}

// Code returns the status code contained in s, or codes.OK if s is nil (it
// is safe to call on a nil *Status, which represents a successful RPC).
func (s *Status) Code() codes.Code {
	if s == nil {
		return codes.OK
	}
	return s.code
}

// Message returns the message contained in s, or "" if s is nil.
func (s *Status) Message() string {
	if s == nil {
		return ""
	}
	return s.message
}

// Trailer returns the metadata attached to s, which may be empty.
func (s *Status) Trailer() metadata.MD {
	if s == nil {
		return metadata.MD{}
	}
	return s.trailer
}

// WithTrailer returns a copy of s carrying md as its trailing metadata.
func (s *Status) WithTrailer(md metadata.MD) *Status {
	if s == nil {
		s = New(codes.OK, "")
	}
	return &Status{code: s.code, message: s.message, trailer: md}
}

// Err returns an immutable error representing s; if s.Code() is OK, Err
// returns nil.
func (s *Status) Err() error {
	if s.Code() == codes.OK {
		return nil
	}
	return &statusError{s: s}
}

// statusError wraps a Status to satisfy the error interface while also
// exposing GRPCStatus() for status.FromError and friends.
type statusError struct {
	s *Status
}

func (e *statusError) Error() string {
	return fmt.Sprintf("rpc error: code = %s desc = %s", e.s.Code(), e.s.Message())
}

// GRPCStatus returns the Status represented by e.
func (e *statusError) GRPCStatus() *Status {
	return e.s
}

// Is implements error matching against another *statusError with the same
// code and message.
func (e *statusError) Is(target error) bool {
	o, ok := target.(*statusError)
	if !ok {
		return false
	}
	return e.s.Code() == o.s.Code() && e.s.Message() == o.s.Message()
}

// Error returns an error representing code and msg. If code is OK, returns
// nil.
func Error(code codes.Code, msg string) error {
	return New(code, msg).Err()
}

// Errorf returns Error(code, fmt.Sprintf(format, a...)).
func Errorf(code codes.Code, format string, a ...any) error {
	return Error(code, fmt.Sprintf(format, a...))
}

// FromError returns a Status representation of err.
//
//   - If err wraps a type implementing GRPCStatus() *Status (via
//     errors.As), that Status is returned together with true.
//   - If err is nil, OK is returned together with true.
//   - Otherwise UNKNOWN is returned, carrying err.Error() as its message,
//     together with false.
func FromError(err error) (s *Status, ok bool) {
	if err == nil {
		return nil, true
	}
	type grpcstatus interface{ GRPCStatus() *Status }
	var gs grpcstatus
	if errors.As(err, &gs) {
		grpcStatus := gs.GRPCStatus()
		if grpcStatus == nil {
			// Error has status nil, which maps to codes.OK. There
			// is no sensible behavior for this, so we treat it
			// like if the err wasn't a grpcstatus at all.
			return New(codes.Unknown, err.Error()), false
		}
		return grpcStatus, true
	}
	return New(codes.Unknown, err.Error()), false
}

// Code returns the Code of the error if it is a Status error or if it
// wraps a Status error; codes.OK if err is nil; or codes.Unknown
// otherwise.
func Code(err error) codes.Code {
	// Don't use FromError to avoid allocation of OK status.
	if err == nil {
		return codes.OK
	}
	if se, ok := err.(interface{ GRPCStatus() *Status }); ok {
		return se.GRPCStatus().Code()
	}
	s, _ := FromError(err)
	return s.Code()
}
