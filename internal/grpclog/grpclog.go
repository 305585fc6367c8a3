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

// Package grpclog implements the process-wide, lazily-initialized logging
// gate: GRPC_VERBOSITY selects a minimum severity, and everything below it
// is dropped before it ever reaches glog.
package grpclog

import (
	"os"
	"strings"
	"sync"

	"github.com/golang/glog"
)

// Severity mirrors the three levels GRPC_VERBOSITY recognizes.
type Severity int

const (
	// SeverityError logs only error-level events. This is the default.
	SeverityError Severity = iota
	// SeverityInfo additionally logs informational lifecycle events.
	SeverityInfo
	// SeverityDebug logs everything, including verbose per-call tracing.
	SeverityDebug
)

var (
	once     sync.Once
	severity Severity
)

func verbosity() Severity {
	once.Do(func() {
		switch strings.ToUpper(os.Getenv("GRPC_VERBOSITY")) {
		case "DEBUG":
			severity = SeverityDebug
		case "INFO":
			severity = SeverityInfo
		default:
			severity = SeverityError
		}
	})
	return severity
}

// Errorf always logs; it is gated only by glog's own output configuration.
func Errorf(format string, args ...any) {
	glog.Errorf(format, args...)
}

// Warningf logs at INFO or DEBUG verbosity.
func Warningf(format string, args ...any) {
	if verbosity() >= SeverityInfo {
		glog.Warningf(format, args...)
	}
}

// Infof logs at INFO or DEBUG verbosity.
func Infof(format string, args ...any) {
	if verbosity() >= SeverityInfo {
		glog.Infof(format, args...)
	}
}

// Debugf logs only at DEBUG verbosity, gated behind glog's V(2).
func Debugf(format string, args ...any) {
	if verbosity() >= SeverityDebug {
		glog.V(2).Infof(format, args...)
	}
}
