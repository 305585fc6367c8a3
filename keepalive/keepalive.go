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

// Package keepalive groups the two durations a Server uses to detect dead
// HTTP/2 peers, the way the teacher's identically-named package groups
// the same two numbers for its own keepalive enforcement.
package keepalive

import "time"

// ServerParameters configures a Server's HTTP/2 keepalive PINGs: every
// Time of inactivity a PING is sent; if no response arrives within
// Timeout, the session is destroyed.
type ServerParameters struct {
	Time    time.Duration
	Timeout time.Duration
}
