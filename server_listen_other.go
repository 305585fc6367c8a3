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

//go:build !linux && !darwin

package grpc

import "syscall"

// listenControl is a no-op on platforms without golang.org/x/sys/unix socket
// option support: Bind still works, it just can't re-bind a port instantly
// after a forced shutdown the way the Linux/Darwin build can.
func listenControl(network, address string, c syscall.RawConn) error { return nil }
