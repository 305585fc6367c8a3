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

package grpclog

import "testing"

// The gate must never panic regardless of verbosity; this is a smoke test
// since the once-initialized severity can't be reset between subtests
// without exposing internals purely for testing.
func TestLoggingDoesNotPanic(t *testing.T) {
	Errorf("error: %d", 1)
	Warningf("warning: %d", 2)
	Infof("info: %d", 3)
	Debugf("debug: %d", 4)
}
