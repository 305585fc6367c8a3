/*
 *
 * Copyright 2018 gRPC authors.
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

// Package grpcsync implements additional synchronization primitives built
// on top of the sync package.
package grpcsync

import "sync"

// Event represents a one-time event that may occur in the future.
type Event struct {
	c chan struct{}
	o sync.Once
}

// Fire records that the event has occurred and returns true if this call to
// Fire was the first to do so. It closes the channel returned by Done.
func (e *Event) Fire() bool {
	ret := false
	e.o.Do(func() {
		close(e.c)
		ret = true
	})
	return ret
}

// Done returns a channel that will be closed when Fire is called.
func (e *Event) Done() <-chan struct{} {
	return e.c
}

// HasFired returns true if Fire has been called.
func (e *Event) HasFired() bool {
	select {
	case <-e.c:
		return true
	default:
		return false
	}
}

// NewEvent returns a new, ready to use Event.
func NewEvent() *Event {
	return &Event{c: make(chan struct{})}
}
