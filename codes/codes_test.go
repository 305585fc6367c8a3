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

package codes

import "testing"

func TestStringRoundTrip(t *testing.T) {
	for code, name := range codeToStr {
		if got := code.String(); got != name {
			t.Errorf("Code(%d).String() = %q; want %q", code, got, name)
		}
	}
}

func TestStringUnknown(t *testing.T) {
	if got, want := Code(99).String(), "Code(99)"; got != want {
		t.Errorf("Code(99).String() = %q; want %q", got, want)
	}
}

func TestUnmarshalJSON(t *testing.T) {
	var c Code
	if err := c.UnmarshalJSON([]byte(`"NOT_FOUND"`)); err != nil {
		t.Fatalf("UnmarshalJSON() = %v; want nil", err)
	}
	if c != NotFound {
		t.Errorf("c = %v; want NotFound", c)
	}
	if err := c.UnmarshalJSON([]byte(`5`)); err != nil {
		t.Fatalf("UnmarshalJSON() = %v; want nil", err)
	}
	if c != NotFound {
		t.Errorf("c = %v; want NotFound", c)
	}
	if err := c.UnmarshalJSON([]byte(`"BOGUS"`)); err == nil {
		t.Fatal("UnmarshalJSON() = nil; want error")
	}
}
