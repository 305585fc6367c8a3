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

package resolver

import "testing"

func TestResolve(t *testing.T) {
	tests := []struct {
		target  string
		secure  bool
		want    ListenAddr
		wantErr bool
	}{
		{target: "localhost:8080", want: ListenAddr{Network: "tcp", Address: "localhost:8080"}},
		{target: "[::1]:8080", want: ListenAddr{Network: "tcp", Address: "[::1]:8080"}},
		{target: "example.com", secure: false, want: ListenAddr{Network: "tcp", Address: "example.com:80"}},
		{target: "example.com", secure: true, want: ListenAddr{Network: "tcp", Address: "example.com:443"}},
		{target: "dns:example.com:53", want: ListenAddr{Network: "tcp", Address: "example.com:53"}},
		{target: "dns:///example.com:53", want: ListenAddr{Network: "tcp", Address: "example.com:53"}},
		{target: "unix:/tmp/sock", want: ListenAddr{Network: "unix", Address: "/tmp/sock"}},
		{target: "unix:relative/sock", want: ListenAddr{Network: "unix", Address: "relative/sock"}},
		{target: "unix:///tmp/sock", want: ListenAddr{Network: "unix", Address: "/tmp/sock"}},
		{target: "unix://relative/sock", wantErr: true},
		{target: "8080", want: ListenAddr{Network: "tcp", Address: "localhost:8080"}},
	}
	for _, tc := range tests {
		got, err := Resolve(tc.target, tc.secure)
		if tc.wantErr {
			if err == nil {
				t.Errorf("Resolve(%q) = %v, nil; want error", tc.target, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("Resolve(%q) = %v; want %v", tc.target, err, tc.want)
			continue
		}
		if got != tc.want {
			t.Errorf("Resolve(%q) = %v; want %v", tc.target, got, tc.want)
		}
	}
}
