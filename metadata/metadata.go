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

// Package metadata defines the ordered, multi-valued header map carried on
// a gRPC call, and its round trip to and from HTTP/2 header fields.
package metadata // import "github.com/latticerpc/grpc/metadata"

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const binHdrSuffix = "-bin"

func isValidKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z':
		case r == '_' || r == '.' || r == '-':
		default:
			return false
		}
	}
	return true
}

func isBinKey(key string) bool { return strings.HasSuffix(key, binHdrSuffix) }

func isPrintableASCII(v string) bool {
	for i := 0; i < len(v); i++ {
		if v[i] < 0x20 || v[i] > 0x7E {
			return false
		}
	}
	return true
}

func allPrintableASCII(values []string) bool {
	for _, v := range values {
		if !isPrintableASCII(v) {
			return false
		}
	}
	return true
}

// MD is an ordered, multi-valued mapping from lowercase header keys to
// their values. Distinct keys keep the order in which they were first set
// or added, which is the order used when emitting HTTP/2 headers.
type MD struct {
	keys   []string
	values map[string][]string
}

// New creates an MD from a map; each key's values are stored as given,
// without splitting on ",". Key order in the result is the (unspecified) range order of m; use
// Pairs when a deterministic order matters.
func New(m map[string][]string) MD {
	md := MD{values: make(map[string][]string, len(m))}
	for k, v := range m {
		md.Set(k, v...)
	}
	return md
}

// Pairs returns an MD formed from the key-value pairs in kv, in order. Pairs
// panics if len(kv) is odd.
func Pairs(kv ...string) MD {
	if len(kv)%2 == 1 {
		panic(fmt.Sprintf("metadata: Pairs got the odd number of input pairs for metadata: %d", len(kv)))
	}
	md := MD{values: make(map[string][]string, len(kv)/2)}
	for i := 0; i < len(kv); i += 2 {
		md.Add(kv[i], kv[i+1])
	}
	return md
}

func (md *MD) ensure() {
	if md.values == nil {
		md.values = make(map[string][]string)
	}
}

// Len returns the number of distinct keys in md.
func (md MD) Len() int { return len(md.keys) }

// Keys returns the distinct keys in md, in insertion order.
func (md MD) Keys() []string {
	out := make([]string, len(md.keys))
	copy(out, md.keys)
	return out
}

// Get returns the values for key (case-insensitive), or nil if key is
// unset. The returned slice must not be modified.
func (md MD) Get(key string) []string {
	key = strings.ToLower(key)
	return md.values[key]
}

// Set replaces the values associated with key with the given values,
// normalizing key to lowercase. An existing key keeps its position in
// iteration order; a new key is appended. Non-"-bin" values must be printable
// ASCII (0x20-0x7E), the same restriction FromHTTP2Headers enforces on
// import; Set silently drops the call rather than writing a value that
// could not legally have been received on the wire.
func (md *MD) Set(key string, values ...string) {
	key = strings.ToLower(key)
	if !isValidKey(key) {
		return
	}
	if !isBinKey(key) && !allPrintableASCII(values) {
		return
	}
	md.ensure()
	if _, ok := md.values[key]; !ok {
		md.keys = append(md.keys, key)
	}
	cp := make([]string, len(values))
	copy(cp, values)
	md.values[key] = cp
}

// Add appends values to key's existing sequence (key is created, and
// appended to the key order, if not already present). Non-"-bin" values
// must be printable ASCII (0x20-0x7E); see Set.
func (md *MD) Add(key string, values ...string) {
	if len(values) == 0 {
		return
	}
	key = strings.ToLower(key)
	if !isValidKey(key) {
		return
	}
	if !isBinKey(key) && !allPrintableASCII(values) {
		return
	}
	md.ensure()
	if _, ok := md.values[key]; !ok {
		md.keys = append(md.keys, key)
	}
	md.values[key] = append(md.values[key], values...)
}

// Delete drops all values for key; key is removed from iteration order.
func (md *MD) Delete(key string) {
	key = strings.ToLower(key)
	if _, ok := md.values[key]; !ok {
		return
	}
	delete(md.values, key)
	for i, k := range md.keys {
		if k == key {
			md.keys = append(md.keys[:i], md.keys[i+1:]...)
			break
		}
	}
}

// Clone returns a deep copy of md. Because values are plain strings
// (immutable in Go), copying the backing slices is sufficient to give the
// clone an independent buffer per key.
func (md MD) Clone() MD {
	out := MD{
		keys:   make([]string, len(md.keys)),
		values: make(map[string][]string, len(md.values)),
	}
	copy(out.keys, md.keys)
	for k, v := range md.values {
		cp := make([]string, len(v))
		copy(cp, v)
		out.values[k] = cp
	}
	return out
}

// Merge returns a new MD holding md's entries with other's values appended
// per key (new keys from other are appended at the end, in other's order).
func (md MD) Merge(other MD) MD {
	out := md.Clone()
	for _, k := range other.keys {
		out.Add(k, other.values[k]...)
	}
	return out
}

// HeaderField is one (name, value) pair as it appears on the wire. Unlike
// MD, it is unordered-key-agnostic: a repeated key produces one HeaderField
// per value.
type HeaderField struct {
	Name  string
	Value string
}

// ToHTTP2Headers converts md to the HTTP/2 header fields that should be
// sent for it: text values pass through unchanged, "-bin" values are
// base64-encoded, and reserved pseudo-headers (keys starting with ":")
// are never exported. Each value produces its own field; values are never
// comma-joined on export.
func (md MD) ToHTTP2Headers() []HeaderField {
	var out []HeaderField
	for _, k := range md.keys {
		if strings.HasPrefix(k, ":") {
			continue
		}
		bin := isBinKey(k)
		for _, v := range md.values[k] {
			if bin {
				v = base64.StdEncoding.EncodeToString([]byte(v))
			}
			out = append(out, HeaderField{Name: k, Value: v})
		}
	}
	return out
}

// FromHTTP2Headers reconstructs an MD from received HTTP/2 header fields.
// Reserved pseudo-headers (":"-prefixed) are skipped. "-bin" values are
// base64-decoded. Custom (non-"grpc-"-prefixed) keys that appear exactly
// once but contain a comma are split on "," to recover the multiple values
// an intermediary may have joined onto a single line; "grpc-"-prefixed
// keys are never split this way, since each value for those always arrives
// as its own header occurrence.
func FromHTTP2Headers(fields []HeaderField) (MD, error) {
	raw := make(map[string][]string)
	var order []string
	for _, f := range fields {
		name := strings.ToLower(f.Name)
		if strings.HasPrefix(name, ":") {
			continue
		}
		if !isValidKey(name) {
			continue
		}
		if _, ok := raw[name]; !ok {
			order = append(order, name)
		}
		raw[name] = append(raw[name], f.Value)
	}

	md := MD{values: make(map[string][]string, len(order))}
	for _, key := range order {
		values := raw[key]
		if !strings.HasPrefix(key, "grpc-") && len(values) == 1 && strings.Contains(values[0], ",") {
			values = strings.Split(values[0], ",")
		}
		if isBinKey(key) {
			decoded := make([]string, 0, len(values))
			for _, v := range values {
				b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(v))
				if err != nil {
					return MD{}, fmt.Errorf("metadata: malformed binary header %q: %w", key, err)
				}
				decoded = append(decoded, string(b))
			}
			md.Add(key, decoded...)
			continue
		}
		for _, v := range values {
			if !isPrintableASCII(v) {
				return MD{}, fmt.Errorf("metadata: header %q contains non-printable characters", key)
			}
		}
		md.Add(key, values...)
	}
	return md, nil
}
