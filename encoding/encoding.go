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

// Package encoding defines the process-wide registry of gRPC message
// compressors, mirroring the registration pattern used for codecs: a
// compressor registers itself under a name in an init() function, and the
// transport looks it up by the name advertised on the wire
// (grpc-encoding/grpc-accept-encoding).
package encoding // import "github.com/latticerpc/grpc/encoding"

import (
	"io"
	"sort"
	"sync"
)

// Identity is the name of the no-op encoding. It is always implicitly
// registered and never appears in the registry map.
const Identity = "identity"

// Compressor is a message compressor for a named wire encoding. Compress
// wraps w to compress bytes written to it; Decompress wraps r to
// decompress bytes read from it.
type Compressor interface {
	// Name reports the wire name of the encoding (e.g. "gzip").
	Name() string
	// Compress wraps w so that bytes written to the returned WriteCloser
	// are compressed and written to w. Closing the returned WriteCloser
	// flushes any buffered data.
	Compress(w io.Writer) (io.WriteCloser, error)
	// Decompress wraps r so that bytes read from the returned Reader are
	// the decompressed form of r's bytes.
	Decompress(r io.Reader) (io.Reader, error)
}

var (
	mu       sync.RWMutex
	registry = make(map[string]Compressor)
)

// RegisterCompressor registers c under c.Name() for process-wide lookup by
// GetCompressor. Typically called from an init() function in a compressor
// implementation package (such as encoding/gzip). Registering "identity"
// panics: identity is handled internally and is never looked up here.
func RegisterCompressor(c Compressor) {
	if c.Name() == Identity {
		panic("encoding: cannot register a compressor named identity")
	}
	mu.Lock()
	defer mu.Unlock()
	registry[c.Name()] = c
}

// GetCompressor returns the Compressor registered under name, or nil if
// none is registered (including for name == Identity, which has no
// Compressor value — callers must special-case it).
func GetCompressor(name string) Compressor {
	mu.RLock()
	defer mu.RUnlock()
	return registry[name]
}

// AvailableCompressors returns the wire names this process can decode,
// always including Identity first, followed by every registered name in
// sorted order. Used to build the grpc-accept-encoding value a server
// advertises.
func AvailableCompressors() []string {
	mu.RLock()
	defer mu.RUnlock()
	rest := make([]string, 0, len(registry))
	for name := range registry {
		rest = append(rest, name)
	}
	sort.Strings(rest)
	return append([]string{Identity}, rest...)
}
