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

// Package deflate implements the deflate message compressor, built on the
// standard library's compress/flate, the same way encoding/gzip wraps
// compress/gzip.
package deflate // import "github.com/latticerpc/grpc/encoding/deflate"

import (
	"compress/flate"
	"io"

	"github.com/latticerpc/grpc/encoding"
)

func init() {
	encoding.RegisterCompressor(compressor{})
}

type compressor struct{}

func (compressor) Name() string { return "deflate" }

func (compressor) Compress(w io.Writer) (io.WriteCloser, error) {
	return flate.NewWriter(w, flate.DefaultCompression)
}

func (compressor) Decompress(r io.Reader) (io.Reader, error) {
	return flate.NewReader(r), nil
}
