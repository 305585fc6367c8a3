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

// Package gzip implements the gzip message compressor, built on the
// standard library's compress/gzip.
package gzip // import "github.com/latticerpc/grpc/encoding/gzip"

import (
	"compress/gzip"
	"io"

	"github.com/latticerpc/grpc/encoding"
)

func init() {
	encoding.RegisterCompressor(compressor{})
}

type compressor struct{}

func (compressor) Name() string { return "gzip" }

func (compressor) Compress(w io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriter(w), nil
}

func (compressor) Decompress(r io.Reader) (io.Reader, error) {
	return gzip.NewReader(r)
}
