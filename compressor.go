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

package grpc

import (
	"bytes"
	"io"
	"strings"

	"github.com/latticerpc/grpc/codes"
	"github.com/latticerpc/grpc/encoding"
	"github.com/latticerpc/grpc/metadata"
	"github.com/latticerpc/grpc/status"
)

// compressionFilter selects, per direction, which named encoding (or none)
// applies to a call, and performs the actual frame compress/decompress.
type compressionFilter struct {
	sendName    string
	sendCodec   encoding.Compressor
	receiveName string
	receiveCodec encoding.Compressor
}

func newCompressionFilter() *compressionFilter {
	return &compressionFilter{sendName: encoding.Identity, receiveName: encoding.Identity}
}

// receiveMetadata installs the request's encoding, aligns the response
// encoding to it when the peer accepts it, and strips the two
// compression-negotiation headers before returning md to user code.
func (f *compressionFilter) receiveMetadata(md metadata.MD) (metadata.MD, error) {
	if vs := md.Get("grpc-encoding"); len(vs) > 0 && vs[0] != f.receiveName {
		name := vs[0]
		if name == encoding.Identity {
			f.receiveName, f.receiveCodec = encoding.Identity, nil
		} else {
			c := encoding.GetCompressor(name)
			if c == nil {
				return md, status.Errorf(codes.Unimplemented, "grpc: Compressor is not installed for grpc-encoding %q", name)
			}
			f.receiveName, f.receiveCodec = name, c
		}
	}

	var peerAccepts []string
	if vs := md.Get("grpc-accept-encoding"); len(vs) > 0 {
		peerAccepts = strings.Split(vs[0], ",")
	}

	f.sendName, f.sendCodec = encoding.Identity, nil
	for _, name := range peerAccepts {
		if strings.TrimSpace(name) == f.receiveName && f.receiveName != encoding.Identity {
			f.sendName, f.sendCodec = f.receiveName, f.receiveCodec
			break
		}
	}

	out := md.Clone()
	out.Delete("grpc-encoding")
	out.Delete("grpc-accept-encoding")
	return out, nil
}

// writeMessage frames payload, compressing it first when compress is true
// and the send encoding is not identity. The identity encoder always
// marks the frame uncompressed and never runs a compress/decompress call.
func (f *compressionFilter) writeMessage(payload []byte, compress bool) ([]byte, error) {
	if !compress || f.sendName == encoding.Identity {
		return encodeFrame(payload, false), nil
	}
	var buf bytes.Buffer
	wc, err := f.sendCodec.Compress(&buf)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "grpc: error compressing message: %v", err)
	}
	if _, err := wc.Write(payload); err != nil {
		return nil, status.Errorf(codes.Internal, "grpc: error compressing message: %v", err)
	}
	if err := wc.Close(); err != nil {
		return nil, status.Errorf(codes.Internal, "grpc: error compressing message: %v", err)
	}
	return encodeFrame(buf.Bytes(), true), nil
}

// readMessage reverses writeMessage: an uncompressed frame's payload is
// returned unchanged, a compressed frame is decompressed with the receive
// codec. A compressed frame with identity as the receive encoding is a
// protocol error.
func (f *compressionFilter) readMessage(frame rawFrame) ([]byte, error) {
	if !frame.compressed {
		return frame.payload, nil
	}
	if f.receiveCodec == nil {
		return nil, status.Error(codes.Internal, "grpc: identity encoding does not support compression")
	}
	r, err := f.receiveCodec.Decompress(bytes.NewReader(frame.payload))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "grpc: error decompressing message: %v", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "grpc: error decompressing message: %v", err)
	}
	return out, nil
}

// acceptEncodingHeader builds the grpc-accept-encoding value this process
// advertises: identity plus every registered compressor.
func acceptEncodingHeader() string {
	return strings.Join(encoding.AvailableCompressors(), ",")
}
