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
	"github.com/latticerpc/grpc/status"

	"github.com/latticerpc/grpc/codes"
)

const frameHeaderLen = 5

// decoderState is the StreamDecoder's position within one frame.
type decoderState int

const (
	stateNoData decoderState = iota
	stateReadingSize
	stateReadingMessage
)

// rawFrame is one complete frame liberated from the wire: the compression
// flag plus the raw (possibly still compressed) payload. decompression and
// size-limit enforcement both happen above this layer, per spec.
type rawFrame struct {
	compressed bool
	payload    []byte
}

// streamDecoder turns arbitrary byte chunks arriving on one HTTP/2 stream
// into complete length-prefixed gRPC frames. It performs no size checking
// and no decompression; it only knows how to find frame boundaries.
type streamDecoder struct {
	state decoderState

	header    [frameHeaderLen]byte
	headerLen int

	msgLen  uint32
	msgBuf  []byte
	msgHave uint32
}

// write feeds chunk into the decoder and returns every frame it completed,
// in the order they were completed. chunk may complete zero, one, or more
// than one frame; unconsumed partial state is retained for the next call.
func (d *streamDecoder) write(chunk []byte) ([]rawFrame, error) {
	var out []rawFrame
	for len(chunk) > 0 {
		switch d.state {
		case stateNoData:
			d.headerLen = 0
			d.state = stateReadingSize
		case stateReadingSize:
			n := copy(d.header[d.headerLen:frameHeaderLen], chunk)
			d.headerLen += n
			chunk = chunk[n:]
			if d.headerLen < frameHeaderLen {
				continue
			}
			d.msgLen = uint32(d.header[1])<<24 | uint32(d.header[2])<<16 | uint32(d.header[3])<<8 | uint32(d.header[4])
			if d.msgLen == 0 {
				out = append(out, rawFrame{compressed: d.header[0] == 1, payload: nil})
				d.state = stateNoData
				continue
			}
			d.msgBuf = make([]byte, d.msgLen)
			d.msgHave = 0
			d.state = stateReadingMessage
		case stateReadingMessage:
			n := copy(d.msgBuf[d.msgHave:], chunk)
			d.msgHave += uint32(n)
			chunk = chunk[n:]
			if d.msgHave < d.msgLen {
				continue
			}
			out = append(out, rawFrame{compressed: d.header[0] == 1, payload: d.msgBuf})
			d.state = stateNoData
		default:
			return out, status.Error(codes.Internal, "grpc: stream decoder reached an unknown state")
		}
	}
	return out, nil
}

// encodeFrame prepends the 5-byte gRPC message header to payload.
func encodeFrame(payload []byte, compressed bool) []byte {
	out := make([]byte, frameHeaderLen+len(payload))
	if compressed {
		out[0] = 1
	}
	n := uint32(len(payload))
	out[1] = byte(n >> 24)
	out[2] = byte(n >> 16)
	out[3] = byte(n >> 8)
	out[4] = byte(n)
	copy(out[frameHeaderLen:], payload)
	return out
}
