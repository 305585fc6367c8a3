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
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/latticerpc/grpc/codes"
	"github.com/latticerpc/grpc/internal/grpcsync"
	"github.com/latticerpc/grpc/metadata"
	"github.com/latticerpc/grpc/status"
)

// maxConcurrentDeserializations bounds, process-wide, how many request
// deserializations may run at once: a service whose generated deserializer
// is slow should not be able to starve every other call on the server.
const maxConcurrentDeserializations = 64

var deserializeSem = semaphore.NewWeighted(maxConcurrentDeserializations)

// callStream is the slice of *transport.Stream's surface a ServerCall
// drives. Depending on an interface here (rather than the concrete type)
// lets tests exercise ServerCall against an in-memory fake instead of a
// real HTTP/2 connection.
type callStream interface {
	Method() string
	ContentType() string
	RequestMetadata() (metadata.MD, error)
	Context() context.Context
	Read(p []byte) (int, error)
	WriteHeader(contentType string, md metadata.MD)
	Write(p []byte) (int, error)
	SetTrailer(md metadata.MD)
	End()
}

// ServerCall owns one HTTP/2 stream for the lifetime of one RPC attempt.
// It is the spec's C4: deadline, cancellation, metadata I/O, framing, and
// the exactly-once trailer emission every call shape is built on top of.
type ServerCall struct {
	stream      callStream
	desc        MethodDesc
	compression *compressionFilter
	decoder     streamDecoder
	maxSend     int
	maxReceive  int

	mu         sync.Mutex
	headerSent bool
	finished   bool

	cancelEvent  *grpcsync.Event
	cancelMu     sync.Mutex
	cancelReason string

	ctx       context.Context
	ctxCancel context.CancelFunc

	trailerMD metadata.MD

	deadlineTimer *time.Timer
	done          chan struct{}
}

// callContextKey is the context.Value key a ServerCall registers itself
// under, so the package-level SetTrailer can reach the call a handler is
// running inside of without threading the *ServerCall through every
// handler signature.
type callContextKey struct{}

func newServerCall(stream callStream, desc MethodDesc, opts serverOptions) *ServerCall {
	ctx, cancel := context.WithCancel(stream.Context())
	c := &ServerCall{
		stream:      stream,
		desc:        desc,
		compression: newCompressionFilter(),
		maxSend:     opts.maxSendMessageLength,
		maxReceive:  opts.maxReceiveMessageLength,
		cancelEvent: grpcsync.NewEvent(),
		ctx:         ctx,
		ctxCancel:   cancel,
		done:        make(chan struct{}),
	}
	c.ctx = context.WithValue(c.ctx, callContextKey{}, c)
	go c.watchPeerCancellation()
	return c
}

// SetTrailer attaches trailing metadata to the call running on ctx,
// merging with any trailer already queued. It mirrors the teacher's own
// context-carried `grpc.SetTrailer`: a handler that wants to set response
// trailers (the spec's "trailer argument" for call shapes, like
// UnaryHandler, whose signature has no room for one) reaches its call
// through ctx instead of a back-pointer. Its entries come first in the
// trailers, ahead of whatever trailer the call's own terminal Status
// carries.
func SetTrailer(ctx context.Context, md metadata.MD) error {
	call, ok := ctx.Value(callContextKey{}).(*ServerCall)
	if !ok {
		return status.Error(codes.Internal, "grpc: SetTrailer called outside of a call")
	}
	call.mu.Lock()
	call.trailerMD = call.trailerMD.Merge(md)
	call.mu.Unlock()
	return nil
}

// Context returns the per-call context a handler observes: it carries the
// parsed request metadata (once receiveMetadata has run) and is cancelled
// the moment the call is cancelled, by any of the three sources in
// spec.md §5.
func (c *ServerCall) Context() context.Context { return c.ctx }

func (c *ServerCall) watchPeerCancellation() {
	select {
	case <-c.stream.Context().Done():
		c.cancel("cancelled")
	case <-c.done:
	}
}

// cancel converges one of the three cancellation sources (peer RST_STREAM,
// deadline fire, or forced shutdown — the caller picks the reason) onto
// the one-shot cancelEvent. Only the first call has any effect.
func (c *ServerCall) cancel(reason string) {
	c.cancelMu.Lock()
	if c.cancelEvent.HasFired() {
		c.cancelMu.Unlock()
		return
	}
	c.cancelReason = reason
	c.cancelMu.Unlock()
	c.cancelEvent.Fire()
	c.ctxCancel()
	if reason == "cancelled" {
		// The peer (or a forced shutdown) already tore down the stream;
		// there is nothing left to flush trailers onto.
		c.finishNoTrailers()
	}
}

// Cancelled reports whether the call has been cancelled by any source.
func (c *ServerCall) Cancelled() bool { return c.cancelEvent.HasFired() }

// CancelReason returns "cancelled" or "deadline", or "" if not cancelled.
func (c *ServerCall) CancelReason() string {
	c.cancelMu.Lock()
	defer c.cancelMu.Unlock()
	return c.cancelReason
}

// Done is closed once the call has fully terminated (trailers sent, or
// abandoned without trailers because the peer is already gone).
func (c *ServerCall) Done() <-chan struct{} { return c.done }

// SendMetadata sends the response headers ahead of the first message,
// merging md into the default grpc-encoding/grpc-accept-encoding pair. A
// second call, or a call after the stream has ended, is a no-op.
func (c *ServerCall) SendMetadata(md metadata.MD) { c.sendMetadata(md) }

// Metadata returns the request metadata parsed by the most recent
// receiveMetadata call, or a zero MD before metadata has been parsed.
func (c *ServerCall) Metadata() metadata.MD {
	md, _ := metadata.FromIncomingContext(c.ctx)
	return md
}

// receiveMetadata converts the stream's request headers into user-visible
// Metadata: it runs them through the CompressionFilter (which strips
// grpc-encoding/grpc-accept-encoding) and arms a deadline timer from
// grpc-timeout, if present.
func (c *ServerCall) receiveMetadata() (metadata.MD, error) {
	raw, err := c.stream.RequestMetadata()
	if err != nil {
		return metadata.MD{}, status.Errorf(codes.Internal, "grpc: invalid request metadata: %v", err)
	}
	md, err := c.compression.receiveMetadata(raw)
	if err != nil {
		return metadata.MD{}, err
	}
	if vs := md.Get("grpc-timeout"); len(vs) > 0 {
		ms, perr := parseTimeoutMs(vs[0])
		if perr != nil {
			return metadata.MD{}, status.Error(codes.OutOfRange, "Invalid deadline")
		}
		md = md.Clone()
		md.Delete("grpc-timeout")
		c.armDeadline(time.Duration(ms) * time.Millisecond)
	}
	c.ctx = metadata.NewIncomingContext(c.ctx, md)
	return md, nil
}

func (c *ServerCall) armDeadline(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return
	}
	c.deadlineTimer = time.AfterFunc(d, func() {
		c.finish(status.New(codes.DeadlineExceeded, "Deadline exceeded"))
		c.cancel("deadline")
	})
}

// parseTimeoutMs parses a grpc-timeout value of the form \d{1,8}[HMSmun]
// into a millisecond count, truncated toward zero.
func parseTimeoutMs(s string) (int64, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("grpc: malformed grpc-timeout %q", s)
	}
	unit := s[len(s)-1]
	digits := s[:len(s)-1]
	if len(digits) == 0 || len(digits) > 8 {
		return 0, fmt.Errorf("grpc: malformed grpc-timeout %q", s)
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, fmt.Errorf("grpc: malformed grpc-timeout %q", s)
		}
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, err
	}
	var factor float64
	switch unit {
	case 'H':
		factor = 3.6e6
	case 'M':
		factor = 6e4
	case 'S':
		factor = 1e3
	case 'm':
		factor = 1
	case 'u':
		factor = 1e-3
	case 'n':
		factor = 1e-6
	default:
		return 0, fmt.Errorf("grpc: malformed grpc-timeout %q", s)
	}
	return int64(float64(n) * factor), nil
}

// sendMetadata sends the response headers exactly once: grpc-encoding,
// grpc-accept-encoding, and any caller-supplied custom metadata. Later
// calls, and calls after cancellation, are no-ops.
func (c *ServerCall) sendMetadata(custom metadata.MD) {
	c.mu.Lock()
	if c.headerSent || c.finished {
		c.mu.Unlock()
		return
	}
	c.headerSent = true
	c.mu.Unlock()
	if c.cancelEvent.HasFired() {
		return
	}

	md := metadata.Pairs("grpc-encoding", c.compression.sendName, "grpc-accept-encoding", acceptEncodingHeader())
	if custom.Len() > 0 {
		md = md.Merge(custom)
	}
	c.stream.WriteHeader("application/grpc+proto", md)
}

// receiveUnaryMessage reads the entire request body, deframes it, and
// invokes cb exactly once with the deserialized request or an error.
func (c *ServerCall) receiveUnaryMessage(cb func(error, any)) {
	data, err := io.ReadAll(c.stream)
	if err != nil {
		err = status.Errorf(codes.Internal, "grpc: error reading request: %v", err)
		c.sendError(err, metadata.MD{})
		cb(err, nil)
		return
	}
	msg, err := c.decodeOneMessage(data)
	if err != nil {
		c.sendError(err, metadata.MD{})
		cb(err, nil)
		return
	}
	cb(nil, msg)
}

// decodeOneMessage deframes, size-checks, decompresses, and deserializes
// a single message out of data. An empty body (no frame at all) decodes
// to a nil request, matching a zero-argument unary call.
func (c *ServerCall) decodeOneMessage(data []byte) (any, error) {
	frames, err := c.decoder.write(data)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return c.desc.RequestDeserialize(nil)
	}
	return c.decodeFrame(frames[len(frames)-1])
}

// decodeFrame size-checks, decompresses, and deserializes one already
// deframed message. It is the single chokepoint shared by the unary
// receive path and the streaming recvQueue, so both obey the same
// maxReceive limit and the same process-wide deserialization bound.
func (c *ServerCall) decodeFrame(frame rawFrame) (any, error) {
	if c.maxReceive >= 0 && len(frame.payload) > c.maxReceive {
		return nil, status.Errorf(codes.ResourceExhausted, "Received message larger than max (%d vs. %d)", len(frame.payload), c.maxReceive)
	}
	raw, err := c.compression.readMessage(frame)
	if err != nil {
		return nil, err
	}
	if err := deserializeSem.Acquire(context.Background(), 1); err != nil {
		return nil, status.Errorf(codes.Internal, "grpc: %v", err)
	}
	msg, err := c.desc.RequestDeserialize(raw)
	deserializeSem.Release(1)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "grpc: error unmarshalling request: %v", err)
	}
	return msg, nil
}

// serializeMessage applies the user serializer and the compression write
// path, failing with RESOURCE_EXHAUSTED if the serialized size exceeds
// maxSendMessageLength.
func (c *ServerCall) serializeMessage(value any) ([]byte, error) {
	raw, err := c.desc.ResponseSerialize(value)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "grpc: error marshalling response: %v", err)
	}
	if c.maxSend >= 0 && len(raw) > c.maxSend {
		return nil, status.Errorf(codes.ResourceExhausted, "Sent message larger than max (%d vs. %d)", len(raw), c.maxSend)
	}
	return c.compression.writeMessage(raw, true)
}

// sendMessage serializes and writes one message frame. It is a no-op
// (returning nil) once the call has been cancelled.
func (c *ServerCall) sendMessage(value any) error {
	if c.cancelEvent.HasFired() {
		return nil
	}
	frame, err := c.serializeMessage(value)
	if err != nil {
		c.sendError(err, metadata.MD{})
		return err
	}
	c.sendMetadata(metadata.MD{})
	return c.writeFrame(frame)
}

func (c *ServerCall) writeFrame(frame []byte) error {
	if c.cancelEvent.HasFired() {
		return nil
	}
	if _, err := c.stream.Write(frame); err != nil {
		return status.Errorf(codes.Unavailable, "grpc: error writing message: %v", err)
	}
	return nil
}

// sendUnaryMessage implements the unary response callback contract: an
// error fails the call (its own metadata wins over md per spec.md §9's
// open question); otherwise the value is sent and the stream ends with
// OK, carrying md as trailing metadata.
func (c *ServerCall) sendUnaryMessage(err error, value any, md metadata.MD) {
	if err != nil {
		c.sendError(err, md)
		return
	}
	frame, serr := c.serializeMessage(value)
	if serr != nil {
		c.sendError(serr, metadata.MD{})
		return
	}
	c.sendMetadata(metadata.MD{})
	if werr := c.writeFrame(frame); werr != nil {
		c.sendError(werr, metadata.MD{})
		return
	}
	c.finish(status.New(codes.OK, "").WithTrailer(md))
}

// end sends any queued payload (handled by the caller before invoking
// end), clears the deadline timer, and closes the stream with OK,
// carrying trailer as trailing metadata.
func (c *ServerCall) end(trailer metadata.MD) {
	c.finish(status.New(codes.OK, "").WithTrailer(trailer))
}

// sendError derives a Status from err (via status.FromError, so a value
// carrying its own GRPCStatus propagates verbatim) and ends the call with
// it. md is only used as trailing metadata when err does not already
// carry its own — the documented precedence from spec.md §9.
func (c *ServerCall) sendError(err error, md metadata.MD) {
	st, hasStatus := status.FromError(err)
	trailer := st.Trailer()
	if !hasStatus || trailer.Len() == 0 {
		trailer = md
	}
	c.finish(st.WithTrailer(trailer))
}

// finish is the single terminal operation: it is idempotent, clears the
// deadline timer, and — unless the stream is already gone because of a
// peer cancellation — emits exactly one trailers frame before closing.
func (c *ServerCall) finish(st *status.Status) {
	if c.cancelEvent.HasFired() && c.CancelReason() == "cancelled" {
		c.finishNoTrailers()
		return
	}

	c.mu.Lock()
	if c.finished {
		c.mu.Unlock()
		return
	}
	c.finished = true
	extra := c.trailerMD
	c.mu.Unlock()

	if c.deadlineTimer != nil {
		c.deadlineTimer.Stop()
	}

	c.sendMetadata(metadata.MD{})

	trailer := extra.Merge(st.Trailer())
	trailer.Set("grpc-status", strconv.Itoa(int(st.Code())))
	trailer.Set("grpc-message", percentEncodeMessage(st.Message()))
	c.stream.SetTrailer(trailer)
	c.stream.End()
	close(c.done)
}

// finishNoTrailers is the Cancelled terminal path: the peer is already
// gone, so no trailers frame is emitted, but the stream is still told to
// End so the transport's own per-stream bookkeeping (e.g. a session's
// in-flight wait group) isn't left hanging on a stream that will never
// otherwise signal completion.
func (c *ServerCall) finishNoTrailers() {
	c.mu.Lock()
	if c.finished {
		c.mu.Unlock()
		return
	}
	c.finished = true
	c.mu.Unlock()
	if c.deadlineTimer != nil {
		c.deadlineTimer.Stop()
	}
	c.stream.End()
	close(c.done)
}

// percentEncodeMessage encodes s for grpc-message: every byte outside
// 0x20-0x7E, plus '%' itself, is escaped as %XX.
func percentEncodeMessage(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '%' || ch < 0x20 || ch > 0x7E {
			fmt.Fprintf(&b, "%%%02X", ch)
		} else {
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// percentDecodeMessage reverses percentEncodeMessage.
func percentDecodeMessage(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			if n, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
				b.WriteByte(byte(n))
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
