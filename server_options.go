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
	"fmt"
	"time"

	"github.com/latticerpc/grpc/credentials"
	"github.com/latticerpc/grpc/keepalive"
)

const (
	defaultMaxFrameSize         = 16384 // the HTTP/2 default
	defaultKeepaliveTime        = 2 * time.Hour
	defaultKeepaliveTimeout     = 20 * time.Second
	defaultMaxReceiveMsgSize    = 4 * 1024 * 1024
	noLimit                     = -1
)

// serverOptions is the resolved configuration a Server is built from,
// spec.md §3's Options enumeration plus the credentials a ServerOption
// also carries.
type serverOptions struct {
	maxConcurrentStreams    uint32
	maxFrameSize            uint32
	keepaliveTime           time.Duration
	keepaliveTimeout        time.Duration
	maxSendMessageLength    int
	maxReceiveMessageLength int
	creds                   credentials.TransportCredentials
}

func defaultServerOptions() serverOptions {
	return serverOptions{
		maxFrameSize:            defaultMaxFrameSize,
		keepaliveTime:           defaultKeepaliveTime,
		keepaliveTimeout:        defaultKeepaliveTimeout,
		maxSendMessageLength:    noLimit,
		maxReceiveMessageLength: defaultMaxReceiveMsgSize,
		creds:                   credentials.NewInsecure(),
	}
}

// ServerOption configures a Server at construction time.
type ServerOption func(*serverOptions)

// MaxConcurrentStreams limits the number of concurrent streams a single
// HTTP/2 connection may have open.
func MaxConcurrentStreams(n uint32) ServerOption {
	return func(o *serverOptions) { o.maxConcurrentStreams = n }
}

// MaxFrameSize sets the largest HTTP/2 frame the server will read.
func MaxFrameSize(n uint32) ServerOption {
	return func(o *serverOptions) { o.maxFrameSize = n }
}

// KeepaliveParams sets the keepalive PING interval and timeout.
func KeepaliveParams(kp keepalive.ServerParameters) ServerOption {
	return func(o *serverOptions) {
		if kp.Time > 0 {
			o.keepaliveTime = kp.Time
		}
		if kp.Timeout > 0 {
			o.keepaliveTimeout = kp.Timeout
		}
	}
}

// MaxSendMsgSize sets the largest serialized message the server will
// send; n == -1 means no limit.
func MaxSendMsgSize(n int) ServerOption {
	return func(o *serverOptions) { o.maxSendMessageLength = n }
}

// MaxRecvMsgSize sets the largest serialized message the server will
// accept; n == -1 means no limit.
func MaxRecvMsgSize(n int) ServerOption {
	return func(o *serverOptions) { o.maxReceiveMessageLength = n }
}

// Creds sets the transport credentials a Server binds with. The default
// is insecure.
func Creds(c credentials.TransportCredentials) ServerOption {
	return func(o *serverOptions) { o.creds = c }
}

// wireOptionKeys maps the grpc.-prefixed, process-visible option names
// (spec.md §3/§6) onto the typed ServerOption constructors above, for
// hosts that configure a Server from a string-keyed map (a config file or
// environment) rather than Go call sites.
var wireOptionKeys = map[string]func(v any) (ServerOption, error){
	"grpc.max_concurrent_streams": func(v any) (ServerOption, error) {
		n, err := wireInt(v)
		if err != nil {
			return nil, err
		}
		return MaxConcurrentStreams(uint32(n)), nil
	},
	"grpc.http2.max_frame_size": func(v any) (ServerOption, error) {
		n, err := wireInt(v)
		if err != nil {
			return nil, err
		}
		return MaxFrameSize(uint32(n)), nil
	},
	"grpc.keepalive_time_ms": func(v any) (ServerOption, error) {
		n, err := wireInt(v)
		if err != nil {
			return nil, err
		}
		return KeepaliveParams(keepalive.ServerParameters{Time: time.Duration(n) * time.Millisecond}), nil
	},
	"grpc.keepalive_timeout_ms": func(v any) (ServerOption, error) {
		n, err := wireInt(v)
		if err != nil {
			return nil, err
		}
		return KeepaliveParams(keepalive.ServerParameters{Timeout: time.Duration(n) * time.Millisecond}), nil
	},
	"grpc.max_send_message_length": func(v any) (ServerOption, error) {
		n, err := wireInt(v)
		if err != nil {
			return nil, err
		}
		return MaxSendMsgSize(n), nil
	},
	"grpc.max_receive_message_length": func(v any) (ServerOption, error) {
		n, err := wireInt(v)
		if err != nil {
			return nil, err
		}
		return MaxRecvMsgSize(n), nil
	},
}

func wireInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("grpc: option value %v (%T) is not a number", v, v)
	}
}

// ParseOptions translates a string-keyed option map into ServerOptions,
// failing on any key not in wireOptionKeys (spec.md §3 "Unknown option
// keys are a construction error").
func ParseOptions(m map[string]any) ([]ServerOption, error) {
	opts := make([]ServerOption, 0, len(m))
	for k, v := range m {
		build, ok := wireOptionKeys[k]
		if !ok {
			return nil, fmt.Errorf("grpc: unknown option %q", k)
		}
		opt, err := build(v)
		if err != nil {
			return nil, fmt.Errorf("grpc: option %q: %w", k, err)
		}
		opts = append(opts, opt)
	}
	return opts, nil
}
