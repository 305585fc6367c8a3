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

// Package resolver turns the small listen-target grammar a Server binds to
// (host:port, bare host, dns:, unix:, unix:///, bare port) into a
// net.Listen-ready network and address pair.
package resolver

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ListenAddr is a resolved (network, address) pair ready for net.Listen.
type ListenAddr struct {
	Network string // "tcp" or "unix"
	Address string
}

// Resolve parses target per the listen-target grammar:
//
//	host:port                    TCP, IPv4 and bracketed IPv6
//	host                         TCP, port defaults from secure
//	dns:host[:port]              same as host[:port], prefix stripped
//	dns:///host[:port]           same as above
//	unix:/absolute/path          Unix domain socket, absolute or relative
//	unix:relative/path           Unix domain socket, absolute or relative
//	unix:///absolute/path        Unix domain socket, path MUST be absolute
//	port (numeric, no host)      treated as localhost:port
func Resolve(target string, secure bool) (ListenAddr, error) {
	switch {
	case strings.HasPrefix(target, "unix://"):
		path := strings.TrimPrefix(target, "unix://")
		if !strings.HasPrefix(path, "/") {
			return ListenAddr{}, fmt.Errorf("resolver: unix:// target %q requires an absolute path", target)
		}
		return ListenAddr{Network: "unix", Address: path}, nil
	case strings.HasPrefix(target, "unix:"):
		path := strings.TrimPrefix(target, "unix:")
		return ListenAddr{Network: "unix", Address: path}, nil
	case strings.HasPrefix(target, "dns:///"):
		return resolveHostPort(strings.TrimPrefix(target, "dns:///"), secure)
	case strings.HasPrefix(target, "dns:"):
		return resolveHostPort(strings.TrimPrefix(target, "dns:"), secure)
	default:
		return resolveHostPort(target, secure)
	}
}

func resolveHostPort(hostport string, secure bool) (ListenAddr, error) {
	if hostport == "" {
		return ListenAddr{}, fmt.Errorf("resolver: empty target")
	}
	if port, err := strconv.Atoi(hostport); err == nil {
		return ListenAddr{Network: "tcp", Address: net.JoinHostPort("localhost", strconv.Itoa(port))}, nil
	}
	if host, port, err := net.SplitHostPort(hostport); err == nil {
		return ListenAddr{Network: "tcp", Address: net.JoinHostPort(host, port)}, nil
	}
	// Bare host, no port: default from the security of the credentials.
	defaultPort := "80"
	if secure {
		defaultPort = "443"
	}
	return ListenAddr{Network: "tcp", Address: net.JoinHostPort(hostport, defaultPort)}, nil
}
