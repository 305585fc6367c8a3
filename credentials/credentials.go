/*
 *
 * Copyright 2016 gRPC authors.
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

// Package credentials defines the two transport credential variants a
// Server may bind with: insecure, and TLS built from a ready-made
// *tls.Config (certificate parsing itself is the caller's job).
package credentials // import "github.com/latticerpc/grpc/credentials"

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// SecurityLevel defines the protection level on an established connection.
type SecurityLevel int

const (
	// InvalidSecurityLevel indicates an invalid security level.
	InvalidSecurityLevel SecurityLevel = iota
	// NoSecurity indicates a connection is not authenticated or encrypted.
	NoSecurity
	// IntegrityOnly indicates a connection only provides integrity protection.
	IntegrityOnly
	// PrivacyAndIntegrity indicates a connection provides both privacy and
	// integrity protection.
	PrivacyAndIntegrity
)

func (s SecurityLevel) String() string {
	switch s {
	case NoSecurity:
		return "NoSecurity"
	case IntegrityOnly:
		return "IntegrityOnly"
	case PrivacyAndIntegrity:
		return "PrivacyAndIntegrity"
	default:
		return "InvalidSecurityLevel"
	}
}

// CommonAuthInfo embeds the SecurityLevel common to every AuthInfo
// implementation.
type CommonAuthInfo struct {
	SecurityLevel SecurityLevel
}

// GetCommonAuthInfo returns the CommonAuthInfo struct embedded in the
// implementing type's struct, allowing AuthInfo implementations that embed
// CommonAuthInfo to satisfy an interface that wants to read it.
func (c CommonAuthInfo) GetCommonAuthInfo() CommonAuthInfo { return c }

// AuthInfo defines the common interface for authentication information
// attached to a connection after a handshake.
type AuthInfo interface {
	AuthType() string
}

// CheckSecurityLevel checks if a connection's AuthInfo meets at least the
// given security level; an AuthInfo without a discoverable level is
// assumed to meet it (since it cannot be proven otherwise).
func CheckSecurityLevel(ai AuthInfo, level SecurityLevel) error {
	type internalInfo interface {
		GetCommonAuthInfo() CommonAuthInfo
	}
	ci, ok := ai.(internalInfo)
	if !ok {
		return nil
	}
	if ci.GetCommonAuthInfo().SecurityLevel == InvalidSecurityLevel {
		return nil
	}
	if ci.GetCommonAuthInfo().SecurityLevel < level {
		return fmt.Errorf("requires SecurityLevel %s; connection has %s", level, ci.GetCommonAuthInfo().SecurityLevel)
	}
	return nil
}

// TLSInfo is the AuthInfo produced by a TLS handshake.
type TLSInfo struct {
	State tls.ConnectionState
	CommonAuthInfo
}

// AuthType returns "tls".
func (TLSInfo) AuthType() string { return "tls" }

// ProtocolInfo describes the transport protocol a TransportCredentials
// implements.
type ProtocolInfo struct {
	SecurityProtocol string
	SecurityVersion  string
}

// TransportCredentials does the handshake for a server half of a
// connection, and reports whether the resulting transport is secure.
type TransportCredentials interface {
	// ServerHandshake upgrades conn (typically performing a TLS
	// handshake) and returns the wrapped connection and its AuthInfo.
	ServerHandshake(conn net.Conn) (net.Conn, AuthInfo, error)
	// Info reports static protocol information.
	Info() ProtocolInfo
	// Clone makes a copy of this TransportCredentials.
	Clone() TransportCredentials
	// IsSecure reports whether this credential performs any handshake at
	// all; it is the Server's basis for choosing a plaintext versus TLS
	// listener and for the default port (80 vs 443) in target resolution.
	IsSecure() bool
}

// NewInsecure returns a TransportCredentials that performs no handshake at
// all: connections are used as-is.
func NewInsecure() TransportCredentials { return insecureCreds{} }

type insecureCreds struct{}

func (insecureCreds) ServerHandshake(conn net.Conn) (net.Conn, AuthInfo, error) {
	return conn, insecureAuthInfo{}, nil
}
func (insecureCreds) Info() ProtocolInfo { return ProtocolInfo{SecurityProtocol: "insecure"} }
func (insecureCreds) Clone() TransportCredentials { return insecureCreds{} }
func (insecureCreds) IsSecure() bool              { return false }

type insecureAuthInfo struct{ CommonAuthInfo }

func (insecureAuthInfo) AuthType() string { return "insecure" }

// tlsCreds wraps a ready-made *tls.Config; TLS certificate loading is the
// caller's concern (NewServerTLSFromFile is a convenience for the common
// file-on-disk case, not the only way to build one).
type tlsCreds struct {
	config *tls.Config
}

// NewTLS constructs TransportCredentials from a pre-built *tls.Config. A
// nil config is treated as an empty one, matching crypto/tls's own
// zero-value semantics.
func NewTLS(cfg *tls.Config) TransportCredentials {
	if cfg == nil {
		cfg = &tls.Config{}
	}
	c := cfg.Clone()
	if len(c.NextProtos) == 0 {
		c.NextProtos = []string{"h2"}
	}
	return &tlsCreds{config: c}
}

// NewServerTLSFromFile constructs TLS TransportCredentials from a
// certificate/key pair on disk.
func NewServerTLSFromFile(certFile, keyFile string) (TransportCredentials, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, err
	}
	return NewTLS(&tls.Config{Certificates: []tls.Certificate{cert}}), nil
}

// NewServerTLSFromCertPairs builds server TLS credentials from one or more
// already-loaded key/certificate-chain pairs plus an optional CA pool used
// to verify client certificates, matching spec's secure-credentials model:
// root CAs, one or more key/cert pairs, a request-client-cert flag, and an
// optional cipher suite override. A nil rootCAs falls back to the PEM
// bundle named by GRPC_DEFAULT_SSL_ROOTS_FILE_PATH, and an empty
// cipherSuites falls back to the colon-separated list named by
// GRPC_SSL_CIPHER_SUITES, per spec.md §6.
func NewServerTLSFromCertPairs(pairs []tls.Certificate, rootCAs *x509.CertPool, requestClientCert bool, cipherSuites []uint16) (TransportCredentials, error) {
	if len(pairs) == 0 {
		return nil, errors.New("credentials: at least one certificate/key pair is required")
	}
	if len(cipherSuites) == 0 {
		envSuites, err := defaultCipherSuitesFromEnv()
		if err != nil {
			return nil, err
		}
		cipherSuites = envSuites
	}
	cfg := &tls.Config{
		Certificates: pairs,
		CipherSuites: cipherSuites,
	}
	if requestClientCert {
		if rootCAs == nil {
			envRoots, err := defaultRootCAsFromEnv()
			if err != nil {
				return nil, err
			}
			rootCAs = envRoots
		}
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
		cfg.ClientCAs = rootCAs
	}
	return NewTLS(cfg), nil
}

// defaultRootCAsFromEnv loads a PEM CA bundle from
// GRPC_DEFAULT_SSL_ROOTS_FILE_PATH, returning a nil pool (not an error) when
// the variable is unset, so callers that omit rootCAs with no env var set
// fall through to crypto/tls's own platform root pool.
func defaultRootCAsFromEnv() (*x509.CertPool, error) {
	path := os.Getenv("GRPC_DEFAULT_SSL_ROOTS_FILE_PATH")
	if path == "" {
		return nil, nil
	}
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("credentials: reading GRPC_DEFAULT_SSL_ROOTS_FILE_PATH: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("credentials: %s contained no usable PEM certificates", path)
	}
	return pool, nil
}

// defaultCipherSuitesFromEnv parses the colon-separated cipher suite names
// in GRPC_SSL_CIPHER_SUITES (e.g. "TLS_RSA_WITH_AES_128_GCM_SHA256:..."),
// matching them by name against every suite crypto/tls knows of, secure or
// not. An unset variable yields a nil slice, leaving crypto/tls's default
// suite selection untouched.
func defaultCipherSuitesFromEnv() ([]uint16, error) {
	raw := os.Getenv("GRPC_SSL_CIPHER_SUITES")
	if raw == "" {
		return nil, nil
	}
	byName := make(map[string]uint16)
	for _, cs := range tls.CipherSuites() {
		byName[cs.Name] = cs.ID
	}
	for _, cs := range tls.InsecureCipherSuites() {
		byName[cs.Name] = cs.ID
	}
	names := strings.Split(raw, ":")
	suites := make([]uint16, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		id, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("credentials: unknown cipher suite %q in GRPC_SSL_CIPHER_SUITES", name)
		}
		suites = append(suites, id)
	}
	return suites, nil
}

func (c *tlsCreds) ServerHandshake(rawConn net.Conn) (net.Conn, AuthInfo, error) {
	conn := tls.Server(rawConn, c.config)
	if err := conn.HandshakeContext(context.Background()); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, TLSInfo{
		State:          conn.ConnectionState(),
		CommonAuthInfo: CommonAuthInfo{SecurityLevel: PrivacyAndIntegrity},
	}, nil
}

func (c *tlsCreds) Info() ProtocolInfo {
	return ProtocolInfo{SecurityProtocol: "tls", SecurityVersion: "1.2"}
}

func (c *tlsCreds) Clone() TransportCredentials {
	return &tlsCreds{config: c.config.Clone()}
}

func (c *tlsCreds) IsSecure() bool { return true }
