/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package session

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"
)

// DialConfig carries only the transport-level knobs spec.md §6 fixes as an
// external collaborator's interface: an ordered, reliable byte stream,
// optionally TLS-wrapped.
type DialConfig struct {
	Host    string
	Port    int
	UseTLS  bool
	Timeout time.Duration
}

// Dial opens the TCP (optionally TLS) connection a channel's Engine runs
// the FIX session over.
func Dial(cfg DialConfig) (net.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if !cfg.UseTLS {
		return net.DialTimeout("tcp", addr, timeout)
	}
	dialer := &net.Dialer{Timeout: timeout}
	return tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: cfg.Host})
}
