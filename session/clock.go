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

// Package session implements the FIX session engine spec.md §4.C names as
// the core of this client: framing over a net.Conn, the logon/logout state
// machine, sequence number discipline, and the heartbeat/test-request
// timer. It has no notion of market data, orders, or correlation ids —
// those live in router, market, and trade, one layer up.
package session

import "time"

// Clock abstracts time.Now so the heartbeat/test-request timer can be
// driven deterministically in tests, per spec.md §4.C.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the default Clock, backed by time.Now.
var SystemClock Clock = systemClock{}
