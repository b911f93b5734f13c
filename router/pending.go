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

// Package router implements the correlation and dispatch layer spec.md
// §4.D names: matching inbound application frames to the pending request
// that is awaiting them, and delivering unsolicited frames to subscribers
// and taps. It has no notion of the wire format or the session state
// machine — those live one layer down, in wire and session.
package router

import (
	"sync"
	"time"

	"github.com/geminik23/ctrader-fix/internal/wire"
)

// Key identifies a pending completion by the response MsgType it is
// waiting for and the correlation id carried in that response, per
// spec.md §3's PendingCompletion type.
type Key struct {
	MsgType string
	CorrID  string
}

// Result is what a Pending resolves to: either a frame or an error, never
// both.
type Result struct {
	Frame *wire.Frame
	Err   error
}

// Pending is one outstanding request/response correlation. A subscribe
// request registers under two Keys at once (snapshot-or-reject, per
// spec.md §4.D's accept-check); whichever response arrives first resolves
// the single sink and both keys are removed together.
type Pending struct {
	Keys     []Key
	Deadline time.Time
	sink     chan Result
}

// Wait blocks until the pending resolves. Safe to call at most once per
// Pending, matching the single-buffered sink channel.
func (p *Pending) Wait() Result {
	return <-p.sink
}

// Done returns the channel Wait reads from, for callers that need to
// select on it alongside a deadline timer or context cancellation.
func (p *Pending) Done() <-chan Result {
	return p.sink
}

// PendingTable is the mutex-guarded pending map spec.md §4.D describes,
// plus the deadline bookkeeping for timeouts.
type PendingTable struct {
	mu    sync.Mutex
	table map[Key]*Pending
}

// NewPendingTable constructs an empty table.
func NewPendingTable() *PendingTable {
	return &PendingTable{table: make(map[Key]*Pending)}
}

// Register creates a Pending for a single key. Convenience wrapper over
// RegisterMulti for the common case (one expected response MsgType).
func (t *PendingTable) Register(key Key, deadline time.Time) (*Pending, bool) {
	return t.RegisterMulti([]Key{key}, deadline)
}

// RegisterMulti creates a Pending resolvable by any of keys — used when a
// request may be answered by more than one response MsgType (a
// MarketDataRequest subscribe completes on either a snapshot or a
// reject). Registration fails if any key is already in flight.
func (t *PendingTable) RegisterMulti(keys []Key, deadline time.Time) (*Pending, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, k := range keys {
		if _, exists := t.table[k]; exists {
			return nil, false
		}
	}
	p := &Pending{Keys: keys, Deadline: deadline, sink: make(chan Result, 1)}
	for _, k := range keys {
		t.table[k] = p
	}
	return p, true
}

// Complete resolves the pending registered under key with result and
// removes every key it was registered under. Reports whether a pending
// was found; false means the response is late/unsolicited.
func (t *PendingTable) Complete(key Key, result Result) bool {
	t.mu.Lock()
	p, ok := t.table[key]
	if ok {
		for _, k := range p.Keys {
			delete(t.table, k)
		}
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	p.sink <- result
	return true
}

// Cancel removes every key of the pending registered under key, without
// resolving its sink — used when the caller drops the awaitable before
// completion, per spec.md §9's cooperative-cancellation note. Atomic: the
// entries are gone from the table before Cancel returns.
func (t *PendingTable) Cancel(key Key) {
	t.mu.Lock()
	if p, ok := t.table[key]; ok {
		for _, k := range p.Keys {
			delete(t.table, k)
		}
	}
	t.mu.Unlock()
}

// FailAll resolves every outstanding pending with err and clears the
// table, per spec.md §4's "session loss fails every pending" rule.
func (t *PendingTable) FailAll(err error) {
	t.mu.Lock()
	stale := t.table
	t.table = make(map[Key]*Pending)
	t.mu.Unlock()

	seen := make(map[*Pending]bool, len(stale))
	for _, p := range stale {
		if seen[p] {
			continue
		}
		seen[p] = true
		p.sink <- Result{Err: err}
	}
}

// ExpireDue scans for pendings whose deadline has passed, removes them,
// and fails each with ErrTimeout. Callers run this from a ticking
// goroutine; it never blocks on I/O, per spec.md §5's resource model.
func (t *PendingTable) ExpireDue(now time.Time) {
	t.mu.Lock()
	due := make(map[*Pending]bool)
	for k, p := range t.table {
		if !now.Before(p.Deadline) {
			due[p] = true
			delete(t.table, k)
		}
	}
	t.mu.Unlock()
	for p := range due {
		p.sink <- Result{Err: ErrTimeout}
	}
}

// Len reports the number of in-flight correlation keys, for tests
// asserting spec.md §8's "no entry outlives its deadline" / "dropped
// awaitable leaves no entry" invariants.
func (t *PendingTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.table)
}
