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

// Package market implements the Market channel facade spec.md §4.E
// describes: spot and depth subscriptions, the cached spot quote, and the
// order book, layered on top of session and router.
package market

import (
	"sort"
	"sync"

	"github.com/geminik23/ctrader-fix/protocol"
	"github.com/shopspring/decimal"
)

// BookEntry is one row of an order book side, per spec.md §3.
type BookEntry struct {
	EntryID string
	Price   decimal.Decimal
	Size    decimal.Decimal
}

// BookSnapshot is an immutable copy of both sides of an OrderBook, safe
// to hand to a caller's handler without further locking.
type BookSnapshot struct {
	Bids []BookEntry
	Asks []BookEntry
}

// OrderBook holds two ordered sequences — bids descending, asks ascending
// — keyed by MDEntryID, per spec.md §3. Mutated by ApplySnapshot (full
// replace) and ApplyIncremental (new/change/delete by entry id).
type OrderBook struct {
	mu   sync.RWMutex
	bids []BookEntry
	asks []BookEntry
}

func NewOrderBook() *OrderBook {
	return &OrderBook{}
}

// ApplySnapshot replaces the book wholesale from a parsed
// MarketDataSnapshotFullRefresh's entries.
func (b *OrderBook) ApplySnapshot(entries []protocol.MDEntry) {
	var bids, asks []BookEntry
	for _, e := range entries {
		row := BookEntry{EntryID: e.EntryID, Price: e.Price, Size: e.Size}
		if e.EntryType == protocol.MDEntryTypeBid {
			bids = append(bids, row)
		} else {
			asks = append(asks, row)
		}
	}
	sortBids(bids)
	sortAsks(asks)

	b.mu.Lock()
	b.bids = bids
	b.asks = asks
	b.mu.Unlock()
}

// ApplyIncremental mutates the book in place from a parsed
// MarketDataIncrementalRefresh's entries, preserving the unique-id and
// monotonic-price invariants spec.md §3 names.
func (b *OrderBook) ApplyIncremental(entries []protocol.MDEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range entries {
		side := &b.bids
		if e.EntryType == protocol.MDEntryTypeOffer {
			side = &b.asks
		}
		switch e.UpdateAction {
		case protocol.MDUpdateActionDelete:
			*side = removeByID(*side, e.EntryID)
		case protocol.MDUpdateActionNew, protocol.MDUpdateActionChange:
			*side = upsert(*side, BookEntry{EntryID: e.EntryID, Price: e.Price, Size: e.Size})
		}
	}
	sortBids(b.bids)
	sortAsks(b.asks)
}

// Snapshot returns a defensive copy of both sides.
func (b *OrderBook) Snapshot() BookSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return BookSnapshot{
		Bids: append([]BookEntry{}, b.bids...),
		Asks: append([]BookEntry{}, b.asks...),
	}
}

func removeByID(rows []BookEntry, id string) []BookEntry {
	out := rows[:0:0]
	for _, r := range rows {
		if r.EntryID != id {
			out = append(out, r)
		}
	}
	return out
}

func upsert(rows []BookEntry, row BookEntry) []BookEntry {
	for i, r := range rows {
		if r.EntryID == row.EntryID {
			rows[i] = row
			return rows
		}
	}
	return append(rows, row)
}

func sortBids(rows []BookEntry) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Price.GreaterThan(rows[j].Price) })
}

func sortAsks(rows []BookEntry) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Price.LessThan(rows[j].Price) })
}
