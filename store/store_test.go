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

package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/geminik23/ctrader-fix/protocol"
	"github.com/shopspring/decimal"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "ctrader-fix-test.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_StoreAndLatestSpotQuote(t *testing.T) {
	s := setupTestStore(t)

	bid := decimal.RequireFromString("1.2345")
	ask := decimal.RequireFromString("1.2346")
	if err := s.StoreSpotQuote("1", bid, ask, time.Now()); err != nil {
		t.Fatalf("StoreSpotQuote failed: %v", err)
	}

	gotBid, gotAsk, ok, err := s.LatestSpotQuote("1")
	if err != nil {
		t.Fatalf("LatestSpotQuote failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a stored quote, got none")
	}
	if !gotBid.Equal(bid) || !gotAsk.Equal(ask) {
		t.Fatalf("expected %s/%s, got %s/%s", bid, ask, gotBid, gotAsk)
	}
}

func TestStore_LatestSpotQuoteReturnsLatestNotFirst(t *testing.T) {
	s := setupTestStore(t)

	s1 := time.Now().Add(-time.Minute)
	s2 := time.Now()
	if err := s.StoreSpotQuote("1", decimal.RequireFromString("1.1000"), decimal.RequireFromString("1.1001"), s1); err != nil {
		t.Fatalf("StoreSpotQuote (first) failed: %v", err)
	}
	if err := s.StoreSpotQuote("1", decimal.RequireFromString("1.2000"), decimal.RequireFromString("1.2001"), s2); err != nil {
		t.Fatalf("StoreSpotQuote (second) failed: %v", err)
	}

	gotBid, gotAsk, ok, err := s.LatestSpotQuote("1")
	if err != nil {
		t.Fatalf("LatestSpotQuote failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a stored quote, got none")
	}
	if !gotBid.Equal(decimal.RequireFromString("1.2000")) || !gotAsk.Equal(decimal.RequireFromString("1.2001")) {
		t.Fatalf("expected the most recent quote 1.2000/1.2001, got %s/%s", gotBid, gotAsk)
	}
}

func TestStore_LatestSpotQuoteUnknownSymbol(t *testing.T) {
	s := setupTestStore(t)

	_, _, ok, err := s.LatestSpotQuote("nonexistent")
	if err != nil {
		t.Fatalf("LatestSpotQuote failed: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for a symbol with no stored quote")
	}
}

func TestStore_StoreDepthEntry(t *testing.T) {
	s := setupTestStore(t)

	err := s.StoreDepthEntry("2", "bid", "E1", decimal.RequireFromString("1.10"), decimal.RequireFromString("5"), true, time.Now())
	if err != nil {
		t.Fatalf("StoreDepthEntry (snapshot) failed: %v", err)
	}
	err = s.StoreDepthEntry("2", "ask", "E2", decimal.RequireFromString("1.12"), decimal.RequireFromString("3"), false, time.Now())
	if err != nil {
		t.Fatalf("StoreDepthEntry (incremental) failed: %v", err)
	}
}

func TestStore_StoreExecutionReport(t *testing.T) {
	s := setupTestStore(t)

	report := protocol.ExecutionReport{
		ClOrdID:   "cl-1",
		OrderID:   "ord-1",
		ExecID:    "exec-1",
		Symbol:    "1",
		Side:      protocol.SideBuy,
		OrdStatus: protocol.OrdStatusFilled,
		ExecType:  protocol.ExecTypeFilled,
		OrderQty:  decimal.RequireFromString("100000"),
		CumQty:    decimal.RequireFromString("100000"),
		LeavesQty: decimal.Zero,
		AvgPx:     decimal.RequireFromString("1.2345"),
		LastPx:    decimal.RequireFromString("1.2345"),
		LastQty:   decimal.RequireFromString("100000"),
	}
	if err := s.StoreExecutionReport(report, time.Now()); err != nil {
		t.Fatalf("StoreExecutionReport failed: %v", err)
	}
}
