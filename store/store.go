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

// Package store provides SQLite-backed persistence for the Market and
// Trade channels: spot quotes, depth entries, and execution reports,
// with prepared statements reused across the lifetime of the process the
// way the teacher's own market-data database does.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/geminik23/ctrader-fix/protocol"
	"github.com/shopspring/decimal"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS spot_quotes (
	symbol_id  TEXT NOT NULL,
	bid        TEXT NOT NULL,
	ask        TEXT NOT NULL,
	observed_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_spot_quotes_symbol ON spot_quotes(symbol_id, observed_at);

CREATE TABLE IF NOT EXISTS depth_entries (
	symbol_id   TEXT NOT NULL,
	side        TEXT NOT NULL,
	entry_id    TEXT NOT NULL,
	price       TEXT NOT NULL,
	size        TEXT NOT NULL,
	is_snapshot INTEGER NOT NULL,
	observed_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_depth_entries_symbol ON depth_entries(symbol_id, observed_at);

CREATE TABLE IF NOT EXISTS execution_reports (
	cl_ord_id     TEXT NOT NULL,
	orig_cl_ord_id TEXT,
	order_id      TEXT,
	exec_id       TEXT,
	symbol        TEXT,
	side          TEXT,
	ord_status    TEXT,
	exec_type     TEXT,
	order_qty     TEXT,
	cum_qty       TEXT,
	leaves_qty    TEXT,
	avg_px        TEXT,
	last_px       TEXT,
	last_qty      TEXT,
	observed_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_execution_reports_cl_ord_id ON execution_reports(cl_ord_id);
`

const (
	insertSpotQuoteQuery = `INSERT INTO spot_quotes (symbol_id, bid, ask, observed_at) VALUES (?, ?, ?, ?)`

	insertDepthEntryQuery = `INSERT INTO depth_entries (symbol_id, side, entry_id, price, size, is_snapshot, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	insertExecutionReportQuery = `INSERT INTO execution_reports
		(cl_ord_id, orig_cl_ord_id, order_id, exec_id, symbol, side, ord_status, exec_type,
		 order_qty, cum_qty, leaves_qty, avg_px, last_px, last_qty, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	latestSpotQuoteQuery = `SELECT bid, ask FROM spot_quotes WHERE symbol_id = ? ORDER BY observed_at DESC LIMIT 1`
)

// Store wraps a SQLite connection with prepared statements for each
// table this client writes to, initialized once at construction and
// reused for every insert.
type Store struct {
	db *sql.DB

	stmtSpotQuote        *sql.Stmt
	stmtDepthEntry       *sql.Stmt
	stmtExecutionReport  *sql.Stmt
}

// Open creates (or attaches to) a SQLite database at dbPath and ensures
// its schema exists. WAL mode matches the teacher's own tuning for a
// single-writer, many-reader workload.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000")
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}

	s := &Store{db: db}
	if s.stmtSpotQuote, err = db.Prepare(insertSpotQuoteQuery); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: prepare spot quote statement: %w", err)
	}
	if s.stmtDepthEntry, err = db.Prepare(insertDepthEntryQuery); err != nil {
		_ = s.stmtSpotQuote.Close()
		_ = db.Close()
		return nil, fmt.Errorf("store: prepare depth entry statement: %w", err)
	}
	if s.stmtExecutionReport, err = db.Prepare(insertExecutionReportQuery); err != nil {
		_ = s.stmtSpotQuote.Close()
		_ = s.stmtDepthEntry.Close()
		_ = db.Close()
		return nil, fmt.Errorf("store: prepare execution report statement: %w", err)
	}
	return s, nil
}

// Close releases the prepared statements and the underlying connection.
func (s *Store) Close() error {
	if s.stmtSpotQuote != nil {
		_ = s.stmtSpotQuote.Close()
	}
	if s.stmtDepthEntry != nil {
		_ = s.stmtDepthEntry.Close()
	}
	if s.stmtExecutionReport != nil {
		_ = s.stmtExecutionReport.Close()
	}
	return s.db.Close()
}

// StoreSpotQuote persists one on_spot observation.
func (s *Store) StoreSpotQuote(symbolID string, bid, ask decimal.Decimal, observedAt time.Time) error {
	_, err := s.stmtSpotQuote.Exec(symbolID, bid.String(), ask.String(), observedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// LatestSpotQuote reads back the most recently stored quote for symbolID,
// for a caller reconnecting and wanting its last-known price ahead of
// the first fresh snapshot.
func (s *Store) LatestSpotQuote(symbolID string) (bid, ask decimal.Decimal, ok bool, err error) {
	row := s.db.QueryRow(latestSpotQuoteQuery, symbolID)
	var bidStr, askStr string
	if scanErr := row.Scan(&bidStr, &askStr); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return decimal.Decimal{}, decimal.Decimal{}, false, nil
		}
		return decimal.Decimal{}, decimal.Decimal{}, false, scanErr
	}
	bid, err = decimal.NewFromString(bidStr)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, false, err
	}
	ask, err = decimal.NewFromString(askStr)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, false, err
	}
	return bid, ask, true, nil
}

// StoreDepthEntry persists one row of a depth snapshot or incremental
// update. side is "bid" or "ask"; isSnapshot distinguishes a full
// replace from an incremental new/change/delete.
func (s *Store) StoreDepthEntry(symbolID, side, entryID string, price, size decimal.Decimal, isSnapshot bool, observedAt time.Time) error {
	_, err := s.stmtDepthEntry.Exec(symbolID, side, entryID, price.String(), size.String(), isSnapshot, observedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// StoreExecutionReport persists one ExecutionReport, solicited or not —
// the Trade channel calls this from its on_execution tap so every fill
// and state change is recorded regardless of which call (if any)
// originated it.
func (s *Store) StoreExecutionReport(report protocol.ExecutionReport, observedAt time.Time) error {
	_, err := s.stmtExecutionReport.Exec(
		report.ClOrdID, report.OrigClOrdID, report.OrderID, report.ExecID, report.Symbol, report.Side,
		report.OrdStatus, report.ExecType,
		report.OrderQty.String(), report.CumQty.String(), report.LeavesQty.String(),
		report.AvgPx.String(), report.LastPx.String(), report.LastQty.String(),
		observedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}
