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

package market

import (
	"context"
	"sync"
	"time"

	"github.com/geminik23/ctrader-fix/config"
	"github.com/geminik23/ctrader-fix/internal/wire"
	"github.com/geminik23/ctrader-fix/observability"
	"github.com/geminik23/ctrader-fix/protocol"
	"github.com/geminik23/ctrader-fix/router"
	"github.com/geminik23/ctrader-fix/session"
	"github.com/geminik23/ctrader-fix/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Handler is the MarketHandler interface spec.md §6 names.
type Handler interface {
	OnSpot(symbolID string, bid, ask decimal.Decimal)
	OnDepth(symbolID string, book BookSnapshot)
	OnDepthUpdate(symbolID string, diffs []BookEntry)
	OnMarketReject(mdReqID, reason string)
}

// SpotQuote is the cached latest bid/ask quote_spot reads from.
type SpotQuote struct {
	Bid decimal.Decimal
	Ask decimal.Decimal
}

type subKey struct {
	SymbolID string
	Kind     protocol.SubscriptionKind
}

// Channel is the Market channel facade spec.md §4.E describes: its own
// session engine, its own router, and the subscription/quote/book state
// that belongs only to this channel (spec.md §9: "no process-wide
// singletons").
type Channel struct {
	cfg    config.Channel
	logger *zap.Logger
	router *router.Router

	mu     sync.Mutex
	engine *session.Engine

	handlerMu sync.RWMutex
	handler   Handler

	subsMu sync.Mutex
	subs   map[subKey]string

	quotesMu sync.Mutex
	quotes   map[string]SpotQuote

	booksMu sync.Mutex
	books   map[string]*OrderBook

	store   *store.Store
	metrics *observability.Metrics
}

// SetStore installs a persistence layer that records every spot quote and
// depth entry this channel applies.
func (c *Channel) SetStore(s *store.Store) {
	c.store = s
}

// SetMetrics installs the Prometheus collectors this channel reports
// into: one inbound-sequence-gap counter, labeled "market", observed via
// the engine's WithSeqGapObserver hook on the next Connect.
func (c *Channel) SetMetrics(m *observability.Metrics) {
	c.metrics = m
}

// NewChannel constructs a disconnected Market channel.
func NewChannel(cfg config.Channel, logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{
		cfg:    cfg,
		logger: logger,
		router: router.New(logger),
		subs:   make(map[subKey]string),
		quotes: make(map[string]SpotQuote),
		books:  make(map[string]*OrderBook),
	}
}

// SetHandler installs the MarketHandler receiving on_spot/on_depth/
// on_depth_update/on_market_reject events.
func (c *Channel) SetHandler(h Handler) {
	c.handlerMu.Lock()
	c.handler = h
	c.handlerMu.Unlock()
}

func (c *Channel) currentHandler() Handler {
	c.handlerMu.RLock()
	defer c.handlerMu.RUnlock()
	return c.handler
}

// Connect opens the transport socket, per spec.md §4.C's
// Disconnected->Connecting row. logon() must follow before any request
// can be sent.
func (c *Channel) Connect(ctx context.Context) error {
	dialCfg := session.DialConfig{Host: c.cfg.Host, Port: c.cfg.Port, UseTLS: c.cfg.UseTLS}
	conn, err := session.Dial(dialCfg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	engineCfg := session.Config{
		SenderCompID:   c.cfg.SenderCompID,
		TargetCompID:   protocol.TargetCompID,
		SenderSubID:    protocol.SenderSubIDQuote,
		Username:       c.cfg.Username,
		Password:       c.cfg.Password,
		HeartBtInt:     c.cfg.HeartbeatS,
		RequestTimeout: c.cfg.RequestTimeout(),
	}
	opts := []session.Option{session.WithLogger(c.logger)}
	if c.metrics != nil {
		opts = append(opts, session.WithSeqGapObserver(func(expected, got int) {
			c.metrics.SeqGaps.WithLabelValues("market").Inc()
		}))
	}
	c.engine = session.NewEngine(engineCfg, conn, c, opts...)
	return nil
}

// Logon sends the Logon request and blocks until the peer's Logon
// arrives, is rejected, or ctx is done, per spec.md §4.C's Connecting row.
func (c *Channel) Logon(ctx context.Context) error {
	c.mu.Lock()
	engine := c.engine
	c.mu.Unlock()
	if engine == nil {
		return ErrNotConnected
	}
	return engine.Start(ctx)
}

// Logout sends a Logout and cancels every local subscription, per
// spec.md §5: "logout() cancels all subscriptions (no unsubscribe
// messages are required)."
func (c *Channel) Logout(reason string) error {
	c.mu.Lock()
	engine := c.engine
	c.mu.Unlock()
	if engine == nil {
		return ErrNotConnected
	}
	if err := engine.Logout(reason); err != nil {
		return err
	}
	c.clearLocalState()
	c.router.ClearSubscriptions()
	return nil
}

// Close tears the channel down unconditionally.
func (c *Channel) Close() {
	c.mu.Lock()
	engine := c.engine
	c.mu.Unlock()
	if engine != nil {
		engine.Close()
	}
}

// --- session.Handler ---

func (c *Channel) OnLogon() {}

func (c *Channel) OnLogout() {
	c.clearLocalState()
	c.router.FailAll(router.ErrDisconnected)
}

func (c *Channel) OnMessage(frame *wire.Frame) {
	c.router.Dispatch(frame)
}

func (c *Channel) OnDisconnect(err error) {
	c.clearLocalState()
	c.router.FailAll(err)
}

func (c *Channel) clearLocalState() {
	c.subsMu.Lock()
	c.subs = make(map[subKey]string)
	c.subsMu.Unlock()
}

// --- subscriptions ---

// SubscribeSpot implements spec.md §4.E's subscribe_spot.
func (c *Channel) SubscribeSpot(ctx context.Context, symbolID string) error {
	return c.subscribeCommon(ctx, symbolID, protocol.SubscriptionSpot)
}

// UnsubscribeSpot implements spec.md §4.E's unsubscribe_spot.
func (c *Channel) UnsubscribeSpot(ctx context.Context, symbolID string) error {
	return c.unsubscribeCommon(ctx, symbolID, protocol.SubscriptionSpot)
}

// SubscribeDepth implements spec.md §4.E's subscribe_depth.
func (c *Channel) SubscribeDepth(ctx context.Context, symbolID string) error {
	return c.subscribeCommon(ctx, symbolID, protocol.SubscriptionDepth)
}

// UnsubscribeDepth implements spec.md §4.E's unsubscribe_depth.
func (c *Channel) UnsubscribeDepth(ctx context.Context, symbolID string) error {
	return c.unsubscribeCommon(ctx, symbolID, protocol.SubscriptionDepth)
}

// QuoteSpot reads the latest cached snapshot, per spec.md §4.E's
// quote_spot: errors if never received.
func (c *Channel) QuoteSpot(symbolID string) (SpotQuote, error) {
	c.quotesMu.Lock()
	defer c.quotesMu.Unlock()
	q, ok := c.quotes[symbolID]
	if !ok {
		return SpotQuote{}, ErrNoQuote
	}
	return q, nil
}

func (c *Channel) bookFor(symbolID string) *OrderBook {
	c.booksMu.Lock()
	defer c.booksMu.Unlock()
	b, ok := c.books[symbolID]
	if !ok {
		b = NewOrderBook()
		c.books[symbolID] = b
	}
	return b
}

func (c *Channel) subscribeCommon(ctx context.Context, symbolID string, kind protocol.SubscriptionKind) error {
	key := subKey{SymbolID: symbolID, Kind: kind}
	c.subsMu.Lock()
	if _, exists := c.subs[key]; exists {
		c.subsMu.Unlock()
		return ErrSubscriptionActive
	}
	c.subsMu.Unlock()

	mdReqID := router.NewCorrelationID()
	var req protocol.MarketDataRequest
	if kind == protocol.SubscriptionSpot {
		req = protocol.NewSpotSubscribe(mdReqID, symbolID)
	} else {
		req = protocol.NewDepthSubscribe(mdReqID, symbolID)
	}

	snapshotKey := router.Key{MsgType: protocol.MsgTypeMarketDataSnapshotFullRefresh, CorrID: mdReqID}
	pending, ok := c.router.Pending().RegisterMulti([]router.Key{
		snapshotKey,
		{MsgType: protocol.MsgTypeMarketDataRequestReject, CorrID: mdReqID},
	}, time.Now().Add(c.cfg.RequestTimeout()))
	if !ok {
		return ErrSubscriptionActive
	}

	c.router.Subscribe(mdReqID, func(frame *wire.Frame) {
		c.handleMarketDataFrame(symbolID, kind, frame)
	})

	engine, err := c.engineOrError()
	if err != nil {
		c.router.Pending().Cancel(snapshotKey)
		c.router.Unsubscribe(mdReqID)
		return err
	}
	if err := engine.Send(req.MsgType(), req.Fields()); err != nil {
		c.router.Pending().Cancel(snapshotKey)
		c.router.Unsubscribe(mdReqID)
		return err
	}

	timer := time.NewTimer(c.cfg.RequestTimeout())
	defer timer.Stop()
	select {
	case result := <-pending.Done():
		if result.Err != nil {
			c.router.Unsubscribe(mdReqID)
			return result.Err
		}
		if result.Frame.MsgType == protocol.MsgTypeMarketDataRequestReject {
			rej := protocol.ParseMarketDataRequestReject(result.Frame)
			c.router.Unsubscribe(mdReqID)
			return &router.RequestRejectedError{Reason: rej.RejectReason, Text: rej.Text}
		}
	case <-timer.C:
		c.router.Pending().Cancel(snapshotKey)
		c.router.Unsubscribe(mdReqID)
		return router.ErrTimeout
	case <-ctx.Done():
		c.router.Pending().Cancel(snapshotKey)
		c.router.Unsubscribe(mdReqID)
		return ctx.Err()
	}

	c.subsMu.Lock()
	c.subs[key] = mdReqID
	c.subsMu.Unlock()
	return nil
}

func (c *Channel) unsubscribeCommon(ctx context.Context, symbolID string, kind protocol.SubscriptionKind) error {
	key := subKey{SymbolID: symbolID, Kind: kind}
	c.subsMu.Lock()
	mdReqID, exists := c.subs[key]
	if exists {
		delete(c.subs, key)
	}
	c.subsMu.Unlock()
	if !exists {
		return ErrNoSuchSubscription
	}

	req := protocol.NewUnsubscribe(mdReqID, symbolID)
	rejectKey := router.Key{MsgType: protocol.MsgTypeMarketDataRequestReject, CorrID: mdReqID}
	pending, ok := c.router.Pending().Register(rejectKey, time.Now().Add(c.cfg.RequestTimeout()))

	engine, err := c.engineOrError()
	if err != nil {
		c.router.Unsubscribe(mdReqID)
		return err
	}
	if err := engine.Send(req.MsgType(), req.Fields()); err != nil {
		if ok {
			c.router.Pending().Cancel(rejectKey)
		}
		c.router.Unsubscribe(mdReqID)
		return err
	}

	if !ok {
		// Extremely unlikely: some other pending was already keyed on this
		// id. Treat the unsubscribe as fired-and-forgotten rather than
		// block forever on a key we can't own.
		c.router.Unsubscribe(mdReqID)
		return nil
	}

	timer := time.NewTimer(c.cfg.RequestTimeout())
	defer timer.Stop()
	select {
	case result := <-pending.Done():
		c.router.Unsubscribe(mdReqID)
		if result.Frame != nil {
			rej := protocol.ParseMarketDataRequestReject(result.Frame)
			return &router.RequestRejectedError{Reason: rej.RejectReason, Text: rej.Text}
		}
		return result.Err
	case <-timer.C:
		// spec.md §9's open question: absence of a reject within the
		// timeout is treated as success.
		c.router.Pending().Cancel(rejectKey)
		c.router.Unsubscribe(mdReqID)
		return nil
	case <-ctx.Done():
		c.router.Pending().Cancel(rejectKey)
		c.router.Unsubscribe(mdReqID)
		return ctx.Err()
	}
}

func (c *Channel) engineOrError() (*session.Engine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine == nil {
		return nil, ErrNotConnected
	}
	return c.engine, nil
}

func (c *Channel) handleMarketDataFrame(symbolID string, kind protocol.SubscriptionKind, frame *wire.Frame) {
	switch frame.MsgType {
	case protocol.MsgTypeMarketDataSnapshotFullRefresh:
		snap := protocol.ParseMarketDataSnapshot(frame)
		if kind == protocol.SubscriptionSpot {
			c.applySpotSnapshot(symbolID, snap)
			return
		}
		book := c.bookFor(symbolID)
		book.ApplySnapshot(snap.Entries)
		c.persistDepthEntries(symbolID, snap.Entries, true)
		if h := c.currentHandler(); h != nil {
			h.OnDepth(symbolID, book.Snapshot())
		}
	case protocol.MsgTypeMarketDataIncrementalRefresh:
		refresh := protocol.ParseMarketDataIncrementalRefresh(frame)
		if kind == protocol.SubscriptionSpot {
			c.applySpotIncremental(symbolID, refresh)
			return
		}
		book := c.bookFor(symbolID)
		book.ApplyIncremental(refresh.Entries)
		c.persistDepthEntries(symbolID, refresh.Entries, false)
		diffs := make([]BookEntry, 0, len(refresh.Entries))
		for _, e := range refresh.Entries {
			diffs = append(diffs, BookEntry{EntryID: e.EntryID, Price: e.Price, Size: e.Size})
		}
		if h := c.currentHandler(); h != nil {
			h.OnDepthUpdate(symbolID, diffs)
		}
	case protocol.MsgTypeMarketDataRequestReject:
		rej := protocol.ParseMarketDataRequestReject(frame)
		c.logger.Warn("post-subscribe market data reject", zap.String("md_req_id", rej.MDReqID), zap.String("reason", rej.RejectReason))
		if h := c.currentHandler(); h != nil {
			h.OnMarketReject(rej.MDReqID, rej.RejectReason)
		}
	}
}

func (c *Channel) applySpotSnapshot(symbolID string, snap protocol.MarketDataSnapshot) {
	var bid, ask decimal.Decimal
	for _, e := range snap.Entries {
		if e.EntryType == protocol.MDEntryTypeBid {
			bid = e.Price
		} else {
			ask = e.Price
		}
	}
	c.quotesMu.Lock()
	c.quotes[symbolID] = SpotQuote{Bid: bid, Ask: ask}
	c.quotesMu.Unlock()
	c.persistSpotQuote(symbolID, bid, ask)
	if h := c.currentHandler(); h != nil {
		h.OnSpot(symbolID, bid, ask)
	}
}

func (c *Channel) persistSpotQuote(symbolID string, bid, ask decimal.Decimal) {
	if c.store == nil {
		return
	}
	if err := c.store.StoreSpotQuote(symbolID, bid, ask, time.Now()); err != nil {
		c.logger.Warn("store spot quote failed", zap.Error(err))
	}
}

func (c *Channel) persistDepthEntries(symbolID string, entries []protocol.MDEntry, isSnapshot bool) {
	if c.store == nil {
		return
	}
	for _, e := range entries {
		side := "bid"
		if e.EntryType == protocol.MDEntryTypeOffer {
			side = "ask"
		}
		if err := c.store.StoreDepthEntry(symbolID, side, e.EntryID, e.Price, e.Size, isSnapshot, time.Now()); err != nil {
			c.logger.Warn("store depth entry failed", zap.Error(err))
			return
		}
	}
}

func (c *Channel) applySpotIncremental(symbolID string, refresh protocol.MarketDataIncrementalRefresh) {
	c.quotesMu.Lock()
	q := c.quotes[symbolID]
	for _, e := range refresh.Entries {
		if e.UpdateAction == protocol.MDUpdateActionDelete {
			continue
		}
		if e.EntryType == protocol.MDEntryTypeBid {
			q.Bid = e.Price
		} else {
			q.Ask = e.Price
		}
	}
	c.quotes[symbolID] = q
	c.quotesMu.Unlock()
	c.persistSpotQuote(symbolID, q.Bid, q.Ask)
	if h := c.currentHandler(); h != nil {
		h.OnSpot(symbolID, q.Bid, q.Ask)
	}
}
