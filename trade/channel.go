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

// Package trade implements the Trade channel facade spec.md §4.E
// describes: security discovery, order lifecycle (new/cancel/replace),
// order status, and position management, layered on top of session and
// router exactly as market does for the quote side.
package trade

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

// Handler is the TradeHandler interface spec.md §6 names. OnExecution and
// OnCancelReject fire for reports on the ClOrdID of an order-entry call
// (new, cancel, replace) while that call is waiting for its terminal
// report. Reports that arrive after the call has resolved, or for orders
// not placed through this channel, are not forwarded to the handler.
// OnDisconnected fires when the session drops.
type Handler interface {
	OnExecution(report protocol.ExecutionReport)
	OnCancelReject(reject protocol.OrderCancelReject)
	OnDisconnected(reason error)
}

type orderRecord struct {
	Symbol string
	Side   string
	Qty    decimal.Decimal
}

// Channel is the Trade channel facade: its own session engine, its own
// router, and the locally tracked open orders cancel_order/replace_order
// need to fill in Symbol/Side/OrderQty on the cancel/replace request.
type Channel struct {
	cfg    config.Channel
	logger *zap.Logger
	router *router.Router

	mu     sync.Mutex
	engine *session.Engine

	handlerMu sync.RWMutex
	handler   Handler

	ordersMu sync.Mutex
	orders   map[string]orderRecord

	store   *store.Store
	metrics *observability.Metrics
}

// SetMetrics installs the Prometheus collectors this channel reports
// into: one inbound-sequence-gap counter, labeled "trade", observed via
// the engine's WithSeqGapObserver hook on the next Connect.
func (c *Channel) SetMetrics(m *observability.Metrics) {
	c.metrics = m
}

// SetStore installs a persistence layer that records every ExecutionReport
// this channel sees, solicited or not, via a router tap, which the router
// runs for every ExecutionReport whether or not a call is waiting for it.
func (c *Channel) SetStore(s *store.Store) {
	c.store = s
	c.router.AddTap(func(frame *wire.Frame) {
		if frame.MsgType != protocol.MsgTypeExecutionReport {
			return
		}
		report := protocol.ParseExecutionReport(frame)
		if err := s.StoreExecutionReport(report, time.Now()); err != nil {
			c.logger.Warn("store execution report failed", zap.Error(err))
		}
	})
}

// NewChannel constructs a disconnected Trade channel.
func NewChannel(cfg config.Channel, logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{
		cfg:    cfg,
		logger: logger,
		router: router.New(logger),
		orders: make(map[string]orderRecord),
	}
}

// SetHandler installs the TradeHandler receiving on_execution/
// on_cancel_reject/on_disconnected events.
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
// Disconnected->Connecting row.
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
		SenderSubID:    protocol.SenderSubIDTrade,
		Username:       c.cfg.Username,
		Password:       c.cfg.Password,
		HeartBtInt:     c.cfg.HeartbeatS,
		RequestTimeout: c.cfg.RequestTimeout(),
	}
	opts := []session.Option{session.WithLogger(c.logger)}
	if c.metrics != nil {
		opts = append(opts, session.WithSeqGapObserver(func(expected, got int) {
			c.metrics.SeqGaps.WithLabelValues("trade").Inc()
		}))
	}
	c.engine = session.NewEngine(engineCfg, conn, c, opts...)
	return nil
}

// Logon sends the Logon request and blocks until the peer's Logon
// arrives, is rejected, or ctx is done.
func (c *Channel) Logon(ctx context.Context) error {
	c.mu.Lock()
	engine := c.engine
	c.mu.Unlock()
	if engine == nil {
		return ErrNotConnected
	}
	return engine.Start(ctx)
}

// Logout sends a Logout, per spec.md §4.C's LoggedOn->LoggingOut row.
func (c *Channel) Logout(reason string) error {
	c.mu.Lock()
	engine := c.engine
	c.mu.Unlock()
	if engine == nil {
		return ErrNotConnected
	}
	return engine.Logout(reason)
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
	c.router.FailAll(router.ErrDisconnected)
}

func (c *Channel) OnMessage(frame *wire.Frame) {
	c.router.Dispatch(frame)
}

func (c *Channel) OnDisconnect(err error) {
	c.router.FailAll(err)
	if h := c.currentHandler(); h != nil {
		h.OnDisconnected(err)
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

// --- security discovery ---

// FetchSecurityList implements spec.md §4.E's fetch_security_list.
func (c *Channel) FetchSecurityList(ctx context.Context) ([]protocol.Security, error) {
	reqID := router.NewCorrelationID()
	req := protocol.NewSecurityListRequest(reqID)

	deadline := time.Now().Add(c.cfg.RequestTimeout())
	pending, ok := c.router.RequestReply(protocol.MsgTypeSecurityListResponse, reqID, deadline)
	if !ok {
		return nil, router.ErrSubscriptionAlreadyActive
	}

	engine, err := c.engineOrError()
	if err != nil {
		c.router.Pending().Cancel(router.Key{MsgType: protocol.MsgTypeSecurityListResponse, CorrID: reqID})
		return nil, err
	}
	if err := engine.Send(req.MsgType(), req.Fields()); err != nil {
		c.router.Pending().Cancel(router.Key{MsgType: protocol.MsgTypeSecurityListResponse, CorrID: reqID})
		return nil, err
	}

	timer := time.NewTimer(c.cfg.RequestTimeout())
	defer timer.Stop()
	select {
	case result := <-pending.Done():
		if result.Err != nil {
			return nil, result.Err
		}
		resp := protocol.ParseSecurityListResponse(result.Frame)
		return resp.Securities, nil
	case <-timer.C:
		c.router.Pending().Cancel(router.Key{MsgType: protocol.MsgTypeSecurityListResponse, CorrID: reqID})
		return nil, router.ErrTimeout
	case <-ctx.Done():
		c.router.Pending().Cancel(router.Key{MsgType: protocol.MsgTypeSecurityListResponse, CorrID: reqID})
		return nil, ctx.Err()
	}
}

// --- positions ---

// FetchPositions implements spec.md §4.E's fetch_positions. A
// RequestForPositions can answer with more than one PositionReport (one
// per open symbol); the first both completes the pending and is the
// first delivery to a subscriber registered under the same PosReqID,
// mirroring market's subscribe-snapshot pattern. Collection stops once
// TotalNumPosReports reports have arrived, or the deadline passes.
func (c *Channel) FetchPositions(ctx context.Context) ([]protocol.PositionReport, error) {
	reqID := router.NewCorrelationID()
	req := protocol.RequestForPositions{PosReqID: reqID}
	key := router.Key{MsgType: protocol.MsgTypePositionReport, CorrID: reqID}

	deadline := time.Now().Add(c.cfg.RequestTimeout())
	pending, ok := c.router.Pending().Register(key, deadline)
	if !ok {
		return nil, router.ErrSubscriptionAlreadyActive
	}

	var mu sync.Mutex
	var reports []protocol.PositionReport
	allIn := make(chan struct{})
	var closeOnce sync.Once
	c.router.Subscribe(reqID, func(frame *wire.Frame) {
		report := protocol.ParsePositionReport(frame)
		mu.Lock()
		reports = append(reports, report)
		got := len(reports)
		mu.Unlock()
		if report.TotalNumPosReports > 0 && got >= report.TotalNumPosReports {
			closeOnce.Do(func() { close(allIn) })
		}
	})

	engine, err := c.engineOrError()
	if err != nil {
		c.router.Pending().Cancel(key)
		c.router.Unsubscribe(reqID)
		return nil, err
	}
	if err := engine.Send(req.MsgType(), req.Fields()); err != nil {
		c.router.Pending().Cancel(key)
		c.router.Unsubscribe(reqID)
		return nil, err
	}

	timer := time.NewTimer(c.cfg.RequestTimeout())
	defer timer.Stop()
	select {
	case result := <-pending.Done():
		if result.Err != nil {
			c.router.Unsubscribe(reqID)
			return nil, result.Err
		}
	case <-timer.C:
		c.router.Pending().Cancel(key)
		c.router.Unsubscribe(reqID)
		return nil, router.ErrTimeout
	case <-ctx.Done():
		c.router.Pending().Cancel(key)
		c.router.Unsubscribe(reqID)
		return nil, ctx.Err()
	}

	select {
	case <-allIn:
	case <-timer.C:
	case <-ctx.Done():
	}
	c.router.Unsubscribe(reqID)

	mu.Lock()
	defer mu.Unlock()
	return reports, nil
}

// --- order status ---

// FetchAllOrderStatus implements spec.md §4.E's fetch_all_order_status.
// Unlike the single-order flows below, cTrader answers an unfiltered
// OrderStatusRequest with one ExecutionReport per open order, each
// keyed by its own ClOrdID rather than the request's
// OrderStatusReqID — so these can't be pre-registered as a subscriber.
// The router's execution-report tap is the only hook that sees all of
// them; this collects for one request-timeout window and returns
// whatever arrived tagged with this call's OrderStatusReqID.
func (c *Channel) FetchAllOrderStatus(ctx context.Context) ([]protocol.ExecutionReport, error) {
	reqID := router.NewCorrelationID()
	req := protocol.OrderStatusRequest{OrderStatusReqID: reqID}

	var mu sync.Mutex
	var reports []protocol.ExecutionReport
	token := c.router.AddTap(func(frame *wire.Frame) {
		report := protocol.ParseExecutionReport(frame)
		if report.OrderStatusReqID != reqID {
			return
		}
		mu.Lock()
		reports = append(reports, report)
		mu.Unlock()
	})
	defer c.router.RemoveTap(token)

	engine, err := c.engineOrError()
	if err != nil {
		return nil, err
	}
	if err := engine.Send(req.MsgType(), req.Fields()); err != nil {
		return nil, err
	}

	timer := time.NewTimer(c.cfg.RequestTimeout())
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		mu.Lock()
		defer mu.Unlock()
		return reports, ctx.Err()
	}

	mu.Lock()
	defer mu.Unlock()
	return reports, nil
}

// --- order lifecycle ---

type terminalResult struct {
	report protocol.ExecutionReport
	err    error
}

// sendAndAwaitTerminal is the shape every order-entry call in spec.md
// §4.E shares: subscribe on the request's own ClOrdID, forward every
// ExecutionReport to the handler as it arrives, and resolve the call
// only once a terminal ExecType lands or an OrderCancelReject names the
// same ClOrdID.
func (c *Channel) sendAndAwaitTerminal(ctx context.Context, clOrdID, msgType string, fields []wire.Field) (protocol.ExecutionReport, error) {
	done := make(chan terminalResult, 1)
	c.router.Subscribe(clOrdID, func(frame *wire.Frame) {
		switch frame.MsgType {
		case protocol.MsgTypeExecutionReport:
			report := protocol.ParseExecutionReport(frame)
			if h := c.currentHandler(); h != nil {
				h.OnExecution(report)
			}
			if protocol.IsTerminalExecType(report.ExecType) {
				c.router.Unsubscribe(clOrdID)
				result := terminalResult{report: report}
				if report.ExecType == protocol.ExecTypeRejected || report.OrdStatus == protocol.OrdStatusRejected {
					result.err = &router.RequestRejectedError{Reason: report.OrdRejReason, Text: report.Text}
				}
				select {
				case done <- result:
				default:
				}
			}
		case protocol.MsgTypeOrderCancelReject:
			reject := protocol.ParseOrderCancelReject(frame)
			if h := c.currentHandler(); h != nil {
				h.OnCancelReject(reject)
			}
			c.router.Unsubscribe(clOrdID)
			select {
			case done <- terminalResult{err: &router.RequestRejectedError{Reason: reject.CxlRejReason, Text: reject.Text}}:
			default:
			}
		}
	})

	engine, err := c.engineOrError()
	if err != nil {
		c.router.Unsubscribe(clOrdID)
		return protocol.ExecutionReport{}, err
	}
	if err := engine.Send(msgType, fields); err != nil {
		c.router.Unsubscribe(clOrdID)
		return protocol.ExecutionReport{}, err
	}

	timer := time.NewTimer(c.cfg.RequestTimeout())
	defer timer.Stop()
	select {
	case result := <-done:
		return result.report, result.err
	case <-timer.C:
		c.router.Unsubscribe(clOrdID)
		return protocol.ExecutionReport{}, router.ErrTimeout
	case <-ctx.Done():
		c.router.Unsubscribe(clOrdID)
		return protocol.ExecutionReport{}, ctx.Err()
	}
}

func (c *Channel) trackOrder(clOrdID, symbol, side string, qty decimal.Decimal) {
	c.ordersMu.Lock()
	c.orders[clOrdID] = orderRecord{Symbol: symbol, Side: side, Qty: qty}
	c.ordersMu.Unlock()
}

func (c *Channel) orderRecordFor(clOrdID string) (orderRecord, bool) {
	c.ordersMu.Lock()
	defer c.ordersMu.Unlock()
	rec, ok := c.orders[clOrdID]
	return rec, ok
}

func (c *Channel) rechainOrder(oldClOrdID, newClOrdID string, rec orderRecord) {
	c.ordersMu.Lock()
	delete(c.orders, oldClOrdID)
	c.orders[newClOrdID] = rec
	c.ordersMu.Unlock()
}

// NewMarketOrder implements spec.md §4.E's new_market_order.
func (c *Channel) NewMarketOrder(ctx context.Context, symbol, side string, qty decimal.Decimal) (protocol.ExecutionReport, error) {
	return c.newOrder(ctx, protocol.NewOrderSingle{Symbol: symbol, Side: side, OrderQty: qty, OrdType: protocol.OrdTypeMarket})
}

// NewLimitOrder implements spec.md §4.E's new_limit_order.
func (c *Channel) NewLimitOrder(ctx context.Context, symbol, side string, qty, price decimal.Decimal) (protocol.ExecutionReport, error) {
	return c.newOrder(ctx, protocol.NewOrderSingle{Symbol: symbol, Side: side, OrderQty: qty, OrdType: protocol.OrdTypeLimit, Price: price})
}

// NewStopOrder implements spec.md §4.E's new_stop_order.
func (c *Channel) NewStopOrder(ctx context.Context, symbol, side string, qty, stopPx decimal.Decimal) (protocol.ExecutionReport, error) {
	return c.newOrder(ctx, protocol.NewOrderSingle{Symbol: symbol, Side: side, OrderQty: qty, OrdType: protocol.OrdTypeStop, StopPx: stopPx})
}

func (c *Channel) newOrder(ctx context.Context, req protocol.NewOrderSingle) (protocol.ExecutionReport, error) {
	req.ClOrdID = router.NewCorrelationID()
	c.trackOrder(req.ClOrdID, req.Symbol, req.Side, req.OrderQty)
	report, err := c.sendAndAwaitTerminal(ctx, req.ClOrdID, req.MsgType(), req.Fields())
	if report.OrdStatus == protocol.OrdStatusRejected || report.OrdStatus == protocol.OrdStatusCanceled || report.OrdStatus == protocol.OrdStatusExpired {
		c.ordersMu.Lock()
		delete(c.orders, req.ClOrdID)
		c.ordersMu.Unlock()
	}
	return report, err
}

// CancelOrder implements spec.md §4.E's cancel_order. origClOrdID is the
// ClOrdID of the order to cancel, as returned by the call that placed or
// last replaced it.
func (c *Channel) CancelOrder(ctx context.Context, origClOrdID string) (protocol.ExecutionReport, error) {
	rec, ok := c.orderRecordFor(origClOrdID)
	if !ok {
		return protocol.ExecutionReport{}, ErrNoSuchOrder
	}
	req := protocol.OrderCancelRequest{
		ClOrdID:     router.NewCorrelationID(),
		OrigClOrdID: origClOrdID,
		Symbol:      rec.Symbol,
		Side:        rec.Side,
		OrderQty:    rec.Qty,
	}
	report, err := c.sendAndAwaitTerminal(ctx, req.ClOrdID, req.MsgType(), req.Fields())
	if err != nil {
		return report, err
	}
	c.ordersMu.Lock()
	delete(c.orders, origClOrdID)
	c.ordersMu.Unlock()
	return report, nil
}

// ReplaceOrder implements spec.md §4.E's replace_order. hasPrice
// distinguishes "leave price unchanged" from "set price to zero".
func (c *Channel) ReplaceOrder(ctx context.Context, origClOrdID string, newQty decimal.Decimal, newPrice decimal.Decimal, hasPrice bool) (protocol.ExecutionReport, error) {
	rec, ok := c.orderRecordFor(origClOrdID)
	if !ok {
		return protocol.ExecutionReport{}, ErrNoSuchOrder
	}
	ordType := protocol.OrdTypeMarket
	if hasPrice {
		ordType = protocol.OrdTypeLimit
	}
	req := protocol.OrderCancelReplaceRequest{
		ClOrdID:     router.NewCorrelationID(),
		OrigClOrdID: origClOrdID,
		Symbol:      rec.Symbol,
		Side:        rec.Side,
		OrderQty:    newQty,
		Price:       newPrice,
		HasPrice:    hasPrice,
		OrdType:     ordType,
	}
	report, err := c.sendAndAwaitTerminal(ctx, req.ClOrdID, req.MsgType(), req.Fields())
	if err != nil {
		return report, err
	}
	c.rechainOrder(origClOrdID, req.ClOrdID, orderRecord{Symbol: rec.Symbol, Side: rec.Side, Qty: newQty})
	return report, nil
}

// --- positions: adjust/close ---

func (c *Channel) positionFor(ctx context.Context, symbol string) (protocol.PositionReport, error) {
	positions, err := c.FetchPositions(ctx)
	if err != nil {
		return protocol.PositionReport{}, err
	}
	for _, p := range positions {
		if p.Symbol == symbol {
			return p, nil
		}
	}
	return protocol.PositionReport{Symbol: symbol}, nil
}

// AdjustPositionSize implements spec.md §4.E's adjust_position_size: a
// market order on whichever side moves the current net position toward
// targetQty (positive = net long, negative = net short).
func (c *Channel) AdjustPositionSize(ctx context.Context, symbol string, targetQty decimal.Decimal) (protocol.ExecutionReport, error) {
	pos, err := c.positionFor(ctx, symbol)
	if err != nil {
		return protocol.ExecutionReport{}, err
	}
	diff := targetQty.Sub(pos.NetQty())
	if diff.IsZero() {
		return protocol.ExecutionReport{Symbol: symbol, OrdStatus: protocol.OrdStatusFilled}, nil
	}
	side := protocol.SideBuy
	if diff.IsNegative() {
		side = protocol.SideSell
	}
	return c.NewMarketOrder(ctx, symbol, side, diff.Abs())
}

// ClosePosition implements spec.md §4.E's close_position: an opposite-
// side market order for the full open quantity.
func (c *Channel) ClosePosition(ctx context.Context, symbol string) (protocol.ExecutionReport, error) {
	pos, err := c.positionFor(ctx, symbol)
	if err != nil {
		return protocol.ExecutionReport{}, err
	}
	net := pos.NetQty()
	if net.IsZero() {
		return protocol.ExecutionReport{Symbol: symbol, OrdStatus: protocol.OrdStatusFilled}, nil
	}
	side := protocol.SideSell
	if net.IsNegative() {
		side = protocol.SideBuy
	}
	return c.NewMarketOrder(ctx, symbol, side, net.Abs())
}
