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

package protocol

import (
	"time"

	"github.com/geminik23/ctrader-fix/internal/wire"
	"github.com/shopspring/decimal"
)

// NewOrderSingle builds 35=D for new_market_order/new_limit_order/new_stop_order.
type NewOrderSingle struct {
	ClOrdID     string
	Symbol      string
	Side        string
	OrderQty    decimal.Decimal
	OrdType     string
	Price       decimal.Decimal
	StopPx      decimal.Decimal
	TimeInForce string
}

func (o NewOrderSingle) MsgType() string { return MsgTypeNewOrderSingle }

func (o NewOrderSingle) Fields() []wire.Field {
	fields := []wire.Field{
		wire.F(TagClOrdID, o.ClOrdID),
		wire.F(TagSymbol, o.Symbol),
		wire.F(TagSide, o.Side),
		wire.F(TagTransactTime, time.Now().UTC().Format(TimeFormat)),
		wire.F(TagOrderQty, o.OrderQty.String()),
		wire.F(TagOrdType, o.OrdType),
	}
	if o.OrdType == OrdTypeLimit || o.OrdType == OrdTypeStopLimit {
		fields = append(fields, wire.F(TagPrice, o.Price.String()))
	}
	if o.OrdType == OrdTypeStop || o.OrdType == OrdTypeStopLimit {
		fields = append(fields, wire.F(TagStopPx, o.StopPx.String()))
	}
	tif := o.TimeInForce
	if tif == "" {
		tif = TimeInForceGTC
	}
	fields = append(fields, wire.F(TagTimeInForce, tif))
	return fields
}

// TimeFormat is the FIX SendingTime/TransactTime layout, UTC.
const TimeFormat = "20060102-15:04:05.000"

// OrderCancelRequest builds 35=F for cancel_order.
type OrderCancelRequest struct {
	ClOrdID    string
	OrigClOrdID string
	Symbol     string
	Side       string
	OrderQty   decimal.Decimal
}

func (c OrderCancelRequest) MsgType() string { return MsgTypeOrderCancelRequest }

func (c OrderCancelRequest) Fields() []wire.Field {
	return []wire.Field{
		wire.F(TagOrigClOrdID, c.OrigClOrdID),
		wire.F(TagClOrdID, c.ClOrdID),
		wire.F(TagSymbol, c.Symbol),
		wire.F(TagSide, c.Side),
		wire.F(TagTransactTime, time.Now().UTC().Format(TimeFormat)),
		wire.F(TagOrderQty, c.OrderQty.String()),
	}
}

// OrderCancelReplaceRequest builds 35=G for replace_order. Price is sent
// only when HasPrice is set; with HasPrice false the price is left
// unchanged (new_price? in spec.md §4.E is optional).
type OrderCancelReplaceRequest struct {
	ClOrdID     string
	OrigClOrdID string
	Symbol      string
	Side        string
	OrderQty    decimal.Decimal
	Price       decimal.Decimal
	HasPrice    bool
	OrdType     string
}

func (r OrderCancelReplaceRequest) MsgType() string { return MsgTypeOrderCancelReplaceRequest }

func (r OrderCancelReplaceRequest) Fields() []wire.Field {
	fields := []wire.Field{
		wire.F(TagOrigClOrdID, r.OrigClOrdID),
		wire.F(TagClOrdID, r.ClOrdID),
		wire.F(TagSymbol, r.Symbol),
		wire.F(TagSide, r.Side),
		wire.F(TagTransactTime, time.Now().UTC().Format(TimeFormat)),
		wire.F(TagOrderQty, r.OrderQty.String()),
		wire.F(TagOrdType, r.OrdType),
	}
	if r.HasPrice {
		fields = append(fields, wire.F(TagPrice, r.Price.String()))
	}
	return fields
}

// OrderStatusRequest builds 35=H for fetch_all_order_status.
type OrderStatusRequest struct {
	OrderStatusReqID string
	ClOrdID          string
	Symbol           string
	Side             string
}

func (r OrderStatusRequest) MsgType() string { return MsgTypeOrderStatusRequest }

func (r OrderStatusRequest) Fields() []wire.Field {
	fields := []wire.Field{wire.F(TagOrderStatusReqID, r.OrderStatusReqID)}
	if r.ClOrdID != "" {
		fields = append(fields, wire.F(TagClOrdID, r.ClOrdID))
	}
	if r.Symbol != "" {
		fields = append(fields, wire.F(TagSymbol, r.Symbol), wire.F(TagSide, r.Side))
	}
	return fields
}

// ExecutionReport is the parsed form of 35=8, the terminal response to
// NewOrderSingle/OrderCancelRequest/OrderCancelReplaceRequest and the
// unsolicited fill/state-change notification spec.md §9 describes.
type ExecutionReport struct {
	ClOrdID          string
	OrigClOrdID      string
	OrderID          string
	ExecID           string
	OrderStatusReqID string
	Symbol           string
	Side             string
	OrdStatus        string
	ExecType         string
	OrderQty         decimal.Decimal
	CumQty           decimal.Decimal
	LeavesQty        decimal.Decimal
	AvgPx            decimal.Decimal
	LastPx           decimal.Decimal
	LastQty          decimal.Decimal
	OrdRejReason     string
	Text             string
}

func ParseExecutionReport(f *wire.Frame) ExecutionReport {
	e := ExecutionReport{}
	e.ClOrdID, _ = f.Get(TagClOrdID)
	e.OrigClOrdID, _ = f.Get(TagOrigClOrdID)
	e.OrderID, _ = f.Get(TagOrderID)
	e.ExecID, _ = f.Get(TagExecID)
	e.OrderStatusReqID, _ = f.Get(TagOrderStatusReqID)
	e.Symbol, _ = f.Get(TagSymbol)
	e.Side, _ = f.Get(TagSide)
	e.OrdStatus, _ = f.Get(TagOrdStatus)
	e.ExecType, _ = f.Get(TagExecType)
	e.OrdRejReason, _ = f.Get(TagOrdRejReason)
	e.Text, _ = f.Get(TagText)
	if v, ok := f.Get(TagOrderQty); ok {
		e.OrderQty, _ = decimal.NewFromString(v)
	}
	if v, ok := f.Get(TagCumQty); ok {
		e.CumQty, _ = decimal.NewFromString(v)
	}
	if v, ok := f.Get(TagLeavesQty); ok {
		e.LeavesQty, _ = decimal.NewFromString(v)
	}
	if v, ok := f.Get(TagAvgPx); ok {
		e.AvgPx, _ = decimal.NewFromString(v)
	}
	if v, ok := f.Get(TagLastPx); ok {
		e.LastPx, _ = decimal.NewFromString(v)
	}
	if v, ok := f.Get(TagLastQty); ok {
		e.LastQty, _ = decimal.NewFromString(v)
	}
	return e
}

// OrderCancelReject is the parsed form of 35=9.
type OrderCancelReject struct {
	ClOrdID          string
	OrigClOrdID      string
	OrderID          string
	OrdStatus        string
	CxlRejReason     string
	CxlRejResponseTo string
	Text             string
}

func ParseOrderCancelReject(f *wire.Frame) OrderCancelReject {
	r := OrderCancelReject{}
	r.ClOrdID, _ = f.Get(TagClOrdID)
	r.OrigClOrdID, _ = f.Get(TagOrigClOrdID)
	r.OrderID, _ = f.Get(TagOrderID)
	r.OrdStatus, _ = f.Get(TagOrdStatus)
	r.CxlRejReason, _ = f.Get(TagCxlRejReason)
	r.CxlRejResponseTo, _ = f.Get(TagCxlRejResponseTo)
	r.Text, _ = f.Get(TagText)
	return r
}
