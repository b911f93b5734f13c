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
	"strconv"

	"github.com/geminik23/ctrader-fix/internal/wire"
	"github.com/shopspring/decimal"
)

// RequestForPositions builds 35=AN for fetch_positions.
type RequestForPositions struct {
	PosReqID string
}

func (r RequestForPositions) MsgType() string { return MsgTypeRequestForPositions }

func (r RequestForPositions) Fields() []wire.Field {
	return []wire.Field{wire.F(TagPosReqID, r.PosReqID)}
}

// PositionReport is the parsed form of 35=AP.
type PositionReport struct {
	PosReqID           string
	PosMaintRptID      string
	Symbol             string
	LongQty            decimal.Decimal
	ShortQty           decimal.Decimal
	SettlPrice         decimal.Decimal
	TotalNumPosReports int
}

func ParsePositionReport(f *wire.Frame) PositionReport {
	p := PositionReport{}
	p.PosReqID, _ = f.Get(TagPosReqID)
	p.PosMaintRptID, _ = f.Get(TagPosMaintRptID)
	p.Symbol, _ = f.Get(TagSymbol)
	if v, ok := f.Get(TagLongQty); ok {
		p.LongQty, _ = decimal.NewFromString(v)
	}
	if v, ok := f.Get(TagShortQty); ok {
		p.ShortQty, _ = decimal.NewFromString(v)
	}
	if v, ok := f.Get(TagSettlPrice); ok {
		p.SettlPrice, _ = decimal.NewFromString(v)
	}
	if v, ok := f.Get(TagTotalNumPosReports); ok {
		p.TotalNumPosReports, _ = strconv.Atoi(v)
	}
	return p
}

// NetQty returns the signed open quantity: positive long, negative short.
// close_position and adjust_position_size (spec.md §4.E) use this to size
// the offsetting market order.
func (p PositionReport) NetQty() decimal.Decimal {
	return p.LongQty.Sub(p.ShortQty)
}
