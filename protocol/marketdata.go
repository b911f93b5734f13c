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

// MarketDataRequest builds 35=V for both the spot and depth flavours
// spec.md §4.E names. SubscriptionRequestType 1 (subscribe) always starts
// the bookkeeping; 2 (unsubscribe) reuses the original MDReqID.
type MarketDataRequest struct {
	MDReqID                  string
	SubscriptionRequestType  string
	MarketDepth              int
	MDUpdateType             string
	Symbols                  []string
	MDEntryTypes             []string
}

func (r MarketDataRequest) MsgType() string { return MsgTypeMarketDataRequest }

func (r MarketDataRequest) Fields() []wire.Field {
	fields := []wire.Field{
		wire.F(TagMDReqID, r.MDReqID),
		wire.F(TagSubscriptionRequestType, r.SubscriptionRequestType),
		wire.F(TagMarketDepth, strconv.Itoa(r.MarketDepth)),
	}
	if r.SubscriptionRequestType != SubscriptionRequestTypeUnsubscribe {
		fields = append(fields, wire.F(TagMDUpdateType, r.MDUpdateType))
	}
	fields = append(fields, wire.F(TagNoMDEntryTypes, strconv.Itoa(len(r.MDEntryTypes))))
	for _, et := range r.MDEntryTypes {
		fields = append(fields, wire.F(TagMDEntryType, et))
	}
	fields = append(fields, wire.F(TagNoRelatedSym, strconv.Itoa(len(r.Symbols))))
	for _, sym := range r.Symbols {
		fields = append(fields, wire.F(TagSymbol, sym))
	}
	return fields
}

// NewSpotSubscribe builds the MarketDataRequest spec.md §4.E defines for
// subscribe_spot: snapshot+updates, full refresh, depth 1, bid+offer.
func NewSpotSubscribe(mdReqID, symbolID string) MarketDataRequest {
	return MarketDataRequest{
		MDReqID:                 mdReqID,
		SubscriptionRequestType: SubscriptionRequestTypeSubscribe,
		MarketDepth:             1,
		MDUpdateType:            MDUpdateTypeFullRefresh,
		Symbols:                 []string{symbolID},
		MDEntryTypes:            []string{MDEntryTypeBid, MDEntryTypeOffer},
	}
}

// NewDepthSubscribe builds the MarketDataRequest for subscribe_depth:
// snapshot+updates, incremental refresh, full book, bid+offer.
func NewDepthSubscribe(mdReqID, symbolID string) MarketDataRequest {
	return MarketDataRequest{
		MDReqID:                 mdReqID,
		SubscriptionRequestType: SubscriptionRequestTypeSubscribe,
		MarketDepth:             0,
		MDUpdateType:            MDUpdateTypeIncremental,
		Symbols:                 []string{symbolID},
		MDEntryTypes:            []string{MDEntryTypeBid, MDEntryTypeOffer},
	}
}

// NewUnsubscribe builds the unsubscribe form of a prior request, reusing
// its original MDReqID and symbol, per spec.md §4.E.
func NewUnsubscribe(mdReqID, symbolID string) MarketDataRequest {
	return MarketDataRequest{
		MDReqID:                 mdReqID,
		SubscriptionRequestType: SubscriptionRequestTypeUnsubscribe,
		Symbols:                 []string{symbolID},
		MDEntryTypes:            []string{MDEntryTypeBid, MDEntryTypeOffer},
	}
}

// MDEntry is one row of a market-data snapshot or incremental refresh.
type MDEntry struct {
	EntryID     string
	EntryType   string
	UpdateAction string // only set on incremental refreshes
	Price       decimal.Decimal
	Size        decimal.Decimal
}

// MarketDataSnapshot is the parsed form of 35=W.
type MarketDataSnapshot struct {
	MDReqID  string
	SymbolID string
	Entries  []MDEntry
}

func ParseMarketDataSnapshot(f *wire.Frame) MarketDataSnapshot {
	s := MarketDataSnapshot{}
	s.MDReqID, _ = f.Get(TagMDReqID)
	s.SymbolID, _ = f.Get(TagSymbol)
	s.Entries = parseMDEntries(f, false)
	return s
}

// MarketDataIncrementalRefresh is the parsed form of 35=X.
type MarketDataIncrementalRefresh struct {
	MDReqID string
	Entries []MDEntry
}

func ParseMarketDataIncrementalRefresh(f *wire.Frame) MarketDataIncrementalRefresh {
	r := MarketDataIncrementalRefresh{}
	r.MDReqID, _ = f.Get(TagMDReqID)
	r.Entries = parseMDEntries(f, true)
	return r
}

// parseMDEntries walks the repeating NoMDEntries group. Each entry's
// fields lie contiguously between one TagMDEntryType and the next (or end
// of frame), mirroring the teacher's single-pass segment-boundary scan
// over "269=" occurrences, generalized to the full tag set per entry.
func parseMDEntries(f *wire.Frame, incremental bool) []MDEntry {
	var entries []MDEntry
	var cur *MDEntry
	for _, fld := range f.Body {
		switch fld.Tag {
		case TagMDEntryType:
			if cur != nil {
				entries = append(entries, *cur)
			}
			cur = &MDEntry{EntryType: fld.Value}
		case TagMDEntryID:
			if cur != nil {
				cur.EntryID = fld.Value
			}
		case TagMDUpdateAction:
			if cur != nil {
				cur.UpdateAction = fld.Value
			}
		case TagMDEntryPx:
			if cur != nil {
				cur.Price, _ = decimal.NewFromString(fld.Value)
			}
		case TagMDEntrySize:
			if cur != nil {
				cur.Size, _ = decimal.NewFromString(fld.Value)
			}
		}
	}
	if cur != nil {
		entries = append(entries, *cur)
	}
	return entries
}

// MarketDataRequestReject is the parsed form of 35=Y.
type MarketDataRequestReject struct {
	MDReqID      string
	RejectReason string
	Text         string
}

func ParseMarketDataRequestReject(f *wire.Frame) MarketDataRequestReject {
	r := MarketDataRequestReject{}
	r.MDReqID, _ = f.Get(TagMDReqID)
	r.RejectReason, _ = f.Get(TagMDReqRejReason)
	r.Text, _ = f.Get(TagText)
	return r
}
