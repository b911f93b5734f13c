package protocol

import (
	"testing"

	"github.com/geminik23/ctrader-fix/internal/wire"
	"github.com/shopspring/decimal"
)

func encodeRoundTrip(t *testing.T, msgType string, body []wire.Field) *wire.Frame {
	t.Helper()
	frame := wire.Encode(msgType, nil, body)
	decoded, n, err := wire.Decode(frame)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if n != len(frame) {
		t.Fatalf("expected full consumption, got %d of %d", n, len(frame))
	}
	return decoded
}

func TestMarketDataRequest_SpotSubscribeFieldsRoundTrip(t *testing.T) {
	req := NewSpotSubscribe("R1", "1")
	frame := encodeRoundTrip(t, req.MsgType(), req.Fields())

	if v, _ := frame.Get(TagMDReqID); v != "R1" {
		t.Fatalf("expected MDReqID R1, got %q", v)
	}
	if v, _ := frame.Get(TagSubscriptionRequestType); v != SubscriptionRequestTypeSubscribe {
		t.Fatalf("expected subscribe type, got %q", v)
	}
	if v, _ := frame.Get(TagMarketDepth); v != "1" {
		t.Fatalf("expected MarketDepth 1 for spot, got %q", v)
	}
	if v, _ := frame.Get(TagMDUpdateType); v != MDUpdateTypeFullRefresh {
		t.Fatalf("expected full refresh for spot, got %q", v)
	}
}

func TestMarketDataRequest_DepthSubscribeUsesFullBookAndIncremental(t *testing.T) {
	req := NewDepthSubscribe("R2", "2")
	frame := encodeRoundTrip(t, req.MsgType(), req.Fields())

	if v, _ := frame.Get(TagMarketDepth); v != "0" {
		t.Fatalf("expected MarketDepth 0 (full book) for depth, got %q", v)
	}
	if v, _ := frame.Get(TagMDUpdateType); v != MDUpdateTypeIncremental {
		t.Fatalf("expected incremental refresh for depth, got %q", v)
	}
}

func TestMarketDataRequest_UnsubscribeReusesOriginalIDAndOmitsUpdateType(t *testing.T) {
	req := NewUnsubscribe("R1", "1")
	for _, f := range req.Fields() {
		if f.Tag == TagMDUpdateType {
			t.Fatalf("unsubscribe should not carry MDUpdateType")
		}
	}
	if req.MDReqID != "R1" {
		t.Fatalf("expected unsubscribe to reuse MDReqID R1, got %s", req.MDReqID)
	}
	if req.SubscriptionRequestType != SubscriptionRequestTypeUnsubscribe {
		t.Fatalf("expected unsubscribe type")
	}
}

func TestParseMarketDataSnapshot_ParsesEachEntry(t *testing.T) {
	body := []wire.Field{
		wire.F(TagMDReqID, "R1"),
		wire.F(TagSymbol, "1"),
		wire.F(TagNoMDEntries, "2"),
		wire.F(TagMDEntryType, MDEntryTypeBid),
		wire.F(TagMDEntryPx, "1.2345"),
		wire.F(TagMDEntrySize, "1000000"),
		wire.F(TagMDEntryType, MDEntryTypeOffer),
		wire.F(TagMDEntryPx, "1.2346"),
		wire.F(TagMDEntrySize, "1000000"),
	}
	frame := encodeRoundTrip(t, MsgTypeMarketDataSnapshotFullRefresh, body)

	snap := ParseMarketDataSnapshot(frame)
	if snap.MDReqID != "R1" || snap.SymbolID != "1" {
		t.Fatalf("unexpected header fields: %+v", snap)
	}
	if len(snap.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(snap.Entries))
	}
	wantBid := decimal.RequireFromString("1.2345")
	if !snap.Entries[0].Price.Equal(wantBid) {
		t.Fatalf("expected bid price 1.2345, got %s", snap.Entries[0].Price)
	}
	wantAsk := decimal.RequireFromString("1.2346")
	if !snap.Entries[1].Price.Equal(wantAsk) {
		t.Fatalf("expected ask price 1.2346, got %s", snap.Entries[1].Price)
	}
}

func TestParseMarketDataIncrementalRefresh_ParsesUpdateAction(t *testing.T) {
	body := []wire.Field{
		wire.F(TagMDReqID, "R2"),
		wire.F(TagMDEntryType, MDEntryTypeOffer),
		wire.F(TagMDUpdateAction, MDUpdateActionNew),
		wire.F(TagMDEntryID, "E3"),
		wire.F(TagMDEntryPx, "1.11"),
		wire.F(TagMDEntrySize, "2"),
		wire.F(TagMDEntryType, MDEntryTypeOffer),
		wire.F(TagMDUpdateAction, MDUpdateActionDelete),
		wire.F(TagMDEntryID, "E2"),
	}
	frame := encodeRoundTrip(t, MsgTypeMarketDataIncrementalRefresh, body)

	refresh := ParseMarketDataIncrementalRefresh(frame)
	if len(refresh.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(refresh.Entries))
	}
	if refresh.Entries[0].UpdateAction != MDUpdateActionNew || refresh.Entries[0].EntryID != "E3" {
		t.Fatalf("unexpected first entry: %+v", refresh.Entries[0])
	}
	if refresh.Entries[1].UpdateAction != MDUpdateActionDelete || refresh.Entries[1].EntryID != "E2" {
		t.Fatalf("unexpected second entry: %+v", refresh.Entries[1])
	}
}

func TestIsTerminalExecType(t *testing.T) {
	cases := map[string]bool{
		ExecTypeNew:         true,
		ExecTypeCanceled:    true,
		ExecTypeRejected:    true,
		ExecTypeReplaced:    true,
		ExecTypePartialFill: false,
		ExecTypeFilled:      false,
	}
	for execType, want := range cases {
		if got := IsTerminalExecType(execType); got != want {
			t.Errorf("IsTerminalExecType(%q) = %v, want %v", execType, got, want)
		}
	}
}

func TestParseExecutionReport_RejectCarriesReasonCode(t *testing.T) {
	body := []wire.Field{
		wire.F(TagClOrdID, "C1"),
		wire.F(TagOrdStatus, OrdStatusRejected),
		wire.F(TagExecType, ExecTypeRejected),
		wire.F(TagOrdRejReason, "4"),
		wire.F(TagText, "too late to enter"),
	}
	frame := encodeRoundTrip(t, MsgTypeExecutionReport, body)

	rpt := ParseExecutionReport(frame)
	if rpt.OrdRejReason != "4" {
		t.Fatalf("expected reject reason 4, got %q", rpt.OrdRejReason)
	}
	if !IsTerminalExecType(rpt.ExecType) {
		t.Fatalf("expected rejected exec type to be terminal")
	}
}

func TestPositionReport_NetQtyIsLongMinusShort(t *testing.T) {
	p := PositionReport{
		LongQty:  decimal.RequireFromString("1000"),
		ShortQty: decimal.RequireFromString("400"),
	}
	want := decimal.RequireFromString("600")
	if !p.NetQty().Equal(want) {
		t.Fatalf("expected net qty 600, got %s", p.NetQty())
	}
}
