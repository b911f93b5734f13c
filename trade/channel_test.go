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

package trade

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/geminik23/ctrader-fix/config"
	"github.com/geminik23/ctrader-fix/internal/wire"
	"github.com/geminik23/ctrader-fix/protocol"
	"github.com/geminik23/ctrader-fix/router"
	"github.com/geminik23/ctrader-fix/session"
	"github.com/shopspring/decimal"
)

type spyHandler struct {
	executions    []protocol.ExecutionReport
	cancelRejects []protocol.OrderCancelReject
}

func newSpyHandler() *spyHandler { return &spyHandler{} }

func (h *spyHandler) OnExecution(report protocol.ExecutionReport) {
	h.executions = append(h.executions, report)
}
func (h *spyHandler) OnCancelReject(reject protocol.OrderCancelReject) {
	h.cancelRejects = append(h.cancelRejects, reject)
}
func (h *spyHandler) OnDisconnected(reason error) {}

func newTestChannelWithPeer(t *testing.T) (*Channel, net.Conn) {
	t.Helper()
	clientConn, peerConn := net.Pipe()
	cfg := config.Channel{
		Host:             "test",
		Port:             0,
		SenderCompID:     "CLIENT",
		HeartbeatS:       30,
		RequestTimeoutMS: 2000,
	}
	ch := NewChannel(cfg, nil)
	engineCfg := session.Config{
		SenderCompID: cfg.SenderCompID,
		TargetCompID: protocol.TargetCompID,
		SenderSubID:  protocol.SenderSubIDTrade,
		HeartBtInt:   cfg.HeartbeatS,
	}
	ch.engine = session.NewEngine(engineCfg, clientConn, ch)
	t.Cleanup(ch.Close)
	return ch, peerConn
}

func peerReadFrame(t *testing.T, conn net.Conn) *wire.Frame {
	t.Helper()
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)
	for {
		n, err := conn.Read(tmp)
		if err != nil {
			t.Fatalf("peer read: %v", err)
		}
		buf = append(buf, tmp[:n]...)
		frame, _, decErr := wire.Decode(buf)
		if decErr != nil {
			t.Fatalf("peer decode: %v", decErr)
		}
		if frame != nil {
			return frame
		}
	}
}

func peerSendLogon(t *testing.T, conn net.Conn) {
	t.Helper()
	header := []wire.Field{
		wire.F(protocol.TagSenderCompID, "cServer"),
		wire.F(protocol.TagTargetCompID, "CLIENT"),
		wire.F(protocol.TagMsgSeqNum, "1"),
	}
	logon := protocol.Logon{HeartBtInt: 30}
	frame := wire.Encode(logon.MsgType(), header, logon.Fields())
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("peer write logon: %v", err)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func peerSend(t *testing.T, conn net.Conn, seq int, msgType string, body []wire.Field) {
	t.Helper()
	header := []wire.Field{
		wire.F(protocol.TagSenderCompID, "cServer"),
		wire.F(protocol.TagTargetCompID, "CLIENT"),
		wire.F(protocol.TagMsgSeqNum, itoa(seq)),
	}
	frame := wire.Encode(msgType, header, body)
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("peer write %s: %v", msgType, err)
	}
}

func logOnTestChannel(t *testing.T, ch *Channel, peer net.Conn) {
	t.Helper()
	go func() { _ = ch.Logon(context.Background()) }()
	_ = peerReadFrame(t, peer) // initial Logon
	peerSendLogon(t, peer)

	deadline := time.Now().Add(2 * time.Second)
	for ch.engine.State() != session.StateLoggedOn {
		if time.Now().After(deadline) {
			t.Fatal("engine never reached StateLoggedOn")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestChannel_NewMarketOrderResolvesOnTerminalAckAndNotifiesHandler(t *testing.T) {
	ch, peer := newTestChannelWithPeer(t)
	defer peer.Close()
	logOnTestChannel(t, ch, peer)

	h := newSpyHandler()
	ch.SetHandler(h)

	resultCh := make(chan struct {
		report protocol.ExecutionReport
		err    error
	}, 1)
	go func() {
		report, err := ch.NewMarketOrder(context.Background(), "1", protocol.SideBuy, decimal.RequireFromString("100000"))
		resultCh <- struct {
			report protocol.ExecutionReport
			err    error
		}{report, err}
	}()

	req := peerReadFrame(t, peer)
	if req.MsgType != protocol.MsgTypeNewOrderSingle {
		t.Fatalf("expected NewOrderSingle, got %q", req.MsgType)
	}
	clOrdID, _ := req.Get(protocol.TagClOrdID)

	// Intermediate "pending new" acknowledgment: PendingNew is not a
	// terminal ExecType, so it must be forwarded but must not resolve the
	// call.
	peerSend(t, peer, 2, protocol.MsgTypeExecutionReport, []wire.Field{
		wire.F(protocol.TagClOrdID, clOrdID),
		wire.F(protocol.TagSymbol, "1"),
		wire.F(protocol.TagSide, protocol.SideBuy),
		wire.F(protocol.TagOrdStatus, protocol.OrdStatusPendingNew),
		wire.F(protocol.TagExecType, protocol.ExecTypePendingNew),
	})

	select {
	case res := <-resultCh:
		t.Fatalf("NewMarketOrder resolved early on a non-terminal ack: %+v", res)
	case <-time.After(100 * time.Millisecond):
	}

	peerSend(t, peer, 3, protocol.MsgTypeExecutionReport, []wire.Field{
		wire.F(protocol.TagClOrdID, clOrdID),
		wire.F(protocol.TagSymbol, "1"),
		wire.F(protocol.TagSide, protocol.SideBuy),
		wire.F(protocol.TagOrdStatus, protocol.OrdStatusNew),
		wire.F(protocol.TagExecType, protocol.ExecTypeNew),
		wire.F(protocol.TagCumQty, "0"),
	})

	select {
	case res := <-resultCh:
		if res.err != nil {
			t.Fatalf("NewMarketOrder failed: %v", res.err)
		}
		if res.report.OrdStatus != protocol.OrdStatusNew {
			t.Fatalf("expected terminal status New, got %q", res.report.OrdStatus)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for NewMarketOrder to resolve")
	}

	if len(h.executions) != 2 {
		t.Fatalf("expected both acks forwarded to the handler, got %d", len(h.executions))
	}
}

func TestChannel_CancelOrderRejectSurfacesRequestRejectedError(t *testing.T) {
	ch, peer := newTestChannelWithPeer(t)
	defer peer.Close()
	logOnTestChannel(t, ch, peer)

	// Seed a locally tracked order the way a prior NewMarketOrder would.
	ch.trackOrder("orig-1", "1", protocol.SideBuy, decimal.RequireFromString("100000"))

	resultCh := make(chan error, 1)
	go func() {
		_, err := ch.CancelOrder(context.Background(), "orig-1")
		resultCh <- err
	}()

	req := peerReadFrame(t, peer)
	if req.MsgType != protocol.MsgTypeOrderCancelRequest {
		t.Fatalf("expected OrderCancelRequest, got %q", req.MsgType)
	}
	clOrdID, _ := req.Get(protocol.TagClOrdID)

	peerSend(t, peer, 2, protocol.MsgTypeOrderCancelReject, []wire.Field{
		wire.F(protocol.TagClOrdID, clOrdID),
		wire.F(protocol.TagOrigClOrdID, "orig-1"),
		wire.F(protocol.TagCxlRejReason, "0"),
		wire.F(protocol.TagCxlRejResponseTo, protocol.CxlRejResponseToCancel),
	})

	select {
	case err := <-resultCh:
		if err == nil {
			t.Fatal("expected CancelOrder to fail on OrderCancelReject")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for CancelOrder")
	}
}

// Scenario 5 (spec.md §8): a terminal Rejected ExecutionReport must fail
// the placing call with RequestRejectedError, not resolve it as a success.
func TestChannel_NewLimitOrderRejectedExecutionReportSurfacesRequestRejectedError(t *testing.T) {
	ch, peer := newTestChannelWithPeer(t)
	defer peer.Close()
	logOnTestChannel(t, ch, peer)

	h := newSpyHandler()
	ch.SetHandler(h)

	resultCh := make(chan struct {
		report protocol.ExecutionReport
		err    error
	}, 1)
	go func() {
		report, err := ch.NewLimitOrder(context.Background(), "1", protocol.SideBuy, decimal.RequireFromString("100000"), decimal.RequireFromString("1.1000"))
		resultCh <- struct {
			report protocol.ExecutionReport
			err    error
		}{report, err}
	}()

	req := peerReadFrame(t, peer)
	if req.MsgType != protocol.MsgTypeNewOrderSingle {
		t.Fatalf("expected NewOrderSingle, got %q", req.MsgType)
	}
	clOrdID, _ := req.Get(protocol.TagClOrdID)

	peerSend(t, peer, 2, protocol.MsgTypeExecutionReport, []wire.Field{
		wire.F(protocol.TagClOrdID, clOrdID),
		wire.F(protocol.TagSymbol, "1"),
		wire.F(protocol.TagSide, protocol.SideBuy),
		wire.F(protocol.TagOrdStatus, protocol.OrdStatusRejected),
		wire.F(protocol.TagExecType, protocol.ExecTypeRejected),
		wire.F(protocol.TagOrdRejReason, "4"),
	})

	select {
	case res := <-resultCh:
		if res.err == nil {
			t.Fatal("expected NewLimitOrder to fail on a Rejected ExecutionReport")
		}
		var rejErr *router.RequestRejectedError
		if !errors.As(res.err, &rejErr) {
			t.Fatalf("expected a *router.RequestRejectedError, got %T: %v", res.err, res.err)
		}
		if rejErr.Reason != "4" {
			t.Fatalf("expected reason code 4, got %q", rejErr.Reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for NewLimitOrder")
	}

	if len(h.executions) != 1 {
		t.Fatalf("expected the reject still forwarded to the handler, got %d", len(h.executions))
	}

	if _, ok := ch.orderRecordFor(clOrdID); ok {
		t.Fatal("expected the rejected order to be dropped from local tracking")
	}
}

func TestChannel_FetchPositionsCollectsUntilTotalReached(t *testing.T) {
	ch, peer := newTestChannelWithPeer(t)
	defer peer.Close()
	logOnTestChannel(t, ch, peer)

	resultCh := make(chan struct {
		positions []protocol.PositionReport
		err       error
	}, 1)
	go func() {
		positions, err := ch.FetchPositions(context.Background())
		resultCh <- struct {
			positions []protocol.PositionReport
			err       error
		}{positions, err}
	}()

	req := peerReadFrame(t, peer)
	if req.MsgType != protocol.MsgTypeRequestForPositions {
		t.Fatalf("expected RequestForPositions, got %q", req.MsgType)
	}
	posReqID, _ := req.Get(protocol.TagPosReqID)

	peerSend(t, peer, 2, protocol.MsgTypePositionReport, []wire.Field{
		wire.F(protocol.TagPosReqID, posReqID),
		wire.F(protocol.TagSymbol, "1"),
		wire.F(protocol.TagLongQty, "100000"),
		wire.F(protocol.TagShortQty, "0"),
		wire.F(protocol.TagTotalNumPosReports, "2"),
	})
	peerSend(t, peer, 3, protocol.MsgTypePositionReport, []wire.Field{
		wire.F(protocol.TagPosReqID, posReqID),
		wire.F(protocol.TagSymbol, "2"),
		wire.F(protocol.TagLongQty, "0"),
		wire.F(protocol.TagShortQty, "50000"),
		wire.F(protocol.TagTotalNumPosReports, "2"),
	})

	select {
	case res := <-resultCh:
		if res.err != nil {
			t.Fatalf("FetchPositions failed: %v", res.err)
		}
		if len(res.positions) != 2 {
			t.Fatalf("expected 2 position reports, got %d", len(res.positions))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for FetchPositions")
	}
}
