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

package session

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/geminik23/ctrader-fix/internal/wire"
	"github.com/geminik23/ctrader-fix/protocol"
)

// fakeClock lets heartbeat timing be advanced deterministically instead of
// sleeping in wall-clock time.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(0, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingHandler struct {
	mu        sync.Mutex
	loggedOn  bool
	loggedOut bool
	messages  []*wire.Frame
	disconnectErr error
	disconnectedCh chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{disconnectedCh: make(chan struct{}, 1)}
}

func (h *recordingHandler) OnLogon() {
	h.mu.Lock()
	h.loggedOn = true
	h.mu.Unlock()
}

func (h *recordingHandler) OnLogout() {
	h.mu.Lock()
	h.loggedOut = true
	h.mu.Unlock()
}

func (h *recordingHandler) OnMessage(frame *wire.Frame) {
	h.mu.Lock()
	h.messages = append(h.messages, frame)
	h.mu.Unlock()
}

func (h *recordingHandler) OnDisconnect(err error) {
	h.mu.Lock()
	h.disconnectErr = err
	h.mu.Unlock()
	select {
	case h.disconnectedCh <- struct{}{}:
	default:
	}
}

// peerReadFrame decodes exactly one frame off the peer side of a net.Pipe,
// looping Reads until a full frame has arrived.
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
		frame, consumed, decErr := wire.Decode(buf)
		if decErr != nil {
			t.Fatalf("peer decode: %v", decErr)
		}
		if frame != nil {
			_ = consumed
			return frame
		}
	}
}

func peerSendLogon(t *testing.T, conn net.Conn, seq int) {
	t.Helper()
	header := []wire.Field{
		wire.F(protocol.TagSenderCompID, "cServer"),
		wire.F(protocol.TagTargetCompID, "CLIENT"),
		wire.F(protocol.TagMsgSeqNum, itoa(seq)),
	}
	logon := protocol.Logon{HeartBtInt: 2}
	frame := wire.Encode(logon.MsgType(), header, logon.Fields())
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("peer write logon: %v", err)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		digits = append([]byte{'-'}, digits...)
	}
	return string(digits)
}

func newTestEngine(t *testing.T, handler Handler, clock Clock) (*Engine, net.Conn) {
	t.Helper()
	clientConn, peerConn := net.Pipe()
	cfg := Config{
		SenderCompID: "CLIENT",
		TargetCompID: "cServer",
		SenderSubID:  protocol.SenderSubIDQuote,
		Username:     "user",
		Password:     "pass",
		HeartBtInt:   2,
	}
	eng := NewEngine(cfg, clientConn, handler, WithClock(clock))
	t.Cleanup(eng.Close)
	return eng, peerConn
}

// Scenario 1 (spec.md §8): Logon handshake. Start() blocks until the
// peer's Logon arrives; once it does, logon() completes, the handler is
// notified, and the next outbound MsgSeqNum is 2.
func TestEngine_LogonHandshakeCompletesOnPeerLogon(t *testing.T) {
	handler := newRecordingHandler()
	clock := newFakeClock()
	eng, peer := newTestEngine(t, handler, clock)
	defer peer.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- eng.Start(context.Background())
	}()

	sentLogon := peerReadFrame(t, peer)
	if sentLogon.MsgType != protocol.MsgTypeLogon {
		t.Fatalf("expected client to send Logon first, got MsgType %q", sentLogon.MsgType)
	}
	if v, _ := sentLogon.Get(protocol.TagResetSeqNumFlag); v != "Y" {
		t.Fatalf("expected ResetSeqNumFlag=Y on initial Logon, got %q", v)
	}
	if v, _ := sentLogon.Get(protocol.TagMsgSeqNum); v != "1" {
		t.Fatalf("expected initial Logon MsgSeqNum=1, got %q", v)
	}

	peerSendLogon(t, peer, 1)

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Start returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Start to complete")
	}

	if eng.State() != StateLoggedOn {
		t.Fatalf("expected StateLoggedOn, got %v", eng.State())
	}
	if eng.OutboundSeq() != 2 {
		t.Fatalf("expected next outbound seq 2, got %d", eng.OutboundSeq())
	}

	handler.mu.Lock()
	loggedOn := handler.loggedOn
	handler.mu.Unlock()
	if !loggedOn {
		t.Fatal("expected handler.OnLogon to have fired")
	}
}

// Scenario 2 (spec.md §8): Heartbeat echo. With HeartBtInt=2, once logged
// on, a peer TestRequest gets a Heartbeat reply carrying the same TestReqID
// within one timer tick.
func TestEngine_RepliesToTestRequestWithMatchingHeartbeat(t *testing.T) {
	handler := newRecordingHandler()
	clock := newFakeClock()
	eng, peer := newTestEngine(t, handler, clock)
	defer peer.Close()

	go func() { _ = eng.Start(context.Background()) }()
	_ = peerReadFrame(t, peer) // initial Logon
	peerSendLogon(t, peer, 1)

	// Wait for the client to reach LoggedOn before probing it.
	deadline := time.Now().Add(2 * time.Second)
	for eng.State() != StateLoggedOn {
		if time.Now().After(deadline) {
			t.Fatal("engine never reached StateLoggedOn")
		}
		time.Sleep(5 * time.Millisecond)
	}

	header := []wire.Field{
		wire.F(protocol.TagSenderCompID, "cServer"),
		wire.F(protocol.TagTargetCompID, "CLIENT"),
		wire.F(protocol.TagMsgSeqNum, "2"),
	}
	tr := protocol.TestRequest{TestReqID: "abc"}
	frame := wire.Encode(tr.MsgType(), header, tr.Fields())
	if _, err := peer.Write(frame); err != nil {
		t.Fatalf("peer write TestRequest: %v", err)
	}

	reply := peerReadFrame(t, peer)
	if reply.MsgType != protocol.MsgTypeHeartbeat {
		t.Fatalf("expected Heartbeat reply, got MsgType %q", reply.MsgType)
	}
	if v, _ := reply.Get(protocol.TagTestReqID); v != "abc" {
		t.Fatalf("expected echoed TestReqID abc, got %q", v)
	}
}

// A peer Heartbeat echoing the outstanding TestRequest's TestReqID cancels
// the escalation: checkHeartbeat must not fail the session one HeartBtInt
// later just because a TestRequest was once sent, per spec.md §4.C's
// "send TestRequest; on no reply in HB emit disconnect" — a timely reply
// is not "no reply".
func TestEngine_HeartbeatReplyClearsTestRequestEscalation(t *testing.T) {
	handler := newRecordingHandler()
	clock := newFakeClock()
	eng, peer := newTestEngine(t, handler, clock)
	defer peer.Close()

	go func() { _ = eng.Start(context.Background()) }()
	_ = peerReadFrame(t, peer) // initial Logon
	peerSendLogon(t, peer, 1)

	deadline := time.Now().Add(2 * time.Second)
	for eng.State() != StateLoggedOn {
		if time.Now().After(deadline) {
			t.Fatal("engine never reached StateLoggedOn")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Quiet inbound traffic for 1.5x HeartBtInt triggers an outbound
	// TestRequest.
	clock.Advance(3 * time.Second)
	sentTR := peerReadFrame(t, peer)
	if sentTR.MsgType != protocol.MsgTypeTestRequest {
		t.Fatalf("expected outbound TestRequest, got MsgType %q", sentTR.MsgType)
	}
	testReqID, _ := sentTR.Get(protocol.TagTestReqID)
	if testReqID == "" {
		t.Fatal("expected outbound TestRequest to carry a TestReqID")
	}

	// The peer answers with a Heartbeat echoing that TestReqID.
	header := []wire.Field{
		wire.F(protocol.TagSenderCompID, "cServer"),
		wire.F(protocol.TagTargetCompID, "CLIENT"),
		wire.F(protocol.TagMsgSeqNum, "2"),
	}
	hb := protocol.Heartbeat{TestReqID: testReqID}
	frame := wire.Encode(hb.MsgType(), header, hb.Fields())
	if _, err := peer.Write(frame); err != nil {
		t.Fatalf("peer write Heartbeat: %v", err)
	}

	// Give onFrame a moment to process the Heartbeat and clear testReqID
	// before advancing the clock past the escalation deadline.
	time.Sleep(50 * time.Millisecond)
	clock.Advance(2 * time.Second)

	select {
	case <-handler.disconnectedCh:
		t.Fatal("engine disconnected despite a timely Heartbeat reply")
	case <-time.After(500 * time.Millisecond):
	}

	if eng.State() != StateLoggedOn {
		t.Fatalf("expected StateLoggedOn, got %v", eng.State())
	}
}

// A rejected Logon (peer replies with Logout instead of Logon) surfaces as
// ErrLogonRejected from Start, per spec.md §4.C's Connecting row.
func TestEngine_PeerLogoutDuringConnectSurfacesLogonRejected(t *testing.T) {
	handler := newRecordingHandler()
	clock := newFakeClock()
	eng, peer := newTestEngine(t, handler, clock)
	defer peer.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- eng.Start(context.Background())
	}()

	_ = peerReadFrame(t, peer) // initial Logon

	header := []wire.Field{
		wire.F(protocol.TagSenderCompID, "cServer"),
		wire.F(protocol.TagTargetCompID, "CLIENT"),
		wire.F(protocol.TagMsgSeqNum, "1"),
	}
	logout := protocol.Logout{Text: "bad credentials"}
	frame := wire.Encode(logout.MsgType(), header, logout.Fields())
	if _, err := peer.Write(frame); err != nil {
		t.Fatalf("peer write Logout: %v", err)
	}

	select {
	case err := <-errCh:
		if err != ErrLogonRejected {
			t.Fatalf("expected ErrLogonRejected, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Start to return")
	}
}
