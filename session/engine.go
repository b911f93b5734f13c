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
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/geminik23/ctrader-fix/protocol"
	"github.com/geminik23/ctrader-fix/internal/wire"
	"go.uber.org/zap"
)

// State is one node of the connect/logon/steady-state/logout machine
// spec.md §4.C's table defines.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateLoggedOn
	StateLoggingOut
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateLoggedOn:
		return "logged_on"
	case StateLoggingOut:
		return "logging_out"
	default:
		return "unknown"
	}
}

// Handler receives session-level events and every inbound application
// frame. It is implemented by market.Channel and trade.Channel, which
// pass application frames on to their router; the engine itself never
// interprets application message content, only admin messages.
type Handler interface {
	OnLogon()
	OnLogout()
	OnMessage(frame *wire.Frame)
	OnDisconnect(err error)
}

// Config mirrors spec.md §3's per-channel Session attributes that the
// engine itself owns (host/port live in DialConfig, one layer up).
type Config struct {
	SenderCompID   string
	TargetCompID   string // fixed to "cServer" by callers, per spec.md §6
	SenderSubID    string // "QUOTE" or "TRADE"
	Username       string
	Password       string
	HeartBtInt     int // seconds
	RequestTimeout time.Duration
}

// Engine is the per-channel FIX session engine: one reader task, one
// writer path serialized through a bounded send queue, and one heartbeat
// timer task, per spec.md §5.
type Engine struct {
	cfg    Config
	conn   net.Conn
	handler Handler
	clock  Clock
	logger *zap.Logger

	mu                 sync.Mutex
	state              State
	outboundSeq        int
	inboundSeqExpected int
	lastTxAt           time.Time
	lastRxAt           time.Time
	gapRecoveryOpen    bool
	testReqID          string
	testReqSentAt      time.Time

	sendQueue chan outboundMsg
	logonDone chan error
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	onSeqGap    func(expected, got int)
	onReconnect func()
}

type outboundMsg struct {
	msgType string
	body    []wire.Field
	result  chan error
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithClock overrides the engine's time source, for deterministic tests.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger overrides the engine's structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithSeqGapObserver registers a callback fired every time an inbound
// sequence gap is detected, for metrics wiring.
func WithSeqGapObserver(fn func(expected, got int)) Option {
	return func(e *Engine) { e.onSeqGap = fn }
}

// NewEngine constructs an Engine bound to an already-open connection.
// Dialing is a separate step (Dial) so tests can hand the engine a
// net.Pipe instead of a real socket.
func NewEngine(cfg Config, conn net.Conn, handler Handler, opts ...Option) *Engine {
	e := &Engine{
		cfg:                cfg,
		conn:               conn,
		handler:            handler,
		clock:              SystemClock,
		logger:             zap.NewNop(),
		state:              StateDisconnected,
		outboundSeq:        1,
		inboundSeqExpected: 1,
		sendQueue:          make(chan outboundMsg, 256),
		logonDone:          make(chan error, 1),
		stopCh:             make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start opens the session: spawns the writer, reader, and heartbeat
// tasks, sends the initial Logon with ResetSeqNumFlag=Y, and blocks until
// the peer's Logon arrives, the peer logs out, the socket errs, or ctx is
// done — whichever happens first, per spec.md §4.C's Connecting row.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateDisconnected {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	e.state = StateConnecting
	e.mu.Unlock()

	e.wg.Add(3)
	go e.writeLoop()
	go e.readLoop()
	go e.heartbeatLoop()

	logon := protocol.Logon{
		HeartBtInt: e.cfg.HeartBtInt,
		Username:   e.cfg.Username,
		Password:   e.cfg.Password,
	}
	if err := e.enqueue(logon.MsgType(), logon.Fields(), nil); err != nil {
		return err
	}

	select {
	case err := <-e.logonDone:
		return err
	case <-ctx.Done():
		e.fail(ctx.Err())
		return ctx.Err()
	case <-e.stopCh:
		return ErrDisconnected
	}
}

// Send transmits an application message and assigns it the next
// MsgSeqNum in the order it reaches the writer loop, per spec.md §5's
// ordering guarantee. It is the one suspension point callers above the
// engine block on (spec.md §5 item (i)).
func (e *Engine) Send(msgType string, body []wire.Field) error {
	e.mu.Lock()
	loggedOn := e.state == StateLoggedOn
	e.mu.Unlock()
	if !loggedOn {
		return ErrNotLoggedOn
	}
	result := make(chan error, 1)
	if err := e.enqueue(msgType, body, result); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-e.stopCh:
		select {
		case err := <-result:
			return err
		default:
			return ErrDisconnected
		}
	}
}

func (e *Engine) enqueue(msgType string, body []wire.Field, result chan error) error {
	select {
	case e.sendQueue <- outboundMsg{msgType: msgType, body: body, result: result}:
		return nil
	case <-e.stopCh:
		return ErrDisconnected
	}
}

// Logout sends a Logout and moves the engine to LoggingOut. No grace timer
// is armed: outstanding pendings are failed by the handler when the peer's
// Logout arrives (OnLogout) or the connection drops (OnDisconnect).
func (e *Engine) Logout(reason string) error {
	e.mu.Lock()
	if e.state != StateLoggedOn {
		e.mu.Unlock()
		return ErrNotLoggedOn
	}
	e.state = StateLoggingOut
	e.mu.Unlock()

	logout := protocol.Logout{Text: reason}
	return e.enqueue(logout.MsgType(), logout.Fields(), nil)
}

// Close tears down the engine unconditionally: closes the socket, stops
// all tasks, and fails any outbound message still in flight.
func (e *Engine) Close() {
	e.stopOnce.Do(func() {
		close(e.stopCh)
		_ = e.conn.Close()
	})
	e.wg.Wait()
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) OutboundSeq() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outboundSeq
}

func (e *Engine) InboundSeqExpected() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inboundSeqExpected
}

// writeLoop is the single writer task: every outbound frame is encoded
// and written here, in the order it was enqueued, so MsgSeqNum assignment
// matches transmission order exactly (spec.md §5's ordering guarantee).
func (e *Engine) writeLoop() {
	defer e.wg.Done()
	for {
		select {
		case msg := <-e.sendQueue:
			err := e.writeOne(msg.msgType, msg.body)
			if msg.result != nil {
				msg.result <- err
			}
			if err != nil {
				e.fail(err)
				return
			}
		case <-e.stopCh:
			return
		}
	}
}

func (e *Engine) writeOne(msgType string, body []wire.Field) error {
	e.mu.Lock()
	seq := e.outboundSeq
	e.outboundSeq++
	now := e.clock.Now().UTC().Format(protocol.TimeFormat)
	header := []wire.Field{
		wire.F(protocol.TagSenderCompID, e.cfg.SenderCompID),
		wire.F(protocol.TagTargetCompID, e.cfg.TargetCompID),
		wire.F(protocol.TagSenderSubID, e.cfg.SenderSubID),
		wire.F(protocol.TagMsgSeqNum, fmt.Sprintf("%d", seq)),
		wire.F(protocol.TagSendingTime, now),
	}
	e.mu.Unlock()

	frame := wire.Encode(msgType, header, body)
	_, err := e.conn.Write(frame)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.lastTxAt = e.clock.Now()
	e.mu.Unlock()
	return nil
}

// readLoop is the single reader task: it owns the socket for reading,
// decodes complete frames across partial TCP reads, updates sequence
// state, and dispatches admin messages itself, forwarding everything
// else to Handler.OnMessage. No operation here blocks on a caller.
func (e *Engine) readLoop() {
	defer e.wg.Done()
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)

	for {
		n, err := e.conn.Read(tmp)
		if err != nil {
			if err != io.EOF {
				e.logger.Warn("session read error", zap.Error(err))
			}
			e.fail(err)
			return
		}
		buf = append(buf, tmp[:n]...)

		for {
			frame, consumed, decErr := wire.Decode(buf)
			if decErr != nil {
				var mfe *wire.MalformedFrameError
				if m, ok := decErr.(*wire.MalformedFrameError); ok {
					mfe = m
					e.logger.Warn("malformed frame, resynchronizing", zap.String("reason", mfe.Reason))
				}
				if consumed <= 0 {
					consumed = 1
				}
				buf = buf[consumed:]
				continue
			}
			if frame == nil {
				break // incomplete; wait for more bytes
			}
			buf = buf[consumed:]
			e.onFrame(frame)

			select {
			case <-e.stopCh:
				return
			default:
			}
		}
	}
}

func (e *Engine) onFrame(frame *wire.Frame) {
	e.mu.Lock()
	e.lastRxAt = e.clock.Now()
	seqStr, _ := frame.Get(protocol.TagMsgSeqNum)
	var seq int
	fmt.Sscanf(seqStr, "%d", &seq)
	expected := e.inboundSeqExpected

	switch {
	case seq == expected:
		e.inboundSeqExpected++
		e.gapRecoveryOpen = false
	case seq < expected:
		e.mu.Unlock()
		e.logger.Warn("dropping duplicate/low sequence message", zap.Int("seq", seq), zap.Int("expected", expected))
		return
	default: // seq > expected: gap
		alreadyOpen := e.gapRecoveryOpen
		e.gapRecoveryOpen = true
		e.mu.Unlock()
		e.logger.Warn("sequence gap detected", zap.Int("seq", seq), zap.Int("expected", expected))
		if e.onSeqGap != nil {
			e.onSeqGap(expected, seq)
		}
		if !alreadyOpen {
			rr := protocol.ResendRequest{BeginSeqNo: expected, EndSeqNo: 0}
			_ = e.enqueue(rr.MsgType(), rr.Fields(), nil)
		}
		return // do not advance expected, do not dispatch, per spec.md §4.C
	}
	e.mu.Unlock()

	switch frame.MsgType {
	case protocol.MsgTypeLogon:
		e.handleInboundLogon(frame)
	case protocol.MsgTypeLogout:
		e.handleInboundLogout()
	case protocol.MsgTypeHeartbeat:
		if hbTestReqID, ok := frame.Get(protocol.TagTestReqID); ok && hbTestReqID != "" {
			e.mu.Lock()
			if hbTestReqID == e.testReqID {
				e.testReqID = ""
			}
			e.mu.Unlock()
		}
	case protocol.MsgTypeTestRequest:
		testReqID, _ := frame.Get(protocol.TagTestReqID)
		hb := protocol.Heartbeat{TestReqID: testReqID}
		_ = e.enqueue(hb.MsgType(), hb.Fields(), nil)
	case protocol.MsgTypeResendRequest:
		e.logger.Info("peer requested resend; best-effort, not honored")
	default:
		e.handler.OnMessage(frame)
	}
}

func (e *Engine) handleInboundLogon(frame *wire.Frame) {
	e.mu.Lock()
	wasConnecting := e.state == StateConnecting
	if wasConnecting {
		e.state = StateLoggedOn
		e.lastTxAt = e.clock.Now()
	}
	e.mu.Unlock()

	if wasConnecting {
		e.logonDone <- nil
		e.handler.OnLogon()
	} else {
		e.handler.OnMessage(frame)
	}
}

func (e *Engine) handleInboundLogout() {
	e.mu.Lock()
	prevState := e.state
	e.state = StateDisconnected
	e.mu.Unlock()

	_ = e.conn.Close()

	if prevState == StateConnecting {
		e.logonDone <- ErrLogonRejected
		return
	}
	e.handler.OnLogout()
	e.fail(ErrDisconnected)
}

// fail transitions the engine to Disconnected and notifies the handler
// exactly once, per spec.md §4.C's "socket error -> Disconnected" row.
func (e *Engine) fail(err error) {
	e.mu.Lock()
	if e.state == StateDisconnected && e.stopped() {
		e.mu.Unlock()
		return
	}
	wasConnecting := e.state == StateConnecting
	e.state = StateDisconnected
	e.mu.Unlock()

	e.stopOnce.Do(func() {
		close(e.stopCh)
		_ = e.conn.Close()
	})

	if wasConnecting {
		select {
		case e.logonDone <- err:
		default:
		}
		return
	}
	e.handler.OnDisconnect(err)
}

func (e *Engine) stopped() bool {
	select {
	case <-e.stopCh:
		return true
	default:
		return false
	}
}

// heartbeatLoop is the timer task: sends Heartbeat every HeartBtInt
// seconds of outbound silence, escalates to TestRequest after 1.5x
// HeartBtInt of inbound silence, and to a disconnect if that TestRequest
// goes unanswered for another HeartBtInt, per spec.md §4.C.
func (e *Engine) heartbeatLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.checkHeartbeat()
		case <-e.stopCh:
			return
		}
	}
}

func (e *Engine) checkHeartbeat() {
	e.mu.Lock()
	if e.state != StateLoggedOn {
		e.mu.Unlock()
		return
	}
	now := e.clock.Now()
	hb := time.Duration(e.cfg.HeartBtInt) * time.Second
	sinceTx := now.Sub(e.lastTxAt)
	sinceRx := now.Sub(e.lastRxAt)
	testReqID := e.testReqID
	testReqSentAt := e.testReqSentAt
	e.mu.Unlock()

	if testReqID != "" {
		if now.Sub(testReqSentAt) >= hb {
			e.fail(fmt.Errorf("test request %s unanswered: %w", testReqID, ErrDisconnected))
		}
		return
	}

	if sinceRx >= hb+hb/2 {
		id := fmt.Sprintf("tr-%d", now.UnixNano())
		e.mu.Lock()
		e.testReqID = id
		e.testReqSentAt = now
		e.mu.Unlock()
		tr := protocol.TestRequest{TestReqID: id}
		_ = e.enqueue(tr.MsgType(), tr.Fields(), nil)
		return
	}

	if sinceTx >= hb {
		hbMsg := protocol.Heartbeat{}
		_ = e.enqueue(hbMsg.MsgType(), hbMsg.Fields(), nil)
	}
}
