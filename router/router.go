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

package router

import (
	"fmt"
	"sync"
	"time"

	"github.com/geminik23/ctrader-fix/internal/wire"
	"github.com/geminik23/ctrader-fix/protocol"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NewCorrelationID mints a UUIDv4 rendered as a compact hex string, per
// spec.md §4.D: "a correlation id is a UUIDv4 rendered as a compact hex
// string."
func NewCorrelationID() string {
	return fmt.Sprintf("%x", uuid.New())
}

// Router is the per-session correlation and dispatch layer spec.md §4.D
// describes. A Market channel and a Trade channel each own one Router
// bound to their own session engine; there is no cross-session sharing,
// per spec.md §9's "no global state" note.
type Router struct {
	pending *PendingTable
	subs    *subscriberTable
	logger  *zap.Logger

	tapsMu  sync.Mutex
	taps    map[uint64]func(*wire.Frame)
	nextTap uint64
}

// New constructs a Router. logger may be nil, in which case a no-op
// logger is used.
func New(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		pending: NewPendingTable(),
		subs:    newSubscriberTable(),
		logger:  logger,
		taps:    make(map[uint64]func(*wire.Frame)),
	}
}

// Pending exposes the underlying table so channel facades can Register
// completions directly when they need finer control than RequestReply
// offers (subscribe's two-MsgType registration, in particular).
func (r *Router) Pending() *PendingTable { return r.pending }

// AddTap registers a handler invoked for every ExecutionReport frame,
// matched to a pending or not, per spec.md §9: "the router must always
// tap these to the trade handler... to avoid deadlocks seen in earlier
// revisions." The returned token removes the tap via RemoveTap.
func (r *Router) AddTap(handler func(*wire.Frame)) uint64 {
	r.tapsMu.Lock()
	defer r.tapsMu.Unlock()
	r.nextTap++
	token := r.nextTap
	r.taps[token] = handler
	return token
}

// RemoveTap drops a tap registered by AddTap. Used by collection windows
// (fetch_all_order_status) that only need the tap for the duration of
// one call.
func (r *Router) RemoveTap(token uint64) {
	r.tapsMu.Lock()
	delete(r.taps, token)
	r.tapsMu.Unlock()
}

func (r *Router) runTaps(frame *wire.Frame) {
	r.tapsMu.Lock()
	taps := make([]func(*wire.Frame), 0, len(r.taps))
	for _, tap := range r.taps {
		taps = append(taps, tap)
	}
	r.tapsMu.Unlock()
	for _, tap := range taps {
		tap(frame)
	}
}

// Subscribe registers handler to receive every future frame correlated
// to mdReqID (snapshots, incremental refreshes, rejects), per spec.md §3's
// Subscription type.
func (r *Router) Subscribe(mdReqID string, handler func(*wire.Frame)) {
	r.subs.Put(mdReqID, handler)
}

// Unsubscribe removes mdReqID's subscriber. Any frame for it that arrives
// afterward is logged and dropped, per spec.md §9's open-question
// resolution on depth-unsubscribe.
func (r *Router) Unsubscribe(mdReqID string) {
	r.subs.Remove(mdReqID)
}

// ClearSubscriptions drops every subscriber, per spec.md §5's
// cancellation rule: "logout() cancels all subscriptions (no unsubscribe
// messages are required)".
func (r *Router) ClearSubscriptions() {
	r.subs.Clear()
}

// RequestReply registers a single-key pending expecting msgType with
// corrID and returns it; ok is false if that key is already in flight.
// It does not wait: the caller sends its request, then selects on the
// returned Pending alongside its own deadline.
func (r *Router) RequestReply(msgType, corrID string, deadline time.Time) (*Pending, bool) {
	return r.pending.Register(Key{MsgType: msgType, CorrID: corrID}, deadline)
}

// correlationIDFor extracts the message-type-specific correlation id
// spec.md §4.D names for each response MsgType the router correlates.
func correlationIDFor(frame *wire.Frame) (id string, ok bool) {
	switch frame.MsgType {
	case protocol.MsgTypeMarketDataSnapshotFullRefresh,
		protocol.MsgTypeMarketDataIncrementalRefresh,
		protocol.MsgTypeMarketDataRequestReject:
		return frame.Get(protocol.TagMDReqID)
	case protocol.MsgTypeSecurityListResponse:
		return frame.Get(protocol.TagSecurityReqID)
	case protocol.MsgTypeExecutionReport, protocol.MsgTypeOrderCancelReject:
		return frame.Get(protocol.TagClOrdID)
	case protocol.MsgTypePositionReport:
		return frame.Get(protocol.TagPosReqID)
	default:
		return "", false
	}
}

// Dispatch implements spec.md §4.D's three-step rule for one inbound
// application frame: complete a matching pending; else deliver to a
// matching subscriber; else log-and-drop, always running ExecutionReport
// taps regardless of which of those three happened.
func (r *Router) Dispatch(frame *wire.Frame) {
	isExecReport := frame.MsgType == protocol.MsgTypeExecutionReport
	corrID, ok := correlationIDFor(frame)
	if !ok {
		r.logger.Warn("dropping frame with no known correlation id", zap.String("msg_type", frame.MsgType))
		return
	}

	key := Key{MsgType: frame.MsgType, CorrID: corrID}
	if r.pending.Complete(key, Result{Frame: frame}) {
		// The first snapshot both completes the subscribe call and is the
		// first delivery to the handler. The pending only carries the
		// frame back to the caller; this subscriber call is the frame's
		// one handler delivery, per spec.md §9's double-delivery guard.
		if h, found := r.subs.Get(corrID); found {
			h(frame)
		}
		if isExecReport {
			r.runTaps(frame)
		}
		return
	}

	if h, found := r.subs.Get(corrID); found {
		h(frame)
		if isExecReport {
			r.runTaps(frame)
		}
		return
	}

	if isExecReport {
		r.runTaps(frame)
		return
	}

	r.logger.Warn("dropping unsolicited frame", zap.String("msg_type", frame.MsgType), zap.String("corr_id", corrID))
}

// FailAll fails every pending and clears every subscription, per
// spec.md §4's "session loss fails every pending... clears subscriptions"
// rule.
func (r *Router) FailAll(err error) {
	r.pending.FailAll(err)
	r.subs.Clear()
}

// ExpireDue fails pendings whose deadline has passed. Intended to be
// driven by a ticking goroutine owned by the channel facade.
func (r *Router) ExpireDue(now time.Time) {
	r.pending.ExpireDue(now)
}
