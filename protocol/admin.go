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
)

// Logon builds the admin message session.Engine sends at connect, always
// with ResetSeqNumFlag=Y per spec.md §4.C / §6.
type Logon struct {
	HeartBtInt int
	Username   string
	Password   string
}

func (l Logon) MsgType() string { return MsgTypeLogon }

func (l Logon) Fields() []wire.Field {
	return []wire.Field{
		wire.F(TagEncryptMethod, "0"),
		wire.F(TagHeartBtInt, strconv.Itoa(l.HeartBtInt)),
		wire.F(TagResetSeqNumFlag, "Y"),
		wire.F(TagUsername, l.Username),
		wire.F(TagPassword, l.Password),
	}
}

// Logout builds a Logout message, optionally carrying a free-text reason.
type Logout struct {
	Text string
}

func (l Logout) MsgType() string { return MsgTypeLogout }

func (l Logout) Fields() []wire.Field {
	if l.Text == "" {
		return nil
	}
	return []wire.Field{wire.F(TagText, l.Text)}
}

// Heartbeat echoes TestReqID when sent in reply to a TestRequest; empty
// otherwise, for the periodic keepalive case.
type Heartbeat struct {
	TestReqID string
}

func (h Heartbeat) MsgType() string { return MsgTypeHeartbeat }

func (h Heartbeat) Fields() []wire.Field {
	if h.TestReqID == "" {
		return nil
	}
	return []wire.Field{wire.F(TagTestReqID, h.TestReqID)}
}

// TestRequest is sent when no inbound traffic has been seen for 1.5x the
// heartbeat interval, per spec.md §4.C.
type TestRequest struct {
	TestReqID string
}

func (t TestRequest) MsgType() string { return MsgTypeTestRequest }

func (t TestRequest) Fields() []wire.Field {
	return []wire.Field{wire.F(TagTestReqID, t.TestReqID)}
}

// ResendRequest asks the peer to resend messages in [BeginSeqNo, EndSeqNo].
// EndSeqNo=0 means "to the current end", per spec.md §4.C gap recovery.
type ResendRequest struct {
	BeginSeqNo int
	EndSeqNo   int
}

func (r ResendRequest) MsgType() string { return MsgTypeResendRequest }

func (r ResendRequest) Fields() []wire.Field {
	return []wire.Field{
		wire.F(TagBeginSeqNo, strconv.Itoa(r.BeginSeqNo)),
		wire.F(TagEndSeqNo, strconv.Itoa(r.EndSeqNo)),
	}
}

// Reject is the parsed form of a session-level Reject (35=3).
type Reject struct {
	RefSeqNum           int
	RefTagID             string
	RefMsgType           string
	SessionRejectReason  string
	Text                 string
}

func ParseReject(f *wire.Frame) Reject {
	r := Reject{}
	if v, ok := f.Get(TagRefSeqNum); ok {
		r.RefSeqNum, _ = strconv.Atoi(v)
	}
	r.RefTagID, _ = f.Get(TagRefTagID)
	r.RefMsgType, _ = f.Get(TagRefMsgType)
	r.SessionRejectReason, _ = f.Get(TagSessionRejectReason)
	r.Text, _ = f.Get(TagText)
	return r
}

// BusinessMessageReject is the parsed form of 35=j.
type BusinessMessageReject struct {
	RefMsgType          string
	BusinessRejectRefID string
	BusinessRejectReason string
	Text                string
}

func ParseBusinessMessageReject(f *wire.Frame) BusinessMessageReject {
	b := BusinessMessageReject{}
	b.RefMsgType, _ = f.Get(TagRefMsgType)
	b.BusinessRejectRefID, _ = f.Get(TagBusinessRejectRefID)
	b.BusinessRejectReason, _ = f.Get(TagBusinessRejectReason)
	b.Text, _ = f.Get(TagText)
	return b
}

// SequenceReset is the parsed form of 35=4, used for gap-fill.
type SequenceReset struct {
	NewSeqNo    int
	GapFillFlag bool
}

func ParseSequenceReset(f *wire.Frame) SequenceReset {
	s := SequenceReset{}
	if v, ok := f.Get(TagNewSeqNo); ok {
		s.NewSeqNo, _ = strconv.Atoi(v)
	}
	if v, ok := f.Get(TagGapFillFlag); ok {
		s.GapFillFlag = v == "Y"
	}
	return s
}

// ParsedLogon pulls out the fields a caller may want to validate on an
// inbound Logon (e.g. HeartBtInt agreement). session.Engine does not
// parse the peer's Logon; it only reacts to its arrival.
type ParsedLogon struct {
	HeartBtInt     int
	ResetSeqNumFlag bool
}

func ParseLogon(f *wire.Frame) ParsedLogon {
	p := ParsedLogon{}
	if v, ok := f.Get(TagHeartBtInt); ok {
		p.HeartBtInt, _ = strconv.Atoi(v)
	}
	if v, ok := f.Get(TagResetSeqNumFlag); ok {
		p.ResetSeqNumFlag = v == "Y"
	}
	return p
}
