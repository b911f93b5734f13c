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

// Package protocol is the cTrader FIX 4.4 message dictionary: the closed
// set of MsgTypes this profile uses, their tags, and typed bodies that
// know how to render themselves as wire.Field slices and parse themselves
// back out of a decoded wire.Frame.
package protocol

// --- Message Types (tag 35) ---
const (
	MsgTypeLogon                         = "A"
	MsgTypeLogout                        = "5"
	MsgTypeHeartbeat                     = "0"
	MsgTypeTestRequest                   = "1"
	MsgTypeResendRequest                 = "2"
	MsgTypeReject                        = "3"
	MsgTypeSequenceReset                 = "4"
	MsgTypeBusinessMessageReject         = "j"
	MsgTypeMarketDataRequest             = "V"
	MsgTypeMarketDataSnapshotFullRefresh = "W"
	MsgTypeMarketDataIncrementalRefresh  = "X"
	MsgTypeMarketDataRequestReject       = "Y"
	MsgTypeSecurityListRequest           = "x"
	MsgTypeSecurityListResponse          = "y"
	MsgTypeNewOrderSingle                = "D"
	MsgTypeOrderCancelRequest            = "F"
	MsgTypeOrderCancelReplaceRequest     = "G"
	MsgTypeOrderStatusRequest            = "H"
	MsgTypeExecutionReport               = "8"
	MsgTypeOrderCancelReject             = "9"
	MsgTypeRequestForPositions           = "AN"
	MsgTypePositionReport                = "AP"
)

// --- Standard header/trailer tags ---
const (
	TagBeginString = 8
	TagBodyLength  = 9
	TagMsgType     = 35
	TagSenderCompID = 49
	TagTargetCompID = 56
	TagSenderSubID  = 50
	TagTargetSubID  = 57
	TagMsgSeqNum    = 34
	TagSendingTime  = 52
	TagCheckSum     = 10
)

// --- Admin message tags ---
const (
	TagEncryptMethod   = 98
	TagHeartBtInt      = 108
	TagResetSeqNumFlag = 141
	TagUsername        = 553
	TagPassword        = 554
	TagTestReqID       = 112
	TagBeginSeqNo      = 7
	TagEndSeqNo        = 16
	TagText            = 58
	TagRefSeqNum       = 45
	TagRefTagID        = 371
	TagRefMsgType      = 372
	TagSessionRejectReason  = 373
	TagBusinessRejectReason = 380
	TagBusinessRejectRefID  = 379
	TagNewSeqNo        = 36
	TagGapFillFlag     = 123
)

// --- Market data tags ---
const (
	TagMDReqID                 = 262
	TagSubscriptionRequestType = 263
	TagMarketDepth             = 264
	TagMDUpdateType            = 265
	TagNoMDEntryTypes          = 267
	TagMDEntryType             = 269
	TagNoMDEntries             = 268
	TagMDEntryPx               = 270
	TagMDEntrySize             = 271
	TagMDEntryDate             = 272
	TagMDEntryTime             = 273
	TagMDUpdateAction          = 279
	TagMDEntryID               = 278
	TagMDReqRejReason          = 281
	TagSymbol                  = 55
	TagNoRelatedSym            = 146
)

// --- Security list tags ---
const (
	TagSecurityReqID       = 320
	TagSecurityListRequestType = 559
	TagSecurityResponseID  = 322
	TagNoRelatedSymSecList = 146
)

// --- Order entry / execution tags ---
const (
	TagClOrdID        = 11
	TagOrigClOrdID    = 41
	TagOrderID        = 37
	TagOrderQty       = 38
	TagOrdType        = 40
	TagPrice          = 44
	TagStopPx         = 99
	TagSide           = 54
	TagTimeInForce    = 59
	TagTransactTime   = 60
	TagOrdStatus      = 39
	TagExecType       = 150
	TagExecID         = 17
	TagCumQty         = 14
	TagLeavesQty      = 151
	TagAvgPx          = 6
	TagLastPx         = 31
	TagLastQty        = 32
	TagOrdRejReason   = 103
	TagCxlRejReason   = 102
	TagCxlRejResponseTo = 434
	TagOrderStatusReqID = 790
	TagAccount        = 1
)

// --- Position tags ---
const (
	TagPosReqID      = 710
	TagPosMaintRptID = 721
	TagTotalNumPosReports = 727
	TagLongQty       = 704
	TagShortQty      = 705
	TagSettlPrice    = 730
	TagPosReqResult  = 728
)

// BeginString is the only value this profile emits or accepts.
const BeginString = "FIX.4.4"

// SenderSubID values distinguishing the Market and Trade channels.
const (
	SenderSubIDQuote = "QUOTE"
	SenderSubIDTrade = "TRADE"
)

// TargetCompID is fixed for every cTrader session.
const TargetCompID = "cServer"
