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

// Side (tag 54).
const (
	SideBuy  = "1"
	SideSell = "2"
)

// OrdType (tag 40).
const (
	OrdTypeMarket    = "1"
	OrdTypeLimit     = "2"
	OrdTypeStop      = "3"
	OrdTypeStopLimit = "4"
)

// TimeInForce (tag 59).
const (
	TimeInForceGTC = "1"
	TimeInForceIOC = "3"
	TimeInForceFOK = "4"
	TimeInForceGTD = "6"
)

// OrdStatus (tag 39).
const (
	OrdStatusNew             = "0"
	OrdStatusPartiallyFilled = "1"
	OrdStatusFilled          = "2"
	OrdStatusDoneForDay      = "3"
	OrdStatusCanceled        = "4"
	OrdStatusReplaced        = "5"
	OrdStatusPendingCancel   = "6"
	OrdStatusStopped         = "7"
	OrdStatusRejected        = "8"
	OrdStatusPendingNew      = "A"
	OrdStatusExpired         = "C"
	OrdStatusPendingReplace  = "E"
)

// ExecType (tag 150). IsTerminalExecType picks out the values treated as
// terminal responses to a pending NewOrderSingle/Cancel/Replace per
// spec.md §4.D.
const (
	ExecTypeNew           = "0"
	ExecTypePartialFill   = "1"
	ExecTypeFilled        = "2"
	ExecTypeDone          = "3"
	ExecTypeCanceled      = "4"
	ExecTypeReplaced      = "5"
	ExecTypePendingCancel = "6"
	ExecTypeStopped       = "7"
	ExecTypeRejected      = "8"
	ExecTypePendingNew    = "A"
	ExecTypeExpired       = "C"
	ExecTypeRestated      = "D"
	ExecTypePendingReplace = "E"
	ExecTypeOrderStatus   = "I"
)

// IsTerminalExecType reports whether execType completes the pending call
// that originated the order, per spec.md §4.D item 1.
func IsTerminalExecType(execType string) bool {
	switch execType {
	case ExecTypeNew, ExecTypeCanceled, ExecTypeRejected, ExecTypeReplaced:
		return true
	default:
		return false
	}
}

// SubscriptionRequestType (tag 263).
const (
	SubscriptionRequestTypeSnapshot    = "0"
	SubscriptionRequestTypeSubscribe   = "1"
	SubscriptionRequestTypeUnsubscribe = "2"
)

// MDUpdateType (tag 265).
const (
	MDUpdateTypeFullRefresh = "0"
	MDUpdateTypeIncremental = "1"
)

// MDEntryType (tag 269).
const (
	MDEntryTypeBid   = "0"
	MDEntryTypeOffer = "1"
)

// MDUpdateAction (tag 279), for incremental refreshes.
const (
	MDUpdateActionNew    = "0"
	MDUpdateActionChange = "1"
	MDUpdateActionDelete = "2"
)

// MDReqRejReason (tag 281).
const (
	MDReqRejReasonUnknownSymbol           = "0"
	MDReqRejReasonDuplicateMDReqID        = "1"
	MDReqRejReasonInsufficientBandwidth   = "2"
	MDReqRejReasonInsufficientPermissions = "3"
	MDReqRejReasonUnsupportedSubReqType   = "4"
	MDReqRejReasonUnsupportedMarketDepth  = "5"
	MDReqRejReasonUnsupportedMDUpdateType = "6"
	MDReqRejReasonOther                   = "99"
)

// CxlRejResponseTo (tag 434).
const (
	CxlRejResponseToCancel  = "1"
	CxlRejResponseToReplace = "2"
)

// SecurityListRequestType (tag 559).
const (
	SecurityListRequestTypeAllSecurities = "0"
	SecurityListRequestTypeSymbol        = "1"
)

// SubscriptionKind distinguishes the two market-data subscription
// flavours spec.md §3's Subscription type enumerates.
type SubscriptionKind int

const (
	SubscriptionSpot SubscriptionKind = iota
	SubscriptionDepth
)

func (k SubscriptionKind) String() string {
	if k == SubscriptionSpot {
		return "spot"
	}
	return "depth"
}
