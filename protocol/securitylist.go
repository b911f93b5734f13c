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

import "github.com/geminik23/ctrader-fix/internal/wire"

// SecurityListRequest builds 35=x for fetch_security_list.
type SecurityListRequest struct {
	SecurityReqID           string
	SecurityListRequestType string
}

func (r SecurityListRequest) MsgType() string { return MsgTypeSecurityListRequest }

func (r SecurityListRequest) Fields() []wire.Field {
	return []wire.Field{
		wire.F(TagSecurityReqID, r.SecurityReqID),
		wire.F(TagSecurityListRequestType, r.SecurityListRequestType),
	}
}

// NewSecurityListRequest builds an all-securities request with a fresh
// correlation id.
func NewSecurityListRequest(securityReqID string) SecurityListRequest {
	return SecurityListRequest{
		SecurityReqID:           securityReqID,
		SecurityListRequestType: SecurityListRequestTypeAllSecurities,
	}
}

// Security is one row of the security list.
type Security struct {
	SymbolID string
	Symbol   string
}

// SecurityListResponse is the parsed form of 35=y.
type SecurityListResponse struct {
	SecurityReqID string
	Securities    []Security
}

func ParseSecurityListResponse(f *wire.Frame) SecurityListResponse {
	r := SecurityListResponse{}
	r.SecurityReqID, _ = f.Get(TagSecurityReqID)
	// Symbol (55) and SecurityID repeat per row; in the absence of a
	// documented SecurityID tag in cTrader's profile, rows are keyed by
	// Symbol alone, consistent with the rest of this client treating
	// Symbol as the canonical "symbol_id" spec.md §3 names.
	for _, v := range f.GetAll(TagSymbol) {
		r.Securities = append(r.Securities, Security{SymbolID: v, Symbol: v})
	}
	return r
}
