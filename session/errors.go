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

import "errors"

// Error kinds from spec.md §7 that originate in the session engine itself
// (business-reject and timeout kinds live in router/market/trade instead).
var (
	ErrTransport        = errors.New("transport error")
	ErrMalformedFrame   = errors.New("malformed frame")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrSequenceGap      = errors.New("sequence gap")
	ErrLogonRejected    = errors.New("logon rejected")
	ErrDisconnected     = errors.New("disconnected")
	ErrNotLoggedOn      = errors.New("not logged on")
	ErrAlreadyStarted   = errors.New("engine already started")
)
