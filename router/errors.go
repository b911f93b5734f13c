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
	"errors"
	"fmt"
)

// Error kinds from spec.md §7 that originate at the correlation/routing
// layer.
var (
	ErrTimeout                   = errors.New("request timed out")
	ErrDisconnected              = errors.New("session disconnected")
	ErrSubscriptionAlreadyActive = errors.New("subscription already active")
	ErrNoSuchSubscription        = errors.New("no such subscription")
)

// RequestRejectedError wraps a server-supplied reject reason code, per
// spec.md §7: "business rejects... complete the originating pending with
// RequestRejected carrying the server reason code."
type RequestRejectedError struct {
	Reason string
	Text   string
}

func (e *RequestRejectedError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("request rejected: reason=%s", e.Reason)
	}
	return fmt.Sprintf("request rejected: reason=%s (%s)", e.Reason, e.Text)
}
