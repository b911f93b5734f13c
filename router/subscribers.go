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
	"sync"

	"github.com/geminik23/ctrader-fix/internal/wire"
)

// subscriberTable maps an MDReqID to the frame handler that receives
// every subsequent snapshot/incremental-refresh/reject for that
// subscription, per spec.md §3's Subscription type. Keyed by the
// correlation id alone (not MsgType) because a single subscription
// receives frames of more than one MsgType (W then X, or Y).
type subscriberTable struct {
	mu  sync.RWMutex
	byID map[string]func(*wire.Frame)
}

func newSubscriberTable() *subscriberTable {
	return &subscriberTable{byID: make(map[string]func(*wire.Frame))}
}

func (s *subscriberTable) Put(mdReqID string, handler func(*wire.Frame)) {
	s.mu.Lock()
	s.byID[mdReqID] = handler
	s.mu.Unlock()
}

func (s *subscriberTable) Remove(mdReqID string) {
	s.mu.Lock()
	delete(s.byID, mdReqID)
	s.mu.Unlock()
}

func (s *subscriberTable) Get(mdReqID string) (func(*wire.Frame), bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.byID[mdReqID]
	return h, ok
}

func (s *subscriberTable) Clear() {
	s.mu.Lock()
	s.byID = make(map[string]func(*wire.Frame))
	s.mu.Unlock()
}
