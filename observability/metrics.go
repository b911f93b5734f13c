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

package observability

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the counters/histograms both channels report into.
// Registered only when a caller passes a registry to MustRegister, so
// unit tests that never touch a real prometheus registry don't pay for it.
type Metrics struct {
	SeqGaps          *prometheus.CounterVec
	Reconnects       *prometheus.CounterVec
	HeartbeatRTT     *prometheus.HistogramVec
	RequestLatency   *prometheus.HistogramVec
	RequestTimeouts  *prometheus.CounterVec
	RequestRejects   *prometheus.CounterVec
}

// New constructs a Metrics bundle without registering it, so callers can
// wire it into an existing *prometheus.Registry (or none at all, for
// tests).
func New() *Metrics {
	return &Metrics{
		SeqGaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ctrader_fix_sequence_gaps_total",
			Help: "Inbound sequence gaps detected, by channel.",
		}, []string{"channel"}),
		Reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ctrader_fix_reconnects_total",
			Help: "Session reconnect attempts, by channel.",
		}, []string{"channel"}),
		HeartbeatRTT: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ctrader_fix_heartbeat_rtt_seconds",
			Help:    "Round trip time of TestRequest/Heartbeat exchanges.",
			Buckets: prometheus.DefBuckets,
		}, []string{"channel"}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ctrader_fix_request_latency_seconds",
			Help:    "Latency from request send to a completing response.",
			Buckets: prometheus.DefBuckets,
		}, []string{"channel", "msg_type"}),
		RequestTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ctrader_fix_request_timeouts_total",
			Help: "Requests that timed out waiting for a response.",
		}, []string{"channel", "msg_type"}),
		RequestRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ctrader_fix_request_rejects_total",
			Help: "Business-level rejects, by channel and reason code.",
		}, []string{"channel", "reason"}),
	}
}

// MustRegister registers every collector in m against reg.
func (m *Metrics) MustRegister(reg *prometheus.Registry) {
	reg.MustRegister(m.SeqGaps, m.Reconnects, m.HeartbeatRTT, m.RequestLatency, m.RequestTimeouts, m.RequestRejects)
}
