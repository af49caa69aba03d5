// Copyright 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package moarena

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	livePoolsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mo",
			Subsystem: "arena",
			Name:      "live_pools",
			Help:      "Number of live arena pools.",
		})

	allocateBytesCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mo",
			Subsystem: "arena",
			Name:      "allocate_bytes_total",
			Help:      "Total bytes bump-allocated across all pools.",
		})

	inuseBytesGauge = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "mo",
			Subsystem: "arena",
			Name:      "inuse_bytes",
			Help:      "Bytes currently held by live pools.",
		},
		func() float64 {
			var n uint64
			livePools.RLock()
			for _, p := range livePools.m {
				n += p.InuseBytes()
			}
			livePools.RUnlock()
			return float64(n)
		})

	gcDurationHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mo",
			Subsystem: "arena",
			Name:      "gc_duration_seconds",
			Help:      "Bucketed histogram of pool gc durations.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2.0, 20),
		})
)

// RegisterMetrics registers the package collectors with reg.  Callers
// that scrape the default registry pass prometheus.DefaultRegisterer.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(
		livePoolsGauge,
		allocateBytesCounter,
		inuseBytesGauge,
		gcDurationHistogram,
	)
}
