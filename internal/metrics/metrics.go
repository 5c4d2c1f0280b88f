// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics provides Prometheus metrics for receipt search and parsing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "receipts"

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	// Labels: vendor, result (success, failure)
	ParseOutcomes *prometheus.CounterVec
	// Labels: vendor
	SearchFailures *prometheus.CounterVec
	// Labels: vendor
	SearchDuration *prometheus.HistogramVec
	Assembled      prometheus.Histogram
	// Labels: result (published, duplicate, error)
	Published *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ParseOutcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "parser",
				Name:      "outcomes_total",
				Help:      "Parsed receipt emails by vendor and result",
			},
			[]string{"vendor", "result"},
		),
		SearchFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "search",
				Name:      "failures_total",
				Help:      "Vendor searches that failed and contributed no receipts",
			},
			[]string{"vendor"},
		),
		SearchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "search",
				Name:      "duration_seconds",
				Help:      "Duration of vendor search and parse in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"vendor"},
		),
		Assembled: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "assembler",
				Name:      "receipts",
				Help:      "Receipts returned per assembled search",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		Published: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "backfill",
				Name:      "published_total",
				Help:      "Receipt events handled by the backfill publisher",
			},
			[]string{"result"},
		),
	}
}

// ObserveParse counts one parse outcome.
func (m *Metrics) ObserveParse(vendor string, success bool) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.ParseOutcomes.WithLabelValues(vendor, result).Inc()
}

// ObserveSearch records how long one vendor took.
func (m *Metrics) ObserveSearch(vendor string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SearchDuration.WithLabelValues(vendor).Observe(elapsed.Seconds())
}

// SearchFailed counts a vendor that contributed nothing because of an error.
func (m *Metrics) SearchFailed(vendor string) {
	if m == nil {
		return
	}
	m.SearchFailures.WithLabelValues(vendor).Inc()
}

// ObserveAssembled records the size of one assembled result.
func (m *Metrics) ObserveAssembled(n int) {
	if m == nil {
		return
	}
	m.Assembled.Observe(float64(n))
}

// ObservePublish counts one backfill publish attempt.
func (m *Metrics) ObservePublish(result string) {
	if m == nil {
		return
	}
	m.Published.WithLabelValues(result).Inc()
}
