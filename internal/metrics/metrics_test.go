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

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveParse("Uber", true)
	m.ObserveParse("Uber", true)
	m.ObserveParse("Rapido", false)
	m.SearchFailed("Rapido")
	m.ObservePublish("duplicate")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ParseOutcomes.WithLabelValues("Uber", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ParseOutcomes.WithLabelValues("Rapido", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchFailures.WithLabelValues("Rapido")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Published.WithLabelValues("duplicate")))
}

func TestMetrics_Histograms(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveSearch("Uber", 250*time.Millisecond)
	m.ObserveAssembled(3)

	assert.Equal(t, 1, testutil.CollectAndCount(m.SearchDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Assembled))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveParse("Uber", true)
		m.ObserveSearch("Uber", time.Second)
		m.SearchFailed("Uber")
		m.ObserveAssembled(1)
		m.ObservePublish("published")
	})
}
