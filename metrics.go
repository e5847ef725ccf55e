// Copyright 2021 Airbus Defence and Space
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

package tilestats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the collectors updated by an Engine
type Metrics struct {
	tiles        *prometheus.CounterVec
	samples      prometheus.Counter
	tileDuration prometheus.Histogram
	passes       *prometheus.CounterVec
}

// NewMetrics creates the engine collectors and registers them to reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		tiles: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "tilestats_tiles_total",
			Help: "Number of tiles processed, by outcome.",
		}, []string{"status"}),
		samples: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "tilestats_samples_total",
			Help: "Number of qualifying samples ingested.",
		}),
		tileDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "tilestats_tile_duration_seconds",
			Help:    "Time spent reading, scanning and merging one tile.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		passes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "tilestats_passes_total",
			Help: "Number of full computation passes, by outcome.",
		}, []string{"status"}),
	}
}
