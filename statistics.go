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
	"fmt"
	"math"
	"slices"
)

func mismatch(want Kind, other Statistic) error {
	return fmt.Errorf("%w: cannot merge %s into %s", ErrKindMismatch, other.Kind(), want)
}

// sumStat backs the mean and sum kinds
type sumStat struct {
	kind  Kind
	count uint64
	sum   float64
}

func (s *sumStat) Kind() Kind      { return s.kind }
func (s *sumStat) Mergeable() bool { return true }
func (s *sumStat) Count() uint64   { return s.count }
func (s *sumStat) Reset()          { s.count, s.sum = 0, 0 }

func (s *sumStat) add(v float64) {
	s.count++
	s.sum += v
}

func (s *sumStat) AddSample(v float64, qualified bool) {
	if qualified {
		s.add(v)
	}
}

func (s *sumStat) AddSampleNaN(v float64, qualified, isNaN bool) {
	if qualified && !isNaN {
		s.add(v)
	}
}

func (s *sumStat) Merge(other Statistic) error {
	o, ok := other.(*sumStat)
	if !ok || o.kind != s.kind {
		return mismatch(s.kind, other)
	}
	s.count += o.count
	s.sum += o.sum
	return nil
}

func (s *sumStat) Result() Result {
	r := Result{Kind: s.kind, Count: s.count, Value: s.sum}
	if s.kind == KindMean {
		if s.count == 0 {
			r.Value = math.NaN()
		} else {
			r.Value = s.sum / float64(s.count)
		}
	}
	return r
}

// extremaStat backs the max, min and extrema kinds. All three track both
// bounds so that the merge path is identical.
type extremaStat struct {
	kind     Kind
	count    uint64
	min, max float64
}

func (s *extremaStat) Kind() Kind      { return s.kind }
func (s *extremaStat) Mergeable() bool { return true }
func (s *extremaStat) Count() uint64   { return s.count }

func (s *extremaStat) Reset() {
	s.count = 0
	s.min = math.Inf(1)
	s.max = math.Inf(-1)
}

func (s *extremaStat) add(v float64) {
	s.count++
	if v < s.min {
		s.min = v
	}
	if v > s.max {
		s.max = v
	}
}

func (s *extremaStat) AddSample(v float64, qualified bool) {
	if qualified {
		s.add(v)
	}
}

func (s *extremaStat) AddSampleNaN(v float64, qualified, isNaN bool) {
	if qualified && !isNaN {
		s.add(v)
	}
}

func (s *extremaStat) Merge(other Statistic) error {
	o, ok := other.(*extremaStat)
	if !ok || o.kind != s.kind {
		return mismatch(s.kind, other)
	}
	s.count += o.count
	s.min = math.Min(s.min, o.min)
	s.max = math.Max(s.max, o.max)
	return nil
}

func (s *extremaStat) Result() Result {
	r := Result{Kind: s.kind, Count: s.count, Value: math.NaN(), Min: math.NaN(), Max: math.NaN()}
	if s.count == 0 {
		return r
	}
	switch s.kind {
	case KindMax:
		r.Value = s.max
	case KindMin:
		r.Value = s.min
	default:
		r.Min, r.Max = s.min, s.max
	}
	return r
}

// varianceStat backs the variance and stddev kinds with the naive
// sum/sum of squares formula.
type varianceStat struct {
	kind       Kind
	count      uint64
	sum, sumSq float64
}

func (s *varianceStat) Kind() Kind      { return s.kind }
func (s *varianceStat) Mergeable() bool { return true }
func (s *varianceStat) Count() uint64   { return s.count }
func (s *varianceStat) Reset()          { s.count, s.sum, s.sumSq = 0, 0, 0 }

func (s *varianceStat) add(v float64) {
	s.count++
	s.sum += v
	s.sumSq += v * v
}

func (s *varianceStat) AddSample(v float64, qualified bool) {
	if qualified {
		s.add(v)
	}
}

func (s *varianceStat) AddSampleNaN(v float64, qualified, isNaN bool) {
	if qualified && !isNaN {
		s.add(v)
	}
}

func (s *varianceStat) Merge(other Statistic) error {
	o, ok := other.(*varianceStat)
	if !ok || o.kind != s.kind {
		return mismatch(s.kind, other)
	}
	s.count += o.count
	s.sum += o.sum
	s.sumSq += o.sumSq
	return nil
}

func (s *varianceStat) Result() Result {
	r := Result{Kind: s.kind, Count: s.count, Value: math.NaN()}
	if s.count < 2 {
		return r
	}
	n := float64(s.count)
	variance := (s.sumSq - s.sum*s.sum/n) / (n - 1)
	if variance < 0 {
		// cancellation on near constant inputs
		variance = 0
	}
	if s.kind == KindStdDev {
		r.Value = math.Sqrt(variance)
	} else {
		r.Value = variance
	}
	return r
}

// binStat backs the histogram and mode kinds. Histogram bins accumulate the
// sample values themselves, mode bins count samples.
type binStat struct {
	kind   Kind
	count  uint64
	lo, hi float64
	width  float64
	bins   []float64
}

func newBinStat(r Request) *binStat {
	return &binStat{
		kind:  r.Kind,
		lo:    r.Min,
		hi:    r.Max,
		width: (r.Max - r.Min) / float64(r.Bins),
		bins:  make([]float64, r.Bins),
	}
}

func (s *binStat) Kind() Kind      { return s.kind }
func (s *binStat) Mergeable() bool { return false }
func (s *binStat) Count() uint64   { return s.count }

func (s *binStat) Reset() {
	s.count = 0
	clear(s.bins)
}

func (s *binStat) add(v float64) {
	if v < s.lo || v >= s.hi {
		return
	}
	idx := int((v - s.lo) / s.width)
	if idx >= len(s.bins) {
		// rounding right below hi
		idx = len(s.bins) - 1
	}
	s.count++
	if s.kind == KindHistogram {
		s.bins[idx] += v
	} else {
		s.bins[idx]++
	}
}

func (s *binStat) AddSample(v float64, qualified bool) {
	if qualified {
		s.add(v)
	}
}

func (s *binStat) AddSampleNaN(v float64, qualified, isNaN bool) {
	if qualified && !isNaN {
		s.add(v)
	}
}

func (s *binStat) Merge(other Statistic) error {
	if other.Kind() != s.kind {
		return mismatch(s.kind, other)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedMerge, s.kind)
}

func (s *binStat) Result() Result {
	r := Result{Kind: s.kind, Count: s.count, Value: math.NaN()}
	if s.kind == KindHistogram {
		r.Histogram = &Histogram{min: s.lo, max: s.hi, bins: slices.Clone(s.bins)}
		return r
	}
	if s.count == 0 {
		return r
	}
	best := 0
	for i, b := range s.bins {
		if b > s.bins[best] {
			best = i
		}
	}
	r.Value = float64(best)*s.width + s.lo
	return r
}

// medianStat keeps every sample falling in [lo,hi)
type medianStat struct {
	lo, hi  float64
	samples []float64
}

func (s *medianStat) Kind() Kind      { return KindMedian }
func (s *medianStat) Mergeable() bool { return false }
func (s *medianStat) Count() uint64   { return uint64(len(s.samples)) }
func (s *medianStat) Reset()          { s.samples = nil }

func (s *medianStat) add(v float64) {
	if v >= s.lo && v < s.hi {
		s.samples = append(s.samples, v)
	}
}

func (s *medianStat) AddSample(v float64, qualified bool) {
	if qualified {
		s.add(v)
	}
}

func (s *medianStat) AddSampleNaN(v float64, qualified, isNaN bool) {
	if qualified && !isNaN {
		s.add(v)
	}
}

func (s *medianStat) Merge(other Statistic) error {
	if other.Kind() != KindMedian {
		return mismatch(KindMedian, other)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedMerge, KindMedian)
}

func (s *medianStat) Result() Result {
	r := Result{Kind: KindMedian, Count: uint64(len(s.samples)), Value: math.NaN()}
	n := len(s.samples)
	if n == 0 {
		return r
	}
	sorted := slices.Clone(s.samples)
	slices.Sort(sorted)
	if n%2 == 1 {
		r.Value = sorted[n/2]
	} else {
		r.Value = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return r
}
