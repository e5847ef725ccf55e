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
	"strings"
)

// Kind identifies the quantity computed by a Statistic
type Kind int

const (
	//KindMean is the arithmetic mean of the qualifying samples
	KindMean Kind = iota
	//KindSum is the sum of the qualifying samples
	KindSum
	//KindMax is the largest qualifying sample
	KindMax
	//KindMin is the smallest qualifying sample
	KindMin
	//KindExtrema is the [min,max] pair of the qualifying samples
	KindExtrema
	//KindVariance is the sample variance (n-1 denominator)
	KindVariance
	//KindStdDev is the square root of KindVariance
	KindStdDev
	//KindHistogram is a value-weighted histogram over [Min,Max)
	KindHistogram
	//KindMode is the left edge of the most populated bin over [Min,Max)
	KindMode
	//KindMedian is the median of the samples falling in [Min,Max)
	KindMedian
)

var kindNames = [...]string{
	KindMean:      "mean",
	KindSum:       "sum",
	KindMax:       "max",
	KindMin:       "min",
	KindExtrema:   "extrema",
	KindVariance:  "variance",
	KindStdDev:    "stddev",
	KindHistogram: "histogram",
	KindMode:      "mode",
	KindMedian:    "median",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind returns the Kind whose String() is s, ignoring case
func ParseKind(s string) (Kind, error) {
	for i, n := range kindNames {
		if strings.EqualFold(n, s) {
			return Kind(i), nil
		}
	}
	return 0, configErrorf("kind", "unknown statistic %q", s)
}

// Mergeable reports whether partial statistics of this kind computed on
// disjoint sets of samples can be combined with Merge.
func (k Kind) Mergeable() bool {
	return k >= KindMean && k <= KindStdDev
}

// Ranged reports whether the kind needs Min/Max bounds
func (k Kind) Ranged() bool {
	return k == KindHistogram || k == KindMode || k == KindMedian
}

// Request describes one statistic to compute. Bins, Min and Max are only used
// by the ranged kinds: histogram and mode need Bins >= 1, all three need Min < Max.
type Request struct {
	Kind     Kind
	Bins     int
	Min, Max float64
}

// Stat returns the request for an unbounded kind
func Stat(k Kind) Request {
	return Request{Kind: k}
}

// RangedStat returns the request for a histogram, mode or median over [min,max)
func RangedStat(k Kind, bins int, min, max float64) Request {
	return Request{Kind: k, Bins: bins, Min: min, Max: max}
}

func (r Request) validate() error {
	if r.Kind < KindMean || r.Kind > KindMedian {
		return configErrorf("kind", "unknown statistic %d", int(r.Kind))
	}
	if !r.Kind.Ranged() {
		return nil
	}
	if math.IsNaN(r.Min) || math.IsNaN(r.Max) || r.Min >= r.Max {
		return configErrorf(r.Kind.String(), "invalid bounds [%g,%g)", r.Min, r.Max)
	}
	if r.Kind != KindMedian {
		if r.Bins < 1 {
			return configErrorf(r.Kind.String(), "invalid bin count %d", r.Bins)
		}
		if math.IsInf(r.Min, 0) || math.IsInf(r.Max, 0) {
			return configErrorf(r.Kind.String(), "bounds must be finite")
		}
	}
	return nil
}

// Statistic accumulates samples into a single result. A Statistic is not safe
// for concurrent use; the Engine serializes access to the instances it owns.
type Statistic interface {
	// Kind never changes over the lifetime of the Statistic
	Kind() Kind
	Mergeable() bool
	// AddSample ingests v if qualified is true. Used for integer samples.
	AddSample(v float64, qualified bool)
	// AddSampleNaN ingests v if qualified is true and isNaN is false. Used for
	// floating point samples.
	AddSampleNaN(v float64, qualified, isNaN bool)
	// Merge folds the state of other into the receiver. other is left untouched.
	// It fails with ErrKindMismatch if the kinds differ and with
	// ErrUnsupportedMerge for non mergeable kinds.
	Merge(other Statistic) error
	// Count is the number of samples ingested since creation or the last Reset
	Count() uint64
	Result() Result
	// Reset restores the freshly created state
	Reset()
}

// Result is the finished value of a Statistic. Which fields are set depends
// on Kind:
//
// • Value for mean, sum, max, min, variance, stddev, mode and median
//
// • Min and Max for extrema
//
// • Histogram for histogram
//
// Values are NaN when no sample (or, for variance, fewer than two) was ingested.
type Result struct {
	Kind      Kind
	Count     uint64
	Value     float64
	Min, Max  float64
	Histogram *Histogram
}

// Values returns the result flattened: a single value for scalar kinds,
// [min,max] for extrema and the bin values for histograms.
func (r Result) Values() []float64 {
	switch r.Kind {
	case KindExtrema:
		return []float64{r.Min, r.Max}
	case KindHistogram:
		if r.Histogram == nil {
			return nil
		}
		return r.Histogram.Values()
	default:
		return []float64{r.Value}
	}
}

// NewStatistic returns an empty Statistic computing r
func NewStatistic(r Request) (Statistic, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	switch r.Kind {
	case KindMean, KindSum:
		return &sumStat{kind: r.Kind}, nil
	case KindMax, KindMin, KindExtrema:
		s := &extremaStat{kind: r.Kind}
		s.Reset()
		return s, nil
	case KindVariance, KindStdDev:
		return &varianceStat{kind: r.Kind}, nil
	case KindHistogram, KindMode:
		return newBinStat(r), nil
	case KindMedian:
		return &medianStat{lo: r.Min, hi: r.Max}, nil
	}
	panic("unreachable")
}

func mustStatistic(r Request) Statistic {
	s, err := NewStatistic(r)
	if err != nil {
		panic(err)
	}
	return s
}
