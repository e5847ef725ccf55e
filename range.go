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
)

// Range is an interval of sample values, used to flag samples as nodata.
// Each bound can be included or excluded independently.
type Range struct {
	Min, Max                 float64
	MinIncluded, MaxIncluded bool
}

// NewRange returns the range spanning min to max
func NewRange(min float64, minIncluded bool, max float64, maxIncluded bool) Range {
	return Range{Min: min, Max: max, MinIncluded: minIncluded, MaxIncluded: maxIncluded}
}

// Value returns the range containing only v
func Value(v float64) Range {
	return Range{Min: v, Max: v, MinIncluded: true, MaxIncluded: true}
}

// IsEmpty reports whether no value can be contained in r
func (r Range) IsEmpty() bool {
	if math.IsNaN(r.Min) || math.IsNaN(r.Max) || r.Min > r.Max {
		return true
	}
	return r.Min == r.Max && !(r.MinIncluded && r.MaxIncluded)
}

// Contains reports whether x lies inside r. NaN is never contained.
func (r Range) Contains(x float64) bool {
	if r.MinIncluded {
		if !(x >= r.Min) {
			return false
		}
	} else if !(x > r.Min) {
		return false
	}
	if r.MaxIncluded {
		return x <= r.Max
	}
	return x < r.Max
}

func (r Range) String() string {
	lb, rb := "(", ")"
	if r.MinIncluded {
		lb = "["
	}
	if r.MaxIncluded {
		rb = "]"
	}
	return fmt.Sprintf("%s%g,%g%s", lb, r.Min, r.Max, rb)
}

// byteTable precomputes r.Contains for every byte sample value
func (r Range) byteTable() *[256]bool {
	var t [256]bool
	for i := range t {
		t[i] = r.Contains(float64(i))
	}
	return &t
}
