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

// Histogram is the result of a KindHistogram statistic. Each bin holds the sum
// of the samples that fell into it, not their number.
type Histogram struct {
	min, max float64
	bins     []float64
}

// Bucket is a histogram entry. It spans [Min,Max) and holds the weighted Value
// of the samples it received.
type Bucket struct {
	Min, Max float64
	Value    float64
}

//Len returns the number of buckets contained in the histogram
func (h *Histogram) Len() int {
	return len(h.bins)
}

//Bucket returns the i'th bucket in the histogram. i must be between 0 and Len()-1.
func (h *Histogram) Bucket(i int) Bucket {
	width := (h.max - h.min) / float64(len(h.bins))
	return Bucket{
		Min:   h.min + width*float64(i),
		Max:   h.min + width*float64(i+1),
		Value: h.bins[i],
	}
}

// Values returns a copy of the bin values
func (h *Histogram) Values() []float64 {
	return append([]float64(nil), h.bins...)
}

// Total returns the sum of all bins
func (h *Histogram) Total() float64 {
	t := 0.0
	for _, b := range h.bins {
		t += b
	}
	return t
}
