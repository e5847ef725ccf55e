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

package main

import (
	"math"
	"strconv"

	"github.com/airbusgeo/tilestats"
)

// number is a float that encodes NaN and infinities as null in json
type number float64

func (n number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

func (n number) MarshalYAML() (interface{}, error) {
	return float64(n), nil
}

type bucketReport struct {
	Min   number `json:"min" yaml:"min"`
	Max   number `json:"max" yaml:"max"`
	Value number `json:"value" yaml:"value"`
}

type statReport struct {
	Kind    string         `json:"kind" yaml:"kind"`
	Count   uint64         `json:"count" yaml:"count"`
	Value   *number        `json:"value,omitempty" yaml:"value,omitempty"`
	Min     *number        `json:"min,omitempty" yaml:"min,omitempty"`
	Max     *number        `json:"max,omitempty" yaml:"max,omitempty"`
	Buckets []bucketReport `json:"buckets,omitempty" yaml:"buckets,omitempty"`
}

type bandReport struct {
	Band       int          `json:"band" yaml:"band"`
	Statistics []statReport `json:"statistics" yaml:"statistics"`
}

type report struct {
	Bands []bandReport `json:"bands" yaml:"bands"`
}

func num(f float64) *number {
	n := number(f)
	return &n
}

func newReport(g tilestats.Grid) report {
	rep := report{Bands: make([]bandReport, len(g.Bands))}
	for i, b := range g.Bands {
		br := bandReport{Band: b, Statistics: make([]statReport, len(g.Requests))}
		for k, res := range g.Results[i] {
			sr := statReport{Kind: res.Kind.String(), Count: res.Count}
			switch res.Kind {
			case tilestats.KindExtrema:
				sr.Min, sr.Max = num(res.Min), num(res.Max)
			case tilestats.KindHistogram:
				h := res.Histogram
				for bi := 0; h != nil && bi < h.Len(); bi++ {
					bk := h.Bucket(bi)
					sr.Buckets = append(sr.Buckets, bucketReport{number(bk.Min), number(bk.Max), number(bk.Value)})
				}
			default:
				sr.Value = num(res.Value)
			}
			br.Statistics[k] = sr
		}
		rep.Bands[i] = br
	}
	return rep
}
