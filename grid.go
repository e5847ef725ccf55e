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

// Grid is a snapshot of the engine's results. Results[i][k] is the result of
// Requests[k] for source band Bands[i]; the shape only depends on the options
// the Engine was created with.
type Grid struct {
	Bands    []int
	Requests []Request
	Results  [][]Result
}

// Band returns the results of source band b, in request order
func (g Grid) Band(b int) ([]Result, bool) {
	for i, bb := range g.Bands {
		if bb == b {
			return g.Results[i], true
		}
	}
	return nil, false
}

// Get returns the first result of kind k for source band b
func (g Grid) Get(b int, k Kind) (Result, bool) {
	res, ok := g.Band(b)
	if !ok {
		return Result{}, false
	}
	for i, r := range g.Requests {
		if r.Kind == k {
			return res[i], true
		}
	}
	return Result{}, false
}
