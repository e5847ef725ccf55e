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

/*
Package tilestats computes per-band statistics over tiled rasters.

An Engine walks every tile of a TileSource, restricts the samples with an
optional region of interest (ROI) and nodata range, and folds them into one
Statistic per band and requested kind. Mean, sum, min, max, extrema, variance
and standard deviation are accumulated per tile and merged; histogram, mode and
median receive every qualifying sample.

	src, _ := tilestats.NewMemorySource(width, height, 256, 256, band0, band1)
	eng, _ := tilestats.New(src,
		tilestats.Statistics(tilestats.Stat(tilestats.KindMean)),
		tilestats.NoData(tilestats.Value(0)),
		tilestats.WithScheduler(tilestats.Parallel(0)))
	defer eng.Close()
	grid, err := eng.Results(ctx)

Statistics are computed once: later calls to Compute or Results reuse them
until Reset.
*/
package tilestats
