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

package tilestats_test

import (
	"context"
	"fmt"
	"image"

	"github.com/airbusgeo/tilestats"
)

func ExampleEngine_Results() {
	pix := []uint8{
		0, 1, 2, 3,
		4, 5, 6, 7,
		8, 9, 10, 11,
		12, 13, 14, 255,
	}
	//a 4x4 image processed as four 2x2 tiles
	src, _ := tilestats.NewMemorySource(4, 4, 2, 2, pix)

	eng, err := tilestats.New(src,
		tilestats.Statistics(
			tilestats.Stat(tilestats.KindMean),
			tilestats.Stat(tilestats.KindExtrema),
			tilestats.RangedStat(tilestats.KindMedian, 0, 0, 256),
		),
		//255 flags missing samples
		tilestats.NoData(tilestats.Value(255)),
		//only the 3 first columns
		tilestats.WithROI(tilestats.NewRectROI(image.Rect(0, 0, 3, 4))),
	)
	if err != nil {
		panic(err)
	}
	defer eng.Close()

	grid, err := eng.Results(context.Background())
	if err != nil {
		panic(err)
	}
	for _, res := range grid.Results[0] {
		fmt.Println(res.Kind, res.Count, res.Values())
	}
	// Output:
	// mean 12 [7]
	// extrema 12 [0 14]
	// median 12 [7]
}

func ExampleStructure_Tile() {
	st := tilestats.Structure{SizeX: 5, SizeY: 3, TileSizeX: 2, TileSizeY: 2, NBands: 1, DataType: tilestats.Byte}
	for i := 0; ; i++ {
		tile, ok := st.Tile(i)
		if !ok {
			break
		}
		fmt.Println(tile.Index, tile.Rect())
	}
	// Output:
	// 0 (0,0)-(2,2)
	// 1 (2,0)-(4,2)
	// 2 (4,0)-(5,2)
	// 3 (0,2)-(2,3)
	// 4 (2,2)-(4,3)
	// 5 (4,2)-(5,3)
}
