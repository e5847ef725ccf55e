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
	"image"

	"golang.org/x/exp/constraints"
)

type sample interface {
	constraints.Integer | constraints.Float
}

// scanner holds the per-tile state of a scan: the private accumulators of the
// mergeable statistics and the qualifying samples destined to the shared
// non-mergeable ones.
type scanner struct {
	rect             image.Rectangle
	stride           int
	xPeriod, yPeriod int
	mask             *maskPolicy
	// ROI plane over rect, nil for point queries
	plane    []byte
	floating bool

	// local[b][k] mirrors the global grid, nil for non-mergeable cells
	local [][]Statistic
	// hot[b] lists the non-nil entries of local[b]
	hot [][]Statistic
	// raw[b] collects qualifying samples when band b has a non-mergeable statistic
	raw     [][]float64
	needRaw []bool

	samples uint64
}

func (sc *scanner) inROI(x, y int) bool {
	if !(image.Point{x, y}.In(sc.mask.roiBounds)) {
		return false
	}
	if sc.plane != nil {
		return sc.plane[(y-sc.rect.Min.Y)*sc.rect.Dx()+x-sc.rect.Min.X] != 0
	}
	return sc.mask.roi.Contains(x, y)
}

// scanTile feeds the samples of bands (one slice per selected band, laid out
// as described by sc.rect and sc.stride) to the scanner's accumulators
func scanTile[T sample](sc *scanner, bands [][]T) {
	useROI := sc.mask.usesROI()
	useNoData := sc.mask.usesNoData()
	table := sc.mask.byteTable
	nodata := sc.mask.nodata
	for y := sc.rect.Min.Y; y < sc.rect.Max.Y; y += sc.yPeriod {
		row := (y - sc.rect.Min.Y) * sc.stride
		for x := sc.rect.Min.X; x < sc.rect.Max.X; x += sc.xPeriod {
			// roi first, the nodata test is skipped for excluded pixels
			if useROI && !sc.inROI(x, y) {
				continue
			}
			idx := row + x - sc.rect.Min.X
			for b, band := range bands {
				s := band[idx]
				v := float64(s)
				isNaN := sc.floating && v != v
				qualified := true
				if useNoData && !isNaN {
					if table != nil {
						qualified = !table[uint8(s)]
					} else {
						qualified = !nodata.Contains(v)
					}
				}
				if sc.floating {
					for _, st := range sc.hot[b] {
						st.AddSampleNaN(v, qualified, isNaN)
					}
				} else {
					for _, st := range sc.hot[b] {
						st.AddSample(v, qualified)
					}
				}
				if qualified && !isNaN {
					sc.samples++
					if sc.needRaw[b] {
						sc.raw[b] = append(sc.raw[b], v)
					}
				}
			}
		}
	}
}

func selectBands[T sample](buf *Buffer, sel []int) [][]T {
	out := make([][]T, len(sel))
	for i, b := range sel {
		out[i] = buf.Bands[b].([]T)
	}
	return out
}

// scan dispatches on the buffer's sample type
func (sc *scanner) scan(buf *Buffer, sel []int) {
	switch buf.DataType() {
	case Byte:
		scanTile(sc, selectBands[uint8](buf, sel))
	case UInt16:
		scanTile(sc, selectBands[uint16](buf, sel))
	case Int16:
		scanTile(sc, selectBands[int16](buf, sel))
	case UInt32:
		scanTile(sc, selectBands[uint32](buf, sel))
	case Int32:
		scanTile(sc, selectBands[int32](buf, sel))
	case Float32:
		scanTile(sc, selectBands[float32](buf, sel))
	case Float64:
		scanTile(sc, selectBands[float64](buf, sel))
	default:
		panic("unsupported type")
	}
}
