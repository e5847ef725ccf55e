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
	"math"
	"sort"
)

// RectROI is the union of a set of rectangles
type RectROI struct {
	rects  []image.Rectangle
	bounds image.Rectangle
}

// NewRectROI returns the region covered by rects. Empty rectangles are ignored.
func NewRectROI(rects ...image.Rectangle) *RectROI {
	roi := &RectROI{}
	for _, r := range rects {
		r = r.Canon()
		if r.Empty() {
			continue
		}
		roi.rects = append(roi.rects, r)
		roi.bounds = roi.bounds.Union(r)
	}
	return roi
}

// Bounds implements ROI
func (rr *RectROI) Bounds() image.Rectangle {
	return rr.bounds
}

// Contains implements ROI
func (rr *RectROI) Contains(x, y int) bool {
	p := image.Point{x, y}
	for _, r := range rr.rects {
		if p.In(r) {
			return true
		}
	}
	return false
}

// Plane implements ROIPlaner
func (rr *RectROI) Plane(r image.Rectangle) ([]byte, bool) {
	plane := make([]byte, r.Dx()*r.Dy())
	for _, rect := range rr.rects {
		in := rect.Intersect(r)
		for y := in.Min.Y; y < in.Max.Y; y++ {
			row := plane[(y-r.Min.Y)*r.Dx():]
			for x := in.Min.X; x < in.Max.X; x++ {
				row[x-r.Min.X] = 1
			}
		}
	}
	return plane, true
}

// Point is a polygon vertex in pixel coordinates. Pixel (x,y) spans
// [x,x+1)*[y,y+1), its center is at (x+0.5,y+0.5).
type Point struct {
	X, Y float64
}

// PolygonROI is a region delimited by one or more rings, combined with the
// even-odd rule (a ring inside another one is a hole). A pixel is inside when
// its center is.
type PolygonROI struct {
	rings  [][]Point
	bounds image.Rectangle
}

// NewPolygonROI returns the region delimited by rings. Rings are implicitly
// closed, rings with fewer than 3 vertices are ignored.
func NewPolygonROI(rings ...[]Point) (*PolygonROI, error) {
	pr := &PolygonROI{}
	minx, miny := math.Inf(1), math.Inf(1)
	maxx, maxy := math.Inf(-1), math.Inf(-1)
	for _, ring := range rings {
		if len(ring) < 3 {
			continue
		}
		for _, p := range ring {
			if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
				return nil, configErrorf("roi", "invalid polygon vertex %v", p)
			}
			minx, maxx = math.Min(minx, p.X), math.Max(maxx, p.X)
			miny, maxy = math.Min(miny, p.Y), math.Max(maxy, p.Y)
		}
		pr.rings = append(pr.rings, ring)
	}
	if len(pr.rings) == 0 {
		return nil, configErrorf("roi", "no polygon ring")
	}
	pr.bounds = image.Rect(int(math.Floor(minx)), int(math.Floor(miny)),
		int(math.Ceil(maxx)), int(math.Ceil(maxy)))
	return pr, nil
}

// Bounds implements ROI
func (pr *PolygonROI) Bounds() image.Rectangle {
	return pr.bounds
}

// crossings appends the abscissas at which the rings' edges cross the
// horizontal line at ordinate py
func (pr *PolygonROI) crossings(xs []float64, py float64) []float64 {
	for _, ring := range pr.rings {
		j := len(ring) - 1
		for i := range ring {
			a, b := ring[j], ring[i]
			if (a.Y > py) != (b.Y > py) {
				xs = append(xs, a.X+(py-a.Y)*(b.X-a.X)/(b.Y-a.Y))
			}
			j = i
		}
	}
	return xs
}

// Contains implements ROI
func (pr *PolygonROI) Contains(x, y int) bool {
	if !(image.Point{x, y}.In(pr.bounds)) {
		return false
	}
	px := float64(x) + 0.5
	inside := false
	for _, xint := range pr.crossings(nil, float64(y)+0.5) {
		if px < xint {
			inside = !inside
		}
	}
	return inside
}

// Plane implements ROIPlaner with a scanline fill
func (pr *PolygonROI) Plane(r image.Rectangle) ([]byte, bool) {
	plane := make([]byte, r.Dx()*r.Dy())
	in := r.Intersect(pr.bounds)
	var xs []float64
	for y := in.Min.Y; y < in.Max.Y; y++ {
		xs = pr.crossings(xs[:0], float64(y)+0.5)
		if len(xs) == 0 {
			continue
		}
		sort.Float64s(xs)
		row := plane[(y-r.Min.Y)*r.Dx():]
		// len(xs)-k crossings lie right of the center, as counted by Contains
		k := 0
		for x := in.Min.X; x < in.Max.X; x++ {
			px := float64(x) + 0.5
			for k < len(xs) && !(px < xs[k]) {
				k++
			}
			if (len(xs)-k)%2 == 1 {
				row[x-r.Min.X] = 1
			}
		}
	}
	return plane, true
}
