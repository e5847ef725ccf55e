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
	"image/color"
)

// ROI is a region of interest restricting which pixels contribute to the
// statistics. Implementations must be immutable and safe for concurrent use.
type ROI interface {
	// Bounds is the smallest rectangle containing every pixel of the region
	Bounds() image.Rectangle
	// Contains reports whether pixel (x,y) is part of the region
	Contains(x, y int) bool
}

// ROIPlaner is implemented by ROIs able to materialize their mask over a
// rectangle. Plane returns r.Dx()*r.Dy() bytes in scanline order (stride r.Dx()),
// non-zero for pixels inside the region. ok is false when the plane cannot be
// produced, in which case callers fall back to Contains.
type ROIPlaner interface {
	Plane(r image.Rectangle) (plane []byte, ok bool)
}

// RasterROI is a region defined by a byte mask: pixels with a non-zero mask
// value are inside.
type RasterROI struct {
	rect   image.Rectangle
	stride int
	pix    []byte
}

// NewRasterROI wraps a mask covering rect. pix holds rect.Dx()*rect.Dy() values
// in scanline order and must not be modified afterwards.
func NewRasterROI(rect image.Rectangle, pix []byte) (*RasterROI, error) {
	if rect.Empty() {
		return nil, configErrorf("roi", "empty mask rectangle %v", rect)
	}
	if len(pix) != rect.Dx()*rect.Dy() {
		return nil, configErrorf("roi", "mask has %d values, expected %d", len(pix), rect.Dx()*rect.Dy())
	}
	return &RasterROI{rect: rect, stride: rect.Dx(), pix: pix}, nil
}

// ImageROI builds a RasterROI from an image: pixels whose gray level is not
// zero are inside. The image is copied.
func ImageROI(img image.Image) (*RasterROI, error) {
	b := img.Bounds()
	pix := make([]byte, b.Dx()*b.Dy())
	if g, ok := img.(*image.Gray); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			copy(pix[(y-b.Min.Y)*b.Dx():], g.Pix[g.PixOffset(b.Min.X, y):g.PixOffset(b.Max.X, y)])
		}
		return NewRasterROI(b, pix)
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y != 0 {
				pix[(y-b.Min.Y)*b.Dx()+x-b.Min.X] = 1
			}
		}
	}
	return NewRasterROI(b, pix)
}

// Bounds implements ROI
func (m *RasterROI) Bounds() image.Rectangle {
	return m.rect
}

// Contains implements ROI
func (m *RasterROI) Contains(x, y int) bool {
	if !(image.Point{x, y}.In(m.rect)) {
		return false
	}
	return m.pix[(y-m.rect.Min.Y)*m.stride+x-m.rect.Min.X] != 0
}

// Plane implements ROIPlaner
func (m *RasterROI) Plane(r image.Rectangle) ([]byte, bool) {
	plane := make([]byte, r.Dx()*r.Dy())
	in := r.Intersect(m.rect)
	for y := in.Min.Y; y < in.Max.Y; y++ {
		src := m.pix[(y-m.rect.Min.Y)*m.stride+in.Min.X-m.rect.Min.X:]
		copy(plane[(y-r.Min.Y)*r.Dx()+in.Min.X-r.Min.X:], src[:in.Dx()])
	}
	return plane, true
}
