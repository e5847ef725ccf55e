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
	"context"
	"fmt"
	"image"
)

// TileSource supplies the samples of a tiled image. ReadTile is called
// concurrently for different tiles when the engine runs with a parallel
// scheduler and must not retain or modify returned buffers afterwards.
type TileSource interface {
	Structure() Structure
	ReadTile(ctx context.Context, t Tile) (*Buffer, error)
}

// Buffer holds the samples of every band of one tile. Bands contains one typed
// slice per band ([]uint8, []uint16, []int16, []uint32, []int32, []float32 or
// []float64), all of the same type. The sample at pixel (x, y) of band b is
// Bands[b][(y-Rect.Min.Y)*Stride + (x-Rect.Min.X)].
type Buffer struct {
	Rect   image.Rectangle
	Stride int
	Bands  []interface{}
}

// DataType returns the type of the buffer's samples
func (b *Buffer) DataType() DataType {
	if len(b.Bands) == 0 {
		return Unknown
	}
	return dataTypeOf(b.Bands[0])
}

func (b *Buffer) check(st Structure, t Tile) error {
	if !b.Rect.Eq(t.Rect()) {
		return fmt.Errorf("tile %d: buffer covers %v, expected %v", t.Index, b.Rect, t.Rect())
	}
	if len(b.Bands) != st.NBands {
		return fmt.Errorf("tile %d: got %d bands, expected %d", t.Index, len(b.Bands), st.NBands)
	}
	if b.Stride < b.Rect.Dx() {
		return fmt.Errorf("tile %d: stride %d smaller than width %d", t.Index, b.Stride, b.Rect.Dx())
	}
	need := 0
	if !b.Rect.Empty() {
		need = (b.Rect.Dy()-1)*b.Stride + b.Rect.Dx()
	}
	for i, band := range b.Bands {
		if dt := dataTypeOf(band); dt != st.DataType {
			return fmt.Errorf("tile %d band %d: %w %T, expected %s", t.Index, i, ErrUnsupportedType, band, st.DataType)
		}
		if bufferLen(band) < need {
			return fmt.Errorf("tile %d band %d: %d samples, need %d", t.Index, i, bufferLen(band), need)
		}
	}
	return nil
}
