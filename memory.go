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
)

// MemorySource is a TileSource over full image bands held in memory. Tiles are
// returned as views into the band slices, no sample is copied.
type MemorySource struct {
	st    Structure
	bands []interface{}
}

// NewMemorySource creates a sizeX*sizeY image cut into tileSizeX*tileSizeY tiles.
// Each band must be a typed slice of exactly sizeX*sizeY samples, in scanline order,
// and all bands must share the same type.
func NewMemorySource(sizeX, sizeY int, tileSizeX, tileSizeY int, bands ...interface{}) (*MemorySource, error) {
	if len(bands) == 0 {
		return nil, configErrorf("bands", "no bands")
	}
	dtype := dataTypeOf(bands[0])
	st := Structure{
		SizeX:     sizeX,
		SizeY:     sizeY,
		TileSizeX: tileSizeX,
		TileSizeY: tileSizeY,
		NBands:    len(bands),
		DataType:  dtype,
	}
	if err := st.validate(); err != nil {
		return nil, err
	}
	for i, b := range bands {
		if dataTypeOf(b) != dtype {
			return nil, configErrorf("bands", "band %d is %T, expected %s", i, b, dtype)
		}
		if bufferLen(b) != sizeX*sizeY {
			return nil, configErrorf("bands", "band %d has %d samples, expected %d", i, bufferLen(b), sizeX*sizeY)
		}
	}
	return &MemorySource{st: st, bands: bands}, nil
}

// Structure implements TileSource
func (m *MemorySource) Structure() Structure {
	return m.st
}

// ReadTile implements TileSource
func (m *MemorySource) ReadTile(ctx context.Context, t Tile) (*Buffer, error) {
	if t.W <= 0 || t.H <= 0 || t.X0+t.W > m.st.SizeX || t.Y0+t.H > m.st.SizeY {
		return nil, fmt.Errorf("tile %d out of bounds", t.Index)
	}
	off := t.Y0*m.st.SizeX + t.X0
	end := (t.Y0+t.H-1)*m.st.SizeX + t.X0 + t.W
	buf := &Buffer{Rect: t.Rect(), Stride: m.st.SizeX, Bands: make([]interface{}, len(m.bands))}
	for i, b := range m.bands {
		buf.Bands[i] = subSlice(b, off, end)
	}
	return buf, nil
}

func subSlice(buffer interface{}, off, end int) interface{} {
	switch b := buffer.(type) {
	case []uint8:
		return b[off:end]
	case []uint16:
		return b[off:end]
	case []int16:
		return b[off:end]
	case []uint32:
		return b[off:end]
	case []int32:
		return b[off:end]
	case []float32:
		return b[off:end]
	case []float64:
		return b[off:end]
	default:
		panic("unsupported type")
	}
}
