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

import "image"

// Tile is a window inside an image, starting at pixel X0,Y0 and spanning
// W,H pixels. Index is the tile's position in scanline order.
type Tile struct {
	Index  int
	X0, Y0 int
	W, H   int
}

// Rect returns the pixel rectangle covered by the tile
func (t Tile) Rect() image.Rectangle {
	return image.Rect(t.X0, t.Y0, t.X0+t.W, t.Y0+t.H)
}

// Structure describes the geometry and sample layout of a tiled image
type Structure struct {
	SizeX, SizeY         int
	TileSizeX, TileSizeY int
	NBands               int
	DataType             DataType
}

// Bounds returns the image rectangle
func (st Structure) Bounds() image.Rectangle {
	return image.Rect(0, 0, st.SizeX, st.SizeY)
}

// TileCount returns the number of tiles in the x and y dimensions
func (st Structure) TileCount() (int, int) {
	return (st.SizeX + st.TileSizeX - 1) / st.TileSizeX,
		(st.SizeY + st.TileSizeY - 1) / st.TileSizeY
}

// Tile returns the tile with the given scanline index. ok is false if index is
// out of range.
func (st Structure) Tile(index int) (t Tile, ok bool) {
	nx, ny := st.TileCount()
	if index < 0 || index >= nx*ny {
		return Tile{}, false
	}
	i, j := index%nx, index/nx
	t = Tile{Index: index, X0: i * st.TileSizeX, Y0: j * st.TileSizeY}
	t.W, t.H = st.ActualTileSize(i, j)
	return t, true
}

// ActualTileSize returns the number of pixels in the x and y dimensions
// that actually contain data for the given x,y tile
func (st Structure) ActualTileSize(tileX, tileY int) (int, int) {
	return actualTileSize(st.SizeX, st.SizeY, st.TileSizeX, st.TileSizeY, tileX, tileY)
}

func (st Structure) validate() error {
	if st.SizeX <= 0 || st.SizeY <= 0 {
		return configErrorf("structure", "invalid image size %dx%d", st.SizeX, st.SizeY)
	}
	if st.TileSizeX <= 0 || st.TileSizeY <= 0 {
		return configErrorf("structure", "invalid tile size %dx%d", st.TileSizeX, st.TileSizeY)
	}
	if st.NBands <= 0 {
		return configErrorf("structure", "no bands")
	}
	if st.DataType <= Unknown || st.DataType > Float64 {
		return configErrorf("structure", "%v", ErrUnsupportedType)
	}
	return nil
}

func actualTileSize(sizeX, sizeY int, tileSizeX, tileSizeY int, tileX, tileY int) (int, int) {
	cx, cy := (sizeX+tileSizeX-1)/tileSizeX,
		(sizeY+tileSizeY-1)/tileSizeY
	if tileX < 0 || tileY < 0 || tileX >= cx || tileY >= cy {
		return 0, 0
	}
	retx := tileSizeX
	rety := tileSizeY
	if tileX == cx-1 {
		retx = sizeX - tileX*tileSizeX
	}
	if tileY == cy-1 {
		rety = sizeY - tileY*tileSizeY
	}
	return retx, rety
}
