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
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestMemorySource(t *testing.T) {
	_, err := NewMemorySource(2, 2, 1, 1)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewMemorySource(2, 2, 1, 1, []uint8{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewMemorySource(2, 2, 1, 1, []uint8{1, 2, 3, 4}, []int16{1, 2, 3, 4})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewMemorySource(2, 2, 1, 1, []int64{1, 2, 3, 4})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	pix := []int16{
		0, 1, 2, 3, 4,
		5, 6, 7, 8, 9,
		10, 11, 12, 13, 14,
	}
	src, err := NewMemorySource(5, 3, 2, 2, pix)
	require.NoError(t, err)
	assert.Equal(t, Int16, src.Structure().DataType)
	tile, _ := src.Structure().Tile(1)
	buf, err := src.ReadTile(context.Background(), tile)
	require.NoError(t, err)
	require.NoError(t, buf.check(src.Structure(), tile))
	assert.Equal(t, 5, buf.Stride)
	b := buf.Bands[0].([]int16)
	assert.Equal(t, int16(2), b[0])
	assert.Equal(t, int16(8), b[buf.Stride+1])
	// views share the band memory
	pix[2] = 42
	assert.Equal(t, int16(42), b[0])
}

// testSample is the value of band b at x,y
func testSample(b, x, y int) float64 {
	return float64(b*1000 + y*10 + x)
}

func encodeRaw(t *testing.T, il Interleaving, order binary.ByteOrder, dt DataType, sx, sy, nb int) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	put := func(v float64) {
		var err error
		switch dt {
		case UInt16:
			err = binary.Write(buf, order, uint16(v))
		case Int32:
			err = binary.Write(buf, order, int32(-v))
		case Float32:
			err = binary.Write(buf, order, float32(v)+0.5)
		case Float64:
			err = binary.Write(buf, order, v/4)
		}
		require.NoError(t, err)
	}
	switch il {
	case BSQ:
		for b := 0; b < nb; b++ {
			for y := 0; y < sy; y++ {
				for x := 0; x < sx; x++ {
					put(testSample(b, x, y))
				}
			}
		}
	case BIL:
		for y := 0; y < sy; y++ {
			for b := 0; b < nb; b++ {
				for x := 0; x < sx; x++ {
					put(testSample(b, x, y))
				}
			}
		}
	case BIP:
		for y := 0; y < sy; y++ {
			for x := 0; x < sx; x++ {
				for b := 0; b < nb; b++ {
					put(testSample(b, x, y))
				}
			}
		}
	}
	return buf.Bytes()
}

func expectedSample(dt DataType, b, x, y int) float64 {
	v := testSample(b, x, y)
	switch dt {
	case Int32:
		return -v
	case Float32:
		return float64(float32(v) + 0.5)
	case Float64:
		return v / 4
	}
	return v
}

func sampleAt(buf *Buffer, b, x, y int) float64 {
	i := (y-buf.Rect.Min.Y)*buf.Stride + x - buf.Rect.Min.X
	switch d := buf.Bands[b].(type) {
	case []uint16:
		return float64(d[i])
	case []int32:
		return float64(d[i])
	case []float32:
		return float64(d[i])
	case []float64:
		return d[i]
	}
	panic("unexpected buffer type")
}

type multiReader struct {
	r     io.ReaderAt
	calls *atomic.Int64
}

func (m multiReader) ReadAt(p []byte, off int64) (int, error) {
	return 0, errors.New("ReadAt must not be called")
}

func (m multiReader) ReadAtMulti(bufs [][]byte, offs []int64) ([]int, error) {
	m.calls.Inc()
	n := make([]int, len(bufs))
	var err error
	for i := range bufs {
		n[i], err = m.r.ReadAt(bufs[i], offs[i])
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func TestRawSource(t *testing.T) {
	const sx, sy, nb = 7, 5, 3
	header := []byte("HEADER")
	for _, il := range []Interleaving{BSQ, BIL, BIP} {
		for _, dt := range []DataType{UInt16, Int32, Float32, Float64} {
			for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
				data := append(append([]byte{}, header...), encodeRaw(t, il, order, dt, sx, sy, nb)...)
				st := Structure{SizeX: sx, SizeY: sy, TileSizeX: 3, TileSizeY: 2, NBands: nb, DataType: dt}
				mr := multiReader{r: bytes.NewReader(data), calls: atomic.NewInt64(0)}
				for _, r := range []io.ReaderAt{bytes.NewReader(data), mr} {
					src, err := NewRawSource(r, st, Interleave(il), ByteOrder(order), HeaderOffset(int64(len(header))))
					require.NoError(t, err)
					for i := 0; i < 9; i++ {
						tile, ok := st.Tile(i)
						require.True(t, ok)
						buf, err := src.ReadTile(context.Background(), tile)
						require.NoError(t, err)
						require.NoError(t, buf.check(st, tile))
						for b := 0; b < nb; b++ {
							for y := tile.Y0; y < tile.Y0+tile.H; y++ {
								for x := tile.X0; x < tile.X0+tile.W; x++ {
									require.Equal(t, expectedSample(dt, b, x, y), sampleAt(buf, b, x, y),
										"il:%d dt:%s order:%s band %d at %d,%d", il, dt, order, b, x, y)
								}
							}
						}
					}
				}
				// one call per tile
				assert.EqualValues(t, 9, mr.calls.Load())
			}
		}
	}
}

func TestRawSourceErrors(t *testing.T) {
	st := Structure{SizeX: 4, SizeY: 4, TileSizeX: 2, TileSizeY: 2, NBands: 1, DataType: Float32}
	_, err := NewRawSource(bytes.NewReader(nil), st, Interleave(Interleaving(7)))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewRawSource(bytes.NewReader(nil), st, HeaderOffset(-1))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	// truncated file, last row missing
	data := make([]byte, 4*4*3)
	binary.LittleEndian.PutUint32(data, math.Float32bits(1.5))
	src, err := NewRawSource(bytes.NewReader(data), st)
	require.NoError(t, err)
	tile, _ := st.Tile(0)
	buf, err := src.ReadTile(context.Background(), tile)
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), buf.Bands[0].([]float32)[0])
	tile, _ = st.Tile(3)
	_, err = src.ReadTile(context.Background(), tile)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.ReadTile(ctx, tile)
	assert.ErrorIs(t, err, context.Canceled)
}
