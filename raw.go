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
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Interleaving is the sample layout of a raw raster file
type Interleaving int

const (
	// BSQ stores each band as a full image, one after the other
	BSQ Interleaving = iota
	// BIL stores, for each line, one line of every band
	BIL
	// BIP stores all band samples of a pixel contiguously
	BIP
)

// MultiReaderAt is an optional interface implemented by readers that can serve
// several ranges in one call (see gcs.Object). RawSource uses it to fetch all the
// lines of a tile at once.
type MultiReaderAt interface {
	ReadAtMulti(bufs [][]byte, offs []int64) ([]int, error)
}

type rawOpts struct {
	interleave Interleaving
	order      binary.ByteOrder
	offset     int64
}

// RawOption is an option that can be passed to NewRawSource
//
// Available RawOptions are:
//
// • Interleave
//
// • ByteOrder
//
// • HeaderOffset
type RawOption interface {
	setRawOpt(ro *rawOpts)
}

type interleaveOpt struct{ il Interleaving }

func (o interleaveOpt) setRawOpt(ro *rawOpts) { ro.interleave = o.il }

// Interleave sets the file's sample layout. Defaults to BSQ.
func Interleave(il Interleaving) RawOption {
	return interleaveOpt{il}
}

type byteOrderOpt struct{ bo binary.ByteOrder }

func (o byteOrderOpt) setRawOpt(ro *rawOpts) { ro.order = o.bo }

// ByteOrder sets the endianness of multi-byte samples. Defaults to little endian.
func ByteOrder(bo binary.ByteOrder) RawOption {
	return byteOrderOpt{bo}
}

type headerOffsetOpt struct{ off int64 }

func (o headerOffsetOpt) setRawOpt(ro *rawOpts) { ro.offset = o.off }

// HeaderOffset skips the first off bytes of the file
func HeaderOffset(off int64) RawOption {
	return headerOffsetOpt{off}
}

// RawSource is a TileSource reading a headerless raster file through an
// io.ReaderAt. The reader must support concurrent ReadAt calls.
type RawSource struct {
	r    io.ReaderAt
	st   Structure
	opts rawOpts
}

// NewRawSource returns a TileSource reading samples laid out as described by st
// from r. st.TileSizeX and st.TileSizeY only define the processing tiles, the
// file itself is not tiled.
func NewRawSource(r io.ReaderAt, st Structure, opts ...RawOption) (*RawSource, error) {
	ro := rawOpts{order: binary.LittleEndian}
	for _, o := range opts {
		o.setRawOpt(&ro)
	}
	if err := st.validate(); err != nil {
		return nil, err
	}
	if ro.interleave < BSQ || ro.interleave > BIP {
		return nil, configErrorf("interleave", "unknown layout %d", ro.interleave)
	}
	if ro.offset < 0 {
		return nil, configErrorf("offset", "negative header offset %d", ro.offset)
	}
	return &RawSource{r: r, st: st, opts: ro}, nil
}

// Structure implements TileSource
func (rs *RawSource) Structure() Structure {
	return rs.st
}

// ReadTile implements TileSource
func (rs *RawSource) ReadTile(ctx context.Context, t Tile) (*Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st := rs.st
	size := st.DataType.Size()
	var bufs [][]byte
	var offs []int64
	if rs.opts.interleave == BIP {
		line := t.W * st.NBands * size
		raw := make([]byte, line*t.H)
		for y := 0; y < t.H; y++ {
			bufs = append(bufs, raw[y*line:(y+1)*line])
			offs = append(offs, rs.opts.offset+int64(((t.Y0+y)*st.SizeX+t.X0)*st.NBands*size))
		}
	} else {
		line := t.W * size
		raw := make([]byte, line*t.H*st.NBands)
		for b := 0; b < st.NBands; b++ {
			for y := 0; y < t.H; y++ {
				var pix int
				if rs.opts.interleave == BSQ {
					pix = (b*st.SizeY+t.Y0+y)*st.SizeX + t.X0
				} else {
					pix = ((t.Y0+y)*st.NBands+b)*st.SizeX + t.X0
				}
				i := b*t.H + y
				bufs = append(bufs, raw[i*line:(i+1)*line])
				offs = append(offs, rs.opts.offset+int64(pix*size))
			}
		}
	}
	if err := rs.readRanges(bufs, offs); err != nil {
		return nil, fmt.Errorf("read tile %d: %w", t.Index, err)
	}

	buf := &Buffer{Rect: t.Rect(), Stride: t.W, Bands: make([]interface{}, st.NBands)}
	for b := range buf.Bands {
		buf.Bands[b] = makeBuffer(st.DataType, t.W*t.H)
	}
	for b := 0; b < st.NBands; b++ {
		for y := 0; y < t.H; y++ {
			if rs.opts.interleave == BIP {
				decodeLine(buf.Bands[b], y*t.W, bufs[y][b*size:], t.W, st.NBands*size, rs.opts.order)
			} else {
				decodeLine(buf.Bands[b], y*t.W, bufs[b*t.H+y], t.W, size, rs.opts.order)
			}
		}
	}
	return buf, nil
}

func (rs *RawSource) readRanges(bufs [][]byte, offs []int64) error {
	if mr, ok := rs.r.(MultiReaderAt); ok {
		n, err := mr.ReadAtMulti(bufs, offs)
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		for i := range bufs {
			if i >= len(n) || n[i] != len(bufs[i]) {
				return io.ErrUnexpectedEOF
			}
		}
		return nil
	}
	for i := range bufs {
		n, err := rs.r.ReadAt(bufs[i], offs[i])
		if n == len(bufs[i]) {
			continue
		}
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return err
	}
	return nil
}

// decodeLine decodes n samples from src, step bytes apart, into dst[at:]
func decodeLine(dst interface{}, at int, src []byte, n, step int, order binary.ByteOrder) {
	switch d := dst.(type) {
	case []uint8:
		for i := 0; i < n; i++ {
			d[at+i] = src[i*step]
		}
	case []uint16:
		for i := 0; i < n; i++ {
			d[at+i] = order.Uint16(src[i*step:])
		}
	case []int16:
		for i := 0; i < n; i++ {
			d[at+i] = int16(order.Uint16(src[i*step:]))
		}
	case []uint32:
		for i := 0; i < n; i++ {
			d[at+i] = order.Uint32(src[i*step:])
		}
	case []int32:
		for i := 0; i < n; i++ {
			d[at+i] = int32(order.Uint32(src[i*step:]))
		}
	case []float32:
		for i := 0; i < n; i++ {
			d[at+i] = math.Float32frombits(order.Uint32(src[i*step:]))
		}
	case []float64:
		for i := 0; i < n; i++ {
			d[at+i] = math.Float64frombits(order.Uint64(src[i*step:]))
		}
	default:
		panic("unsupported type")
	}
}
