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

// Package blockcache exposes a keyed io.ReaderAt backed by fixed size blocks
// held in a blockcache.Cacher, so that the many small row reads issued when
// decoding a raster tile result in few requests to the underlying store.
package blockcache

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/airbusgeo/tilestats/pkg/blockcache"
	"github.com/vburenin/nsync"
	"golang.org/x/sync/errgroup"
)

// KeyReaderAt is the interface that wraps the basic ReadAt method for the specified key
//
// ReadAt reads len(p) bytes from the resource identified by key into p
// starting at offset off. It follows the io.ReaderAt contract: when
// n < len(p) a non-nil error explains why, and io.EOF is returned when the
// end of the resource was reached.
//
// Clients of ReadAt can execute parallel ReadAt calls on the same key.
type KeyReaderAt interface {
	ReadAt(key string, p []byte, off int64) (int, error)
}

// NamedOnceMutex is a locker on arbitrary lock names.
type NamedOnceMutex interface {
	//Lock tries to acquire a lock on a keyed resource. If the keyed resource is not already locked,
	//Lock aquires a lock to the resource and returns true. If the keyed resource is already locked,
	//Lock waits until the resource has been unlocked and returns false
	Lock(key interface{}) bool
	//Unlock a keyed resource. Should be called by a client whose call to Lock returned true once the
	//resource is ready for consumption by other clients
	Unlock(key interface{})
}

// DefaultBlockSize is used when New is called with a zero block size
const DefaultBlockSize = 64 * 1024

// BlockCache caches fixed-sized chunks of a KeyReaderAt, and exposes a KeyReaderAt
// that feeds primarily from its internal cache, ensuring that concurrent requests
// only result in a single call to the source reader.
type BlockCache struct {
	blockSize int64
	blmu      NamedOnceMutex
	cache     blockcache.Cacher
	reader    KeyReaderAt
}

// New creates a BlockCache reading blockSize chunks from reader. It panics if
// reader or cache is nil.
func New(reader KeyReaderAt, cache blockcache.Cacher, blockSize uint) *BlockCache {
	if reader == nil || cache == nil {
		panic("blockcache: nil reader or cache")
	}
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}
	return &BlockCache{
		blmu:      nsync.NewNamedOnceMutex(),
		cache:     cache,
		blockSize: int64(blockSize),
		reader:    reader,
	}
}

// SetLocker replaces the per-block locker
func (b *BlockCache) SetLocker(mu NamedOnceMutex) {
	b.blmu = mu
}

// BlockSize returns the size of the cached chunks
func (b *BlockCache) BlockSize() int64 {
	return b.blockSize
}

// PurgeKey drops the cached blocks of key
func (b *BlockCache) PurgeKey(key string) {
	b.cache.PurgeKey(key)
}

// Purge drops all cached blocks
func (b *BlockCache) Purge() {
	b.cache.Purge()
}

type blockRange struct {
	start int64
	end   int64
}

func (b *BlockCache) blockKey(key string, id int64) string {
	return fmt.Sprintf("%s-%d", key, id)
}

// fetchRange reads the contiguous blocks of rng with a single call to the
// source reader. The caller must own the locks of all the blocks in rng.
func (b *BlockCache) fetchRange(key string, rng blockRange) ([][]byte, error) {
	nblocks := rng.end - rng.start + 1
	buf := make([]byte, nblocks*b.blockSize)
	n, err := b.reader.ReadAt(key, buf, rng.start*b.blockSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	blocks := make([][]byte, nblocks)
	left := int64(n)
	for bid := int64(0); bid < nblocks; bid++ {
		ll := left
		if ll > b.blockSize {
			ll = b.blockSize
		}
		if ll > 0 {
			blocks[bid] = buf[bid*b.blockSize : bid*b.blockSize+ll : bid*b.blockSize+ll]
			left -= ll
		}
		b.cache.Add(key, uint(rng.start+bid), blocks[bid])
	}
	return blocks, nil
}

// getBlock returns a single block, either from the cache or from the source
// reader. Concurrent callers for the same block result in a single read.
func (b *BlockCache) getBlock(key string, id int64) ([]byte, error) {
	for {
		if data, ok := b.cache.Get(key, uint(id)); ok {
			return data, nil
		}
		bk := b.blockKey(key, id)
		if !b.blmu.Lock(bk) {
			// another caller fetched (or failed to fetch) the block, recheck the cache
			continue
		}
		blocks, err := b.fetchRange(key, blockRange{id, id})
		b.blmu.Unlock(bk)
		if err != nil {
			return nil, err
		}
		return blocks[0], nil
	}
}

// applyBlock copies the part of the block overlapping each requested buffer
func (b *BlockCache) applyBlock(block int64, data []byte, written []int, bufs [][]byte, offsets []int64) {
	if len(data) == 0 {
		return
	}
	blockStart := block * b.blockSize
	blockEnd := blockStart + int64(len(data))
	for ibuf := range bufs {
		bufStart := offsets[ibuf]
		bufEnd := bufStart + int64(len(bufs[ibuf]))
		start, end := blockStart, blockEnd
		if start < bufStart {
			start = bufStart
		}
		if end > bufEnd {
			end = bufEnd
		}
		if end > start {
			written[ibuf] += copy(bufs[ibuf][start-bufStart:end-bufStart], data[start-blockStart:end-blockStart])
		}
	}
}

// ReadAtMulti reads len(bufs[i]) bytes at offsets[i] for each i. The blocks
// missing from the cache are locked in ascending order, consecutive ones are
// coalesced into a single source read, and ranges are read in parallel.
// written[i] holds the number of bytes copied into bufs[i]; io.EOF is
// returned if any buffer could not be filled completely.
func (b *BlockCache) ReadAtMulti(key string, bufs [][]byte, offsets []int64) ([]int, error) {
	if len(bufs) != len(offsets) {
		return nil, fmt.Errorf("blockcache: %d buffers for %d offsets", len(bufs), len(offsets))
	}
	written := make([]int, len(bufs))
	blids := make(map[int64]struct{})
	for ibuf := range bufs {
		if offsets[ibuf] < 0 {
			return written, fmt.Errorf("blockcache: negative offset %d", offsets[ibuf])
		}
		if len(bufs[ibuf]) == 0 {
			continue
		}
		zblock := offsets[ibuf] / b.blockSize
		lblock := (offsets[ibuf] + int64(len(bufs[ibuf])) - 1) / b.blockSize
		for ib := zblock; ib <= lblock; ib++ {
			blids[ib] = struct{}{}
		}
	}

	// fetched keeps the blocks used by this call, as they may be evicted from
	// the cache before being copied out
	fetched := make(map[int64][]byte, len(blids))
	missing := make([]int64, 0, len(blids))
	for id := range blids {
		if data, ok := b.cache.Get(key, uint(id)); ok {
			fetched[id] = data
		} else {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })

	owned := make([]int64, 0, len(missing))
	retry := make([]int64, 0)
	for _, id := range missing {
		bk := b.blockKey(key, id)
		if b.blmu.Lock(bk) {
			// the block may have been added since the first lookup
			if data, ok := b.cache.Get(key, uint(id)); ok {
				b.blmu.Unlock(bk)
				fetched[id] = data
				continue
			}
			owned = append(owned, id)
			continue
		}
		if data, ok := b.cache.Get(key, uint(id)); ok {
			fetched[id] = data
		} else {
			retry = append(retry, id)
		}
	}

	var ranges []blockRange
	for k, id := range owned {
		if k > 0 && id == owned[k-1]+1 {
			ranges[len(ranges)-1].end = id
		} else {
			ranges = append(ranges, blockRange{id, id})
		}
	}

	mu := sync.Mutex{}
	eg := errgroup.Group{}
	for _, rng := range ranges {
		rng := rng
		eg.Go(func() error {
			defer func() {
				for id := rng.start; id <= rng.end; id++ {
					b.blmu.Unlock(b.blockKey(key, id))
				}
			}()
			blocks, err := b.fetchRange(key, rng)
			if err != nil {
				return err
			}
			mu.Lock()
			for i, data := range blocks {
				fetched[rng.start+int64(i)] = data
			}
			mu.Unlock()
			return nil
		})
	}
	for _, id := range retry {
		id := id
		eg.Go(func() error {
			data, err := b.getBlock(key, id)
			if err != nil {
				return err
			}
			mu.Lock()
			fetched[id] = data
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return written, err
	}

	for id, data := range fetched {
		b.applyBlock(id, data, written, bufs, offsets)
	}
	for i, buf := range bufs {
		if written[i] != len(buf) {
			return written, io.EOF
		}
	}
	return written, nil
}

// ReadAt implements KeyReaderAt
func (b *BlockCache) ReadAt(key string, p []byte, off int64) (int, error) {
	written, err := b.ReadAtMulti(key, [][]byte{p}, []int64{off})
	if len(written) == 0 {
		return 0, err
	}
	return written[0], err
}
