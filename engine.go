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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"go.uber.org/atomic"
)

// tile states
const (
	tileNotStarted uint32 = iota
	tileScanning
	tileMerged
)

// Engine computes per band statistics over every tile of a TileSource. The
// tiles are processed at most once per pass: Compute is a no-op once a pass has
// completed, until Reset is called.
//
// All methods are safe for concurrent use.
type Engine struct {
	src      TileSource
	st       Structure
	bands    []int
	requests []Request
	mask     *maskPolicy
	xPeriod  int
	yPeriod  int
	sched    Scheduler
	logger   log.Logger
	metrics  *Metrics

	// grid[b][k] is the global statistic for band bands[b] and request k
	grid [][]Statistic
	// guards the mergeable cells of grid
	mergeMu sync.Mutex
	// cellMu[b][k] guards the non-mergeable cell grid[b][k]
	cellMu [][]sync.Mutex
	states []atomic.Uint32

	// serializes Compute, Results, Reset and Close
	computeMu sync.Mutex
	// held for reading by in-flight tiles, for writing by Reset and Close
	passMu   sync.RWMutex
	computed atomic.Bool
	closed   atomic.Bool
}

// New creates an Engine computing the requested statistics over src.
//
// Configuration errors (see ConfigError) are reported here and no Engine is
// returned.
func New(src TileSource, opts ...Option) (*Engine, error) {
	eo := engineOpts{xPeriod: 1, yPeriod: 1}
	for _, o := range opts {
		o.setEngineOpt(&eo)
	}
	if src == nil {
		return nil, configErrorf("source", "nil tile source")
	}
	st := src.Structure()
	if err := st.validate(); err != nil {
		return nil, err
	}
	if eo.bands == nil {
		eo.bands = make([]int, st.NBands)
		for i := range eo.bands {
			eo.bands[i] = i
		}
	}
	if len(eo.bands) == 0 {
		return nil, configErrorf("bands", "no band selected")
	}
	seen := make(map[int]bool, len(eo.bands))
	for _, b := range eo.bands {
		if b < 0 || b >= st.NBands {
			return nil, configErrorf("bands", "band %d out of range [0,%d)", b, st.NBands)
		}
		if seen[b] {
			return nil, configErrorf("bands", "band %d selected twice", b)
		}
		seen[b] = true
	}
	if len(eo.requests) == 0 {
		return nil, configErrorf("statistics", "no statistic requested")
	}
	for _, r := range eo.requests {
		if err := r.validate(); err != nil {
			return nil, err
		}
	}
	if eo.xPeriod < 1 || eo.yPeriod < 1 {
		return nil, configErrorf("subsampling", "invalid periods %d,%d", eo.xPeriod, eo.yPeriod)
	}
	if eo.scheduler == nil {
		eo.scheduler = Sequential()
	}
	if eo.logger == nil {
		eo.logger = log.NewNopLogger()
	}
	if eo.metrics == nil {
		eo.metrics = NewMetrics(nil)
	}
	nx, ny := st.TileCount()
	e := &Engine{
		src:      src,
		st:       st,
		bands:    eo.bands,
		requests: eo.requests,
		mask:     newMaskPolicy(eo.roi, eo.nodata, eo.roiAccessor, st.DataType),
		xPeriod:  eo.xPeriod,
		yPeriod:  eo.yPeriod,
		sched:    eo.scheduler,
		logger:   eo.logger,
		metrics:  eo.metrics,
		states:   make([]atomic.Uint32, nx*ny),
	}
	e.grid = e.newGrid()
	e.cellMu = make([][]sync.Mutex, len(e.bands))
	for b := range e.cellMu {
		e.cellMu[b] = make([]sync.Mutex, len(e.requests))
	}
	return e, nil
}

// newGrid allocates fresh statistics for every band and request. Requests
// were validated by New.
func (e *Engine) newGrid() [][]Statistic {
	g := make([][]Statistic, len(e.bands))
	for b := range g {
		g[b] = make([]Statistic, len(e.requests))
		for k, r := range e.requests {
			g[b][k] = mustStatistic(r)
		}
	}
	return g
}

// Structure returns the structure of the underlying source
func (e *Engine) Structure() Structure {
	return e.st
}

// TileCount returns the number of tiles, valid indexes for ComputeTile are
// [0,TileCount())
func (e *Engine) TileCount() int {
	return len(e.states)
}

// IsComputed reports whether a full pass has completed since creation or the
// last Reset
func (e *Engine) IsComputed() bool {
	return e.computed.Load()
}

// Compute processes every tile that has not been computed yet during the
// current pass, with the engine's scheduler. Once it has succeeded, further
// calls do nothing until Reset. If a tile fails the whole pass is discarded
// (as with Reset) and the error is returned.
func (e *Engine) Compute(ctx context.Context) error {
	e.computeMu.Lock()
	defer e.computeMu.Unlock()
	return e.compute(ctx)
}

func (e *Engine) compute(ctx context.Context) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if e.computed.Load() {
		return nil
	}
	start := time.Now()
	level.Debug(e.logger).Log("msg", "computing statistics", "tiles", len(e.states),
		"bands", len(e.bands), "statistics", len(e.requests), "mask", e.mask.kind)
	err := e.sched.Run(ctx, len(e.states), func(ctx context.Context, i int) error {
		err := e.ComputeTile(ctx, i)
		if errors.Is(err, ErrTileComputed) {
			return nil
		}
		return err
	})
	if err != nil {
		e.metrics.passes.WithLabelValues("failed").Inc()
		level.Error(e.logger).Log("msg", "statistics computation failed", "err", err)
		e.reset()
		return fmt.Errorf("compute statistics: %w", err)
	}
	if err := e.finish(ctx); err != nil {
		e.metrics.passes.WithLabelValues("failed").Inc()
		level.Error(e.logger).Log("msg", "statistics computation failed", "err", err)
		e.reset()
		return fmt.Errorf("compute statistics: %w", err)
	}
	e.metrics.passes.WithLabelValues("success").Inc()
	level.Debug(e.logger).Log("msg", "computed statistics", "duration", time.Since(start))
	return nil
}

// finish latches the pass once every tile is merged. Tiles still being
// scanned by concurrent ComputeTile calls are waited for, and tiles the
// scheduler did not process (or that failed in another caller) are computed
// here, in order.
func (e *Engine) finish(ctx context.Context) error {
	for {
		pending := e.settle()
		if len(pending) == 0 {
			return nil
		}
		level.Debug(e.logger).Log("msg", "computing remaining tiles", "tiles", len(pending))
		for _, i := range pending {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := e.ComputeTile(ctx, i); err != nil && !errors.Is(err, ErrTileComputed) {
				return err
			}
		}
	}
}

// settle waits for in-flight tiles and returns the ones not merged yet. The
// computed latch is set if there are none.
func (e *Engine) settle() []int {
	// in-flight tiles hold passMu for reading
	e.passMu.Lock()
	defer e.passMu.Unlock()
	var pending []int
	for i := range e.states {
		if e.states[i].Load() != tileMerged {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		e.computed.Store(true)
	}
	return pending
}

// ComputeTile scans the tile at index and merges it into the global
// statistics. It is the entry point for callers scheduling tiles themselves;
// they must still call Compute (which then only processes missing tiles) to
// mark the pass as complete.
//
// It returns ErrTileComputed if the tile was already processed during the
// current pass. A failed tile contributes nothing and may be retried.
func (e *Engine) ComputeTile(ctx context.Context, index int) error {
	e.passMu.RLock()
	defer e.passMu.RUnlock()
	if e.closed.Load() {
		return ErrClosed
	}
	t, ok := e.st.Tile(index)
	if !ok {
		return fmt.Errorf("tile index %d out of range [0,%d)", index, len(e.states))
	}
	if !e.states[index].CompareAndSwap(tileNotStarted, tileScanning) {
		return ErrTileComputed
	}
	start := time.Now()
	skipped, err := e.computeTile(ctx, t)
	if err != nil {
		e.states[index].Store(tileNotStarted)
		e.metrics.tiles.WithLabelValues("failed").Inc()
		level.Warn(e.logger).Log("msg", "tile failed", "tile", index, "err", err)
		return err
	}
	e.states[index].Store(tileMerged)
	if skipped {
		e.metrics.tiles.WithLabelValues("skipped").Inc()
		return nil
	}
	e.metrics.tiles.WithLabelValues("computed").Inc()
	e.metrics.tileDuration.Observe(time.Since(start).Seconds())
	return nil
}

func (e *Engine) computeTile(ctx context.Context, t Tile) (skipped bool, err error) {
	if e.xPeriod > t.W || e.yPeriod > t.H {
		return true, nil
	}
	rect := t.Rect()
	if e.mask.disjoint(rect) {
		return true, nil
	}
	buf, err := e.src.ReadTile(ctx, t)
	if err != nil {
		return false, fmt.Errorf("read tile %d: %w", t.Index, err)
	}
	if err := buf.check(e.st, t); err != nil {
		return false, err
	}

	sc := e.newScanner(buf)
	if e.mask.usesROI() && e.mask.accessor {
		sc.plane = e.mask.plane(rect)
		if sc.plane == nil {
			level.Debug(e.logger).Log("msg", "roi plane unavailable, using point queries", "tile", t.Index)
		}
	}
	sc.scan(buf, e.bands)
	e.merge(sc)
	e.metrics.samples.Add(float64(sc.samples))
	return false, nil
}

func (e *Engine) newScanner(buf *Buffer) *scanner {
	sc := &scanner{
		rect:     buf.Rect,
		stride:   buf.Stride,
		xPeriod:  e.xPeriod,
		yPeriod:  e.yPeriod,
		mask:     e.mask,
		floating: e.st.DataType.IsFloat(),
		local:    make([][]Statistic, len(e.bands)),
		hot:      make([][]Statistic, len(e.bands)),
		raw:      make([][]float64, len(e.bands)),
		needRaw:  make([]bool, len(e.bands)),
	}
	for b := range e.bands {
		sc.local[b] = make([]Statistic, len(e.requests))
		for k, r := range e.requests {
			if !r.Kind.Mergeable() {
				sc.needRaw[b] = true
				continue
			}
			s := mustStatistic(r)
			sc.local[b][k] = s
			sc.hot[b] = append(sc.hot[b], s)
		}
	}
	return sc
}

// merge folds a finished scan into the global grid: mergeable cells under the
// grid lock, non-mergeable cells by direct ingestion under their own lock.
func (e *Engine) merge(sc *scanner) {
	e.mergeMu.Lock()
	for b, stats := range sc.local {
		for k, s := range stats {
			if s == nil {
				continue
			}
			if err := e.grid[b][k].Merge(s); err != nil {
				// both sides come from the same request
				panic(err)
			}
		}
	}
	e.mergeMu.Unlock()

	for b, samples := range sc.raw {
		if len(samples) == 0 {
			continue
		}
		for k, g := range e.grid[b] {
			if g.Mergeable() {
				continue
			}
			mu := &e.cellMu[b][k]
			mu.Lock()
			for _, v := range samples {
				g.AddSample(v, true)
			}
			mu.Unlock()
		}
	}
}

// Results computes the statistics if needed and returns a snapshot of them
func (e *Engine) Results(ctx context.Context) (Grid, error) {
	e.computeMu.Lock()
	defer e.computeMu.Unlock()
	if err := e.compute(ctx); err != nil {
		return Grid{}, err
	}
	g := Grid{
		Bands:    append([]int(nil), e.bands...),
		Requests: append([]Request(nil), e.requests...),
		Results:  make([][]Result, len(e.bands)),
	}
	e.mergeMu.Lock()
	defer e.mergeMu.Unlock()
	for b := range e.grid {
		g.Results[b] = make([]Result, len(e.requests))
		for k, s := range e.grid[b] {
			mu := &e.cellMu[b][k]
			mu.Lock()
			g.Results[b][k] = s.Result()
			mu.Unlock()
		}
	}
	return g, nil
}

// Reset discards every accumulated sample and re-arms Compute. It waits for
// tiles being computed through ComputeTile to finish.
func (e *Engine) Reset() {
	e.computeMu.Lock()
	defer e.computeMu.Unlock()
	e.reset()
}

func (e *Engine) reset() {
	e.passMu.Lock()
	defer e.passMu.Unlock()
	if e.closed.Load() {
		return
	}
	for b := range e.grid {
		for _, s := range e.grid[b] {
			s.Reset()
		}
	}
	for i := range e.states {
		e.states[i].Store(tileNotStarted)
	}
	e.computed.Store(false)
}

// Close releases the statistics. Any later call returns ErrClosed.
func (e *Engine) Close() error {
	e.computeMu.Lock()
	defer e.computeMu.Unlock()
	e.passMu.Lock()
	defer e.passMu.Unlock()
	if e.closed.Swap(true) {
		return ErrClosed
	}
	e.grid = nil
	e.cellMu = nil
	return nil
}
