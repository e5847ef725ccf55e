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
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Scheduler decides the order and parallelism with which Compute processes
// tiles. Run should call fn once for each i in [0,n) and must not return
// before all the calls it started have returned. Tiles it leaves out are
// computed by the engine afterwards, sequentially.
type Scheduler interface {
	Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error
}

// SchedulerFunc adapts a function to the Scheduler interface
type SchedulerFunc func(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error

// Run implements Scheduler
func (f SchedulerFunc) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	return f(ctx, n, fn)
}

type sequential struct{}

// Sequential returns a scheduler processing tiles one after the other, in
// scanline order, on the calling goroutine
func Sequential() Scheduler {
	return sequential{}
}

func (sequential) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, i); err != nil {
			return err
		}
	}
	return nil
}

type parallel struct {
	workers int
}

// Parallel returns a scheduler processing up to workers tiles concurrently.
// workers <= 0 uses GOMAXPROCS. The first error cancels the remaining tiles.
func Parallel(workers int) Scheduler {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return parallel{workers: workers}
}

func (p parallel) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			return fn(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
