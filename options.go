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
	"github.com/go-kit/log"
)

type engineOpts struct {
	bands            []int
	requests         []Request
	nodata           *Range
	roi              ROI
	roiAccessor      bool
	xPeriod, yPeriod int
	scheduler        Scheduler
	logger           log.Logger
	metrics          *Metrics
}

// Option is an option that can be passed to New
//
// Available Options are:
//
// • Bands
//
// • Statistics
//
// • NoData
//
// • WithROI, ROIAccessor
//
// • Subsampling
//
// • WithScheduler
//
// • Logger
//
// • WithMetrics
type Option interface {
	setEngineOpt(eo *engineOpts)
}

type bandsOpt struct{ bands []int }

func (o bandsOpt) setEngineOpt(eo *engineOpts) {
	eo.bands = append(make([]int, 0, len(o.bands)), o.bands...)
}

// Bands selects the source bands to compute statistics on, by 0-based index.
// The results keep this order. Defaults to every band of the source.
func Bands(bnds ...int) Option {
	return bandsOpt{bnds}
}

type statisticsOpt struct{ requests []Request }

func (o statisticsOpt) setEngineOpt(eo *engineOpts) {
	eo.requests = append(eo.requests, o.requests...)
}

// Statistics adds statistics to compute on every selected band. At least one
// statistic is required.
func Statistics(reqs ...Request) Option {
	return statisticsOpt{reqs}
}

type nodataOpt struct{ r Range }

func (o nodataOpt) setEngineOpt(eo *engineOpts) {
	r := o.r
	eo.nodata = &r
}

// NoData excludes samples contained in r from every statistic
func NoData(r Range) Option {
	return nodataOpt{r}
}

type roiOpt struct{ roi ROI }

func (o roiOpt) setEngineOpt(eo *engineOpts) {
	eo.roi = o.roi
}

// WithROI restricts the statistics to the pixels contained in roi
func WithROI(roi ROI) Option {
	return roiOpt{roi}
}

type roiAccessorOpt struct{}

func (roiAccessorOpt) setEngineOpt(eo *engineOpts) {
	eo.roiAccessor = true
}

// ROIAccessor makes the engine materialize the ROI over each tile (see
// ROIPlaner) instead of querying it pixel by pixel. Tiles for which no plane
// can be produced silently fall back to point queries.
func ROIAccessor() Option {
	return roiAccessorOpt{}
}

type subsamplingOpt struct{ x, y int }

func (o subsamplingOpt) setEngineOpt(eo *engineOpts) {
	eo.xPeriod, eo.yPeriod = o.x, o.y
}

// Subsampling only visits one pixel out of xPeriod horizontally and yPeriod
// vertically, counted from each tile's origin. Tiles narrower than xPeriod or
// shorter than yPeriod are skipped. Defaults to 1,1.
func Subsampling(xPeriod, yPeriod int) Option {
	return subsamplingOpt{xPeriod, yPeriod}
}

type schedulerOpt struct{ s Scheduler }

func (o schedulerOpt) setEngineOpt(eo *engineOpts) {
	eo.scheduler = o.s
}

// WithScheduler sets how Compute runs the tiles. Defaults to Sequential().
func WithScheduler(s Scheduler) Option {
	return schedulerOpt{s}
}

type loggerOpt struct{ l log.Logger }

func (o loggerOpt) setEngineOpt(eo *engineOpts) {
	eo.logger = o.l
}

// Logger sets the logger the engine reports to. Defaults to a nop logger.
func Logger(l log.Logger) Option {
	return loggerOpt{l}
}

type metricsOpt struct{ m *Metrics }

func (o metricsOpt) setEngineOpt(eo *engineOpts) {
	eo.metrics = o.m
}

// WithMetrics sets the collectors updated by the engine. Several engines may
// share the same Metrics.
func WithMetrics(m *Metrics) Option {
	return metricsOpt{m}
}
