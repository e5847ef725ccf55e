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
	"fmt"
	"image"
	"image/png"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the YAML description of a statistics request:
//
//	bands: [0, 2]
//	statistics:
//	  - kind: mean
//	  - kind: histogram
//	    bins: 16
//	    min: 0
//	    max: 256
//	nodata:
//	  value: 255
//	subsampling: {x: 2, y: 2}
//	roi:
//	  rects: [[0, 0, 512, 1024]]
//	  accessor: true
//	workers: 8
type Config struct {
	Bands       []int             `yaml:"bands,omitempty"`
	Statistics  []StatisticConfig `yaml:"statistics"`
	NoData      *NoDataConfig     `yaml:"nodata,omitempty"`
	Subsampling *PeriodConfig     `yaml:"subsampling,omitempty"`
	ROI         *ROIConfig        `yaml:"roi,omitempty"`
	Workers     int               `yaml:"workers,omitempty"`
}

// StatisticConfig is one entry of Config.Statistics
type StatisticConfig struct {
	Kind string  `yaml:"kind"`
	Bins int     `yaml:"bins,omitempty"`
	Min  float64 `yaml:"min,omitempty"`
	Max  float64 `yaml:"max,omitempty"`
}

// NoDataConfig is either a single value or a range. Bounds are included
// unless stated otherwise.
type NoDataConfig struct {
	Value       *float64 `yaml:"value,omitempty"`
	Min         *float64 `yaml:"min,omitempty"`
	Max         *float64 `yaml:"max,omitempty"`
	MinIncluded *bool    `yaml:"min_included,omitempty"`
	MaxIncluded *bool    `yaml:"max_included,omitempty"`
}

// PeriodConfig holds subsampling periods
type PeriodConfig struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// ROIConfig describes the region of interest with exactly one of a PNG mask
// file, a list of [x0,y0,x1,y1] rectangles or a list of polygon rings.
type ROIConfig struct {
	Mask     string         `yaml:"mask,omitempty"`
	Rects    [][4]int       `yaml:"rects,omitempty"`
	Polygons [][][2]float64 `yaml:"polygons,omitempty"`
	Accessor bool           `yaml:"accessor,omitempty"`
}

// LoadConfig reads and parses a YAML configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig parses a YAML configuration
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// Requests converts the statistics entries
func (c *Config) Requests() ([]Request, error) {
	reqs := make([]Request, 0, len(c.Statistics))
	for _, sc := range c.Statistics {
		k, err := ParseKind(sc.Kind)
		if err != nil {
			return nil, err
		}
		r := Request{Kind: k, Bins: sc.Bins, Min: sc.Min, Max: sc.Max}
		if err := r.validate(); err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	return reqs, nil
}

// Range converts the nodata entry. ok is false if no nodata was configured.
func (nc *NoDataConfig) Range() (r Range, ok bool, err error) {
	if nc == nil {
		return Range{}, false, nil
	}
	if nc.Value != nil {
		if nc.Min != nil || nc.Max != nil {
			return Range{}, false, configErrorf("nodata", "value and min/max are exclusive")
		}
		return Value(*nc.Value), true, nil
	}
	if nc.Min == nil || nc.Max == nil {
		return Range{}, false, configErrorf("nodata", "min and max are required")
	}
	r = NewRange(*nc.Min, true, *nc.Max, true)
	if nc.MinIncluded != nil {
		r.MinIncluded = *nc.MinIncluded
	}
	if nc.MaxIncluded != nil {
		r.MaxIncluded = *nc.MaxIncluded
	}
	return r, true, nil
}

// Build returns the configured ROI, or nil if none
func (rc *ROIConfig) Build() (ROI, error) {
	if rc == nil {
		return nil, nil
	}
	set := 0
	for _, b := range []bool{rc.Mask != "", len(rc.Rects) > 0, len(rc.Polygons) > 0} {
		if b {
			set++
		}
	}
	if set != 1 {
		return nil, configErrorf("roi", "exactly one of mask, rects or polygons is required")
	}
	switch {
	case rc.Mask != "":
		f, err := os.Open(rc.Mask)
		if err != nil {
			return nil, fmt.Errorf("open roi mask: %w", err)
		}
		defer f.Close()
		img, err := png.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("decode roi mask %s: %w", rc.Mask, err)
		}
		return ImageROI(img)
	case len(rc.Rects) > 0:
		rects := make([]image.Rectangle, len(rc.Rects))
		for i, r := range rc.Rects {
			rects[i] = image.Rect(r[0], r[1], r[2], r[3])
		}
		return NewRectROI(rects...), nil
	default:
		rings := make([][]Point, len(rc.Polygons))
		for i, ring := range rc.Polygons {
			for _, p := range ring {
				rings[i] = append(rings[i], Point{X: p[0], Y: p[1]})
			}
		}
		return NewPolygonROI(rings...)
	}
}

// Options converts the configuration into engine options
func (c *Config) Options() ([]Option, error) {
	reqs, err := c.Requests()
	if err != nil {
		return nil, err
	}
	opts := []Option{Statistics(reqs...)}
	if c.Bands != nil {
		opts = append(opts, Bands(c.Bands...))
	}
	r, ok, err := c.NoData.Range()
	if err != nil {
		return nil, err
	}
	if ok {
		opts = append(opts, NoData(r))
	}
	if c.Subsampling != nil {
		opts = append(opts, Subsampling(c.Subsampling.X, c.Subsampling.Y))
	}
	roi, err := c.ROI.Build()
	if err != nil {
		return nil, err
	}
	if roi != nil {
		opts = append(opts, WithROI(roi))
		if c.ROI.Accessor {
			opts = append(opts, ROIAccessor())
		}
	}
	if c.Workers != 0 {
		opts = append(opts, WithScheduler(Parallel(c.Workers)))
	}
	return opts, nil
}
