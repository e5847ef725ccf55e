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
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
bands: [1]
statistics:
  - kind: mean
  - kind: Histogram
    bins: 4
    min: 0
    max: 8
nodata:
  min: 0
  max: 1
  max_included: false
subsampling: {x: 1, y: 2}
roi:
  rects: [[0, 0, 2, 4]]
  accessor: true
workers: 2
`))
	require.NoError(t, err)
	reqs, err := cfg.Requests()
	require.NoError(t, err)
	assert.Equal(t, []Request{Stat(KindMean), RangedStat(KindHistogram, 4, 0, 8)}, reqs)
	r, ok, err := cfg.NoData.Range()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, NewRange(0, true, 1, false), r)

	opts, err := cfg.Options()
	require.NoError(t, err)
	src := newCountingSource(t, 4, 4, 2, 2,
		[]uint8{9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9},
		[]uint8{
			0, 2, 3, 3,
			1, 4, 3, 3,
			4, 6, 3, 3,
			7, 7, 3, 3,
		})
	eng, err := New(src, opts...)
	require.NoError(t, err)
	defer eng.Close()
	g, err := eng.Results(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1}, g.Bands)
	// rows 0 and 2, columns 0 and 1, without the 0 nodata
	mean := g.Results[0][0]
	assert.EqualValues(t, 3, mean.Count)
	assert.Equal(t, 4.0, mean.Value)
	assert.Equal(t, []float64{0, 2, 4, 6}, g.Results[0][1].Values())
}

func TestConfigValue(t *testing.T) {
	cfg, err := ParseConfig([]byte("statistics: [{kind: sum}]\nnodata: {value: 255}\n"))
	require.NoError(t, err)
	r, ok, err := cfg.NoData.Range()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Value(255), r)

	var nc *NoDataConfig
	_, ok, err = nc.Range()
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestConfigErrors(t *testing.T) {
	for name, doc := range map[string]string{
		"yaml":         "statistics: [",
		"kind":         "statistics: [{kind: p50}]",
		"bins":         "statistics: [{kind: histogram, min: 0, max: 1}]",
		"nodata":       "statistics: [{kind: sum}]\nnodata: {value: 1, min: 0}",
		"nodata-range": "statistics: [{kind: sum}]\nnodata: {min: 0}",
		"roi-none":     "statistics: [{kind: sum}]\nroi: {accessor: true}",
		"roi-both":     "statistics: [{kind: sum}]\nroi: {rects: [[0,0,1,1]], polygons: [[[0,0],[1,0],[1,1]]]}",
		"polygon":      "statistics: [{kind: sum}]\nroi: {polygons: [[[0,0],[1,0]]]}",
	} {
		cfg, err := ParseConfig([]byte(doc))
		if err == nil {
			_, err = cfg.Options()
		}
		assert.ErrorIs(t, err, ErrInvalidConfig, name)
	}
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfigMask(t *testing.T) {
	dir := t.TempDir()
	img := image.NewGray(image.Rect(0, 0, 3, 2))
	img.SetGray(1, 1, color.Gray{Y: 1})
	f, err := os.Create(filepath.Join(dir, "mask.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	conf := filepath.Join(dir, "conf.yaml")
	require.NoError(t, os.WriteFile(conf, []byte("statistics: [{kind: max}]\nroi: {mask: "+filepath.Join(dir, "mask.png")+"}\n"), 0o644))
	cfg, err := LoadConfig(conf)
	require.NoError(t, err)
	roi, err := cfg.ROI.Build()
	require.NoError(t, err)
	assert.True(t, roi.Contains(1, 1))
	assert.False(t, roi.Contains(0, 0))

	opts, err := cfg.Options()
	require.NoError(t, err)
	eng, err := New(newCountingSource(t, 3, 2, 3, 2, []float32{5, 6, 7, 8, 1, 9}), opts...)
	require.NoError(t, err)
	defer eng.Close()
	g, err := eng.Results(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, g.Results[0][0].Value)

	cfg.ROI.Mask = filepath.Join(dir, "missing.png")
	_, err = cfg.ROI.Build()
	assert.Error(t, err)
}
