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

package main

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestGSParse(t *testing.T) {

	tc := func(in string, expBucket, expObject string) {
		t.Helper()
		b, o := gsparse(in)
		assert.Equal(t, expBucket, b)
		assert.Equal(t, expObject, o)
	}
	tc("sdgfdsf", "", "")
	tc("gs://", "", "")
	tc("gs://a", "", "")
	tc("gs://a/", "", "")
	tc("gs://a/b", "a", "b")
	tc("gs://a/b/c", "a", "b/c")
	tc("gs://a/b/", "a", "b")
	tc("gs://a/b/c/", "a", "b/c")

}

func TestParseSize(t *testing.T) {
	for in, exp := range map[string]int{"512": 512, "64k": 65536, "1M": 1 << 20} {
		n, err := parseSize(in)
		assert.NoError(t, err, in)
		assert.Equal(t, exp, n, in)
	}
	for _, in := range []string{"", "k", "-1", "0", "12g"} {
		_, err := parseSize(in)
		assert.Error(t, err, in)
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "in.raw")
	// 4x2 pixels, 2 bands, bsq
	require.NoError(t, os.WriteFile(raw, []byte{
		1, 2, 3, 4, 5, 6, 7, 255,
		10, 10, 10, 10, 20, 20, 20, 20,
	}, 0o644))
	conf := filepath.Join(dir, "conf.yaml")
	require.NoError(t, os.WriteFile(conf, []byte(`
statistics:
  - kind: sum
  - kind: extrema
  - kind: histogram
    bins: 2
    min: 0
    max: 32
nodata:
  value: 255
`), 0o644))

	out := &bytes.Buffer{}
	statsCommand.SetOut(out)
	statsCommand.SetArgs([]string{
		"-c", conf, "--width", "4", "--height", "2",
		"--tile.width", "3", "--tile.height", "1", "--bands", "2",
		"--log.level", "error", raw,
	})
	require.NoError(t, statsCommand.Execute())

	var rep struct {
		Bands []struct {
			Band       int
			Statistics []struct {
				Kind     string
				Count    uint64
				Value    *float64
				Min, Max *float64
				Buckets  []struct{ Min, Max, Value float64 }
			}
		}
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &rep))
	require.Len(t, rep.Bands, 2)

	b0 := rep.Bands[0].Statistics
	assert.Equal(t, "sum", b0[0].Kind)
	assert.EqualValues(t, 7, b0[0].Count)
	assert.Equal(t, 28.0, *b0[0].Value)
	assert.Equal(t, 1.0, *b0[1].Min)
	assert.Equal(t, 7.0, *b0[1].Max)
	require.Len(t, b0[2].Buckets, 2)
	assert.Equal(t, 28.0, b0[2].Buckets[0].Value)
	assert.Equal(t, 16.0, b0[2].Buckets[1].Min)

	b1 := rep.Bands[1].Statistics
	assert.Equal(t, 1, rep.Bands[1].Band)
	assert.Equal(t, 120.0, *b1[0].Value)
	assert.Equal(t, 40.0, b1[2].Buckets[0].Value)
	assert.Equal(t, 80.0, b1[2].Buckets[1].Value)
}

func TestReportNaN(t *testing.T) {
	buf, err := json.Marshal(struct{ V number }{number(math.NaN())})
	require.NoError(t, err)
	assert.JSONEq(t, `{"V":null}`, string(buf))

	ybuf, err := yaml.Marshal(struct{ V number }{2.5})
	require.NoError(t, err)
	assert.Equal(t, "v: 2.5\n", string(ybuf))

	assert.Error(t, writeReport(&bytes.Buffer{}, "xml", report{}))
}
