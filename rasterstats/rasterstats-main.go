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
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/airbusgeo/osio"
	osiogcs "github.com/airbusgeo/osio/gcs"
	"github.com/airbusgeo/tilestats"
	"github.com/airbusgeo/tilestats/gcs"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"
	"gopkg.in/yaml.v3"
)

func gsparse(file string) (bucket, object string) {
	if !strings.HasPrefix(file, "gs://") {
		return
	}
	file = file[5:]
	firstSlash := strings.Index(file, "/")
	if firstSlash == -1 {
		return
	}
	obj := strings.Trim(file[firstSlash:], "/")
	if obj == "" {
		return
	}
	bucket = file[0:firstSlash]
	object = obj
	return
}

// parseSize parses sizes like 512, 64k or 1m
func parseSize(s string) (int, error) {
	mult := 1
	switch {
	case strings.HasSuffix(s, "k"), strings.HasSuffix(s, "K"):
		mult = 1024
		s = s[:len(s)-1]
	case strings.HasSuffix(s, "m"), strings.HasSuffix(s, "M"):
		mult = 1024 * 1024
		s = s[:len(s)-1]
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n * mult, nil
}

var (
	configFile      string
	width, height   int
	tileW, tileH    int
	nBands          int
	dtype           string
	interleave      string
	bigEndian       bool
	headerOffset    int64
	workers         int
	outFormat       string
	logLevel        string
	gsReader        string
	blockSize       string
	numCachedBlocks int
	anonymous       bool
)

func init() {
	fl := statsCommand.Flags()
	fl.StringVarP(&configFile, "config", "c", "", "yaml statistics configuration")
	fl.IntVar(&width, "width", 0, "raster width in pixels")
	fl.IntVar(&height, "height", 0, "raster height in pixels")
	fl.IntVar(&tileW, "tile.width", 256, "processing tile width")
	fl.IntVar(&tileH, "tile.height", 256, "processing tile height")
	fl.IntVar(&nBands, "bands", 1, "number of bands in the file")
	fl.StringVar(&dtype, "dtype", "byte", "sample type (byte,uint16,int16,uint32,int32,float32,float64)")
	fl.StringVar(&interleave, "interleave", "bsq", "sample layout (bsq,bil,bip)")
	fl.BoolVar(&bigEndian, "bigendian", false, "samples are big endian")
	fl.Int64Var(&headerOffset, "offset", 0, "size of the file header to skip")
	fl.IntVarP(&workers, "workers", "w", -1, "number of concurrent tiles, overrides the configuration when >=0 (0: sequential)")
	fl.StringVarP(&outFormat, "format", "f", "json", "output format (json,yaml)")
	fl.StringVar(&logLevel, "log.level", "info", "log level (debug,info,warn,error)")
	fl.StringVar(&gsReader, "gs.reader", "native", "gs:// reader implementation (native,osio)")
	fl.StringVarP(&blockSize, "gs.blocksize", "b", "512k", "gs:// block size")
	fl.IntVarP(&numCachedBlocks, "gs.numblocks", "n", 512, "number of gs:// blocks to cache")
	fl.BoolVar(&anonymous, "gs.anonymous", false, "access gs:// objects without credentials")
	_ = statsCommand.MarkFlagRequired("config")
}

func main() {
	err := statsCommand.Execute()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func newLogger(lvl string) (log.Logger, error) {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	var opt level.Option
	switch lvl {
	case "debug":
		opt = level.AllowDebug()
	case "info":
		opt = level.AllowInfo()
	case "warn":
		opt = level.AllowWarn()
	case "error":
		opt = level.AllowError()
	default:
		return nil, fmt.Errorf("unknown log level %q", lvl)
	}
	logger = level.NewFilter(logger, opt)
	return log.With(logger, "ts", log.DefaultTimestampUTC), nil
}

type osioReader struct {
	adapter *osio.Adapter
	key     string
}

func (r osioReader) ReadAt(p []byte, off int64) (int, error) {
	return r.adapter.ReadAt(r.key, p, off)
}

func openInput(ctx context.Context, infile string) (io.ReaderAt, func() error, error) {
	bucket, object := gsparse(infile)
	if bucket == "" {
		f, err := os.Open(infile)
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	}
	var copts []option.ClientOption
	if anonymous {
		copts = append(copts, option.WithoutAuthentication())
	}
	stcl, err := storage.NewClient(ctx, copts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create gcs storage client: %w", err)
	}
	switch gsReader {
	case "osio":
		gs, err := osiogcs.Handle(ctx, osiogcs.GCSClient(stcl))
		if err != nil {
			return nil, nil, fmt.Errorf("osio.gcshandle: %w", err)
		}
		gsa, err := osio.NewAdapter(gs, osio.BlockSize(blockSize), osio.NumCachedBlocks(numCachedBlocks))
		if err != nil {
			return nil, nil, fmt.Errorf("osio.newadapter: %w", err)
		}
		return osioReader{adapter: gsa, key: bucket + "/" + object}, stcl.Close, nil
	case "native":
		bs, err := parseSize(blockSize)
		if err != nil {
			return nil, nil, err
		}
		h, err := gcs.NewHandler(ctx, gcs.Client(stcl), gcs.BlockSize(bs), gcs.MaxCachedBlocks(numCachedBlocks))
		if err != nil {
			return nil, nil, err
		}
		obj, err := h.Open(infile)
		if err != nil {
			return nil, nil, err
		}
		return obj, stcl.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown gs reader %q", gsReader)
	}
}

func rawOptions() ([]tilestats.RawOption, error) {
	opts := []tilestats.RawOption{tilestats.HeaderOffset(headerOffset)}
	switch strings.ToLower(interleave) {
	case "bsq":
		opts = append(opts, tilestats.Interleave(tilestats.BSQ))
	case "bil":
		opts = append(opts, tilestats.Interleave(tilestats.BIL))
	case "bip":
		opts = append(opts, tilestats.Interleave(tilestats.BIP))
	default:
		return nil, fmt.Errorf("unknown interleave %q", interleave)
	}
	if bigEndian {
		opts = append(opts, tilestats.ByteOrder(binary.BigEndian))
	}
	return opts, nil
}

var statsCommand = &cobra.Command{
	Use:   "rasterstats [flags] infile",
	Short: "compute statistics over the bands of a raw raster file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		infile := args[0]
		logger, err := newLogger(logLevel)
		if err != nil {
			return err
		}
		cfg, err := tilestats.LoadConfig(configFile)
		if err != nil {
			return err
		}
		if workers >= 0 {
			cfg.Workers = workers
		}
		opts, err := cfg.Options()
		if err != nil {
			return err
		}
		dt, err := tilestats.ParseDataType(dtype)
		if err != nil {
			return err
		}
		ropts, err := rawOptions()
		if err != nil {
			return err
		}

		r, closer, err := openInput(ctx, infile)
		if err != nil {
			return fmt.Errorf("open %s: %w", infile, err)
		}
		defer closer()

		src, err := tilestats.NewRawSource(r, tilestats.Structure{
			SizeX: width, SizeY: height,
			TileSizeX: tileW, TileSizeY: tileH,
			NBands: nBands, DataType: dt,
		}, ropts...)
		if err != nil {
			return err
		}
		reg := prometheus.NewRegistry()
		opts = append(opts,
			tilestats.Logger(logger),
			tilestats.WithMetrics(tilestats.NewMetrics(reg)))
		eng, err := tilestats.New(src, opts...)
		if err != nil {
			return err
		}
		defer eng.Close()

		level.Info(logger).Log("msg", "computing statistics", "file", infile, "tiles", eng.TileCount())
		grid, err := eng.Results(ctx)
		if err != nil {
			return err
		}
		logMetrics(logger, reg)
		return writeReport(cmd.OutOrStdout(), outFormat, newReport(grid))
	},
}

func logMetrics(logger log.Logger, g prometheus.Gatherer) {
	mfs, err := g.Gather()
	if err != nil {
		level.Warn(logger).Log("msg", "gather metrics", "err", err)
		return
	}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			kv := []interface{}{"metric", mf.GetName()}
			for _, lp := range m.GetLabel() {
				kv = append(kv, lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				kv = append(kv, "value", m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				kv = append(kv, "count", m.GetHistogram().GetSampleCount(), "sum", m.GetHistogram().GetSampleSum())
			}
			level.Debug(logger).Log(kv...)
		}
	}
}

func writeReport(w io.Writer, format string, rep report) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
