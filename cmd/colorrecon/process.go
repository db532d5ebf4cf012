// Copyright 2025 go-colorrecon Authors
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
	"errors"
	"fmt"
	stdimage "image"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/golang/glog"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/image/tiff"
	"golang.org/x/sync/errgroup"

	"github.com/ajroetker/go-colorrecon/bilateral"
	"github.com/ajroetker/go-colorrecon/colorrecon"
	"github.com/ajroetker/go-colorrecon/colorspace"
	"github.com/ajroetker/go-colorrecon/gridplot"
	"github.com/ajroetker/go-colorrecon/image"
	"github.com/ajroetker/go-colorrecon/workerpool"
)

type processOptions struct {
	config      string
	threshold   float32
	spatial     float32
	rangeExt    float32
	hue         float32
	precedence  string
	accumulator string
	memoryLimit int64
	workers     int

	jobs    int
	outDir  string
	suffix  string
	stats   bool
	plotDir string
}

func newProcessCmd() *cobra.Command {
	o := &processOptions{}
	cmd := &cobra.Command{
		Use:   "process [flags] image...",
		Short: "Reconstruct the highlights of PNG, JPEG or TIFF images",
		Long: `Reconstruct the chrominance of overexposed pixels from nearby pixels of
similar luminance. Settings are read from --config first; explicit flags
override them. PNG and JPEG inputs are written as 16-bit PNG, TIFF inputs as
deflate-compressed TIFF.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd.Flags(), cmd.OutOrStdout(), o, args)
		},
	}
	addProcessFlags(cmd.Flags(), o)
	return cmd
}

func addProcessFlags(fs *pflag.FlagSet, o *processOptions) {
	d := colorrecon.DefaultParams()
	fs.StringVar(&o.config, "config", "", "HuJSON or JSON settings file")
	fs.Float32Var(&o.threshold, "threshold", d.Threshold, "luminance above which pixels are reconstructed")
	fs.Float32Var(&o.spatial, "spatial", d.Spatial, "spatial extent in pixels")
	fs.Float32Var(&o.rangeExt, "range", d.Range, "luminance extent")
	fs.Float32Var(&o.hue, "hue", d.Hue, "preferred hue in [0, 1] for --precedence=hue")
	fs.StringVar(&o.precedence, "precedence", d.Precedence.String(), "source preference: none, chroma or hue")
	fs.StringVar(&o.accumulator, "accumulator", bilateral.PartialKind.String(), "splat accumulator: partial or atomic")
	fs.Int64Var(&o.memoryLimit, "memory-limit", 0, "grid memory limit per image in bytes, 0 for the default of 1 GiB or half of GOMEMLIMIT")
	fs.IntVar(&o.workers, "workers", 0, "worker goroutines per image, 0 for GOMAXPROCS")
	fs.IntVar(&o.jobs, "jobs", 1, "images processed concurrently")
	fs.StringVarP(&o.outDir, "out-dir", "o", ".", "output directory")
	fs.StringVar(&o.suffix, "suffix", "_recon", "suffix appended to output file names")
	fs.BoolVar(&o.stats, "stats", false, "report how much each image changed")
	fs.StringVar(&o.plotDir, "plot-dir", "", "write a luminance profile plot of each grid to this directory")
}

// settings merges the config file with the flags set on the command line.
func (o *processOptions) settings(fs *pflag.FlagSet) (*colorrecon.Config, error) {
	cfg := &colorrecon.Config{}
	if o.config != "" {
		var err error
		if cfg, err = colorrecon.LoadConfig(o.config); err != nil {
			return nil, err
		}
	}
	if fs.Changed("threshold") {
		cfg.Threshold = &o.threshold
	}
	if fs.Changed("spatial") {
		cfg.Spatial = &o.spatial
	}
	if fs.Changed("range") {
		cfg.Range = &o.rangeExt
	}
	if fs.Changed("hue") || fs.Changed("precedence") {
		// Flags describe the current layout; fill in the fields an older
		// file lacked before overriding them.
		p := cfg.Params()
		precedence := p.Precedence.String()
		cfg.Version, cfg.Hue, cfg.Precedence = nil, &p.Hue, &precedence
	}
	if fs.Changed("hue") {
		cfg.Hue = &o.hue
	}
	if fs.Changed("precedence") {
		cfg.Precedence = &o.precedence
	}
	if fs.Changed("accumulator") {
		cfg.Accumulator = &o.accumulator
	}
	if fs.Changed("memory-limit") {
		cfg.MemoryLimit = &o.memoryLimit
	}
	if fs.Changed("workers") {
		cfg.Workers = &o.workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runProcess(fs *pflag.FlagSet, w io.Writer, o *processOptions, paths []string) error {
	cfg, err := o.settings(fs)
	if err != nil {
		return err
	}
	if o.jobs < 1 {
		return fmt.Errorf("--jobs must be positive, got %d", o.jobs)
	}

	pool := workerpool.New(cfg.GetWorkers())
	defer pool.Close()
	rec, err := colorrecon.New(pool, cfg.Params(),
		colorrecon.WithAccumulator(cfg.GetAccumulator()),
		colorrecon.WithMemoryLimit(cfg.GetMemoryLimit()),
		colorrecon.WithStats(o.stats))
	if err != nil {
		return err
	}
	glog.V(1).Infof("colorrecon: %+v, %d workers, %d jobs", rec.Params(), pool.NumWorkers(), o.jobs)

	if err := os.MkdirAll(o.outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	paths = lo.Uniq(paths)
	if err := checkOutputCollisions(o, paths); err != nil {
		return err
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(o.jobs)
	for _, path := range paths {
		g.Go(func() error {
			report, err := processFile(rec, pool, o, path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintln(w, report)
			return nil
		})
	}
	return g.Wait()
}

// checkOutputCollisions rejects distinct inputs that would be written to the
// same output file.
func checkOutputCollisions(o *processOptions, paths []string) error {
	byOutput := lo.GroupBy(paths, func(path string) string {
		return outputPath(o.outDir, path, o.suffix)
	})
	for _, path := range paths {
		dst := outputPath(o.outDir, path, o.suffix)
		if inputs := byOutput[dst]; len(inputs) > 1 {
			return fmt.Errorf("inputs %s all write %s; use distinct base names or process them separately", strings.Join(inputs, ", "), dst)
		}
	}
	return nil
}

// processFile reconstructs one image and returns a one-line report. A
// skipped reconstruction still writes the unchanged image.
func processFile(rec *colorrecon.Reconstructor, pool *workerpool.Pool, o *processOptions, path string) (string, error) {
	src, err := decodeFile(path)
	if err != nil {
		return "", err
	}
	in := colorspace.FromImage(pool, src)
	out := image.NewImage4(in.Width(), in.Height())

	var report string
	res, err := rec.Process(in, out, colorrecon.Piece{
		Pipe: colorrecon.PipeExport,
		ROI:  image.FullROI(in.Width(), in.Height()),
	})
	switch {
	case errors.Is(err, colorrecon.ErrSkipped):
		report = fmt.Sprintf("skipped (%v)", err)
	case err != nil:
		return "", err
	default:
		report = fmt.Sprintf("grid %v, %d pixels splatted, %d blended", res.Geometry, res.Splat.Pixels, res.Slice.Blended)
		if res.Stats != nil {
			report += ", " + res.Stats.String()
		}
	}

	dst := outputPath(o.outDir, path, o.suffix)
	if err := encodeFile(dst, colorspace.ToImage(pool, out)); err != nil {
		return "", err
	}
	if o.plotDir != "" && res != nil {
		plotPath := filepath.Join(o.plotDir, strings.TrimSuffix(filepath.Base(dst), filepath.Ext(dst))+"_profile.png")
		if err := gridplot.WriteProfile(res.Grid, plotPath); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%s -> %s: %s", path, dst, report), nil
}

func decodeFile(path string) (stdimage.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := stdimage.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

func isTIFF(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		return true
	}
	return false
}

// outputPath keeps TIFF inputs as TIFF and writes everything else as PNG.
func outputPath(dir, path, suffix string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + suffix
	if isTIFF(path) {
		return filepath.Join(dir, base+filepath.Ext(path))
	}
	return filepath.Join(dir, base+".png")
}

func encodeFile(path string, img stdimage.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if isTIFF(path) {
		return tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate})
	}
	return png.Encode(f, img)
}
