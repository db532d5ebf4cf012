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

package colorrecon

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/golang/glog"

	"github.com/ajroetker/go-colorrecon/bilateral"
	"github.com/ajroetker/go-colorrecon/colorspace"
	"github.com/ajroetker/go-colorrecon/image"
	"github.com/ajroetker/go-colorrecon/workerpool"
)

// SpatialApprox is the spatial scale above which a full pipeline prefers
// the cached preview grid over a grid of its own region of interest.
const SpatialApprox = 100

// DefaultMemoryLimit caps the grid memory of one Process call when no limit
// is configured.
const DefaultMemoryLimit = 1 << 30

// defaultMemoryLimit returns DefaultMemoryLimit, lowered to half the
// runtime soft memory limit when that is smaller.
func defaultMemoryLimit() int64 {
	limit := int64(DefaultMemoryLimit)
	if half := debug.SetMemoryLimit(-1) / 2; half > 0 && half < limit {
		limit = half
	}
	return limit
}

// ErrSkipped wraps every error returned by Process. The output then holds
// an unchanged copy of the input.
var ErrSkipped = errors.New("colorrecon: reconstruction skipped")

// PipeKind identifies the pipeline a piece is processed in.
type PipeKind int

const (
	// PipeFull renders the (possibly zoomed-in) main view.
	PipeFull PipeKind = iota
	// PipePreview renders a downscaled view of the whole image.
	PipePreview
	// PipeExport renders the final output; it neither reads nor fills the
	// grid cache.
	PipeExport
)

// String implements fmt.Stringer.
func (k PipeKind) String() string {
	switch k {
	case PipeFull:
		return "full"
	case PipePreview:
		return "preview"
	case PipeExport:
		return "export"
	default:
		return fmt.Sprintf("PipeKind(%d)", int(k))
	}
}

// Piece describes one buffer handed to Process.
type Piece struct {
	Pipe PipeKind
	// InputScale is the scale of the pipeline input relative to the full
	// image. Zero means 1.
	InputScale float32
	// ROI is the region covered by the in and out buffers.
	ROI image.ROI
	// ZoomedIn reports that the full pipeline shows noticeably more than
	// the fit-to-screen magnification.
	ZoomedIn bool
	// Hash identifies the pipeline state up to this step.
	Hash uint64
}

// Result describes a successful reconstruction.
type Result struct {
	Geometry bilateral.Geometry
	// Accumulator is the splat strategy that was used. A partial splat
	// that does not fit the memory limit runs atomically instead.
	Accumulator bilateral.AccumulatorKind
	// Reused is set when the grid came from the preview cache.
	Reused bool
	Splat  bilateral.SplatStats
	Slice  bilateral.SliceStats
	// Grid is the blurred grid the output was sliced from.
	Grid *bilateral.Grid
	// Stats is only filled in when the Reconstructor was built WithStats.
	Stats *Stats
}

// Reconstructor runs color reconstruction with fixed parameters. It is safe
// for concurrent use with distinct buffers.
type Reconstructor struct {
	pool        *workerpool.Pool
	params      Params
	precedence  bilateral.Precedence
	accumulator bilateral.AccumulatorKind
	memoryLimit int64
	stats       bool
	cache       *GridCache
}

// Option configures a Reconstructor.
type Option func(*Reconstructor)

// WithAccumulator selects the splat accumulation strategy.
func WithAccumulator(kind bilateral.AccumulatorKind) Option {
	return func(r *Reconstructor) {
		r.accumulator = kind
	}
}

// WithMemoryLimit caps the grid memory of one Process call, in bytes.
// Reconstructions that would need more are skipped. A limit <= 0 selects
// the default, see DefaultMemoryLimit.
func WithMemoryLimit(bytes int64) Option {
	return func(r *Reconstructor) {
		r.memoryLimit = bytes
	}
}

// WithStats makes Process measure its effect on the image.
func WithStats(enabled bool) Option {
	return func(r *Reconstructor) {
		r.stats = enabled
	}
}

// WithCache shares a preview grid cache between reconstructors of the
// preview and full pipelines.
func WithCache(cache *GridCache) Option {
	return func(r *Reconstructor) {
		r.cache = cache
	}
}

// New returns a Reconstructor for params. pool may be nil to run on the
// calling goroutine.
func New(pool *workerpool.Pool, params Params, opts ...Option) (*Reconstructor, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	r := &Reconstructor{
		pool:   pool,
		params: params,
		precedence: bilateral.Precedence{
			Mode: params.Precedence,
			Hue:  colorspace.HueToLCh(params.Hue),
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.memoryLimit <= 0 {
		r.memoryLimit = defaultMemoryLimit()
	}
	return r, nil
}

// MemoryLimit returns the grid memory cap of one Process call.
func (r *Reconstructor) MemoryLimit() int64 {
	return r.memoryLimit
}

// Params returns the parameters r was built with.
func (r *Reconstructor) Params() Params {
	return r.params
}

// Process reconstructs the chrominance of the overexposed pixels of in
// into out. in and out must both have the size of piece.ROI; they may be
// the same buffer.
//
// Reconstruction is best effort: on failure out receives a copy of in and
// the returned error wraps ErrSkipped together with the cause.
func (r *Reconstructor) Process(in, out *image.Image4, piece Piece) (*Result, error) {
	if !image.SameSize(in, out) || !piece.ROI.Fits(in) {
		panic("colorrecon: buffers do not match roi")
	}
	if piece.InputScale == 0 {
		piece.InputScale = 1
	}
	if piece.ROI.Scale == 0 {
		piece.ROI.Scale = 1
	}

	res, err := r.process(in, out, piece)
	if err != nil {
		out.CopyFrom(in)
		glog.Warningf("colorrecon: %s pipe %dx%d: reconstruction failed: %v", piece.Pipe, in.Width(), in.Height(), err)
		return nil, fmt.Errorf("%w: %w", ErrSkipped, err)
	}
	return res, nil
}

func (r *Reconstructor) process(in, out *image.Image4, piece Piece) (*Result, error) {
	threshold := r.params.Threshold
	sigmaS, sigmaR := r.params.Sigmas(piece.InputScale, piece.ROI.Scale)
	res := &Result{}
	var timing Stats

	var g *bilateral.Grid
	if snap := r.cachedGrid(piece, sigmaS); snap != nil {
		var err error
		g, err = snap.Thaw(r.memoryLimit)
		if err != nil {
			return nil, fmt.Errorf("thawing preview grid: %w", err)
		}
		res.Reused = true
		glog.V(1).Infof("colorrecon: reusing preview grid %v", g.Geometry)
	} else {
		var err error
		g, res.Accumulator, err = r.newGrid(in, piece, sigmaS, sigmaR)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		res.Splat, err = bilateral.Splat(r.pool, g, in, threshold, r.precedence, bilateral.NewAccumulator(res.Accumulator))
		if err != nil {
			return nil, fmt.Errorf("splatting: %w", err)
		}
		timing.Splat = time.Since(start)

		start = time.Now()
		bilateral.Blur(r.pool, g)
		timing.Blur = time.Since(start)
	}

	var before []float32
	if r.stats {
		before = highlightChroma(in, threshold)
	}
	start := time.Now()
	res.Slice = bilateral.Slice(r.pool, g, in, out, threshold, piece.ROI, piece.InputScale)
	timing.Slice = time.Since(start)
	res.Geometry = g.Geometry
	res.Grid = g
	glog.V(2).Infof("colorrecon: %s pipe: splat %s (%d px), blur %s, slice %s (%d px)",
		piece.Pipe, timing.Splat, res.Splat.Pixels, timing.Blur, timing.Slice, res.Slice.Blended)

	if piece.Pipe == PipePreview && r.cache != nil {
		if snap, err := g.Freeze(); err != nil {
			glog.Warningf("colorrecon: preview grid not cached: %v", err)
		} else {
			r.cache.Store(snap, piece.Hash)
		}
	}

	if r.stats {
		res.Stats = &timing
		measureShift(res.Stats, before, out, threshold)
	}
	return res, nil
}

// cachedGrid returns the preview grid to use for piece, or nil to build a
// new one. Only large spatial scales in a zoomed-in full pipeline qualify:
// there the region of interest misses most of the surroundings a coarse
// grid is meant to capture.
func (r *Reconstructor) cachedGrid(piece Piece, sigmaS float32) *bilateral.Snapshot {
	if sigmaS <= SpatialApprox || piece.Pipe != PipeFull || !piece.ZoomedIn {
		return nil
	}
	snap, hash, ok := r.cache.Load()
	if !ok {
		return nil
	}
	if hash != piece.Hash {
		glog.Warningf("colorrecon: preview grid hash %#x does not match pipe hash %#x, output may be inconsistent", hash, piece.Hash)
	}
	return snap
}

// newGrid allocates the grid for in and picks the accumulator that fits the
// memory limit.
func (r *Reconstructor) newGrid(in *image.Image4, piece Piece, sigmaS, sigmaR float32) (*bilateral.Grid, bilateral.AccumulatorKind, error) {
	kind := r.accumulator
	one, err := bilateral.MemoryUse(in.Width(), in.Height(), sigmaS, sigmaR, 1)
	if err != nil {
		return nil, kind, err
	}
	need := one
	if kind == bilateral.PartialKind {
		workers := bilateral.SplatWorkers(r.pool, in.Width(), in.Height())
		need = one * int64(workers)
		if need > r.memoryLimit && one <= r.memoryLimit {
			glog.V(1).Infof("colorrecon: %d partial grids need %d bytes, limit %d: splatting atomically", workers, need, r.memoryLimit)
			kind, need = bilateral.AtomicKind, one
		}
	}
	if need > r.memoryLimit {
		return nil, kind, fmt.Errorf("%w: need %d bytes, limit %d", bilateral.ErrGridTooLarge, need, r.memoryLimit)
	}

	g, err := bilateral.NewGrid(bilateral.FrameFromROI(piece.ROI, piece.InputScale), sigmaS, sigmaR, r.memoryLimit)
	if err != nil {
		return nil, kind, err
	}
	glog.V(1).Infof("colorrecon: grid %v (requested sigma_s=%g sigma_r=%g) for %dx%d, %s accumulator, %d bytes",
		g.Geometry, sigmaS, sigmaR, in.Width(), in.Height(), kind, need)
	return g, kind, nil
}
