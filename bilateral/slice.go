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

package bilateral

import (
	"sync/atomic"

	"github.com/ajroetker/go-colorrecon/image"
	"github.com/ajroetker/go-colorrecon/workerpool"
)

// sliceRowBatch is the number of rows handed to a worker at a time. Rows
// below the threshold cost almost nothing, so rows are distributed
// dynamically.
const sliceRowBatch = 8

// Blend returns the reconstruction weight of a pixel with luminance L: 0
// well below threshold, 1 at and above it, linear in between over the top
// 5% of the threshold. A non-positive threshold disables reconstruction.
func Blend(L, threshold float32) float32 {
	if !(threshold > 0) {
		return 0
	}
	if L >= threshold {
		return 1
	}
	return image.ClampF(20/threshold*L-19, 0, 1)
}

// Sample returns the trilinear interpolation of the normalized chrominance
// of the 8 cells around continuous grid coordinates (x, y, z). Cells with no
// weight contribute the neutral chrominance (0, 0).
func (g *Grid) Sample(x, y, z float32) (a, b float32) {
	xi, yi, zi, xf, yf, zf := g.corner(x, y, z)
	base := g.Index(xi, yi, zi)
	ox := 1
	oy := g.SizeX
	oz := g.SizeX * g.SizeY

	for k := range 8 {
		index := base
		wx, wy, wz := 1-xf, 1-yf, 1-zf
		if k&1 != 0 {
			index += ox
			wx = xf
		}
		if k&2 != 0 {
			index += oy
			wy = yf
		}
		if k&4 != 0 {
			index += oz
			wz = zf
		}
		ca, cb := g.cells[index].Chroma()
		w := wx * wy * wz
		a += ca * w
		b += cb * w
	}
	return a, b
}

// SliceStats summarizes a slice.
type SliceStats struct {
	// Blended is the number of output pixels with a non-zero blend weight.
	Blended int
}

// Slice writes every pixel of in to out, replacing the chrominance of
// pixels near or above threshold by a blend with the chrominance sampled
// from the grid. L and aux are copied unchanged.
//
// in and out cover roi, which need not be the region the grid was built
// from: buffer pixel (i, j) is mapped to grid pixel
// ((roi.X+i)*rescale - g.X, (roi.Y+j)*rescale - g.Y) with
// rescale = inputScale / (roi.Scale * g.Scale).
func Slice(pool *workerpool.Pool, g *Grid, in, out *image.Image4, threshold float32, roi image.ROI, inputScale float32) SliceStats {
	if !image.SameSize(in, out) || !roi.Fits(in) {
		panic("bilateral: slice buffers do not match roi")
	}
	if in.Width()*in.Height() < MinParallelPixels {
		pool = nil
	}

	roiScale := roi.Scale
	if roiScale == 0 {
		roiScale = 1
	}
	gridScale := g.Scale
	if gridScale == 0 {
		gridScale = 1
	}
	rescale := inputScale / (roiScale * gridScale)
	width := in.Width()

	var blended atomic.Int64
	pool.ParallelForAtomicBatched(in.Height(), sliceRowBatch, func(start, end int) {
		n := 0
		for j := start; j < end; j++ {
			src := in.Row(j)
			dst := out.Row(j)
			copy(dst, src)
			py := float32(roi.Y+j)*rescale - float32(g.Y)
			for i := range width {
				px := dst[i*image.Channels : i*image.Channels+image.Channels]
				L := px[image.ChanL]
				blend := Blend(L, threshold)
				if blend == 0 {
					continue
				}
				n++
				x, y, z := g.ImageToGrid(float32(roi.X+i)*rescale-float32(g.X), py, L)
				ra, rb := g.Sample(x, y, z)
				px[image.ChanA] = px[image.ChanA]*(1-blend) + ra*blend
				px[image.ChanB] = px[image.ChanB]*(1-blend) + rb*blend
			}
		}
		blended.Add(int64(n))
	})
	return SliceStats{Blended: int(blended.Load())}
}
