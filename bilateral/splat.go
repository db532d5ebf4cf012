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
	"golang.org/x/sys/cpu"

	"github.com/ajroetker/go-colorrecon/image"
	"github.com/ajroetker/go-colorrecon/workerpool"
)

// MinParallelPixels is the minimum pixel count before a stage is spread
// over the worker pool. Smaller images run on the calling goroutine.
const MinParallelPixels = 16384

// SplatStats summarizes a splat.
type SplatStats struct {
	// Pixels is the number of source pixels at or below the threshold.
	Pixels int
}

// SplatWorkers returns the number of worker slots Splat uses for a width x
// height image on pool. MemoryUse with this count gives the peak grid memory
// of a partial splat.
func SplatWorkers(pool *workerpool.Pool, width, height int) int {
	if width*height < MinParallelPixels {
		return 1
	}
	return max(min(pool.NumWorkers(), height), 1)
}

type splatCounter struct {
	n int
	_ cpu.CacheLinePad
}

// Splat scatters the chrominance of every pixel of in with L <= threshold
// into the 8 cells around its grid coordinate, trilinearly weighted and
// scaled by 100/sigma_s^2 so the result does not depend on the grid
// resolution. Pixels above the threshold are the ones to be reconstructed
// and are skipped. acc defaults to a PartialAccumulator when nil.
//
// in must have the frame size of g.
func Splat(pool *workerpool.Pool, g *Grid, in *image.Image4, threshold float32, prec Precedence, acc Accumulator) (SplatStats, error) {
	if in.Width() != g.Width || in.Height() != g.Height {
		panic("bilateral: splat input does not match grid frame")
	}
	if acc == nil {
		acc = &PartialAccumulator{}
	}
	height := in.Height()
	workers := SplatWorkers(pool, in.Width(), height)
	if workers == 1 {
		pool = nil
	}

	if err := acc.Begin(g, workers); err != nil {
		return SplatStats{}, err
	}

	counters := make([]splatCounter, workers)
	norm := 100 / (g.SigmaS * g.SigmaS)
	ox := 1
	oy := g.SizeX
	oz := g.SizeX * g.SizeY

	pool.ParallelForWorker(height, func(worker, start, end int) {
		counter := &counters[worker]
		for j := start; j < end; j++ {
			row := in.Row(j)
			for i := 0; i < in.Width(); i++ {
				px := row[i*image.Channels : i*image.Channels+image.Channels]
				L, a, b := px[image.ChanL], px[image.ChanA], px[image.ChanB]
				if !(L <= threshold) {
					continue
				}
				weight := prec.Weight(a, b) * norm
				if weight == 0 {
					continue
				}
				counter.n++

				x, y, z := g.ImageToGrid(float32(i), float32(j), L)
				xi, yi, zi, xf, yf, zf := g.corner(x, y, z)
				base := g.Index(xi, yi, zi)
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
					acc.Add(worker, index, wx*wy*wz*weight, a, b)
				}
			}
		}
	})
	acc.End(pool)

	var stats SplatStats
	for _, c := range counters {
		stats.Pixels += c.n
	}
	return stats, nil
}
