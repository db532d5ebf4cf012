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

// Package bilateral implements the bilateral grid used to reconstruct the
// chrominance of overexposed pixels.
//
// A Grid is a coarse 3-D histogram over (x, y, L). Well-exposed pixels are
// splatted into it, the grid is blurred along each axis, and overexposed
// pixels then read back a chrominance that was propagated from tonally and
// spatially close neighbours.
//
// # Stages
//
//	g, err := bilateral.NewGrid(frame, sigmaS, sigmaR, budget)
//	bilateral.Splat(pool, g, in, threshold, bilateral.Precedence{}, nil)
//	bilateral.Blur(pool, g)
//	bilateral.Slice(pool, g, in, out, threshold, roi, inputScale)
//
// Each stage is a barrier: it returns only when all of its workers are
// done, so calling the stages in sequence is enough to order them.
//
// # Accumulation
//
// Splatting is the only stage where workers race on the same cells. The
// Accumulator interface makes the strategy pluggable: PartialAccumulator
// (the default) splats into per-worker grids and reduces them afterwards,
// AtomicAccumulator adds into the shared grid with compare-and-swap.
//
// # Memory
//
// Grids are bounded by SpatialCap and RangeCap intervals per axis and,
// optionally, by a byte budget. Exceeding the budget returns
// ErrGridTooLarge before anything is allocated.
package bilateral
