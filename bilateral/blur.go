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
	"github.com/ajroetker/go-highway/hwy/contrib/vec"

	"github.com/ajroetker/go-colorrecon/workerpool"
)

// Binomial 5-tap kernel [1 4 6 4 1]/16.
const (
	blurW0 = 6.0 / 16.0
	blurW1 = 4.0 / 16.0
	blurW2 = 1.0 / 16.0
)

// minParallelCells is the grid size below which blur passes stay sequential.
const minParallelCells = 4096

// columnTile is the number of cells of a plane whose z lines are blurred
// together. Tiles are fixed so the result does not depend on the pool size.
const columnTile = 256

// Axis identifies a grid axis.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// Blur smooths the grid with the 5-tap binomial kernel along x, then y,
// then z. Each pass completes before the next one starts; within a pass
// every line is independent.
func Blur(pool *workerpool.Pool, g *Grid) {
	if g.Geometry.Cells() < minParallelCells {
		pool = nil
	}
	for _, axis := range [...]Axis{AxisX, AxisY, AxisZ} {
		BlurAxis(pool, g, axis)
	}
}

// BlurAxis runs a single blur pass over all lines parallel to axis. The x
// pass walks each line cell by cell; the y and z passes blur whole rows of
// neighbouring lines at once.
func BlurAxis(pool *workerpool.Pool, g *Grid, axis Axis) {
	sx, sy, sz := g.SizeX, g.SizeY, g.SizeZ
	plane := sx * sy
	f := cellFloats(g.cells)

	switch axis {
	case AxisX:
		cells := g.cells
		pool.ParallelFor(sy*sz, func(start, end int) {
			for line := start; line < end; line++ {
				blurLine(cells, line*sx, 1, sx)
			}
		})
	case AxisY:
		// A z plane is sy rows of sx cells.
		row := sx * cellFloatCount
		pool.ParallelFor(sz, func(start, end int) {
			var w rowWindow
			for z := start; z < end; z++ {
				blurRows(f[z*plane*cellFloatCount:], row, row, sy, &w)
			}
		})
	default:
		// The z lines of a tile of cells are sz rows one plane apart.
		tiles := (plane + columnTile - 1) / columnTile
		pool.ParallelFor(tiles, func(start, end int) {
			var w rowWindow
			for t := start; t < end; t++ {
				c0, c1 := t*columnTile, min((t+1)*columnTile, plane)
				blurRows(f[c0*cellFloatCount:], (c1-c0)*cellFloatCount, plane*cellFloatCount, sz, &w)
			}
		})
	}
}

// rowWindow holds pre-blur copies of the current row and the two rows
// behind it.
type rowWindow struct {
	cur, back1, back2 []float32
}

func (w *rowWindow) reset(n int) {
	if cap(w.cur) < n || cap(w.back1) < n || cap(w.back2) < n {
		w.cur, w.back1, w.back2 = make([]float32, n), make([]float32, n), make([]float32, n)
	}
	w.cur, w.back1, w.back2 = w.cur[:n], w.back1[:n], w.back2[:n]
}

// blurRows blurs n rows of rowLen floats in place, row i starting at
// f[i*stride]. It is blurLine applied to rowLen lines side by side, with
// the same truncation at both ends.
func blurRows(f []float32, rowLen, stride, n int, w *rowWindow) {
	w.reset(rowLen)
	row := func(i int) []float32 {
		return f[i*stride : i*stride+rowLen]
	}
	for i := range n {
		dst := row(i)
		copy(w.cur, dst)
		vec.ScaleTo(dst, blurW0, w.cur)
		if i+1 < n {
			vec.MulConstAddTo(dst, blurW1, row(i+1))
		}
		if i+2 < n {
			vec.MulConstAddTo(dst, blurW2, row(i+2))
		}
		if i >= 1 {
			vec.MulConstAddTo(dst, blurW1, w.back1)
		}
		if i >= 2 {
			vec.MulConstAddTo(dst, blurW2, w.back2)
		}
		w.back2, w.back1, w.cur = w.back1, w.cur, w.back2
	}
}

// window carries the original (pre-blur) values of the two cells behind the
// current position. The blurred value of cell i needs cells i-2..i+2 of the
// input; i+1 and i+2 are still unmodified in place, i-1 and i-2 have
// already been overwritten and are read from the window instead.
type window struct {
	back2, back1 Cell
}

// push shifts the window forward by one cell, cur being the original value
// of the cell just blurred.
func (w *window) push(cur Cell) {
	w.back2, w.back1 = w.back1, cur
}

func weighted(c Cell, w float32) Cell {
	return Cell{Weight: c.Weight * w, A: c.A * w, B: c.B * w}
}

func (c Cell) add(o Cell) Cell {
	return Cell{Weight: c.Weight + o.Weight, A: c.A + o.A, B: c.B + o.B}
}

// blurLine blurs the n cells at cells[start], cells[start+stride], ... in
// place. Near both ends the taps that would fall outside the line are
// dropped.
func blurLine(cells []Cell, start, stride, n int) {
	if n < 5 {
		blurShortLine(cells, start, stride, n)
		return
	}

	var w window
	idx := start

	// i = 0: no cells behind.
	cur := cells[idx]
	cells[idx] = weighted(cur, blurW0).
		add(weighted(cells[idx+stride], blurW1)).
		add(weighted(cells[idx+2*stride], blurW2))
	w.push(cur)
	idx += stride

	// i = 1: one cell behind.
	cur = cells[idx]
	cells[idx] = weighted(cur, blurW0).
		add(weighted(cells[idx+stride].add(w.back1), blurW1)).
		add(weighted(cells[idx+2*stride], blurW2))
	w.push(cur)
	idx += stride

	for i := 2; i < n-2; i++ {
		cur = cells[idx]
		cells[idx] = weighted(cur, blurW0).
			add(weighted(cells[idx+stride].add(w.back1), blurW1)).
			add(weighted(cells[idx+2*stride].add(w.back2), blurW2))
		w.push(cur)
		idx += stride
	}

	// i = n-2: one cell ahead.
	cur = cells[idx]
	cells[idx] = weighted(cur, blurW0).
		add(weighted(cells[idx+stride].add(w.back1), blurW1)).
		add(weighted(w.back2, blurW2))
	w.push(cur)
	idx += stride

	// i = n-1: no cells ahead.
	cells[idx] = weighted(cells[idx], blurW0).
		add(weighted(w.back1, blurW1)).
		add(weighted(w.back2, blurW2))
}

// blurShortLine handles lines with fewer than 5 cells, which only occur for
// hand-built grids; NewGeometry never produces them.
func blurShortLine(cells []Cell, start, stride, n int) {
	var w window
	for i := range n {
		idx := start + i*stride
		cur := cells[idx]
		out := weighted(cur, blurW0)
		if i+1 < n {
			out = out.add(weighted(cells[idx+stride], blurW1))
		}
		if i+2 < n {
			out = out.add(weighted(cells[idx+2*stride], blurW2))
		}
		if i >= 1 {
			out = out.add(weighted(w.back1, blurW1))
		}
		if i >= 2 {
			out = out.add(weighted(w.back2, blurW2))
		}
		cells[idx] = out
		w.push(cur)
	}
}
