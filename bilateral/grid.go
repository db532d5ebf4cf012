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
	"errors"
	"fmt"
	"unsafe"

	"github.com/ajroetker/go-colorrecon/image"
)

// ErrGridTooLarge is returned instead of allocating when a grid, a partial
// grid or a snapshot would exceed the memory budget.
var ErrGridTooLarge = errors.New("bilateral: grid exceeds memory budget")

// Cell holds the unnormalized accumulators of one grid location. The
// chrominance it represents is (A/Weight, B/Weight) when Weight > 0.
type Cell struct {
	Weight float32
	A      float32
	B      float32
}

// cellFloatCount is the number of float32 fields of a Cell.
const cellFloatCount = 3

// cellFloats views cells as a flat slice of Weight, A, B triples.
func cellFloats(cells []Cell) []float32 {
	if len(cells) == 0 {
		return nil
	}
	return unsafe.Slice(&cells[0].Weight, cellFloatCount*len(cells))
}

// Chroma returns the normalized chrominance of the cell, or the neutral
// (0, 0) for a cell without information.
func (c Cell) Chroma() (a, b float32) {
	if c.Weight > 0 {
		return c.A / c.Weight, c.B / c.Weight
	}
	return 0, 0
}

// Frame locates the source buffer of a grid within the full image.
type Frame struct {
	X, Y          int     // origin of the source ROI, in source buffer pixels
	Width, Height int     // source buffer size
	Scale         float32 // input scale over ROI scale
}

// FrameFromROI returns the frame of a grid built from a buffer covering roi,
// where inputScale is the overall scale of the pipeline input.
func FrameFromROI(roi image.ROI, inputScale float32) Frame {
	scale := roi.Scale
	if scale == 0 {
		scale = 1
	}
	return Frame{
		X:      roi.X,
		Y:      roi.Y,
		Width:  roi.Width,
		Height: roi.Height,
		Scale:  inputScale / scale,
	}
}

// Grid is a bilateral grid: a 3-D array of cells indexed by (x, y, L),
// stored with x varying fastest, then y, then z.
//
// A Grid is owned by a single reconstruction. It is written by the splat and
// blur stages and only read while slicing.
type Grid struct {
	Geometry
	Frame

	cells  []Cell
	budget int64
}

// NewGrid allocates a zeroed grid for frame with the given scales. A
// positive budget caps the bytes this grid and its partial grids may use.
func NewGrid(frame Frame, sigmaS, sigmaR float32, budget int64) (*Grid, error) {
	geom, err := NewGeometry(frame.Width, frame.Height, sigmaS, sigmaR)
	if err != nil {
		return nil, err
	}
	return newGridWithGeometry(geom, frame, budget)
}

func newGridWithGeometry(geom Geometry, frame Frame, budget int64) (*Grid, error) {
	if err := checkBudget(geom.Bytes(), budget, "grid"); err != nil {
		return nil, err
	}
	return &Grid{
		Geometry: geom,
		Frame:    frame,
		cells:    make([]Cell, geom.Cells()),
		budget:   budget,
	}, nil
}

func checkBudget(bytes, budget int64, what string) error {
	if budget > 0 && bytes > budget {
		return fmt.Errorf("%w: %s needs %d bytes, budget %d", ErrGridTooLarge, what, bytes, budget)
	}
	return nil
}

// Data returns the flat cell array.
func (g *Grid) Data() []Cell {
	return g.cells
}

// Budget returns the memory budget the grid was created with.
func (g *Grid) Budget() int64 {
	return g.budget
}

// Index returns the flat index of cell (x, y, z).
func (g *Grid) Index(x, y, z int) int {
	return x + g.SizeX*(y+g.SizeY*z)
}

// Cell returns the cell at (x, y, z).
func (g *Grid) Cell(x, y, z int) Cell {
	return g.cells[g.Index(x, y, z)]
}

// ImageToGrid maps a source pixel position and its luminance to continuous
// grid coordinates, clamped to the grid extent.
func (g *Grid) ImageToGrid(px, py, L float32) (x, y, z float32) {
	x = image.ClampF(px/g.SigmaS, 0, float32(g.SizeX-1))
	y = image.ClampF(py/g.SigmaS, 0, float32(g.SizeY-1))
	z = image.ClampF(L/g.SigmaR, 0, float32(g.SizeZ-1))
	return x, y, z
}

// corner splits continuous grid coordinates into the base cell of the
// 2x2x2 neighbourhood and the fractional offsets within it. The base index
// never exceeds size-2 so base+1 always exists.
func (g *Grid) corner(x, y, z float32) (xi, yi, zi int, xf, yf, zf float32) {
	xi = min(int(x), g.SizeX-2)
	yi = min(int(y), g.SizeY-2)
	zi = min(int(z), g.SizeZ-2)
	return xi, yi, zi, x - float32(xi), y - float32(yi), z - float32(zi)
}

// Reset zeroes all cells.
func (g *Grid) Reset() {
	clear(g.cells)
}

// Snapshot is an immutable copy of a grid, kept so that a later
// reconstruction can reuse it instead of splatting again.
type Snapshot struct {
	geom  Geometry
	frame Frame
	cells []Cell
}

// Freeze copies g into a Snapshot.
func (g *Grid) Freeze() (*Snapshot, error) {
	if err := checkBudget(g.Bytes(), g.budget, "snapshot"); err != nil {
		return nil, err
	}
	s := &Snapshot{
		geom:  g.Geometry,
		frame: g.Frame,
		cells: make([]Cell, len(g.cells)),
	}
	copy(s.cells, g.cells)
	return s, nil
}

// Geometry returns the geometry of the frozen grid.
func (s *Snapshot) Geometry() Geometry {
	return s.geom
}

// Frame returns the frame of the frozen grid.
func (s *Snapshot) Frame() Frame {
	return s.frame
}

// Thaw returns a new grid holding a copy of the snapshot's cells.
func (s *Snapshot) Thaw(budget int64) (*Grid, error) {
	g, err := newGridWithGeometry(s.geom, s.frame, budget)
	if err != nil {
		return nil, err
	}
	copy(g.cells, s.cells)
	return g, nil
}
