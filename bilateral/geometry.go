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
	"math"
	"unsafe"

	"github.com/samber/lo"
)

const (
	// SpatialCap bounds the number of spatial intervals per axis.
	SpatialCap = 6000
	// RangeCap bounds the number of luminance intervals.
	RangeCap = 50
	// MinCells is the minimum number of intervals per axis.
	MinCells = 4
	// LRange is the luminance extent covered by the grid (L is 0..100).
	LRange = 100
)

// ErrInvalidGeometry is returned for empty images and non-positive sigmas.
var ErrInvalidGeometry = errors.New("bilateral: invalid grid geometry")

// Geometry is the resolution of a bilateral grid and the effective cell
// sizes that go with it.
type Geometry struct {
	SizeX, SizeY, SizeZ int
	// SigmaS is the spatial cell size in source pixels.
	SigmaS float32
	// SigmaR is the luminance cell size, always LRange/(SizeZ-1).
	SigmaR float32
}

// NewGeometry computes the grid resolution for a width x height image and
// the requested spatial and range scales. Each axis gets between MinCells
// and its cap intervals plus one sentinel plane, so that the x+1, y+1, z+1
// neighbours of any interior index exist.
func NewGeometry(width, height int, sigmaS, sigmaR float32) (Geometry, error) {
	if width <= 0 || height <= 0 {
		return Geometry{}, fmt.Errorf("%w: image size %dx%d", ErrInvalidGeometry, width, height)
	}
	if !(sigmaS > 0) || !(sigmaR > 0) || math.IsInf(float64(sigmaS), 0) || math.IsInf(float64(sigmaR), 0) {
		return Geometry{}, fmt.Errorf("%w: sigma_s=%g sigma_r=%g", ErrInvalidGeometry, sigmaS, sigmaR)
	}

	g := Geometry{
		SizeX: intervals(float32(width)/sigmaS, SpatialCap) + 1,
		SizeY: intervals(float32(height)/sigmaS, SpatialCap) + 1,
		SizeZ: intervals(LRange/sigmaR, RangeCap) + 1,
	}
	g.SigmaS = max(float32(height)/float32(g.SizeY-1), float32(width)/float32(g.SizeX-1))
	g.SigmaR = LRange / float32(g.SizeZ-1)
	return g, nil
}

// intervals rounds v to the nearest integer and clamps it to [MinCells, limit].
func intervals(v float32, limit int) int {
	r := math.Round(float64(v))
	if r > float64(limit) {
		return limit
	}
	return lo.Clamp(int(r), MinCells, limit)
}

// Cells returns the total number of grid cells.
func (g Geometry) Cells() int {
	return g.SizeX * g.SizeY * g.SizeZ
}

// Bytes returns the memory needed by one grid of this geometry.
func (g Geometry) Bytes() int64 {
	return int64(g.Cells()) * int64(unsafe.Sizeof(Cell{}))
}

// String implements fmt.Stringer.
func (g Geometry) String() string {
	return fmt.Sprintf("[%d %d %d] sigma_s=%g sigma_r=%g", g.SizeX, g.SizeY, g.SizeZ, g.SigmaS, g.SigmaR)
}

// MemoryUse returns the number of bytes a reconstruction of a width x height
// image needs for its grid when splatting with the partial accumulator on
// the given number of workers: the shared grid doubles as the first
// worker's partial grid, every further worker gets its own copy.
func MemoryUse(width, height int, sigmaS, sigmaR float32, workers int) (int64, error) {
	g, err := NewGeometry(width, height, sigmaS, sigmaR)
	if err != nil {
		return 0, err
	}
	return int64(max(workers, 1)) * g.Bytes(), nil
}
