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
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-colorrecon/image"
	"github.com/ajroetker/go-colorrecon/workerpool"
)

func TestBlend(t *testing.T) {
	tests := []struct {
		L, threshold, want float32
	}{
		{0, 100, 0},
		{94, 100, 0},
		{95, 100, 0},
		{97.5, 100, 0.5},
		{100, 100, 1},
		{150, 100, 1},
		{57, 60, 0},
		{60, 60, 1},
		{50, 0, 0},
		{50, -1, 0},
		{float32(math.NaN()), 100, 0},
	}
	for _, tt := range tests {
		got := Blend(tt.L, tt.threshold)
		if math.Abs(float64(got-tt.want)) > 1e-5 {
			t.Errorf("Blend(%g, %g): got %g, want %g", tt.L, tt.threshold, got, tt.want)
		}
	}
}

func TestSlice_Passthrough(t *testing.T) {
	// Pixels well below the threshold are copied bit for bit.
	const threshold = 60
	in := randomImage(4, 64, 48, 0, 0.9*threshold, 50)
	out, _ := reconstruct(t, nil, in, threshold, 4, 10, Precedence{}, nil)
	if diff := cmp.Diff(in.Pix(), out.Pix()); diff != "" {
		t.Errorf("passthrough pixels changed (-in +out):\n%s", diff)
	}
}

func TestSlice_FullBlendSamplesGrid(t *testing.T) {
	const threshold = 60
	in := randomImage(6, 50, 40, 20, 90, 40)
	out, g := reconstruct(t, nil, in, threshold, 5, 20, Precedence{}, nil)

	for y := range in.Height() {
		for x := range in.Width() {
			src, dst := in.Pixel(x, y), out.Pixel(x, y)
			if dst[image.ChanL] != src[image.ChanL] || dst[image.ChanAux] != src[image.ChanAux] {
				t.Fatalf("pixel (%d,%d): L/aux changed: %v -> %v", x, y, src, dst)
			}
			if src[image.ChanL] < threshold {
				continue
			}
			gx, gy, gz := g.ImageToGrid(float32(x), float32(y), src[image.ChanL])
			a, b := g.Sample(gx, gy, gz)
			if dst[image.ChanA] != a || dst[image.ChanB] != b {
				t.Fatalf("pixel (%d,%d): got (%g, %g), want sample (%g, %g)", x, y, dst[image.ChanA], dst[image.ChanB], a, b)
			}
		}
	}
}

func TestSlice_UniformChromaRecovered(t *testing.T) {
	const (
		threshold = 60
		a0, b0    = 12.5, -7.25
	)
	tests := []struct {
		sigmaS, sigmaR float32
	}{
		{1, 20}, {1, 25}, {4, 20}, {4, 50}, {16, 25},
	}
	for _, tt := range tests {
		in := randomImage(8, 32, 32, 30, 58, 0)
		for y := range 32 {
			for x := range 32 {
				px := in.Pixel(x, y)
				if x >= 14 && x < 18 && y >= 14 && y < 18 {
					// Overexposed block with a wrong chrominance.
					px[image.ChanL] = 62 + float32((x+y)%4)*4
					px[image.ChanA], px[image.ChanB] = 100, 100
				} else {
					px[image.ChanA], px[image.ChanB] = a0, b0
				}
				in.SetPixel(x, y, px)
			}
		}

		out, _ := reconstruct(t, nil, in, threshold, tt.sigmaS, tt.sigmaR, Precedence{}, nil)
		for y := 14; y < 18; y++ {
			for x := 14; x < 18; x++ {
				px := out.Pixel(x, y)
				if math.Abs(float64(px[image.ChanA]-a0)) > 1e-3 || math.Abs(float64(px[image.ChanB]-b0)) > 1e-3 {
					t.Errorf("sigma=(%g,%g) pixel (%d,%d): got (%g, %g), want (%g, %g)",
						tt.sigmaS, tt.sigmaR, x, y, px[image.ChanA], px[image.ChanB], a0, b0)
				}
			}
		}
	}
}

func TestSlice_EmptyGridIsNeutral(t *testing.T) {
	in := image.NewImage4(20, 20)
	in.Fill([image.Channels]float32{90, 30, -30, 1})
	out, g := reconstruct(t, nil, in, 60, 2, 10, Precedence{}, nil)

	for i, c := range g.Data() {
		if c != (Cell{}) {
			t.Fatalf("cell %d: got %+v, want empty", i, c)
		}
	}
	for y := range 20 {
		for x := range 20 {
			px := out.Pixel(x, y)
			if px[image.ChanA] != 0 || px[image.ChanB] != 0 {
				t.Fatalf("pixel (%d,%d): got (%g, %g), want (0, 0)", x, y, px[image.ChanA], px[image.ChanB])
			}
			if px[image.ChanL] != 90 || px[image.ChanAux] != 1 {
				t.Fatalf("pixel (%d,%d): L/aux changed: %v", x, y, px)
			}
		}
	}
}

func TestSlice_NoNaN(t *testing.T) {
	// Sparse sources leave most cells empty.
	in := image.NewImage4(64, 64)
	in.Fill([image.Channels]float32{99, 5, 5, 0})
	in.SetPixel(0, 0, [image.Channels]float32{10, 20, 20, 0})
	in.SetPixel(63, 63, [image.Channels]float32{50, -20, 20, 0})
	out, _ := reconstruct(t, nil, in, 60, 1, 2, Precedence{}, nil)
	for i, v := range out.Pix() {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("sample %d is %g", i, v)
		}
	}
}

func TestSlice_Idempotent(t *testing.T) {
	pool := workerpool.New(4)
	defer pool.Close()

	in := randomImage(12, 160, 120, 0, 100, 40)
	first, _ := reconstruct(t, pool, in, 70, 6, 10, Precedence{}, nil)
	second, _ := reconstruct(t, pool, in, 70, 6, 10, Precedence{}, nil)
	if diff := cmp.Diff(first.Pix(), second.Pix()); diff != "" {
		t.Errorf("repeated runs differ:\n%s", diff)
	}

	seq, _ := reconstruct(t, nil, in, 70, 6, 10, Precedence{}, nil)
	for i, v := range seq.Pix() {
		if math.Abs(float64(v-first.Pix()[i])) > 1e-3 {
			t.Fatalf("sample %d: sequential %g, parallel %g", i, v, first.Pix()[i])
		}
	}
}

func TestSlice_OverexposedPixelTakesNeighbourColor(t *testing.T) {
	in := image.NewImage4(4, 4)
	in.Fill([image.Channels]float32{50, 10, -5, 0})
	in.SetPixel(3, 3, [image.Channels]float32{90, -40, 25, 0})

	out, _ := reconstruct(t, nil, in, 60, 1, 25, Precedence{}, nil)
	px := out.Pixel(3, 3)
	assert.InDelta(t, 10, px[image.ChanA], 1e-4)
	assert.InDelta(t, -5, px[image.ChanB], 1e-4)
	assert.Equal(t, float32(90), px[image.ChanL])

	// Every other pixel is far below the threshold and passes through.
	for y := range 4 {
		for x := range 4 {
			if x == 3 && y == 3 {
				continue
			}
			assert.Equal(t, in.Pixel(x, y), out.Pixel(x, y), "pixel (%d,%d)", x, y)
		}
	}
}

func TestSlice_ThreeSources(t *testing.T) {
	in := image.NewImage4(2, 2)
	in.Fill([image.Channels]float32{50, 10, -5, 0})
	in.SetPixel(1, 1, [image.Channels]float32{90, 0, 0, 0})

	out, g := reconstruct(t, nil, in, 60, 1, 25, Precedence{}, nil)
	require.Equal(t, float32(0.5), g.SigmaS)
	px := out.Pixel(1, 1)
	assert.InDelta(t, 10, px[image.ChanA], 1e-4)
	assert.InDelta(t, -5, px[image.ChanB], 1e-4)
}

func TestSlice_FarLuminanceIsNeutral(t *testing.T) {
	// With a fine range axis, the sources are too far in L to reach the
	// cells of the overexposed pixel.
	in := image.NewImage4(4, 4)
	in.Fill([image.Channels]float32{50, 10, -5, 0})
	in.SetPixel(3, 3, [image.Channels]float32{90, -40, 25, 0})

	out, _ := reconstruct(t, nil, in, 60, 1, 10, Precedence{}, nil)
	px := out.Pixel(3, 3)
	assert.Equal(t, float32(0), px[image.ChanA])
	assert.Equal(t, float32(0), px[image.ChanB])
}

func TestSlice_DisabledThreshold(t *testing.T) {
	in := randomImage(13, 16, 16, 0, 100, 30)
	g, err := NewGrid(Frame{Width: 16, Height: 16, Scale: 1}, 2, 10, 0)
	require.NoError(t, err)
	out := image.NewImage4(16, 16)
	stats := Slice(nil, g, in, out, 0, image.FullROI(16, 16), 1)
	assert.Equal(t, 0, stats.Blended)
	assert.Equal(t, in.Pix(), out.Pix())
}

func TestSlice_RescaledROI(t *testing.T) {
	// A half-resolution preview grid sliced into a full-resolution crop.
	const (
		threshold = 60
		a0, b0    = -6, 9
	)
	preview := image.NewImage4(40, 30)
	preview.Fill([image.Channels]float32{50, a0, b0, 0})
	previewROI := image.ROI{Width: 40, Height: 30, Scale: 0.5}
	g, err := NewGrid(FrameFromROI(previewROI, 1), 4, 25, 0)
	require.NoError(t, err)
	require.Equal(t, float32(2), g.Scale)
	_, err = Splat(nil, g, preview, threshold, Precedence{}, nil)
	require.NoError(t, err)
	Blur(nil, g)

	// Crop of the full image starting at (20, 10), all overexposed.
	roi := image.ROI{X: 20, Y: 10, Width: 30, Height: 20, Scale: 1}
	in := image.NewImage4(30, 20)
	in.Fill([image.Channels]float32{70, 0, 0, 0})
	out := image.NewImage4(30, 20)
	stats := Slice(nil, g, in, out, threshold, roi, 1)
	assert.Equal(t, 30*20, stats.Blended)

	for y := range 20 {
		for x := range 30 {
			px := out.Pixel(x, y)
			assert.InDelta(t, a0, px[image.ChanA], 1e-3, "pixel (%d,%d)", x, y)
			assert.InDelta(t, b0, px[image.ChanB], 1e-3, "pixel (%d,%d)", x, y)
		}
	}
}

func TestSlice_OutOfGridROI(t *testing.T) {
	// Pixels mapping outside the grid clamp to its border instead of
	// reading out of bounds.
	g, err := NewGrid(Frame{Width: 10, Height: 10, Scale: 1}, 2, 10, 0)
	require.NoError(t, err)
	in := image.NewImage4(8, 8)
	in.Fill([image.Channels]float32{100, 1, 1, 0})
	out := image.NewImage4(8, 8)
	roi := image.ROI{X: 1000, Y: -1000, Width: 8, Height: 8, Scale: 1}
	assert.NotPanics(t, func() {
		Slice(nil, g, in, out, 60, roi, 1)
	})
}

func TestSlice_MismatchedBuffersPanic(t *testing.T) {
	g, err := NewGrid(Frame{Width: 10, Height: 10, Scale: 1}, 2, 10, 0)
	require.NoError(t, err)
	in := image.NewImage4(10, 10)
	assert.Panics(t, func() {
		Slice(nil, g, in, image.NewImage4(10, 9), 60, image.FullROI(10, 10), 1)
	})
	assert.Panics(t, func() {
		Slice(nil, g, in, image.NewImage4(10, 10), 60, image.FullROI(12, 10), 1)
	})
}

func TestSnapshot_RoundTrip(t *testing.T) {
	g := randomGrid(21, 6, 5, 7)
	snap, err := g.Freeze()
	require.NoError(t, err)
	assert.Equal(t, g.Geometry, snap.Geometry())
	assert.Equal(t, g.Frame, snap.Frame())

	thawed, err := snap.Thaw(0)
	require.NoError(t, err)
	if diff := cmp.Diff(g.cells, thawed.cells); diff != "" {
		t.Fatalf("thawed grid differs:\n%s", diff)
	}

	// Snapshots are detached from both grids.
	thawed.Reset()
	g.cells[0] = Cell{Weight: -1}
	again, err := snap.Thaw(0)
	require.NoError(t, err)
	assert.NotEqual(t, Cell{Weight: -1}, again.cells[0])
	assert.NotEqual(t, Cell{}, again.cells[1])

	_, err = snap.Thaw(snap.Geometry().Bytes() - 1)
	assert.ErrorIs(t, err, ErrGridTooLarge)
}
