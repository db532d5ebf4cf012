package bilateral

import (
	"math/rand/v2"
	"testing"

	"github.com/ajroetker/go-colorrecon/image"
	"github.com/ajroetker/go-colorrecon/workerpool"
)

// reconstruct runs splat, blur and slice over a full-frame image and
// returns the output together with the blurred grid.
func reconstruct(t testing.TB, pool *workerpool.Pool, in *image.Image4, threshold, sigmaS, sigmaR float32, prec Precedence, acc Accumulator) (*image.Image4, *Grid) {
	t.Helper()
	roi := image.FullROI(in.Width(), in.Height())
	g, err := NewGrid(FrameFromROI(roi, 1), sigmaS, sigmaR, 0)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	if _, err := Splat(pool, g, in, threshold, prec, acc); err != nil {
		t.Fatalf("Splat: %v", err)
	}
	Blur(pool, g)
	out := image.NewImage4(in.Width(), in.Height())
	Slice(pool, g, in, out, threshold, roi, 1)
	return out, g
}

// randomImage returns an image with L uniform in [lo, hi) and a, b uniform
// in [-chroma, chroma).
func randomImage(seed uint64, width, height int, lo, hi, chroma float32) *image.Image4 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	img := image.NewImage4(width, height)
	for y := range height {
		for x := range width {
			img.SetPixel(x, y, [image.Channels]float32{
				lo + (hi-lo)*rng.Float32(),
				chroma * (2*rng.Float32() - 1),
				chroma * (2*rng.Float32() - 1),
				rng.Float32(),
			})
		}
	}
	return img
}

// randomGrid returns a grid of the given geometry filled with random cells.
func randomGrid(seed uint64, sx, sy, sz int) *Grid {
	rng := rand.New(rand.NewPCG(seed, 7))
	g := &Grid{
		Geometry: Geometry{SizeX: sx, SizeY: sy, SizeZ: sz, SigmaS: 1, SigmaR: 1},
		Frame:    Frame{Width: sx, Height: sy, Scale: 1},
		cells:    make([]Cell, sx*sy*sz),
	}
	for i := range g.cells {
		g.cells[i] = Cell{
			Weight: rng.Float32(),
			A:      2*rng.Float32() - 1,
			B:      2*rng.Float32() - 1,
		}
	}
	return g
}
