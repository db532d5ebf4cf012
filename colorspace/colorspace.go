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

// Package colorspace converts between encoded sRGB images and the Lab
// buffers processed by the reconstruction kernel.
//
// Lab values use the D65 white point of sRGB and the usual CIE scale: L in
// [0, 100], a and b roughly in [-128, 128]. The alpha channel is carried in
// image.ChanAux.
package colorspace

import (
	stdimage "image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ajroetker/go-colorrecon/image"
	"github.com/ajroetker/go-colorrecon/workerpool"
)

// labScale converts go-colorful's unit Lab to CIE Lab.
const labScale = 100

const maxChannel = 0xffff

// FromImage converts img to a Lab buffer, one row per work item.
func FromImage(pool *workerpool.Pool, img stdimage.Image) *image.Image4 {
	b := img.Bounds()
	out := image.NewImage4(b.Dx(), b.Dy())
	if out.Empty() {
		return out
	}
	pool.ParallelFor(b.Dy(), func(start, end int) {
		for y := start; y < end; y++ {
			row := out.Row(y)
			for x := range b.Dx() {
				c := color.NRGBA64Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
				rgb := colorful.Color{
					R: float64(c.R) / maxChannel,
					G: float64(c.G) / maxChannel,
					B: float64(c.B) / maxChannel,
				}
				l, la, lb := rgb.Lab()
				px := row[x*image.Channels : x*image.Channels+image.Channels]
				px[image.ChanL] = float32(l * labScale)
				px[image.ChanA] = float32(la * labScale)
				px[image.ChanB] = float32(lb * labScale)
				px[image.ChanAux] = float32(c.A) / maxChannel
			}
		}
	})
	return out
}

// ToImage converts a Lab buffer back to 16-bit sRGB. Out-of-gamut colors
// are clamped.
func ToImage(pool *workerpool.Pool, lab *image.Image4) *stdimage.NRGBA64 {
	out := stdimage.NewNRGBA64(stdimage.Rect(0, 0, lab.Width(), lab.Height()))
	if lab.Empty() {
		return out
	}
	pool.ParallelFor(lab.Height(), func(start, end int) {
		for y := start; y < end; y++ {
			row := lab.Row(y)
			for x := range lab.Width() {
				px := row[x*image.Channels : x*image.Channels+image.Channels]
				rgb := colorful.Lab(
					float64(px[image.ChanL])/labScale,
					float64(px[image.ChanA])/labScale,
					float64(px[image.ChanB])/labScale,
				).Clamped()
				out.SetNRGBA64(x, y, color.NRGBA64{
					R: quantize(rgb.R),
					G: quantize(rgb.G),
					B: quantize(rgb.B),
					A: quantize(float64(px[image.ChanAux])),
				})
			}
		}
	})
	return out
}

func quantize(v float64) uint16 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return maxChannel
	}
	return uint16(math.Round(v * maxChannel))
}

// HueToLCh converts an HSL hue in [0, 1] to the LCh hue angle, in radians,
// of the fully saturated color with that hue.
func HueToLCh(hue float32) float32 {
	h := float64(hue) - math.Floor(float64(hue))
	_, a, b := colorful.Hsl(h*360, 1, 0.5).Lab()
	return float32(math.Atan2(b, a))
}
