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

package image

// Channel indices of an Image4 pixel.
const (
	ChanL   = 0 // luminance, 0..100
	ChanA   = 1 // first chrominance channel
	ChanB   = 2 // second chrominance channel
	ChanAux = 3 // alpha or mask, passed through untouched
)

// Channels is the number of interleaved samples per pixel.
const Channels = 4

// Image4 is an interleaved 4-channel float32 image (L, a, b, aux).
// Pixels are stored row-major, Channels samples per pixel with no row
// padding, which matches the layout a processing pipeline hands over.
type Image4 struct {
	data   []float32
	width  int
	height int
	stride int // samples per row
}

// NewImage4 creates a zeroed image with the specified dimensions.
// Non-positive dimensions yield an empty image.
func NewImage4(width, height int) *Image4 {
	if width <= 0 || height <= 0 {
		return &Image4{}
	}
	stride := width * Channels
	return &Image4{
		data:   make([]float32, stride*height),
		width:  width,
		height: height,
		stride: stride,
	}
}

// FromSlice wraps an existing interleaved buffer without copying it.
// The buffer must hold at least width*height*Channels samples, otherwise
// an empty image is returned.
func FromSlice(data []float32, width, height int) *Image4 {
	if width <= 0 || height <= 0 || len(data) < width*height*Channels {
		return &Image4{}
	}
	stride := width * Channels
	return &Image4{
		data:   data[:stride*height],
		width:  width,
		height: height,
		stride: stride,
	}
}

// Width returns the image width in pixels.
func (img *Image4) Width() int {
	return img.width
}

// Height returns the image height in pixels.
func (img *Image4) Height() int {
	return img.height
}

// Stride returns the number of samples per row.
func (img *Image4) Stride() int {
	return img.stride
}

// Pix returns the underlying interleaved samples.
func (img *Image4) Pix() []float32 {
	return img.data
}

// Empty reports whether the image holds no pixels.
func (img *Image4) Empty() bool {
	return img == nil || img.data == nil
}

// Row returns a mutable slice of the Channels*Width samples of row y.
func (img *Image4) Row(y int) []float32 {
	if y < 0 || y >= img.height || img.data == nil {
		return nil
	}
	start := y * img.stride
	return img.data[start : start+img.stride]
}

// Pixel returns the 4 samples at position (x, y), or zeros when out of
// bounds.
func (img *Image4) Pixel(x, y int) [Channels]float32 {
	var px [Channels]float32
	if x < 0 || x >= img.width || y < 0 || y >= img.height || img.data == nil {
		return px
	}
	copy(px[:], img.data[y*img.stride+x*Channels:])
	return px
}

// SetPixel sets the samples at position (x, y).
func (img *Image4) SetPixel(x, y int, px [Channels]float32) {
	if x < 0 || x >= img.width || y < 0 || y >= img.height || img.data == nil {
		return
	}
	copy(img.data[y*img.stride+x*Channels:], px[:])
}

// SameSize returns true if both images have the same dimensions.
func SameSize(a, b *Image4) bool {
	return a.width == b.width && a.height == b.height
}

// Clone creates a deep copy of the image.
func (img *Image4) Clone() *Image4 {
	if img.data == nil {
		return &Image4{}
	}
	clone := &Image4{
		data:   make([]float32, len(img.data)),
		width:  img.width,
		height: img.height,
		stride: img.stride,
	}
	copy(clone.data, img.data)
	return clone
}

// CopyFrom overwrites img with the samples of src. Both images must have
// the same size; CopyFrom reports whether the copy happened.
func (img *Image4) CopyFrom(src *Image4) bool {
	if img.data == nil || src.data == nil || !SameSize(img, src) {
		return false
	}
	copy(img.data, src.data)
	return true
}

// Fill sets every pixel to px.
func (img *Image4) Fill(px [Channels]float32) {
	for i := 0; i+Channels <= len(img.data); i += Channels {
		copy(img.data[i:i+Channels], px[:])
	}
}

// ROI describes which part of the full image a buffer holds. X and Y are
// the buffer origin in buffer pixels, and Scale is the number of buffer
// pixels per full-resolution pixel (1 for a full-size buffer, 0.25 for a
// quarter-size preview).
type ROI struct {
	X, Y          int
	Width, Height int
	Scale         float32
}

// FullROI returns the ROI of an unscaled buffer covering the whole image.
func FullROI(width, height int) ROI {
	return ROI{Width: width, Height: height, Scale: 1}
}

// Fits reports whether img has exactly the ROI dimensions.
func (r ROI) Fits(img *Image4) bool {
	return img != nil && img.width == r.Width && img.height == r.Height
}

// ClampF returns v clamped to [lo, hi]. NaN maps to lo.
func ClampF(v, lo, hi float32) float32 {
	if !(v >= lo) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
