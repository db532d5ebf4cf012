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

package colorrecon

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ajroetker/go-colorrecon/bilateral"
	"github.com/ajroetker/go-colorrecon/image"
)

// Stats describes how much a reconstruction changed the image.
type Stats struct {
	// Blended is the number of pixels whose chrominance was blended.
	Blended int
	// MeanShift, StdDevShift and MaxShift summarize the Euclidean (a, b)
	// distance between input and output over the blended pixels.
	MeanShift   float64
	StdDevShift float64
	MaxShift    float64

	Splat, Blur, Slice time.Duration
}

// String implements fmt.Stringer.
func (s *Stats) String() string {
	return fmt.Sprintf("blended=%d shift mean=%.3f sd=%.3f max=%.3f (splat %s, blur %s, slice %s)",
		s.Blended, s.MeanShift, s.StdDevShift, s.MaxShift, s.Splat, s.Blur, s.Slice)
}

// highlightChroma returns the (a, b) pairs of the pixels of img at or above
// the start of the blend ramp, in pixel order. It is taken before slicing
// so that in-place reconstruction can still be measured.
func highlightChroma(img *image.Image4, threshold float32) []float32 {
	var ab []float32
	for y := range img.Height() {
		row := img.Row(y)
		for i := 0; i < len(row); i += image.Channels {
			if bilateral.Blend(row[i+image.ChanL], threshold) > 0 {
				ab = append(ab, row[i+image.ChanA], row[i+image.ChanB])
			}
		}
	}
	return ab
}

// measureShift fills the shift statistics of s by comparing the chroma of
// the blended pixels of out with before, as returned by highlightChroma for
// the input. Slicing leaves L untouched, so both select the same pixels.
func measureShift(s *Stats, before []float32, out *image.Image4, threshold float32) {
	shifts := make([]float64, 0, len(before)/2)
	k := 0
	for y := range out.Height() {
		row := out.Row(y)
		for i := 0; i < len(row) && k+1 < len(before); i += image.Channels {
			if bilateral.Blend(row[i+image.ChanL], threshold) == 0 {
				continue
			}
			da := float64(row[i+image.ChanA] - before[k])
			db := float64(row[i+image.ChanB] - before[k+1])
			shifts = append(shifts, math.Hypot(da, db))
			k += 2
		}
	}
	s.Blended = len(shifts)
	switch len(shifts) {
	case 0:
		return
	case 1:
		s.MeanShift = shifts[0]
	default:
		s.MeanShift, s.StdDevShift = stat.MeanStdDev(shifts, nil)
	}
	s.MaxShift = floats.Max(shifts)
}
