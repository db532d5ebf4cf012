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

// Package image provides the interleaved float image used by the color
// reconstruction kernel.
//
// The core type is Image4, a 4-channel float32 image with the samples of
// each pixel stored as L, a, b, aux. The kernel reads L to place pixels in
// the bilateral grid, rewrites a and b, and passes aux through.
//
// # Usage Example
//
//	img := image.NewImage4(1920, 1080)
//	for y := 0; y < img.Height(); y++ {
//	    row := img.Row(y)
//	    for x := 0; x < img.Width(); x++ {
//	        L := row[x*image.Channels+image.ChanL]
//	        _ = L
//	    }
//	}
//
// # Regions
//
// ROI relates a buffer to the full image: its origin, size and processing
// scale. A grid built from a preview buffer can be sliced into a zoomed-in
// buffer by mapping one ROI into the other.
package image
