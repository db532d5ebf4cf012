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

// Package colorrecon restores plausible color in blown-out highlights of a
// Lab image by borrowing chrominance from well-exposed neighbours with
// similar luminance.
//
// A Reconstructor wraps the bilateral grid stages with parameter handling,
// the derivation of grid scales from the processing scale, a memory limit
// and an optional cache that lets a zoomed-in view reuse the grid of the
// preview:
//
//	pool := workerpool.New(0)
//	defer pool.Close()
//	r, err := colorrecon.New(pool, colorrecon.DefaultParams())
//	...
//	_, err = r.Process(in, out, colorrecon.Piece{ROI: image.FullROI(w, h)})
//
// Process never loses data: when it cannot reconstruct, out is a copy of
// in and the error wraps ErrSkipped.
package colorrecon
