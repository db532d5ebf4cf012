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

// Package gridplot renders diagnostic plots of bilateral grids.
package gridplot

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ajroetker/go-colorrecon/bilateral"
)

// LuminanceProfile aggregates the grid over its spatial axes. weights[z] is
// the total weight of luminance plane z and chroma[z] the weight-averaged
// chroma magnitude of its cells, 0 for an empty plane.
func LuminanceProfile(g *bilateral.Grid) (weights, chroma []float64) {
	weights = make([]float64, g.SizeZ)
	chroma = make([]float64, g.SizeZ)
	cells := g.Data()
	plane := g.SizeX * g.SizeY
	for z := range g.SizeZ {
		var w, c float64
		for _, cell := range cells[z*plane : (z+1)*plane] {
			if cell.Weight <= 0 {
				continue
			}
			w += float64(cell.Weight)
			c += math.Hypot(float64(cell.A), float64(cell.B))
		}
		weights[z] = w
		if w > 0 {
			chroma[z] = c / w
		}
	}
	return weights, chroma
}

// WriteProfile plots the luminance profile of g to path. The image format
// follows the file extension (png, svg, pdf, ...). Weights are normalized
// to the chroma range so both curves share one axis.
func WriteProfile(g *bilateral.Grid, path string) error {
	weights, chroma := LuminanceProfile(g)

	scale := 1.0
	if maxW := floats.Max(weights); maxW > 0 {
		scale = math.Max(floats.Max(chroma), 1) / maxW
	}
	weightPts := make(plotter.XYs, len(weights))
	chromaPts := make(plotter.XYs, len(chroma))
	for z := range weights {
		L := float64(z) * float64(g.SigmaR)
		weightPts[z] = plotter.XY{X: L, Y: weights[z] * scale}
		chromaPts[z] = plotter.XY{X: L, Y: chroma[z]}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Grid %v", g.Geometry)
	p.X.Label.Text = "L"
	p.Y.Label.Text = "Chroma"

	weightLine, err := plotter.NewLine(weightPts)
	if err != nil {
		return fmt.Errorf("failed to create weight line: %w", err)
	}
	weightLine.Color = color.RGBA{R: 70, G: 70, B: 200, A: 255}
	weightLine.Width = vg.Points(1)

	chromaLine, err := plotter.NewLine(chromaPts)
	if err != nil {
		return fmt.Errorf("failed to create chroma line: %w", err)
	}
	chromaLine.Color = color.RGBA{R: 200, G: 60, B: 60, A: 255}
	chromaLine.Width = vg.Points(1.5)

	p.Add(plotter.NewGrid(), weightLine, chromaLine)
	p.Legend.Add("weight (scaled)", weightLine)
	p.Legend.Add("mean chroma", chromaLine)
	p.Legend.Top = true

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save profile plot: %w", err)
	}
	return nil
}
