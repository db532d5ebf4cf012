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

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ajroetker/go-colorrecon/bilateral"
	"github.com/ajroetker/go-colorrecon/colorrecon"
	"github.com/ajroetker/go-colorrecon/workerpool"
)

type geometryOptions struct {
	width, height int
	spatial       float32
	rangeExt      float32
	scale         float32
	workers       int
}

func newGeometryCmd() *cobra.Command {
	o := &geometryOptions{}
	d := colorrecon.DefaultParams()
	cmd := &cobra.Command{
		Use:   "geometry",
		Short: "Print the grid a reconstruction of the given size would use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGeometry(cmd.OutOrStdout(), o)
		},
	}
	fs := cmd.Flags()
	fs.IntVar(&o.width, "width", 0, "buffer width in pixels")
	fs.IntVar(&o.height, "height", 0, "buffer height in pixels")
	fs.Float32Var(&o.spatial, "spatial", d.Spatial, "spatial extent in full-resolution pixels")
	fs.Float32Var(&o.rangeExt, "range", d.Range, "luminance extent")
	fs.Float32Var(&o.scale, "scale", 1, "scale of the buffer relative to the full image")
	fs.IntVar(&o.workers, "workers", 0, "worker goroutines, 0 for GOMAXPROCS")
	_ = cmd.MarkFlagRequired("width")
	_ = cmd.MarkFlagRequired("height")
	return cmd
}

func runGeometry(w io.Writer, o *geometryOptions) error {
	if !(o.scale > 0) {
		return fmt.Errorf("--scale must be positive, got %g", o.scale)
	}
	p := colorrecon.DefaultParams()
	p.Spatial, p.Range = o.spatial, o.rangeExt
	if err := p.Validate(); err != nil {
		return err
	}
	sigmaS, sigmaR := p.Sigmas(1, o.scale)
	geom, err := bilateral.NewGeometry(o.width, o.height, sigmaS, sigmaR)
	if err != nil {
		return err
	}

	pool := workerpool.New(o.workers)
	defer pool.Close()
	workers := bilateral.SplatWorkers(pool, o.width, o.height)
	partial, err := bilateral.MemoryUse(o.width, o.height, sigmaS, sigmaR, workers)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "buffer:    %dx%d at scale %g\n", o.width, o.height, o.scale)
	fmt.Fprintf(w, "requested: sigma_s=%g sigma_r=%g\n", sigmaS, sigmaR)
	fmt.Fprintf(w, "grid:      %v\n", geom)
	fmt.Fprintf(w, "cells:     %d\n", geom.Cells())
	fmt.Fprintf(w, "memory:    %d bytes (atomic), %d bytes (partial, %d workers)\n", geom.Bytes(), partial, workers)
	return nil
}
