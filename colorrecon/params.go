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
	"errors"
	"fmt"
	"math"

	"github.com/ajroetker/go-colorrecon/bilateral"
)

// ParamsVersion is the version of the current Params layout.
const ParamsVersion = 3

// Parameter defaults and ranges.
const (
	DefaultThreshold = 100
	DefaultSpatial   = 400
	DefaultRange     = 10
	DefaultHue       = 0.66

	MinThreshold, MaxThreshold = 50, 150
	MinSpatial, MaxSpatial     = 0, 1000
	MinRange, MaxRange         = 0, 50
	MinHue, MaxHue             = 0, 1
)

// ErrInvalidParams is returned for parameters outside their range.
var ErrInvalidParams = errors.New("colorrecon: invalid parameters")

// Params are the user-facing reconstruction parameters.
type Params struct {
	// Threshold is the luminance above which pixels get reconstructed.
	Threshold float32
	// Spatial is the spatial extent in full-resolution pixels.
	Spatial float32
	// Range is the luminance extent.
	Range float32
	// Hue is the preferred HSL hue in [0, 1], used with PrecedenceHue.
	Hue        float32
	Precedence bilateral.PrecedenceMode
}

// DefaultParams returns the default parameters.
func DefaultParams() Params {
	return Params{
		Threshold:  DefaultThreshold,
		Spatial:    DefaultSpatial,
		Range:      DefaultRange,
		Hue:        DefaultHue,
		Precedence: bilateral.PrecedenceNone,
	}
}

// Validate checks every field against its range.
func (p Params) Validate() error {
	if err := checkRange("threshold", p.Threshold, MinThreshold, MaxThreshold); err != nil {
		return err
	}
	if err := checkRange("spatial", p.Spatial, MinSpatial, MaxSpatial); err != nil {
		return err
	}
	if err := checkRange("range", p.Range, MinRange, MaxRange); err != nil {
		return err
	}
	if err := checkRange("hue", p.Hue, MinHue, MaxHue); err != nil {
		return err
	}
	switch p.Precedence {
	case bilateral.PrecedenceNone, bilateral.PrecedenceChroma, bilateral.PrecedenceHue:
	default:
		return fmt.Errorf("%w: unknown precedence %d", ErrInvalidParams, int(p.Precedence))
	}
	return nil
}

func checkRange(name string, v, lo, hi float32) error {
	if math.IsNaN(float64(v)) || v < lo || v > hi {
		return fmt.Errorf("%w: %s must be between %g and %g, got %g", ErrInvalidParams, name, lo, hi, v)
	}
	return nil
}

// ParamsV1 is the first parameter layout, without precedence.
type ParamsV1 struct {
	Threshold float32
	Spatial   float32
	Range     float32
}

// ParamsV2 added the precedence mode.
type ParamsV2 struct {
	Threshold  float32
	Spatial    float32
	Range      float32
	Precedence bilateral.PrecedenceMode
}

// UpgradeParams converts parameters stored in an older layout to the
// current one. Fields that did not exist yet get their defaults.
func UpgradeParams(old any) (Params, error) {
	switch v := old.(type) {
	case Params:
		return v, nil
	case *Params:
		return *v, nil
	case ParamsV2:
		return Params{Threshold: v.Threshold, Spatial: v.Spatial, Range: v.Range, Hue: DefaultHue, Precedence: v.Precedence}, nil
	case *ParamsV2:
		return UpgradeParams(*v)
	case ParamsV1:
		return Params{Threshold: v.Threshold, Spatial: v.Spatial, Range: v.Range, Hue: DefaultHue, Precedence: bilateral.PrecedenceNone}, nil
	case *ParamsV1:
		return UpgradeParams(*v)
	}
	return Params{}, fmt.Errorf("colorrecon: cannot upgrade parameters of type %T", old)
}

// Sigmas derives the kernel scales for a buffer processed at roiScale
// within a pipeline whose input scale is inputScale. The spatial extent is
// given in full-resolution pixels and shrinks with the processing scale;
// the range extent does not depend on it.
func (p Params) Sigmas(inputScale, roiScale float32) (sigmaS, sigmaR float32) {
	if roiScale == 0 {
		roiScale = 1
	}
	scale := max(inputScale/roiScale, 1)
	sigmaR = max(p.Range, 0.1)
	sigmaS = max(p.Spatial, 1) / scale
	return sigmaS, sigmaR
}
