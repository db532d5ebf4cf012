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
	"fmt"
	"math"
)

// PrecedenceMode selects which source pixels dominate the reconstruction.
type PrecedenceMode int

const (
	// PrecedenceNone weights all pixels equally.
	PrecedenceNone PrecedenceMode = iota
	// PrecedenceChroma weights pixels by chroma, preferring saturated colors.
	PrecedenceChroma
	// PrecedenceHue weights pixels by closeness to a target hue.
	PrecedenceHue
)

var precedenceNames = map[PrecedenceMode]string{
	PrecedenceNone:   "none",
	PrecedenceChroma: "chroma",
	PrecedenceHue:    "hue",
}

// String implements fmt.Stringer.
func (m PrecedenceMode) String() string {
	if s, ok := precedenceNames[m]; ok {
		return s
	}
	return fmt.Sprintf("PrecedenceMode(%d)", int(m))
}

// ParsePrecedence parses the String form of a PrecedenceMode.
func ParsePrecedence(s string) (PrecedenceMode, error) {
	for m, name := range precedenceNames {
		if s == name {
			return m, nil
		}
	}
	if s == "" {
		return PrecedenceNone, nil
	}
	return 0, fmt.Errorf("bilateral: unknown precedence %q", s)
}

// hueSpread is the variance of the hue weighting, pi^2/8.
const hueSpread = math.Pi * math.Pi / 8

// Precedence computes the per-pixel splat weight.
type Precedence struct {
	Mode PrecedenceMode
	// Hue is the target LCh hue in radians, [-pi, pi]; used by PrecedenceHue.
	Hue float32
}

// Weight returns the weight of a source pixel with chrominance (a, b).
func (p Precedence) Weight(a, b float32) float32 {
	switch p.Mode {
	case PrecedenceChroma:
		return float32(math.Sqrt(float64(a*a + b*b)))
	case PrecedenceHue:
		m := math.Atan2(float64(b), float64(a)) - float64(p.Hue)
		if m > math.Pi {
			m -= 2 * math.Pi
		} else if m < -math.Pi {
			m += 2 * math.Pi
		}
		return float32(math.Exp(-m * m / hueSpread))
	default:
		return 1
	}
}
