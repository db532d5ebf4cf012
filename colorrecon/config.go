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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"

	"github.com/ajroetker/go-colorrecon/bilateral"
)

// maxConfigSize bounds the size of a config file.
const maxConfigSize = 1 << 20

// Config is the on-disk form of the reconstruction settings. Every field
// is optional; the Get* methods fall back to the defaults.
//
// Files may be plain JSON or HuJSON (JSON with comments and trailing
// commas):
//
//	{
//	  "threshold": 95,
//	  "spatial": 300, // full-resolution pixels
//	  "precedence": "hue",
//	  "hue": 0.1,
//	}
type Config struct {
	// Version is the parameter layout the file was written with,
	// ParamsVersion when unset. Older layouts lack the fields added later.
	Version *int `json:"version,omitempty"`

	Threshold  *float32 `json:"threshold,omitempty"`
	Spatial    *float32 `json:"spatial,omitempty"`
	Range      *float32 `json:"range,omitempty"`
	Hue        *float32 `json:"hue,omitempty"`
	Precedence *string  `json:"precedence,omitempty"`

	// Engine settings.
	Accumulator *string `json:"accumulator,omitempty"`
	MemoryLimit *int64  `json:"memory_limit,omitempty"`
	Workers     *int    `json:"workers,omitempty"`
}

// LoadConfig reads and validates a config file. The extension must be
// .json or .hujson.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" && ext != ".hujson" {
		return nil, fmt.Errorf("config file must have .json or .hujson extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses and validates JSON or HuJSON config data.
func ParseConfig(data []byte) (*Config, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg := &Config{}
	if err := json.Unmarshal(std, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the fields that are set.
func (c *Config) Validate() error {
	switch v := c.GetVersion(); {
	case v < 1 || v > ParamsVersion:
		return fmt.Errorf("%w: unknown version %d", ErrInvalidParams, v)
	case v < 2 && c.Precedence != nil:
		return fmt.Errorf("%w: precedence needs version 2, file has version %d", ErrInvalidParams, v)
	case v < 3 && c.Hue != nil:
		return fmt.Errorf("%w: hue needs version 3, file has version %d", ErrInvalidParams, v)
	}
	if c.Precedence != nil {
		if _, err := bilateral.ParsePrecedence(*c.Precedence); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidParams, err)
		}
	}
	if c.Accumulator != nil {
		if _, err := bilateral.ParseAccumulatorKind(*c.Accumulator); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidParams, err)
		}
	}
	if c.MemoryLimit != nil && *c.MemoryLimit < 0 {
		return fmt.Errorf("%w: memory_limit must be non-negative, got %d", ErrInvalidParams, *c.MemoryLimit)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("%w: workers must be non-negative, got %d", ErrInvalidParams, *c.Workers)
	}
	return c.Params().Validate()
}

// GetVersion returns the parameter layout version.
func (c *Config) GetVersion() int {
	if c.Version == nil {
		return ParamsVersion
	}
	return *c.Version
}

// GetThreshold returns the threshold or its default.
func (c *Config) GetThreshold() float32 {
	if c.Threshold == nil {
		return DefaultThreshold
	}
	return *c.Threshold
}

// GetSpatial returns the spatial extent or its default.
func (c *Config) GetSpatial() float32 {
	if c.Spatial == nil {
		return DefaultSpatial
	}
	return *c.Spatial
}

// GetRange returns the range extent or its default.
func (c *Config) GetRange() float32 {
	if c.Range == nil {
		return DefaultRange
	}
	return *c.Range
}

// GetHue returns the preferred hue or its default.
func (c *Config) GetHue() float32 {
	if c.Hue == nil {
		return DefaultHue
	}
	return *c.Hue
}

// GetPrecedence returns the precedence mode, PrecedenceNone if unset or
// unparsable.
func (c *Config) GetPrecedence() bilateral.PrecedenceMode {
	if c.Precedence == nil {
		return bilateral.PrecedenceNone
	}
	m, err := bilateral.ParsePrecedence(*c.Precedence)
	if err != nil {
		return bilateral.PrecedenceNone
	}
	return m
}

// GetAccumulator returns the accumulator kind, PartialKind by default.
func (c *Config) GetAccumulator() bilateral.AccumulatorKind {
	if c.Accumulator == nil {
		return bilateral.PartialKind
	}
	k, err := bilateral.ParseAccumulatorKind(*c.Accumulator)
	if err != nil {
		return bilateral.PartialKind
	}
	return k
}

// GetMemoryLimit returns the grid memory limit in bytes; 0 selects
// DefaultMemoryLimit.
func (c *Config) GetMemoryLimit() int64 {
	if c.MemoryLimit == nil {
		return 0
	}
	return *c.MemoryLimit
}

// GetWorkers returns the worker count; 0 means one per CPU.
func (c *Config) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// Params returns the reconstruction parameters of c, upgraded to the
// current layout.
func (c *Config) Params() Params {
	var stored any
	switch c.GetVersion() {
	case 1:
		stored = ParamsV1{Threshold: c.GetThreshold(), Spatial: c.GetSpatial(), Range: c.GetRange()}
	case 2:
		stored = ParamsV2{Threshold: c.GetThreshold(), Spatial: c.GetSpatial(), Range: c.GetRange(), Precedence: c.GetPrecedence()}
	}
	if stored != nil {
		if p, err := UpgradeParams(stored); err == nil {
			return p
		}
	}
	return Params{
		Threshold:  c.GetThreshold(),
		Spatial:    c.GetSpatial(),
		Range:      c.GetRange(),
		Hue:        c.GetHue(),
		Precedence: c.GetPrecedence(),
	}
}
