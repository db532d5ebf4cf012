package colorrecon

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-colorrecon/bilateral"
)

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, Params{Threshold: 100, Spatial: 400, Range: 10, Hue: 0.66, Precedence: bilateral.PrecedenceNone}, p)
	assert.NoError(t, p.Validate())
}

func TestParams_Validate(t *testing.T) {
	nan := float32(math.NaN())
	tests := []struct {
		name  string
		tweak func(*Params)
		ok    bool
	}{
		{"defaults", func(*Params) {}, true},
		{"threshold low", func(p *Params) { p.Threshold = 49 }, false},
		{"threshold high", func(p *Params) { p.Threshold = 151 }, false},
		{"threshold edge", func(p *Params) { p.Threshold = 150 }, true},
		{"spatial zero", func(p *Params) { p.Spatial = 0 }, true},
		{"spatial negative", func(p *Params) { p.Spatial = -1 }, false},
		{"range high", func(p *Params) { p.Range = 51 }, false},
		{"hue high", func(p *Params) { p.Hue = 1.5 }, false},
		{"hue nan", func(p *Params) { p.Hue = nan }, false},
		{"precedence hue", func(p *Params) { p.Precedence = bilateral.PrecedenceHue }, true},
		{"precedence unknown", func(p *Params) { p.Precedence = 7 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.tweak(&p)
			err := p.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, ErrInvalidParams), "got %v", err)
			}
		})
	}
}

func TestUpgradeParams(t *testing.T) {
	v1 := ParamsV1{Threshold: 90, Spatial: 200, Range: 5}
	got, err := UpgradeParams(v1)
	require.NoError(t, err)
	assert.Equal(t, Params{Threshold: 90, Spatial: 200, Range: 5, Hue: 0.66, Precedence: bilateral.PrecedenceNone}, got)

	got, err = UpgradeParams(&v1)
	require.NoError(t, err)
	assert.Equal(t, float32(0.66), got.Hue)

	v2 := ParamsV2{Threshold: 110, Spatial: 50, Range: 20, Precedence: bilateral.PrecedenceChroma}
	got, err = UpgradeParams(&v2)
	require.NoError(t, err)
	assert.Equal(t, Params{Threshold: 110, Spatial: 50, Range: 20, Hue: 0.66, Precedence: bilateral.PrecedenceChroma}, got)

	cur := Params{Threshold: 70, Hue: 0.2}
	got, err = UpgradeParams(cur)
	require.NoError(t, err)
	assert.Equal(t, cur, got)

	_, err = UpgradeParams(struct{ Threshold float32 }{})
	assert.Error(t, err)
}

func TestParams_Sigmas(t *testing.T) {
	tests := []struct {
		name                 string
		p                    Params
		inputScale, roiScale float32
		sigmaS, sigmaR       float32
	}{
		{"full resolution", Params{Spatial: 400, Range: 10}, 1, 1, 400, 10},
		{"half preview", Params{Spatial: 400, Range: 10}, 1, 0.5, 200, 10},
		{"upscaled roi", Params{Spatial: 400, Range: 10}, 1, 2, 400, 10},
		{"downscaled input", Params{Spatial: 400, Range: 10}, 0.5, 0.125, 100, 10},
		{"zero extents", Params{Spatial: 0, Range: 0}, 1, 1, 1, 0.1},
		{"zero roi scale", Params{Spatial: 30, Range: 5}, 1, 0, 30, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, r := tt.p.Sigmas(tt.inputScale, tt.roiScale)
			assert.Equal(t, tt.sigmaS, s)
			assert.Equal(t, tt.sigmaR, r)
		})
	}
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{
		// favour warm highlights
		"threshold": 95,
		"precedence": "hue",
		"hue": 0.1,
		"accumulator": "atomic",
	}`))
	require.NoError(t, err)

	p := cfg.Params()
	assert.Equal(t, Params{Threshold: 95, Spatial: 400, Range: 10, Hue: 0.1, Precedence: bilateral.PrecedenceHue}, p)
	assert.Equal(t, bilateral.AtomicKind, cfg.GetAccumulator())
	assert.Equal(t, int64(0), cfg.GetMemoryLimit())
	assert.Equal(t, 0, cfg.GetWorkers())
}

func TestParseConfig_Versions(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{"version": 1, "threshold": 90, "spatial": 200, "range": 5}`))
	require.NoError(t, err)
	want, err := UpgradeParams(ParamsV1{Threshold: 90, Spatial: 200, Range: 5})
	require.NoError(t, err)
	assert.Equal(t, want, cfg.Params())

	cfg, err = ParseConfig([]byte(`{"version": 2, "precedence": "chroma"}`))
	require.NoError(t, err)
	assert.Equal(t, Params{Threshold: 100, Spatial: 400, Range: 10, Hue: 0.66, Precedence: bilateral.PrecedenceChroma}, cfg.Params())

	cfg, err = ParseConfig([]byte(`{"hue": 0.3}`))
	require.NoError(t, err)
	assert.Equal(t, ParamsVersion, cfg.GetVersion())
	assert.Equal(t, float32(0.3), cfg.Params().Hue)

	for name, data := range map[string]string{
		"too new":         `{"version": 4}`,
		"zero":            `{"version": 0}`,
		"v1 precedence":   `{"version": 1, "precedence": "chroma"}`,
		"v2 hue":          `{"version": 2, "hue": 0.5}`,
		"v1 out of range": `{"version": 1, "threshold": 10}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(data))
			assert.ErrorIs(t, err, ErrInvalidParams)
		})
	}
}

func TestParseConfig_Empty(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultParams(), cfg.Params())
	assert.Equal(t, bilateral.PartialKind, cfg.GetAccumulator())
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := map[string]string{
		"syntax":      `{"threshold": }`,
		"threshold":   `{"threshold": 10}`,
		"precedence":  `{"precedence": "brightest"}`,
		"accumulator": `{"accumulator": "mutex"}`,
		"memory":      `{"memory_limit": -1}`,
		"workers":     `{"workers": -2}`,
		"type":        `{"spatial": "wide"}`,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "recon.hujson")
	require.NoError(t, os.WriteFile(path, []byte("{\n  \"spatial\": 250, // px\n  \"memory_limit\": 1048576,\n}\n"), 0o644))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, float32(250), cfg.GetSpatial())
	assert.Equal(t, int64(1<<20), cfg.GetMemoryLimit())

	jsonPath := filepath.Join(dir, "recon.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"range": 20, "workers": 3}`), 0o644))
	cfg, err = LoadConfig(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, float32(20), cfg.GetRange())
	assert.Equal(t, 3, cfg.GetWorkers())

	yamlPath := filepath.Join(dir, "recon.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("range: 20\n"), 0o644))
	_, err = LoadConfig(yamlPath)
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
