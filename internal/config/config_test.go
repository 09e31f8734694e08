package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/align"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/classify"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/index"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/raster"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	channels, err := cfg.ChannelList()
	require.NoError(t, err)
	require.Len(t, channels, 10)
	require.Contains(t, channels, raster.B8A)

	formulas, err := cfg.Formulas()
	require.NoError(t, err)
	require.Len(t, formulas, 2)
	require.Equal(t, index.Expression, formulas[0].Kind)
	require.NotNil(t, formulas[0].Clamp)

	classifier, err := cfg.Classifier()
	require.NoError(t, err)
	require.Equal(t, classify.CombineAnd, classifier.Mode)
	require.Len(t, classifier.Rules, 2)
}

func TestLoadMissingFileFallsBackToDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default().Channels, cfg.Channels)
}

func TestLoadYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	content := `
channels: [B03, B04, B08]
target_resolution: 20
epsg: 32633
resampling:
  B08: nearest
indices:
  - name: ndvi
    type: normalized_difference
    a: B08
    b: B04
classification:
  combine: or
  rules:
    - index: ndvi
      threshold: 0.3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"B03", "B04", "B08"}, cfg.Channels)
	require.Equal(t, 20.0, cfg.TargetResolution)
	require.Equal(t, 32633, cfg.EPSG)

	opts, err := cfg.AlignOptions()
	require.NoError(t, err)
	require.Equal(t, 20.0, opts.TargetResolution)
	require.Equal(t, align.Nearest, opts.Methods[raster.B08])

	classifier, err := cfg.Classifier()
	require.NoError(t, err)
	require.Equal(t, classify.CombineOr, classifier.Mode)
	require.Equal(t, 0.3, classifier.Rules[0].Threshold)
	require.Equal(t, 1.0, classifier.Rules[0].Weight, "unset weight defaults to 1")
}

func TestSourceFromConfig(t *testing.T) {
	cfg := Default()
	source, err := cfg.Source()
	require.NoError(t, err)
	require.Equal(t, raster.DefaultSource().Pattern, source.Pattern)
	require.Empty(t, source.NoData)

	cfg.BandFilePattern = "%s.tif"
	cfg.NoData = map[string]float64{"B08": -9999}
	source, err = cfg.Source()
	require.NoError(t, err)
	require.Equal(t, "%s.tif", source.Pattern)
	require.Equal(t, -9999.0, source.NoData[raster.B08])
}

func TestLoadBrokenYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte("channels: [B03\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to parse config")
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no channels", func(c *Config) { c.Channels = nil }, "at least one channel"},
		{"bad channel", func(c *Config) { c.Channels = []string{"B99"} }, "B99"},
		{"bad resampling method", func(c *Config) { c.Resampling = map[string]string{"B04": "cubic"} }, "cubic"},
		{"bad band pattern", func(c *Config) { c.BandFilePattern = "fixed.tiff" }, "band_file_pattern"},
		{"nodata unknown channel", func(c *Config) { c.NoData = map[string]float64{"B99": 0} }, "B99"},
		{"resampling unknown channel", func(c *Config) { c.Resampling = map[string]string{"XX": "nearest"} }, "XX"},
		{"no indices", func(c *Config) { c.Indices = nil }, "at least one index"},
		{"unnamed index", func(c *Config) { c.Indices[0].Name = "" }, "without a name"},
		{"duplicate index", func(c *Config) { c.Indices[1].Name = c.Indices[0].Name }, "duplicate"},
		{"unknown formula type", func(c *Config) { c.Indices[0].Type = "magic" }, "magic"},
		{"empty expression", func(c *Config) { c.Indices[0].Expression = "" }, "expression is empty"},
		{"bad range", func(c *Config) { c.Indices[0].Range = &[]float64{1} }, "range"},
		{"no rules", func(c *Config) { c.Classification.Rules = nil }, "at least one classification rule"},
		{"rule unknown index", func(c *Config) { c.Classification.Rules[0].Index = "ghost" }, "ghost"},
		{"bad combine", func(c *Config) { c.Classification.Combine = "xor" }, "xor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}
