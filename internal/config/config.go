// Package config loads the pipeline configuration: channel selection,
// resampling methods, index formulas and classification thresholds. All of
// these are external configuration because they are tuned per study area;
// the defaults target the mimosa survey footprint and are expected to
// misclassify elsewhere.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/align"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/classify"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/index"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/raster"
)

type FormulaConfig struct {
	Name       string     `yaml:"name"`
	Type       string     `yaml:"type"` // normalized_difference | expression
	A          string     `yaml:"a"`
	B          string     `yaml:"b"`
	Expression string     `yaml:"expression"`
	Range      *[]float64 `yaml:"range"`
}

type RuleConfig struct {
	Index     string  `yaml:"index"`
	Threshold float64 `yaml:"threshold"`
	Weight    float64 `yaml:"weight"`
}

type ClassificationConfig struct {
	Combine        string       `yaml:"combine"` // and | or | weighted_sum
	Rules          []RuleConfig `yaml:"rules"`
	ScoreThreshold float64      `yaml:"score_threshold"`
}

type Config struct {
	// Channels lists the band identifiers loaded per acquisition.
	Channels []string `yaml:"channels"`
	// BandFilePattern maps channel identifiers to raster files, a glob with
	// one %s placeholder. Empty selects the Copernicus export naming.
	BandFilePattern string `yaml:"band_file_pattern"`
	// NoData overrides the nodata sentinel per channel identifier.
	NoData map[string]float64 `yaml:"nodata"`
	// TargetResolution in meters, 0 means finest available.
	TargetResolution float64 `yaml:"target_resolution"`
	// Resampling maps channel identifiers to "nearest" or "bilinear".
	Resampling     map[string]string    `yaml:"resampling"`
	Indices        []FormulaConfig      `yaml:"indices"`
	Classification ClassificationConfig `yaml:"classification"`
	// EPSG of the source rasters, used when exporting geographic outputs.
	EPSG int `yaml:"epsg"`
}

// Default returns the study-area configuration: the ten reflectance bands,
// finest-resolution grid, and a yellow-bloom discriminator thresholded
// against NDVI background vegetation.
func Default() Config {
	return Config{
		Channels:         []string{"B02", "B03", "B04", "B05", "B06", "B07", "B08", "B8A", "B11", "B12"},
		TargetResolution: 0,
		Resampling:       map[string]string{},
		EPSG:             32632,
		Indices: []FormulaConfig{
			{
				Name:       "bloom",
				Type:       "expression",
				Expression: "(B03 - 0.45 * B04 - 0.25 * B08) / (B03 + 0.45 * B04 + 0.25 * B08)",
				Range:      &[]float64{-1, 1},
			},
			{Name: "ndvi", Type: "normalized_difference", A: "B08", B: "B04"},
		},
		Classification: ClassificationConfig{
			Combine: "and",
			Rules: []RuleConfig{
				{Index: "bloom", Threshold: 0.04, Weight: 1},
				{Index: "ndvi", Threshold: 0.2, Weight: 1},
			},
		},
	}
}

// Load reads a YAML pipeline configuration. Missing file falls back to the
// defaults, a present but invalid file is an error.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the cross references of the configuration.
func (c Config) Validate() error {
	if len(c.Channels) == 0 {
		return fmt.Errorf("config: at least one channel is required")
	}
	for _, id := range c.Channels {
		if _, err := raster.ParseChannel(id); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	if c.BandFilePattern != "" && strings.Count(c.BandFilePattern, "%s") != 1 {
		return fmt.Errorf("config: band_file_pattern needs exactly one %%s placeholder, got %q", c.BandFilePattern)
	}
	for id := range c.NoData {
		if _, err := raster.ParseChannel(id); err != nil {
			return fmt.Errorf("config nodata: %w", err)
		}
	}
	for id, method := range c.Resampling {
		if _, err := raster.ParseChannel(id); err != nil {
			return fmt.Errorf("config resampling: %w", err)
		}
		if method != "nearest" && method != "bilinear" {
			return fmt.Errorf("config resampling: unknown method %q for %s", method, id)
		}
	}
	if len(c.Indices) == 0 {
		return fmt.Errorf("config: at least one index formula is required")
	}
	names := map[string]bool{}
	for _, f := range c.Indices {
		if f.Name == "" {
			return fmt.Errorf("config: index formula without a name")
		}
		if names[f.Name] {
			return fmt.Errorf("config: duplicate index formula %q", f.Name)
		}
		names[f.Name] = true
		switch f.Type {
		case "normalized_difference":
			if _, err := raster.ParseChannel(f.A); err != nil {
				return fmt.Errorf("config index %s: %w", f.Name, err)
			}
			if _, err := raster.ParseChannel(f.B); err != nil {
				return fmt.Errorf("config index %s: %w", f.Name, err)
			}
		case "expression":
			if f.Expression == "" {
				return fmt.Errorf("config index %s: expression is empty", f.Name)
			}
		default:
			return fmt.Errorf("config index %s: unknown type %q", f.Name, f.Type)
		}
		if f.Range != nil && len(*f.Range) != 2 {
			return fmt.Errorf("config index %s: range must be [low, high]", f.Name)
		}
	}
	if len(c.Classification.Rules) == 0 {
		return fmt.Errorf("config: at least one classification rule is required")
	}
	for _, rule := range c.Classification.Rules {
		if !names[rule.Index] {
			return fmt.Errorf("config: classification rule references unknown index %q", rule.Index)
		}
	}
	switch c.Classification.Combine {
	case "", "and", "or", "weighted_sum":
	default:
		return fmt.Errorf("config: unknown combination rule %q", c.Classification.Combine)
	}
	return nil
}

// Source builds the loader's file-to-channel mapping from the config.
func (c Config) Source() (raster.Source, error) {
	source := raster.DefaultSource()
	if c.BandFilePattern != "" {
		source.Pattern = c.BandFilePattern
	}
	if len(c.NoData) > 0 {
		source.NoData = make(map[raster.Channel]float64, len(c.NoData))
		for id, nodata := range c.NoData {
			channel, err := raster.ParseChannel(id)
			if err != nil {
				return raster.Source{}, err
			}
			source.NoData[channel] = nodata
		}
	}
	return source, nil
}

// ChannelList resolves the configured channel identifiers.
func (c Config) ChannelList() ([]raster.Channel, error) {
	channels := make([]raster.Channel, 0, len(c.Channels))
	for _, id := range c.Channels {
		channel, err := raster.ParseChannel(id)
		if err != nil {
			return nil, err
		}
		channels = append(channels, channel)
	}
	return channels, nil
}

// AlignOptions builds the resampler options from the config.
func (c Config) AlignOptions() (align.Options, error) {
	methods := make(map[raster.Channel]align.Method, len(c.Resampling))
	for id, name := range c.Resampling {
		channel, err := raster.ParseChannel(id)
		if err != nil {
			return align.Options{}, err
		}
		if name == "nearest" {
			methods[channel] = align.Nearest
		} else {
			methods[channel] = align.Bilinear
		}
	}
	return align.Options{TargetResolution: c.TargetResolution, Methods: methods}, nil
}

// Formulas builds the index engine formulas from the config.
func (c Config) Formulas() ([]index.Formula, error) {
	formulas := make([]index.Formula, 0, len(c.Indices))
	for _, f := range c.Indices {
		formula := index.Formula{Name: f.Name}
		switch f.Type {
		case "normalized_difference":
			formula.Kind = index.NormalizedDifference
			a, err := raster.ParseChannel(f.A)
			if err != nil {
				return nil, fmt.Errorf("index %s: %w", f.Name, err)
			}
			b, err := raster.ParseChannel(f.B)
			if err != nil {
				return nil, fmt.Errorf("index %s: %w", f.Name, err)
			}
			formula.A, formula.B = a, b
		case "expression":
			formula.Kind = index.Expression
			formula.Expr = f.Expression
		default:
			return nil, fmt.Errorf("index %s: unknown type %q", f.Name, f.Type)
		}
		if f.Range != nil {
			formula.Clamp = &[2]float64{(*f.Range)[0], (*f.Range)[1]}
		}
		formulas = append(formulas, formula)
	}
	return formulas, nil
}

// Classifier builds the classifier from the config.
func (c Config) Classifier() (*classify.Classifier, error) {
	rules := make([]classify.Rule, 0, len(c.Classification.Rules))
	for _, r := range c.Classification.Rules {
		weight := r.Weight
		if weight == 0 {
			weight = 1
		}
		rules = append(rules, classify.Rule{Index: r.Index, Threshold: r.Threshold, Weight: weight})
	}
	mode := classify.CombineAnd
	switch c.Classification.Combine {
	case "or":
		mode = classify.CombineOr
	case "weighted_sum":
		mode = classify.CombineWeightedSum
	}
	return &classify.Classifier{
		Rules:          rules,
		Mode:           mode,
		ScoreThreshold: c.Classification.ScoreThreshold,
	}, nil
}
