// Package classify turns spectral index scores into tri-state bloom maps.
package classify

import (
	"fmt"
	"math"

	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/index"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/raster"
)

// Label is the per-pixel classification outcome.
type Label uint8

const (
	LabelInvalid Label = iota
	LabelNoBloom
	LabelBloom
)

func (l Label) String() string {
	switch l {
	case LabelInvalid:
		return "invalid"
	case LabelNoBloom:
		return "no-bloom"
	case LabelBloom:
		return "bloom"
	}
	return "unknown"
}

// Map is the classified grid for one acquisition.
type Map struct {
	Width  int
	Height int
	Labels []Label
}

// At returns the label at pixel (x, y).
func (m *Map) At(x, y int) Label { return m.Labels[y*m.Width+x] }

// Count returns how many pixels carry a label.
func (m *Map) Count(label Label) int {
	n := 0
	for _, l := range m.Labels {
		if l == label {
			n++
		}
	}
	return n
}

// Combine selects how multiple per-index threshold rules merge.
type Combine int

const (
	// CombineAnd marks bloom only when every rule passes.
	CombineAnd Combine = iota
	// CombineOr marks bloom when any rule passes.
	CombineOr
	// CombineWeightedSum compares the weighted sum of index scores against
	// ScoreThreshold.
	CombineWeightedSum
)

// Rule thresholds one named index. Thresholds are supplied configuration,
// tuned per study area, never hardcoded.
type Rule struct {
	Index     string
	Threshold float64
	Weight    float64
}

// Classifier applies threshold rules to the index maps of one acquisition.
type Classifier struct {
	Rules []Rule
	Mode  Combine
	// ScoreThreshold gates the combined score under CombineWeightedSum.
	ScoreThreshold float64
}

// Classify labels every pixel. Policy: invalid mask dominates regardless of
// score; bloom requires the combined rule to pass on a valid pixel;
// everything else is no-bloom. NaN scores never pass a threshold, so the
// classifier is monotonic in every threshold.
func (c *Classifier) Classify(maps map[string]*index.Map, mask *raster.Mask) (*Map, error) {
	if len(c.Rules) == 0 {
		return nil, fmt.Errorf("classifier requires at least one rule")
	}
	ruleMaps := make([]*index.Map, len(c.Rules))
	for i, rule := range c.Rules {
		m, ok := maps[rule.Index]
		if !ok {
			return nil, fmt.Errorf("classifier rule references unknown index %q", rule.Index)
		}
		if m.Width != mask.Width || m.Height != mask.Height {
			return nil, &raster.ShapeMismatchError{
				What:       "index map " + rule.Index,
				WantWidth:  mask.Width,
				WantHeight: mask.Height,
				GotWidth:   m.Width,
				GotHeight:  m.Height,
			}
		}
		ruleMaps[i] = m
	}

	out := &Map{
		Width:  mask.Width,
		Height: mask.Height,
		Labels: make([]Label, mask.Width*mask.Height),
	}
	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			i := y*mask.Width + x
			if !mask.Valid(x, y) {
				out.Labels[i] = LabelInvalid
				continue
			}
			if c.pass(ruleMaps, i) {
				out.Labels[i] = LabelBloom
			} else {
				out.Labels[i] = LabelNoBloom
			}
		}
	}
	return out, nil
}

func (c *Classifier) pass(ruleMaps []*index.Map, i int) bool {
	switch c.Mode {
	case CombineAnd:
		for r, rule := range c.Rules {
			v := ruleMaps[r].Data[i]
			if math.IsNaN(v) || v <= rule.Threshold {
				return false
			}
		}
		return true
	case CombineOr:
		for r, rule := range c.Rules {
			v := ruleMaps[r].Data[i]
			if !math.IsNaN(v) && v > rule.Threshold {
				return true
			}
		}
		return false
	case CombineWeightedSum:
		sum := 0.0
		for r, rule := range c.Rules {
			v := ruleMaps[r].Data[i]
			if math.IsNaN(v) {
				return false
			}
			sum += rule.Weight * v
		}
		return sum > c.ScoreThreshold
	}
	return false
}

// Score computes the combined per-pixel score used for peak detection in the
// temporal aggregation. For a single rule it is that rule's index verbatim;
// under CombineWeightedSum the weighted sum; otherwise the first rule's
// index, the primary bloom discriminator by convention.
func (c *Classifier) Score(maps map[string]*index.Map, mask *raster.Mask) (*index.Map, error) {
	if len(c.Rules) == 0 {
		return nil, fmt.Errorf("classifier requires at least one rule")
	}
	ruleMaps := make([]*index.Map, len(c.Rules))
	for i, rule := range c.Rules {
		m, ok := maps[rule.Index]
		if !ok {
			return nil, fmt.Errorf("classifier rule references unknown index %q", rule.Index)
		}
		if m.Width != mask.Width || m.Height != mask.Height {
			return nil, &raster.ShapeMismatchError{
				What:       "index map " + rule.Index,
				WantWidth:  mask.Width,
				WantHeight: mask.Height,
				GotWidth:   m.Width,
				GotHeight:  m.Height,
			}
		}
		ruleMaps[i] = m
	}
	if c.Mode != CombineWeightedSum || len(c.Rules) == 1 {
		return ruleMaps[0], nil
	}

	first := ruleMaps[0]
	out := &index.Map{
		Name:   "combined",
		Width:  first.Width,
		Height: first.Height,
		Data:   make([]float64, len(first.Data)),
	}
	for i := range out.Data {
		sum := 0.0
		for r, rule := range c.Rules {
			v := ruleMaps[r].Data[i]
			if math.IsNaN(v) {
				sum = math.NaN()
				break
			}
			sum += rule.Weight * v
		}
		out.Data[i] = sum
	}
	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			if !mask.Valid(x, y) {
				out.Data[y*mask.Width+x] = math.NaN()
			}
		}
	}
	return out, nil
}
