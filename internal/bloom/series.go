// Package bloom aggregates per-date classified maps into a bloom
// progression signal across one season.
package bloom

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/classify"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/index"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/raster"
)

// Observation is one classified acquisition. The aggregator needs the score
// map alongside the labels because peak detection compares index values, not
// labels.
type Observation struct {
	Date       time.Time
	Score      *index.Map
	Classified *classify.Map
}

// Series is an ordered sequence of observations over one fixed footprint.
type Series struct {
	obs []Observation
}

// NewSeries validates and orders observations by date ascending. All maps
// must share one shape.
func NewSeries(observations []Observation) (*Series, error) {
	if len(observations) == 0 {
		return nil, &raster.EmptySeriesError{}
	}

	obs := make([]Observation, len(observations))
	copy(obs, observations)
	sort.Slice(obs, func(i, j int) bool { return obs[i].Date.Before(obs[j].Date) })

	for i := 1; i < len(obs); i++ {
		if !obs[i-1].Date.Before(obs[i].Date) {
			return nil, fmt.Errorf("series dates must be strictly increasing, %s repeats",
				obs[i].Date.Format("2006-01-02"))
		}
	}

	first := obs[0].Classified
	for _, o := range obs {
		if o.Classified.Width != first.Width || o.Classified.Height != first.Height {
			return nil, &raster.ShapeMismatchError{
				What:       "classified map " + o.Date.Format("2006-01-02"),
				WantWidth:  first.Width,
				WantHeight: first.Height,
				GotWidth:   o.Classified.Width,
				GotHeight:  o.Classified.Height,
			}
		}
		if o.Score.Width != first.Width || o.Score.Height != first.Height {
			return nil, &raster.ShapeMismatchError{
				What:       "score map " + o.Date.Format("2006-01-02"),
				WantWidth:  first.Width,
				WantHeight: first.Height,
				GotWidth:   o.Score.Width,
				GotHeight:  o.Score.Height,
			}
		}
	}
	return &Series{obs: obs}, nil
}

// Dates lists acquisition dates ascending.
func (s *Series) Dates() []time.Time {
	dates := make([]time.Time, len(s.obs))
	for i, o := range s.obs {
		dates[i] = o.Date
	}
	return dates
}

// Observations returns the ordered observations.
func (s *Series) Observations() []Observation { return s.obs }

// PixelProgression summarizes one pixel's labels across the season.
// Bloomed false means the pixel never reached bloom: the date fields are
// zero and must not be read, which keeps "never bloomed" distinct from any
// real onset. Declined false means the pixel was still blooming at the last
// observation.
type PixelProgression struct {
	Bloomed   bool
	Declined  bool
	Onset     time.Time
	Peak      time.Time
	PeakScore float64
	Decline   time.Time
}

// Progression is the per-pixel bloom summary for one series. Computed once
// per completed series, immutable afterwards.
type Progression struct {
	Width  int
	Height int
	Dates  []time.Time
	Pixels []PixelProgression
}

// At returns the progression of pixel (x, y).
func (p *Progression) At(x, y int) PixelProgression { return p.Pixels[y*p.Width+x] }

// BloomedCount returns how many pixels ever reached bloom.
func (p *Progression) BloomedCount() int {
	n := 0
	for _, px := range p.Pixels {
		if px.Bloomed {
			n++
		}
	}
	return n
}

// Progression walks every pixel's label sequence. Onset is the first
// transition into bloom. Decline is the first transition out of bloom after
// onset that is not immediately followed by a return to bloom on the next
// date; flicker beyond that single-step rule is reported as-is, not
// smoothed. Peak is the maximum-score bloom date between onset and decline.
func (s *Series) Progression() (*Progression, error) {
	if len(s.obs) == 0 {
		return nil, &raster.EmptySeriesError{}
	}

	first := s.obs[0].Classified
	out := &Progression{
		Width:  first.Width,
		Height: first.Height,
		Dates:  s.Dates(),
		Pixels: make([]PixelProgression, first.Width*first.Height),
	}

	for i := range out.Pixels {
		out.Pixels[i] = s.pixelProgression(i)
	}
	return out, nil
}

func (s *Series) pixelProgression(i int) PixelProgression {
	var p PixelProgression

	onsetIdx := -1
	for t, o := range s.obs {
		if o.Classified.Labels[i] == classify.LabelBloom {
			onsetIdx = t
			break
		}
	}
	if onsetIdx < 0 {
		return p // never bloomed
	}

	p.Bloomed = true
	p.Onset = s.obs[onsetIdx].Date

	declineIdx := len(s.obs)
	for t := onsetIdx + 1; t < len(s.obs); t++ {
		if s.obs[t].Classified.Labels[i] == classify.LabelBloom {
			continue
		}
		// A single non-bloom date with bloom right after is flicker, not
		// decline.
		if t+1 < len(s.obs) && s.obs[t+1].Classified.Labels[i] == classify.LabelBloom {
			t++
			continue
		}
		declineIdx = t
		break
	}
	if declineIdx < len(s.obs) {
		p.Declined = true
		p.Decline = s.obs[declineIdx].Date
	}

	p.PeakScore = math.Inf(-1)
	for t := onsetIdx; t < declineIdx; t++ {
		if s.obs[t].Classified.Labels[i] != classify.LabelBloom {
			continue
		}
		score := s.obs[t].Score.Data[i]
		if !math.IsNaN(score) && score > p.PeakScore {
			p.PeakScore = score
			p.Peak = s.obs[t].Date
		}
	}
	if math.IsInf(p.PeakScore, -1) {
		// All bloom-date scores were NaN; fall back to onset.
		p.PeakScore = math.NaN()
		p.Peak = p.Onset
	}
	return p
}
