// Package delivery wires the pipeline stages together: load, align, index,
// classify per acquisition date, then aggregate the season.
package delivery

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/schollz/progressbar/v3"

	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/align"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/bloom"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/cache"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/classify"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/config"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/index"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/raster"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/utils"
)

// DateResult is everything the pipeline produced for one acquisition date.
// The export adapter consumes it read-only.
type DateResult struct {
	Date       time.Time
	Stack      *raster.Stack
	Indices    map[string]*index.Map
	Score      *index.Map
	Classified *classify.Map
}

// DateSummary is the cached digest of one date's classification.
type DateSummary struct {
	Date        time.Time `json:"date"`
	BloomPixels int       `json:"bloom_pixels"`
	ValidPixels int       `json:"valid_pixels"`
	TotalPixels int       `json:"total_pixels"`
}

// Run executes the per-date pipeline over bands already in memory. It is the
// pure part of the stage chain, the loaders in front of it own all I/O.
func Run(cfg config.Config, date time.Time, bands []*raster.Band, mask *raster.Mask) (*DateResult, error) {
	opts, err := cfg.AlignOptions()
	if err != nil {
		return nil, err
	}
	stack, err := align.Stack(date, bands, mask, opts)
	if err != nil {
		return nil, err
	}
	stack.EPSG = cfg.EPSG

	formulas, err := cfg.Formulas()
	if err != nil {
		return nil, err
	}
	engine := &index.Engine{Formulas: formulas}
	indices, err := engine.Compute(stack)
	if err != nil {
		return nil, err
	}

	classifier, err := cfg.Classifier()
	if err != nil {
		return nil, err
	}
	classified, err := classifier.Classify(indices, stack.Mask())
	if err != nil {
		return nil, err
	}
	score, err := classifier.Score(indices, stack.Mask())
	if err != nil {
		return nil, err
	}

	return &DateResult{
		Date:       date,
		Stack:      stack,
		Indices:    indices,
		Score:      score,
		Classified: classified,
	}, nil
}

// EvaluateDate runs the pipeline for one date from a per-band Copernicus
// export directory layout.
func EvaluateDate(cfg config.Config, dataDir string, date time.Time) (*DateResult, error) {
	channels, err := cfg.ChannelList()
	if err != nil {
		return nil, err
	}
	source, err := cfg.Source()
	if err != nil {
		return nil, err
	}
	dateDir, err := raster.DateDirectory(dataDir, date)
	if err != nil {
		return nil, err
	}

	var bands []*raster.Band
	var mask *raster.Mask
	utils.ExecuteWithGDALLock(func() {
		bands, mask, err = source.LoadBands(dateDir, channels)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", date.Format("2006-01-02"), err)
	}
	return Run(cfg, date, bands, mask)
}

// EvaluateImage runs the pipeline for one date from a downloaded multiband
// TIFF with the Sentinel Hub band layout.
func EvaluateImage(cfg config.Config, path string, order []raster.Channel, date time.Time) (*DateResult, error) {
	var bands []*raster.Band
	var mask *raster.Mask
	var err error
	utils.ExecuteWithGDALLock(func() {
		bands, mask, err = raster.LoadMultiband(path, order)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	wanted, err := cfg.ChannelList()
	if err != nil {
		return nil, err
	}
	keep := make(map[raster.Channel]bool, len(wanted))
	for _, channel := range wanted {
		keep[channel] = true
	}
	filtered := bands[:0]
	for _, band := range bands {
		if keep[band.Channel] {
			filtered = append(filtered, band)
		}
	}
	return Run(cfg, date, filtered, mask)
}

// SeasonResult is the synchronized output of a full season evaluation.
type SeasonResult struct {
	Results     []*DateResult
	Progression *bloom.Progression
	Summaries   []DateSummary
}

// EvaluateSeason runs the per-date pipeline in parallel over every
// discovered acquisition date, then aggregates the ordered series. Each date
// is independent; the aggregation is the synchronization barrier and fails
// if any date failed, per the series contract.
func EvaluateSeason(cfg config.Config, area, dataDir string, dates []time.Time) (*SeasonResult, error) {
	if len(dates) == 0 {
		return nil, &raster.EmptySeriesError{}
	}

	summaryCache := cache.NewFileCache[DateSummary]("bloom_cache")
	configDigest := summaryCache.GenerateKey(cfg.Indices, cfg.Classification, cfg.TargetResolution)

	var (
		mu      sync.Mutex
		results = make([]*DateResult, 0, len(dates))
		errs    []error
	)

	progressBar := progressbar.Default(int64(len(dates)), "Evaluating season")
	wp := workerpool.New(4)
	for _, date := range dates {
		d := date
		wp.Submit(func() {
			defer progressBar.Add(1)
			result, err := EvaluateDate(cfg, dataDir, d)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("date %s: %w", d.Format("2006-01-02"), err))
				return
			}
			results = append(results, result)
		})
	}
	wp.StopWait()
	fmt.Println()

	if len(errs) > 0 {
		// The aggregator requires the full series; report the first
		// failure and let the caller decide about per-date retries.
		return nil, fmt.Errorf("season evaluation incomplete, %d of %d dates failed: %w",
			len(errs), len(dates), errs[0])
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Date.Before(results[j].Date) })

	observations := make([]bloom.Observation, 0, len(results))
	summaries := make([]DateSummary, 0, len(results))
	for _, result := range results {
		observations = append(observations, bloom.Observation{
			Date:       result.Date,
			Score:      result.Score,
			Classified: result.Classified,
		})

		key := summaryCache.GenerateKey(area, result.Date.Format("2006-01-02"), configDigest)
		summary, ok := summaryCache.Get(key)
		if !ok {
			summary = DateSummary{
				Date:        result.Date,
				BloomPixels: result.Classified.Count(classify.LabelBloom),
				ValidPixels: result.Classified.Count(classify.LabelBloom) + result.Classified.Count(classify.LabelNoBloom),
				TotalPixels: result.Classified.Width * result.Classified.Height,
			}
			if err := summaryCache.Set(key, summary); err != nil {
				fmt.Printf("failed to cache summary for %s: %v\n", result.Date.Format("2006-01-02"), err)
			}
		}
		summaries = append(summaries, summary)
	}

	series, err := bloom.NewSeries(observations)
	if err != nil {
		return nil, err
	}
	progression, err := series.Progression()
	if err != nil {
		return nil, err
	}

	return &SeasonResult{
		Results:     results,
		Progression: progression,
		Summaries:   summaries,
	}, nil
}
