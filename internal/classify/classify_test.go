package classify

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/index"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/raster"
)

func indexMap(name string, width, height int, values []float64) *index.Map {
	return &index.Map{Name: name, Width: width, Height: height, Data: values}
}

func TestClassifySingleRule(t *testing.T) {
	maps := map[string]*index.Map{
		"bloom": indexMap("bloom", 2, 2, []float64{0.1, 0.5, 0.04, math.NaN()}),
	}
	mask := raster.NewMask(2, 2)

	classifier := &Classifier{Rules: []Rule{{Index: "bloom", Threshold: 0.04}}}
	got, err := classifier.Classify(maps, mask)
	require.NoError(t, err)

	require.Equal(t, LabelBloom, got.At(0, 0))
	require.Equal(t, LabelBloom, got.At(1, 0))
	require.Equal(t, LabelNoBloom, got.At(0, 1), "threshold is strict: equal does not pass")
	require.Equal(t, LabelNoBloom, got.At(1, 1), "NaN score never passes")
}

func TestClassifyInvalidMaskDominates(t *testing.T) {
	maps := map[string]*index.Map{
		"bloom": indexMap("bloom", 2, 1, []float64{0.9, 0.9}),
	}
	mask := raster.NewMask(2, 1)
	mask.Values[1] = raster.MaskCloud

	classifier := &Classifier{Rules: []Rule{{Index: "bloom", Threshold: 0.1}}}
	got, err := classifier.Classify(maps, mask)
	require.NoError(t, err)
	require.Equal(t, LabelBloom, got.At(0, 0))
	require.Equal(t, LabelInvalid, got.At(1, 0), "masked pixel stays invalid no matter the score")
}

func TestClassifyCombineAnd(t *testing.T) {
	maps := map[string]*index.Map{
		"bloom": indexMap("bloom", 3, 1, []float64{0.5, 0.5, 0.01}),
		"ndvi":  indexMap("ndvi", 3, 1, []float64{0.4, 0.1, 0.4}),
	}
	mask := raster.NewMask(3, 1)

	classifier := &Classifier{
		Rules: []Rule{{Index: "bloom", Threshold: 0.04}, {Index: "ndvi", Threshold: 0.2}},
		Mode:  CombineAnd,
	}
	got, err := classifier.Classify(maps, mask)
	require.NoError(t, err)
	require.Equal(t, LabelBloom, got.At(0, 0))
	require.Equal(t, LabelNoBloom, got.At(1, 0))
	require.Equal(t, LabelNoBloom, got.At(2, 0))
}

func TestClassifyCombineOr(t *testing.T) {
	maps := map[string]*index.Map{
		"bloom": indexMap("bloom", 3, 1, []float64{0.5, 0.01, 0.01}),
		"ndvi":  indexMap("ndvi", 3, 1, []float64{0.1, 0.4, 0.1}),
	}
	mask := raster.NewMask(3, 1)

	classifier := &Classifier{
		Rules: []Rule{{Index: "bloom", Threshold: 0.04}, {Index: "ndvi", Threshold: 0.2}},
		Mode:  CombineOr,
	}
	got, err := classifier.Classify(maps, mask)
	require.NoError(t, err)
	require.Equal(t, LabelBloom, got.At(0, 0))
	require.Equal(t, LabelBloom, got.At(1, 0))
	require.Equal(t, LabelNoBloom, got.At(2, 0))
}

func TestClassifyWeightedSum(t *testing.T) {
	maps := map[string]*index.Map{
		"bloom": indexMap("bloom", 3, 1, []float64{0.5, 0.1, math.NaN()}),
		"ndvi":  indexMap("ndvi", 3, 1, []float64{0.5, 0.1, 0.9}),
	}
	mask := raster.NewMask(3, 1)

	classifier := &Classifier{
		Rules:          []Rule{{Index: "bloom", Threshold: 0, Weight: 0.7}, {Index: "ndvi", Threshold: 0, Weight: 0.3}},
		Mode:           CombineWeightedSum,
		ScoreThreshold: 0.3,
	}
	got, err := classifier.Classify(maps, mask)
	require.NoError(t, err)
	require.Equal(t, LabelBloom, got.At(0, 0))   // 0.5 > 0.3
	require.Equal(t, LabelNoBloom, got.At(1, 0)) // 0.1
	require.Equal(t, LabelNoBloom, got.At(2, 0), "NaN contribution fails the sum")
}

func TestClassifyThresholdMonotonic(t *testing.T) {
	values := []float64{-0.8, -0.1, 0.0, 0.04, 0.2, 0.7, math.NaN()}
	maps := map[string]*index.Map{
		"bloom": indexMap("bloom", len(values), 1, values),
	}
	mask := raster.NewMask(len(values), 1)

	prevBloom := len(values) + 1
	for _, threshold := range []float64{-1, -0.5, 0, 0.04, 0.3, 1} {
		classifier := &Classifier{Rules: []Rule{{Index: "bloom", Threshold: threshold}}}
		got, err := classifier.Classify(maps, mask)
		require.NoError(t, err)
		bloom := got.Count(LabelBloom)
		require.LessOrEqual(t, bloom, prevBloom, "raising the threshold must never add bloom pixels")
		prevBloom = bloom
	}
}

func TestClassifyUnknownIndex(t *testing.T) {
	classifier := &Classifier{Rules: []Rule{{Index: "missing", Threshold: 0.1}}}
	_, err := classifier.Classify(map[string]*index.Map{}, raster.NewMask(1, 1))
	require.Error(t, err)
}

func TestClassifyShapeMismatch(t *testing.T) {
	maps := map[string]*index.Map{
		"bloom": indexMap("bloom", 2, 2, make([]float64, 4)),
	}
	classifier := &Classifier{Rules: []Rule{{Index: "bloom", Threshold: 0.1}}}
	_, err := classifier.Classify(maps, raster.NewMask(3, 3))
	var mismatch *raster.ShapeMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestScoreSingleRule(t *testing.T) {
	bloom := indexMap("bloom", 2, 1, []float64{0.5, 0.1})
	classifier := &Classifier{Rules: []Rule{{Index: "bloom", Threshold: 0.04}}}
	got, err := classifier.Score(map[string]*index.Map{"bloom": bloom}, raster.NewMask(2, 1))
	require.NoError(t, err)
	require.Same(t, bloom, got)
}

func TestScoreShapeMismatch(t *testing.T) {
	maps := map[string]*index.Map{
		"bloom": indexMap("bloom", 2, 2, make([]float64, 4)),
		"ndvi":  indexMap("ndvi", 3, 3, make([]float64, 9)),
	}
	classifier := &Classifier{
		Rules: []Rule{{Index: "bloom", Weight: 0.7}, {Index: "ndvi", Weight: 0.3}},
		Mode:  CombineWeightedSum,
	}
	_, err := classifier.Score(maps, raster.NewMask(2, 2))
	var mismatch *raster.ShapeMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Contains(t, mismatch.What, "ndvi")
}

func TestScoreWeightedSum(t *testing.T) {
	maps := map[string]*index.Map{
		"bloom": indexMap("bloom", 3, 1, []float64{0.5, math.NaN(), 0.2}),
		"ndvi":  indexMap("ndvi", 3, 1, []float64{0.1, 0.1, 0.4}),
	}
	mask := raster.NewMask(3, 1)
	mask.Values[2] = raster.MaskCloud

	classifier := &Classifier{
		Rules: []Rule{{Index: "bloom", Weight: 0.7}, {Index: "ndvi", Weight: 0.3}},
		Mode:  CombineWeightedSum,
	}
	got, err := classifier.Score(maps, mask)
	require.NoError(t, err)
	require.InDelta(t, 0.7*0.5+0.3*0.1, got.At(0, 0), 1e-12)
	require.True(t, math.IsNaN(got.At(1, 0)), "NaN operand propagates")
	require.True(t, math.IsNaN(got.At(2, 0)), "masked pixel scores NaN")
}
