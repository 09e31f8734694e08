package output

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/raster"
)

func compositeBand(channel raster.Channel, width, height int, values []float64) *raster.Band {
	return raster.NewBand(channel, width, height, values, [6]float64{0, 10, 0, 0, 0, -10})
}

func TestNormalizeBandStretch(t *testing.T) {
	band := compositeBand(raster.B04, 4, 1, []float64{0.1, 0.2, 0.3, 0.4})

	got := normalizeBand(band, nil)
	require.Equal(t, 0.0, got[0], "minimum lands at 0 after the stretch")
	require.Equal(t, 1.0, got[3], "maximum lands at 1")
	require.Greater(t, got[2], got[1])
}

func TestNormalizeBandConstant(t *testing.T) {
	band := compositeBand(raster.B04, 2, 2, []float64{0.5, 0.5, 0.5, 0.5})

	got := normalizeBand(band, nil)
	for i, v := range got {
		require.Equal(t, 0.0, v, "pixel %d: flat band has no spread to stretch", i)
	}
}

func TestNormalizeBandMasked(t *testing.T) {
	band := compositeBand(raster.B04, 2, 2, []float64{0.9, 0.1, 0.4, math.NaN()})
	mask := raster.NewMask(2, 2)
	mask.Values[0] = raster.MaskCloud

	got := normalizeBand(band, mask)
	require.Equal(t, 0.0, got[0], "masked pixel renders black")
	require.Equal(t, 0.0, got[3], "nodata pixel renders black")
	// The cloud pixel's 0.9 must not inflate the stretch range.
	require.Equal(t, 1.0, got[2])
}

func TestCreateRGBComposite(t *testing.T) {
	bands := []*raster.Band{
		compositeBand(raster.B04, 2, 2, []float64{0.1, 0.4, 0.2, 0.3}),
		compositeBand(raster.B03, 2, 2, []float64{0.2, 0.3, 0.1, 0.4}),
		compositeBand(raster.B02, 2, 2, []float64{0.3, 0.2, 0.4, 0.1}),
	}
	mask := raster.NewMask(2, 2)
	mask.Values[3] = raster.MaskCloud
	stack, err := raster.NewStack(time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC), bands, mask)
	require.NoError(t, err)

	img, err := CreateRGBComposite(stack, CompositePresets["True Color"])
	require.NoError(t, err)
	require.Equal(t, 2, img.Bounds().Dx())
	require.Equal(t, 2, img.Bounds().Dy())

	r, g, b, a := img.At(1, 1).RGBA()
	require.Zero(t, r>>8)
	require.Zero(t, g>>8)
	require.Zero(t, b>>8)
	require.EqualValues(t, 255, a>>8)
}

func TestCreateRGBCompositeMissingChannel(t *testing.T) {
	bands := []*raster.Band{
		compositeBand(raster.B04, 1, 1, []float64{0.1}),
	}
	stack, err := raster.NewStack(time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC), bands, nil)
	require.NoError(t, err)

	_, err = CreateRGBComposite(stack, CompositePresets["True Color"])
	var missing *raster.MissingBandError
	require.ErrorAs(t, err, &missing)
}
