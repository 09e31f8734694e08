package raster

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testTransform(res float64) [6]float64 {
	return [6]float64{0, res, 0, 0, 0, -res}
}

func constantBand(channel Channel, width, height int, value, res float64) *Band {
	data := make([]float64, width*height)
	for i := range data {
		data[i] = value
	}
	return NewBand(channel, width, height, data, testTransform(res))
}

func TestNewStackSharedShape(t *testing.T) {
	date := time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC)
	bands := []*Band{
		constantBand(B03, 4, 3, 0.2, 10),
		constantBand(B04, 4, 3, 0.1, 10),
	}

	stack, err := NewStack(date, bands, nil)
	require.NoError(t, err)
	require.Equal(t, 4, stack.Width)
	require.Equal(t, 3, stack.Height)
	require.Equal(t, 10.0, stack.Resolution)
	require.Equal(t, date, stack.Date)
	require.Equal(t, []Channel{B03, B04}, stack.Channels())
}

func TestNewStackShapeMismatch(t *testing.T) {
	bands := []*Band{
		constantBand(B03, 4, 4, 0.2, 10),
		constantBand(B04, 5, 4, 0.1, 10),
	}

	_, err := NewStack(time.Now(), bands, nil)
	var shapeErr *ShapeMismatchError
	require.ErrorAs(t, err, &shapeErr)
}

func TestNewStackMaskShapeMismatch(t *testing.T) {
	bands := []*Band{constantBand(B03, 4, 4, 0.2, 10)}
	mask := NewMask(3, 3)

	_, err := NewStack(time.Now(), bands, mask)
	var shapeErr *ShapeMismatchError
	require.ErrorAs(t, err, &shapeErr)
}

func TestStackMissingBand(t *testing.T) {
	stack, err := NewStack(time.Now(), []*Band{constantBand(B03, 2, 2, 0.2, 10)}, nil)
	require.NoError(t, err)

	_, err = stack.Band(B11)
	var missing *MissingBandError
	require.True(t, errors.As(err, &missing))
	require.Equal(t, B11, missing.Channel)
	require.False(t, stack.HasChannel(B11))
	require.True(t, stack.HasChannel(B03))
}

func TestMaskFromSCL(t *testing.T) {
	scl := []float64{0, 3, 4, 8, 9, 10, 5, 2, 6}
	mask := MaskFromSCL(3, 3, scl)

	require.Equal(t, MaskNoData, mask.At(0, 0))
	require.Equal(t, MaskShadow, mask.At(1, 0))
	require.Equal(t, MaskValid, mask.At(2, 0))
	require.Equal(t, MaskCloud, mask.At(0, 1))
	require.Equal(t, MaskCloud, mask.At(1, 1))
	require.Equal(t, MaskCloud, mask.At(2, 1))
	require.True(t, mask.Valid(0, 2))
}

func TestMaskFromBinary(t *testing.T) {
	mask := MaskFromBinary(2, 1, []float64{255, 0})
	require.True(t, mask.Valid(0, 0))
	require.Equal(t, MaskNoData, mask.At(1, 0))
}

func TestBandExtent(t *testing.T) {
	band := constantBand(B03, 4, 2, 0.2, 10)
	minX, minY, maxX, maxY := band.Extent()
	require.Equal(t, 0.0, minX)
	require.Equal(t, -20.0, minY)
	require.Equal(t, 40.0, maxX)
	require.Equal(t, 0.0, maxY)
}

func TestPixelToGeo(t *testing.T) {
	stack, err := NewStack(time.Now(), []*Band{constantBand(B03, 4, 4, 0.2, 10)}, nil)
	require.NoError(t, err)

	gx, gy := stack.PixelToGeo(0, 0)
	require.Equal(t, 5.0, gx)
	require.Equal(t, -5.0, gy)
}
