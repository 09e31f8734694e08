// Package output is the export adapter: it renders classified results into
// overlays, GeoJSON and CSV artifacts for map tooling. The core pipeline
// never writes files itself.
package output

import (
	"image"
	"image/color"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/raster"
)

// CompositePreset names the band assignment of an RGB composite, following
// the Copernicus Browser layer presets.
type CompositePreset struct {
	R, G, B raster.Channel
}

var CompositePresets = map[string]CompositePreset{
	"True Color":        {raster.B04, raster.B03, raster.B02},
	"False Color":       {raster.B08, raster.B04, raster.B03},
	"False Color Urban": {raster.B12, raster.B11, raster.B04},
	"SWIR":              {raster.B12, raster.B8A, raster.B04},
}

// normalizeBand stretches reflectance to [0, 1] with percentile clipping
// (2nd to 98th), computed over valid pixels only. Masked and nodata pixels
// come out as 0.
func normalizeBand(band *raster.Band, mask *raster.Mask) []float64 {
	valid := make([]float64, 0, len(band.Data))
	for y := 0; y < band.Height; y++ {
		for x := 0; x < band.Width; x++ {
			v := band.At(x, y)
			if math.IsNaN(v) || (mask != nil && !mask.Valid(x, y)) {
				continue
			}
			valid = append(valid, v)
		}
	}

	pLow, pHigh := 0.0, 1.0
	if len(valid) > 0 {
		sort.Float64s(valid)
		pLow = stat.Quantile(0.02, stat.Empirical, valid, nil)
		pHigh = stat.Quantile(0.98, stat.Empirical, valid, nil)
	}

	out := make([]float64, len(band.Data))
	for i, v := range band.Data {
		if math.IsNaN(v) {
			continue
		}
		if mask != nil && mask.Values[i] != raster.MaskValid {
			continue
		}
		if v < pLow {
			v = pLow
		}
		if v > pHigh {
			v = pHigh
		}
		if pHigh > pLow {
			out[i] = (v - pLow) / (pHigh - pLow)
		}
	}
	return out
}

// CreateRGBComposite renders three stack channels as an 8-bit RGB image with
// percentile normalization, masked pixels black.
func CreateRGBComposite(stack *raster.Stack, preset CompositePreset) (*image.RGBA, error) {
	rBand, err := stack.Band(preset.R)
	if err != nil {
		return nil, err
	}
	gBand, err := stack.Band(preset.G)
	if err != nil {
		return nil, err
	}
	bBand, err := stack.Band(preset.B)
	if err != nil {
		return nil, err
	}

	mask := stack.Mask()
	r := normalizeBand(rBand, mask)
	g := normalizeBand(gBand, mask)
	b := normalizeBand(bBand, mask)

	img := image.NewRGBA(image.Rect(0, 0, stack.Width, stack.Height))
	for y := 0; y < stack.Height; y++ {
		for x := 0; x < stack.Width; x++ {
			i := y*stack.Width + x
			img.Set(x, y, color.RGBA{
				R: uint8(r[i] * 255),
				G: uint8(g[i] * 255),
				B: uint8(b[i] * 255),
				A: 255,
			})
		}
	}
	return img, nil
}
