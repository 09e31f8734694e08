// Package align resamples bands acquired at heterogeneous native
// resolutions onto one common pixel grid so they can be stacked.
package align

import (
	"math"
	"time"

	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/raster"
)

// Method selects the resampling interpolation for one channel.
type Method int

const (
	// Nearest repeats the closest source pixel. Used for categorical data
	// and for the validity mask.
	Nearest Method = iota
	// Bilinear interpolates the four surrounding source pixels. Used for
	// continuous reflectance bands.
	Bilinear
)

func (m Method) String() string {
	if m == Bilinear {
		return "bilinear"
	}
	return "nearest"
}

// Options controls the common target grid. The method table is fixed
// configuration keyed by channel, never inferred from the data.
type Options struct {
	// TargetResolution in meters per pixel. Zero selects the finest
	// resolution present among the input bands.
	TargetResolution float64
	// Methods maps each channel to its interpolation. Channels absent
	// from the table default to bilinear, reflectance being continuous.
	Methods map[raster.Channel]Method
}

const centerEps = 1e-9

// Stack aligns bands and mask onto the common grid and builds an immutable
// raster stack for the acquisition date. Pixels outside a band's footprint
// become NaN, never extrapolated. Fails with AlignmentError when the band
// footprints share no geographic overlap.
func Stack(date time.Time, bands []*raster.Band, mask *raster.Mask, opts Options) (*raster.Stack, error) {
	if len(bands) == 0 {
		return nil, &raster.MissingBandError{Context: "alignment requires at least one band"}
	}

	target := opts.TargetResolution
	if target <= 0 {
		target = bands[0].Resolution()
		for _, band := range bands[1:] {
			if band.Resolution() < target {
				target = band.Resolution()
			}
		}
	}

	minX, minY, maxX, maxY := bands[0].Extent()
	for _, band := range bands[1:] {
		bMinX, bMinY, bMaxX, bMaxY := band.Extent()
		minX = math.Max(minX, bMinX)
		minY = math.Max(minY, bMinY)
		maxX = math.Min(maxX, bMaxX)
		maxY = math.Min(maxY, bMaxY)
	}
	if minX >= maxX || minY >= maxY {
		return nil, &raster.AlignmentError{Reason: "band footprints do not overlap"}
	}

	width := int(math.Floor((maxX-minX)/target + 0.5))
	height := int(math.Floor((maxY-minY)/target + 0.5))
	if width < 1 || height < 1 {
		return nil, &raster.AlignmentError{Reason: "common footprint smaller than one target pixel"}
	}
	transform := [6]float64{minX, target, 0, maxY, 0, -target}

	aligned := make([]*raster.Band, 0, len(bands))
	for _, band := range bands {
		method := Bilinear
		if m, ok := opts.Methods[band.Channel]; ok {
			method = m
		}
		aligned = append(aligned, resampleBand(band, transform, width, height, method))
	}

	var alignedMask *raster.Mask
	if mask != nil {
		alignedMask = resampleMask(mask, maskTransform(bands, mask), transform, width, height)
	}

	stack, err := raster.NewStack(date, aligned, alignedMask)
	if err != nil {
		return nil, err
	}
	return stack, nil
}

// maskTransform derives the geotransform of the validity mask. The mask is
// produced upstream on the grid of one of the source bands; when no band
// shape matches, the mask is assumed to span the finest band's footprint.
func maskTransform(bands []*raster.Band, mask *raster.Mask) [6]float64 {
	finest := bands[0]
	for _, band := range bands {
		if band.Width == mask.Width && band.Height == mask.Height {
			return band.Transform
		}
		if band.Resolution() < finest.Resolution() {
			finest = band
		}
	}
	minX, minY, maxX, maxY := finest.Extent()
	return [6]float64{
		minX, (maxX - minX) / float64(mask.Width), 0,
		maxY, 0, -(maxY - minY) / float64(mask.Height),
	}
}

func resampleBand(band *raster.Band, transform [6]float64, width, height int, method Method) *raster.Band {
	if band.Width == width && band.Height == height && sameGrid(band.Transform, transform) {
		return band
	}

	out := make([]float64, width*height)
	for y := 0; y < height; y++ {
		// fractional source row for the output pixel center
		sy := (transform[3]+transform[5]*(float64(y)+0.5)-band.Transform[3])/band.Transform[5] - 0.5
		for x := 0; x < width; x++ {
			sx := (transform[0]+transform[1]*(float64(x)+0.5)-band.Transform[0])/band.Transform[1] - 0.5
			out[y*width+x] = sample(band, sx, sy, method)
		}
	}
	return raster.NewBand(band.Channel, width, height, out, transform)
}

func sample(band *raster.Band, sx, sy float64, method Method) float64 {
	if method == Nearest {
		x := int(math.Floor(sx + 0.5))
		y := int(math.Floor(sy + 0.5))
		if x < 0 || x >= band.Width || y < 0 || y >= band.Height {
			return math.NaN()
		}
		return band.At(x, y)
	}

	x0 := int(math.Floor(sx))
	y0 := int(math.Floor(sy))
	fx := sx - float64(x0)
	fy := sy - float64(y0)

	// Exact pixel centers bypass interpolation so that aligning an already
	// aligned band is an identity operation.
	if fx < centerEps && fy < centerEps {
		if x0 < 0 || x0 >= band.Width || y0 < 0 || y0 >= band.Height {
			return math.NaN()
		}
		return band.At(x0, y0)
	}

	x1 := x0 + 1
	y1 := y0 + 1
	if x0 < 0 || y0 < 0 || x1 >= band.Width || y1 >= band.Height {
		// Edge pixels outside the interpolation support are nodata.
		return math.NaN()
	}

	v00 := band.At(x0, y0)
	v10 := band.At(x1, y0)
	v01 := band.At(x0, y1)
	v11 := band.At(x1, y1)
	top := v00*(1-fx) + v10*fx
	bottom := v01*(1-fx) + v11*fx
	return top*(1-fy) + bottom*fy
}

func resampleMask(mask *raster.Mask, maskTf [6]float64, transform [6]float64, width, height int) *raster.Mask {
	if mask.Width == width && mask.Height == height && sameGrid(maskTf, transform) {
		return mask
	}

	out := raster.NewMask(width, height)
	for y := 0; y < height; y++ {
		sy := (transform[3]+transform[5]*(float64(y)+0.5)-maskTf[3])/maskTf[5] - 0.5
		for x := 0; x < width; x++ {
			sx := (transform[0]+transform[1]*(float64(x)+0.5)-maskTf[0])/maskTf[1] - 0.5
			mx := int(math.Floor(sx + 0.5))
			my := int(math.Floor(sy + 0.5))
			if mx < 0 || mx >= mask.Width || my < 0 || my >= mask.Height {
				out.Values[y*width+x] = raster.MaskNoData
				continue
			}
			out.Values[y*width+x] = mask.At(mx, my)
		}
	}
	return out
}

func sameGrid(a, b [6]float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > centerEps {
			return false
		}
	}
	return true
}
