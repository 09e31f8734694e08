package raster

import (
	"math"
	"time"
)

// Band is one spectral channel read at its native resolution. Data is stored
// row major, nodata pixels hold NaN.
type Band struct {
	Channel Channel
	Width   int
	Height  int
	Data    []float64
	NoData  float64
	// Transform is a GDAL style geotransform: origin x, pixel width, 0,
	// origin y, 0, negative pixel height.
	Transform [6]float64
}

// NewBand builds a band over an existing buffer.
func NewBand(channel Channel, width, height int, data []float64, transform [6]float64) *Band {
	return &Band{
		Channel:   channel,
		Width:     width,
		Height:    height,
		Data:      data,
		NoData:    math.NaN(),
		Transform: transform,
	}
}

// Resolution returns the pixel size in meters.
func (b *Band) Resolution() float64 { return b.Transform[1] }

// At returns the value at pixel (x, y).
func (b *Band) At(x, y int) float64 { return b.Data[y*b.Width+x] }

// Extent returns the geographic footprint as minX, minY, maxX, maxY.
func (b *Band) Extent() (float64, float64, float64, float64) {
	minX := b.Transform[0]
	maxY := b.Transform[3]
	maxX := minX + b.Transform[1]*float64(b.Width)
	minY := maxY + b.Transform[5]*float64(b.Height)
	return minX, minY, maxX, maxY
}

// MaskValue is the per pixel validity state supplied upstream. The pipeline
// consumes it, it never computes cloud or shadow itself.
type MaskValue uint8

const (
	MaskValid MaskValue = iota
	MaskCloud
	MaskShadow
	MaskNoData
)

func (v MaskValue) String() string {
	switch v {
	case MaskValid:
		return "valid"
	case MaskCloud:
		return "cloud"
	case MaskShadow:
		return "shadow"
	case MaskNoData:
		return "nodata"
	}
	return "unknown"
}

// Mask is the validity grid for one acquisition.
type Mask struct {
	Width  int
	Height int
	Values []MaskValue
}

func NewMask(width, height int) *Mask {
	return &Mask{Width: width, Height: height, Values: make([]MaskValue, width*height)}
}

// At returns the mask state at pixel (x, y).
func (m *Mask) At(x, y int) MaskValue { return m.Values[y*m.Width+x] }

// Valid reports whether pixel (x, y) is usable for analysis.
func (m *Mask) Valid(x, y int) bool { return m.Values[y*m.Width+x] == MaskValid }

// MaskFromBinary interprets a rasterio style mask band where 255 means valid
// and 0 means masked.
func MaskFromBinary(width, height int, data []float64) *Mask {
	m := NewMask(width, height)
	for i, v := range data {
		if v != 255 {
			m.Values[i] = MaskNoData
		}
	}
	return m
}

// MaskFromSCL maps the Sentinel-2 scene classification layer to validity
// states: 0 nodata, 3 cloud shadow, 8/9/10 cloud, everything else valid.
func MaskFromSCL(width, height int, scl []float64) *Mask {
	m := NewMask(width, height)
	for i, code := range scl {
		switch code {
		case 0:
			m.Values[i] = MaskNoData
		case 3:
			m.Values[i] = MaskShadow
		case 8, 9, 10:
			m.Values[i] = MaskCloud
		}
	}
	return m
}

// Stack is one aligned acquisition: every band shares one grid shape and one
// resolution, plus the validity mask and acquisition date. Stacks are built
// once and treated as immutable afterwards, which is what makes parallel
// tile and date processing safe.
type Stack struct {
	Date       time.Time
	Width      int
	Height     int
	Resolution float64
	Transform  [6]float64
	EPSG       int
	bands      map[Channel]*Band
	mask       *Mask
}

// NewStack validates that all bands and the mask share one shape and wraps
// them into an immutable stack.
func NewStack(date time.Time, bands []*Band, mask *Mask) (*Stack, error) {
	if len(bands) == 0 {
		return nil, &MissingBandError{Context: "stack requires at least one band"}
	}
	first := bands[0]
	byChannel := make(map[Channel]*Band, len(bands))
	for _, band := range bands {
		if band.Width != first.Width || band.Height != first.Height {
			return nil, &ShapeMismatchError{
				What:       "stack band " + band.Channel.String(),
				WantWidth:  first.Width,
				WantHeight: first.Height,
				GotWidth:   band.Width,
				GotHeight:  band.Height,
			}
		}
		byChannel[band.Channel] = band
	}
	if mask != nil && (mask.Width != first.Width || mask.Height != first.Height) {
		return nil, &ShapeMismatchError{
			What:       "validity mask",
			WantWidth:  first.Width,
			WantHeight: first.Height,
			GotWidth:   mask.Width,
			GotHeight:  mask.Height,
		}
	}
	if mask == nil {
		mask = NewMask(first.Width, first.Height)
	}
	return &Stack{
		Date:       date,
		Width:      first.Width,
		Height:     first.Height,
		Resolution: first.Resolution(),
		Transform:  first.Transform,
		bands:      byChannel,
		mask:       mask,
	}, nil
}

// Band returns the band for a channel, or a MissingBandError.
func (s *Stack) Band(channel Channel) (*Band, error) {
	band, ok := s.bands[channel]
	if !ok {
		return nil, &MissingBandError{Channel: channel, Context: "not present in stack"}
	}
	return band, nil
}

// HasChannel reports whether the stack carries a channel.
func (s *Stack) HasChannel(channel Channel) bool {
	_, ok := s.bands[channel]
	return ok
}

// Channels lists the channels present in band order.
func (s *Stack) Channels() []Channel {
	channels := make([]Channel, 0, len(s.bands))
	for _, channel := range AllChannels {
		if _, ok := s.bands[channel]; ok {
			channels = append(channels, channel)
		}
	}
	return channels
}

// Mask returns the validity mask.
func (s *Stack) Mask() *Mask { return s.mask }

// PixelToGeo converts pixel indices to the geographic coordinates of the
// pixel center.
func (s *Stack) PixelToGeo(x, y int) (float64, float64) {
	gx := s.Transform[0] + s.Transform[1]*(float64(x)+0.5)
	gy := s.Transform[3] + s.Transform[5]*(float64(y)+0.5)
	return gx, gy
}
