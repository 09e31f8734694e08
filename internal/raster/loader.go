package raster

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/airbusgeo/godal"
)

// Copernicus Browser export directories look like
// 2024-02-14-00_00_2024-02-14-23_59_Sentinel-2_L2A.
const l2aDirMarker = "Sentinel-2_L2A"

// DiscoverDates scans a data directory for Sentinel-2 L2A export
// subdirectories and returns their acquisition dates, ascending.
func DiscoverDates(dataDir string) ([]time.Time, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory %s: %w", dataDir, err)
	}

	var dates []time.Time
	for _, entry := range entries {
		if !entry.IsDir() || !strings.Contains(entry.Name(), l2aDirMarker) {
			continue
		}
		dateStr := entry.Name()
		if len(dateStr) < 10 {
			continue
		}
		date, err := time.Parse("2006-01-02", dateStr[:10])
		if err != nil {
			continue
		}
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

// DateDirectory resolves the export directory for one acquisition date.
func DateDirectory(dataDir string, date time.Time) (string, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return "", fmt.Errorf("failed to read data directory %s: %w", dataDir, err)
	}
	prefix := date.Format("2006-01-02")
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			return filepath.Join(dataDir, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("no acquisition directory found for date %s", prefix)
}

// Source describes how acquisition files map to channels. The index formulas
// reference channel identifiers, never file names, so this mapping lives in
// configuration.
type Source struct {
	// Pattern is a glob with one %s placeholder for the channel identifier,
	// matched inside a date directory.
	Pattern string
	// NoData overrides the nodata sentinel per channel for rasters whose
	// metadata is absent or wrong.
	NoData map[Channel]float64
}

// DefaultSource matches the Copernicus Browser per-band export naming.
func DefaultSource() Source {
	return Source{Pattern: "*_%s_*.tiff"}
}

func openDataset(path string) (*godal.Dataset, error) {
	ds, err := godal.Open(path, godal.ErrLogger(func(ec godal.ErrorCategory, code int, msg string) error {
		if ec == godal.CE_Warning {
			return nil
		}
		return fmt.Errorf("%s", msg)
	}))
	if err != nil {
		return nil, &CorruptRasterError{Path: path, Err: err}
	}
	return ds, nil
}

func readBandData(ds *godal.Dataset, bandIndex int, nodataOverride *float64) ([]float64, error) {
	band := ds.Bands()[bandIndex]
	width := ds.Structure().SizeX
	height := ds.Structure().SizeY
	data := make([]float64, width*height)
	if err := band.Read(0, 0, data, width, height); err != nil {
		return nil, err
	}
	nodata, ok := band.NoData()
	if nodataOverride != nil {
		nodata, ok = *nodataOverride, true
	}
	if ok {
		for i, v := range data {
			if v == nodata {
				data[i] = math.NaN()
			}
		}
	}
	return data, nil
}

// LoadBand reads one per-channel GeoTIFF from a date directory at its native
// resolution, matching the source's file pattern (default *_B04_*.tiff).
func (s Source) LoadBand(dateDir string, channel Channel) (*Band, error) {
	pattern := filepath.Join(dateDir, fmt.Sprintf(s.Pattern, channel))
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return nil, &MissingBandError{Channel: channel, Context: "no TIFF matching " + pattern}
	}

	ds, err := openDataset(matches[0])
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	transform, err := ds.GeoTransform()
	if err != nil {
		return nil, &CorruptRasterError{Path: matches[0], Err: err}
	}
	data, err := readBandData(ds, 0, s.nodataOverride(channel))
	if err != nil {
		return nil, &CorruptRasterError{Path: matches[0], Err: err}
	}

	band := NewBand(channel, ds.Structure().SizeX, ds.Structure().SizeY, data, transform)
	return band, nil
}

func (s Source) nodataOverride(channel Channel) *float64 {
	if v, ok := s.NoData[channel]; ok {
		return &v
	}
	return nil
}

// LoadSCLMask reads the scene classification raster (pattern *_SCL_*.tiff)
// for a date directory if present. A missing SCL file yields a nil mask, the
// caller decides whether that is acceptable.
func (s Source) LoadSCLMask(dateDir string) (*Mask, error) {
	matches, err := filepath.Glob(filepath.Join(dateDir, fmt.Sprintf(s.Pattern, "SCL")))
	if err != nil || len(matches) == 0 {
		return nil, nil
	}
	ds, err := openDataset(matches[0])
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	data, err := readBandData(ds, 0, nil)
	if err != nil {
		return nil, &CorruptRasterError{Path: matches[0], Err: err}
	}
	return MaskFromSCL(ds.Structure().SizeX, ds.Structure().SizeY, data), nil
}

// LoadBands reads the requested channels from a per-band date directory,
// each at its native resolution, plus the SCL validity mask. Bands that
// claim the same resolution must agree in shape.
func (s Source) LoadBands(dateDir string, channels []Channel) ([]*Band, *Mask, error) {
	if len(channels) == 0 {
		return nil, nil, &MissingBandError{Context: "no channels requested"}
	}

	shapeByRes := make(map[float64]*Band)
	bands := make([]*Band, 0, len(channels))
	for _, channel := range channels {
		band, err := s.LoadBand(dateDir, channel)
		if err != nil {
			return nil, nil, err
		}
		if prev, ok := shapeByRes[band.Resolution()]; ok {
			if prev.Width != band.Width || prev.Height != band.Height {
				return nil, nil, &ShapeMismatchError{
					What:       fmt.Sprintf("bands %s and %s at %.0fm", prev.Channel, band.Channel, band.Resolution()),
					WantWidth:  prev.Width,
					WantHeight: prev.Height,
					GotWidth:   band.Width,
					GotHeight:  band.Height,
				}
			}
		} else {
			shapeByRes[band.Resolution()] = band
		}
		bands = append(bands, band)
	}

	mask, err := s.LoadSCLMask(dateDir)
	if err != nil {
		return nil, nil, err
	}
	return bands, mask, nil
}

// LoadMultiband reads a single multiband GeoTIFF whose band order is the
// given channel list followed by one trailing SCL band, the layout produced
// by the Sentinel Hub process API download.
func LoadMultiband(path string, order []Channel) ([]*Band, *Mask, error) {
	ds, err := openDataset(path)
	if err != nil {
		return nil, nil, err
	}
	defer ds.Close()

	if len(ds.Bands()) < len(order)+1 {
		return nil, nil, &CorruptRasterError{
			Path: path,
			Err:  fmt.Errorf("expected %d bands plus SCL, found %d", len(order), len(ds.Bands())),
		}
	}

	transform, err := ds.GeoTransform()
	if err != nil {
		return nil, nil, &CorruptRasterError{Path: path, Err: err}
	}
	width := ds.Structure().SizeX
	height := ds.Structure().SizeY

	bands := make([]*Band, 0, len(order))
	for i, channel := range order {
		data, err := readBandData(ds, i, nil)
		if err != nil {
			return nil, nil, &CorruptRasterError{Path: path, Err: err}
		}
		bands = append(bands, NewBand(channel, width, height, data, transform))
	}

	scl, err := readBandData(ds, len(order), nil)
	if err != nil {
		return nil, nil, &CorruptRasterError{Path: path, Err: err}
	}
	return bands, MaskFromSCL(width, height, scl), nil
}
