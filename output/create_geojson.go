package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/airbusgeo/godal"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/bloom"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/properties"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/raster"
)

// geoToLonLat converts a stack grid coordinate to WGS84. Stacks in a
// projected CRS go through GDAL, already-geographic stacks pass through.
func geoToLonLat(stack *raster.Stack, x, y int) (float64, float64, error) {
	gx, gy := stack.PixelToGeo(x, y)
	if stack.EPSG == 0 || stack.EPSG == 4326 {
		return gx, gy, nil
	}

	srcSR, err := godal.NewSpatialRefFromEPSG(stack.EPSG)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create spatial ref for EPSG %d: %w", stack.EPSG, err)
	}
	defer srcSR.Close()
	dstSR, err := godal.NewSpatialRefFromEPSG(4326) // WGS84
	if err != nil {
		return 0, 0, err
	}
	defer dstSR.Close()
	tr, err := godal.NewTransform(srcSR, dstSR)
	if err != nil {
		return 0, 0, err
	}
	defer tr.Close()

	xs := []float64{gx}
	ys := []float64{gy}
	if err := tr.TransformEx(xs, ys, nil, nil); err != nil {
		return 0, 0, fmt.Errorf("transform error: %w", err)
	}
	return xs[0], ys[0], nil
}

// CreateProgressionGeoJson writes every bloomed pixel of a season as a point
// feature carrying its onset, peak and decline dates, ready for map overlay.
func CreateProgressionGeoJson(stack *raster.Stack, progression *bloom.Progression, outputName string) (string, error) {
	outputPath := filepath.Join(properties.DataPath(), "result", outputName+".geojson")
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create result directory: %v", err)
	}

	fc := geojson.NewFeatureCollection()
	for y := 0; y < progression.Height; y++ {
		for x := 0; x < progression.Width; x++ {
			pixel := progression.At(x, y)
			if !pixel.Bloomed {
				continue
			}
			lon, lat, err := geoToLonLat(stack, x, y)
			if err != nil {
				return "", err
			}

			feature := geojson.NewFeature(orb.Point{lon, lat})
			feature.Properties["x"] = x
			feature.Properties["y"] = y
			feature.Properties["onset"] = pixel.Onset.Format("2006-01-02")
			feature.Properties["peak"] = pixel.Peak.Format("2006-01-02")
			feature.Properties["peak_score"] = pixel.PeakScore
			if pixel.Declined {
				feature.Properties["decline"] = pixel.Decline.Format("2006-01-02")
			}
			fc.Append(feature)
		}
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create GeoJSON file: %v", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(fc); err != nil {
		return "", fmt.Errorf("failed to encode GeoJSON: %v", err)
	}
	return outputPath, nil
}
