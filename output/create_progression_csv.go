package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/bloom"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/properties"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/raster"
)

// ProgressionRow is one bloomed pixel in the season summary CSV.
type ProgressionRow struct {
	X         int     `csv:"x"`
	Y         int     `csv:"y"`
	Longitude float64 `csv:"longitude"`
	Latitude  float64 `csv:"latitude"`
	Onset     string  `csv:"onset"`
	Peak      string  `csv:"peak"`
	PeakScore float64 `csv:"peak_score"`
	Decline   string  `csv:"decline"`
}

// CreateProgressionCSV writes the per-pixel bloom progression to
// data/result as CSV. Pixels that never bloomed are omitted, the map
// representation keeps the explicit never-bloomed state.
func CreateProgressionCSV(stack *raster.Stack, progression *bloom.Progression, outputName string) (string, error) {
	outputPath := filepath.Join(properties.DataPath(), "result", outputName+".csv")
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create result directory: %v", err)
	}

	rows := make([]ProgressionRow, 0)
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
			row := ProgressionRow{
				X:         x,
				Y:         y,
				Longitude: lon,
				Latitude:  lat,
				Onset:     pixel.Onset.Format("2006-01-02"),
				Peak:      pixel.Peak.Format("2006-01-02"),
				PeakScore: pixel.PeakScore,
			}
			if pixel.Declined {
				row.Decline = pixel.Decline.Format("2006-01-02")
			}
			rows = append(rows, row)
		}
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	if err := gocsv.MarshalFile(&rows, file); err != nil {
		return "", fmt.Errorf("failed to write CSV: %v", err)
	}
	return outputPath, nil
}
