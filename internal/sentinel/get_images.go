// Package sentinel downloads Sentinel-2 L2A acquisitions from the
// Copernicus Sentinel Hub process API and caches them on disk. It is the
// I/O collaborator in front of the raster loader and the only place the
// pipeline blocks on the network.
package sentinel

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/properties"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/raster"
)

// DownloadOrder is the band layout of downloaded multiband TIFFs, matching
// the evalscript: the twelve reflectance channels in table order, with the
// scene classification layer appended as the final band.
var DownloadOrder = raster.AllChannels

func imagesDir(area string) string {
	return filepath.Join(properties.DataPath(), "images", area)
}

func invalidImagesFile() string {
	return filepath.Join(properties.DataPath(), "images", "invalid_images.json")
}

func loadInvalidImages() []string {
	var invalid []string
	data, err := os.ReadFile(invalidImagesFile())
	if err != nil {
		return nil
	}
	_ = json.Unmarshal(data, &invalid)
	return invalid
}

func saveInvalidImages(invalid []string) {
	existing := loadInvalidImages()
	seen := make(map[string]struct{}, len(existing)+len(invalid))
	merged := make([]string, 0, len(existing)+len(invalid))
	for _, name := range append(existing, invalid...) {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		merged = append(merged, name)
	}
	data, _ := json.Marshal(merged)
	_ = os.WriteFile(invalidImagesFile(), data, 0644)
}

func contains(slice []string, item string) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// GetImage returns the local path of the acquisition TIFF for one date,
// downloading and caching it when absent. An empty path with nil error means
// the date is known to have no usable acquisition.
func GetImage(area string, bbox [4]float64, date time.Time) (string, error) {
	imageName := fmt.Sprintf("%s_%s.tif", area, date.Format("2006-01-02"))
	if contains(loadInvalidImages(), imageName) {
		return "", nil
	}

	dir := imagesDir(area)
	path := filepath.Join(dir, imageName)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create images directory: %v", err)
	}

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(time.Hour*23 + time.Minute*59 + time.Second*59)

	imageBytes, err := requestImage(dayStart, dayEnd, bbox)
	if err != nil {
		return "", fmt.Errorf("error requesting image: %v", err)
	}
	if len(imageBytes) == 0 {
		saveInvalidImages([]string{imageName})
		return "", nil
	}

	if err := os.WriteFile(path, imageBytes, 0644); err != nil {
		return "", fmt.Errorf("failed to write image file: %v", err)
	}
	return path, nil
}

// GetImages fetches every date in [startDate, endDate] at the satellite
// revisit interval and returns the local path per date that produced data.
func GetImages(area string, bbox [4]float64, startDate, endDate time.Time, intervalDays int) (map[time.Time]string, error) {
	if intervalDays < 1 {
		intervalDays = 1
	}
	paths := make(map[time.Time]string)
	for current := startDate; !current.After(endDate); current = current.AddDate(0, 0, intervalDays) {
		path, err := GetImage(area, bbox, current)
		if err != nil {
			return nil, err
		}
		if path == "" {
			continue
		}
		paths[current] = path
	}
	return paths, nil
}
