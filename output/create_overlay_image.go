package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"

	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/classify"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/delivery"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/properties"
)

// CreateBloomOverlayImage renders the true-color composite of one date with
// bloom pixels tinted and saves it as a PNG under data/result.
func CreateBloomOverlayImage(result *delivery.DateResult, outputName string) (string, error) {
	outputPath := filepath.Join(properties.DataPath(), "result", outputName+".png")
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create result directory: %v", err)
	}

	base, err := CreateRGBComposite(result.Stack, CompositePresets["True Color"])
	if err != nil {
		return "", fmt.Errorf("failed to render composite: %w", err)
	}

	dc := gg.NewContextForRGBA(base)
	bloomColor := properties.ColorMap["bloom"]
	invalidColor := properties.ColorMap["invalid"]
	for y := 0; y < result.Classified.Height; y++ {
		for x := 0; x < result.Classified.Width; x++ {
			switch result.Classified.At(x, y) {
			case classify.LabelBloom:
				dc.SetRGBA255(int(bloomColor.R), int(bloomColor.G), int(bloomColor.B), 255)
				dc.SetPixel(x, y)
			case classify.LabelInvalid:
				dc.SetRGBA255(int(invalidColor.R), int(invalidColor.G), int(invalidColor.B), 120)
				dc.SetPixel(x, y)
			}
		}
	}

	if err := dc.SavePNG(outputPath); err != nil {
		return "", fmt.Errorf("failed to save overlay image: %v", err)
	}
	return outputPath, nil
}
