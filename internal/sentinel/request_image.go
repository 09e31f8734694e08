package sentinel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

const processURL = "https://sh.dataspace.copernicus.eu/api/v1/process"

func calculatePixels(distance float64, resolution float64) int {
	pixels := distance * (111_000.0 / resolution)
	if pixels < 1 {
		return 1
	}
	return int(pixels)
}

// evalscript requests every reflectance band in table order plus the scene
// classification layer, all resampled server side to one grid.
const evalscript = `
    //VERSION=3
    function setup() {
      return {
        input: ["B01", "B02", "B03", "B04", "B05", "B06", "B07", "B08", "B8A", "B09", "B11", "B12", "SCL"],
        output: {
          id: "default",
          bands: 13,
          sampleType: SampleType.FLOAT32,
        },
      }
    }

    function evaluatePixel(sample) {
      return [sample.B01, sample.B02, sample.B03, sample.B04, sample.B05, sample.B06, sample.B07,
              sample.B08, sample.B8A, sample.B09, sample.B11, sample.B12, sample.SCL];
    }
  `

// requestImage fetches one multiband GeoTIFF for the bounding box and time
// range from the Sentinel Hub process API.
func requestImage(startDate, endDate time.Time, bbox [4]float64) ([]byte, error) {
	startDateStr := startDate.Format(time.RFC3339)
	endDateStr := endDate.Format(time.RFC3339)

	widthPixels := calculatePixels(bbox[2]-bbox[0], 10)
	heightPixels := calculatePixels(bbox[3]-bbox[1], 10)
	// Clamp to allowed range (1-2500)
	if widthPixels > 2500 {
		widthPixels = 2500
	}
	if heightPixels > 2500 {
		heightPixels = 2500
	}

	requestPayload := map[string]interface{}{
		"input": map[string]interface{}{
			"bounds": map[string]interface{}{
				"bbox": bbox[:],
			},
			"data": []map[string]interface{}{
				{
					"dataFilter": map[string]interface{}{
						"timeRange": map[string]string{
							"from": startDateStr,
							"to":   endDateStr,
						},
					},
					"type": "sentinel-2-l2a",
				},
			},
		},
		"output": map[string]interface{}{
			"width":  widthPixels,
			"height": heightPixels,
			"responses": []map[string]interface{}{
				{
					"identifier": "default",
					"format": map[string]string{
						"type": "image/tiff",
					},
				},
			},
		},
		"evalscript": evalscript,
		"mosaicking": "mostRecent",
	}

	requestBody, err := json.Marshal(requestPayload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %v", err)
	}

	clientID := os.Getenv("COPERNICUS_CLIENT_ID")
	clientSecret := os.Getenv("COPERNICUS_CLIENT_SECRET")
	tokenURL := os.Getenv("COPERNICUS_TOKEN_URL")
	if clientID == "" || clientSecret == "" || tokenURL == "" {
		return nil, fmt.Errorf("missing required environment variables: COPERNICUS_CLIENT_ID, COPERNICUS_CLIENT_SECRET, or COPERNICUS_TOKEN_URL")
	}

	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	httpClient := config.Client(context.Background())

	retries := 10
	var response *http.Response
	for attempt := 1; attempt <= retries; attempt++ {
		response, err = httpClient.Post(processURL, "application/json", bytes.NewBuffer(requestBody))
		if err == nil && response.StatusCode == http.StatusOK {
			break
		}

		if response != nil {
			body, _ := io.ReadAll(response.Body)
			bodyStr := string(body)
			response.Body.Close()
			response = nil
			if strings.Contains(bodyStr, "403") {
				return nil, fmt.Errorf("unauthorized access, check your client ID and secret")
			}
			fmt.Printf("Attempt %d failed: %s\n", attempt, bodyStr)
		} else {
			fmt.Printf("Attempt %d failed: %v\n", attempt, err)
		}

		time.Sleep(5 * time.Second)
	}
	if response == nil {
		return nil, fmt.Errorf("failed to request image after %d attempts: %v", retries, err)
	}
	defer response.Body.Close()

	content, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}
	return content, nil
}
