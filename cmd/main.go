package main

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/common-nighthawk/go-figure"
	bannercolor "github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/classify"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/config"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/delivery"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/notification"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/properties"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/raster"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/sentinel"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/utils"
	"github.com/mimosa-watch/mimosa-bloom-api-poc/output"
)

func printBanner() {
	figure1 := figure.NewFigure("Mimosa", "isometric1", true)
	figure2 := figure.NewFigure("Watch", "isometric1", true)
	bannercolor.Yellow(figure1.String())
	bannercolor.Yellow(figure2.String())
	fmt.Println()
}

func dataDir() string {
	return properties.DataPath() + "/sentinel"
}

func loadConfig() (config.Config, error) {
	return config.Load(properties.RootPath() + "/config/pipeline.yaml")
}

func evaluateDate(reader *bufio.Reader) {
	fmt.Print("\033[34mEnter the date to be analyzed (YYYY-MM-DD): \033[0m")
	dateStr, _ := reader.ReadString('\n')
	date, err := time.Parse("2006-01-02", strings.TrimSpace(dateStr))
	if err != nil {
		fmt.Printf("\n\033[31mInvalid date: %s\033[0m\n", err.Error())
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("\n\033[31mError loading configuration: %s\033[0m\n", err.Error())
		return
	}

	result, err := delivery.EvaluateDate(cfg, dataDir(), date)
	if err != nil {
		fmt.Printf("\n\033[31mError evaluating date: %s\033[0m\n", err.Error())
		return
	}

	bloomCount := result.Classified.Count(classify.LabelBloom)
	validCount := bloomCount + result.Classified.Count(classify.LabelNoBloom)
	fmt.Printf("\033[32m%d of %d valid pixels show the bloom signature\033[0m\n", bloomCount, validCount)

	outputName := fmt.Sprintf("bloom_%s", date.Format("2006-01-02"))
	imagePath, err := output.CreateBloomOverlayImage(result, outputName)
	if err != nil {
		fmt.Printf("\n\033[31mError creating overlay image: %s\033[0m\n", err.Error())
		notification.SendDiscordErrorNotification(fmt.Sprintf("Mimosa Watch\n\nError creating overlay image: %s", err.Error()))
		return
	}
	fmt.Printf("\n\033[32mSuccessful analysis!\n Overlay image located at: %s\033[0m\n", imagePath)
}

func evaluateSeason() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("\n\033[31mError loading configuration: %s\033[0m\n", err.Error())
		return
	}

	dates, err := raster.DiscoverDates(dataDir())
	if err != nil {
		fmt.Printf("\n\033[31mError discovering dates: %s\033[0m\n", err.Error())
		return
	}
	if len(dates) == 0 {
		fmt.Printf("\n\033[31mNo Sentinel-2 acquisitions found in %s\033[0m\n", dataDir())
		return
	}

	season, err := delivery.EvaluateSeason(cfg, "mimosa", dataDir(), dates)
	if err != nil {
		fmt.Printf("\n\033[31mError evaluating season: %s\033[0m\n", err.Error())
		notification.SendDiscordErrorNotification(fmt.Sprintf("Mimosa Watch\n\nError evaluating season: %s", err.Error()))
		return
	}

	for _, summary := range season.Summaries {
		fmt.Printf("\033[32m%s: %d bloom pixels (%d valid of %d)\033[0m\n",
			summary.Date.Format("2006-01-02"), summary.BloomPixels, summary.ValidPixels, summary.TotalPixels)
	}
	fmt.Printf("\033[32m%d pixels bloomed at least once this season\033[0m\n", season.Progression.BloomedCount())

	last := season.Results[len(season.Results)-1]
	outputName := fmt.Sprintf("bloom_season_%s", last.Date.Format("2006-01-02"))

	geojsonPath, err := output.CreateProgressionGeoJson(last.Stack, season.Progression, outputName)
	if err != nil {
		fmt.Printf("\n\033[31mError creating GeoJSON: %s\033[0m\n", err.Error())
		return
	}
	csvPath, err := output.CreateProgressionCSV(last.Stack, season.Progression, outputName)
	if err != nil {
		fmt.Printf("\n\033[31mError creating CSV: %s\033[0m\n", err.Error())
		return
	}

	fmt.Printf("\n\033[32mSeason analysis complete!\n GeoJSON located at: %s\n CSV located at: %s\033[0m\n", geojsonPath, csvPath)
	notification.SendDiscordSuccessNotification(fmt.Sprintf("Mimosa Watch\n\nSeason analysis complete!\nGeoJSON: %s\nCSV: %s", geojsonPath, csvPath))
}

func downloadSeason(reader *bufio.Reader) {
	fmt.Print("\033[34mEnter the area name: \033[0m")
	areaStr, _ := reader.ReadString('\n')
	area := strings.TrimSpace(areaStr)
	if area == "" {
		fmt.Printf("\n\033[31mArea name is required\033[0m\n")
		return
	}

	fmt.Print("\033[34mEnter the bounding box (minLon minLat maxLon maxLat): \033[0m")
	bboxStr, _ := reader.ReadString('\n')
	var bbox [4]float64
	if _, err := fmt.Sscan(strings.TrimSpace(bboxStr), &bbox[0], &bbox[1], &bbox[2], &bbox[3]); err != nil {
		fmt.Printf("\n\033[31mInvalid bounding box: %s\033[0m\n", err.Error())
		return
	}

	fmt.Print("\033[34mEnter the start date (YYYY-MM-DD): \033[0m")
	startStr, _ := reader.ReadString('\n')
	startDate, err := time.Parse("2006-01-02", strings.TrimSpace(startStr))
	if err != nil {
		fmt.Printf("\n\033[31mInvalid start date: %s\033[0m\n", err.Error())
		return
	}
	fmt.Print("\033[34mEnter the end date (YYYY-MM-DD): \033[0m")
	endStr, _ := reader.ReadString('\n')
	endDate, err := time.Parse("2006-01-02", strings.TrimSpace(endStr))
	if err != nil {
		fmt.Printf("\n\033[31mInvalid end date: %s\033[0m\n", err.Error())
		return
	}

	paths, err := sentinel.GetImages(area, bbox, startDate, endDate, 5)
	if err != nil {
		fmt.Printf("\n\033[31mError downloading images: %s\033[0m\n", err.Error())
		notification.SendDiscordErrorNotification(fmt.Sprintf("Mimosa Watch\n\nError downloading images: %s", err.Error()))
		return
	}
	if len(paths) == 0 {
		fmt.Printf("\n\033[33mNo usable acquisitions between %s and %s\033[0m\n",
			startDate.Format("2006-01-02"), endDate.Format("2006-01-02"))
		return
	}
	fmt.Printf("\033[32mDownloaded %d acquisitions\033[0m\n", len(paths))

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("\n\033[31mError loading configuration: %s\033[0m\n", err.Error())
		return
	}

	for _, date := range utils.GetSortedKeys(paths, true) {
		result, err := delivery.EvaluateImage(cfg, paths[date], sentinel.DownloadOrder, date)
		if err != nil {
			fmt.Printf("\033[31m%s: %s\033[0m\n", date.Format("2006-01-02"), err.Error())
			continue
		}
		bloomCount := result.Classified.Count(classify.LabelBloom)
		validCount := bloomCount + result.Classified.Count(classify.LabelNoBloom)
		fmt.Printf("\033[32m%s: %d of %d valid pixels show the bloom signature\033[0m\n",
			date.Format("2006-01-02"), bloomCount, validCount)
	}
}

func listDates() {
	dates, err := raster.DiscoverDates(dataDir())
	if err != nil {
		fmt.Printf("\n\033[31mError reading data folder: %s\033[0m\n", err.Error())
		return
	}
	if len(dates) == 0 {
		fmt.Println("\033[33mNo Sentinel-2 L2A export directories found.\033[0m")
		fmt.Println("\033[33mPlace Copernicus Browser exports under data/sentinel.\033[0m")
		return
	}
	fmt.Println("\033[32m\nAvailable acquisition dates:\033[0m")
	for _, date := range dates {
		fmt.Printf("\033[32m- %s\033[0m\n", date.Format("2006-01-02"))
	}
}

func initCLI() {
	defer func() {
		if r := recover(); r != nil {
			pc, file, line, ok := runtime.Caller(3)
			var location string
			if ok {
				fn := runtime.FuncForPC(pc)
				location = fmt.Sprintf("%s:%d in %s", file, line, fn.Name())
			} else {
				location = "Unknown location"
			}

			fmt.Printf("\n\033[31mPANIC: %v\033[0m\n", r)
			fmt.Printf("\033[31mLocation: %s\033[0m\n", location)
			fmt.Printf("\033[31mExiting...\033[0m\n")

			stack := debug.Stack()
			errMessage := fmt.Sprintf("Mimosa Watch panic:\n\n%v\n\nLocation: %s\n\nStack trace:\n%s", r, location, stack)
			if err := notification.SendDiscordErrorNotification(errMessage); err != nil {
				fmt.Printf("\033[31mFailed to send notification: %s\033[0m\n", err.Error())
			}
		}
	}()
	printBanner()

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Println("\033[34m===================\033[0m")
		fmt.Println("\033[34m1. Evaluate one acquisition date\033[0m")
		fmt.Println("\033[34m2. Evaluate the full bloom season\033[0m")
		fmt.Println("\033[34m3. Download and evaluate acquisitions from Sentinel Hub\033[0m")
		fmt.Println("\033[34m4. List available acquisition dates\033[0m")
		fmt.Println("\033[34m5. Exit\033[0m")
		fmt.Println("\033[34mEnter your choice:\033[0m")

		var choice int
		_, err := fmt.Scan(&choice)
		if err != nil {
			fmt.Printf("\n\033[31mInvalid input. Please enter a number.\033[0m\n")
			fmt.Scanln()
			continue
		}

		switch choice {
		case 1:
			evaluateDate(reader)
		case 2:
			evaluateSeason()
		case 3:
			downloadSeason(reader)
		case 4:
			listDates()
		case 5:
			println("Exiting...")
			return
		default:
			println("Invalid choice. Please try again.")
		}
	}
}

func main() {
	err := godotenv.Load(".env")
	if err != nil {
		err = godotenv.Load("../.env")
		if err != nil {
			fmt.Println("\033[33mNo .env file found, relying on environment variables.\033[0m")
		}
	}

	initCLI()
}
