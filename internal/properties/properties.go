package properties

import "os"

func RootPath() string {
	return os.Getenv("ROOT_PATH")
}

func DataPath() string {
	return RootPath() + "/data"
}

type Color struct {
	R, G, B uint8
}

// ColorMap assigns overlay colors to classification labels.
var ColorMap = map[string]Color{
	"bloom":    {255, 215, 0},
	"no-bloom": {34, 139, 34},
	"invalid":  {128, 128, 128},
}

func DiscordErrorNotificationUrl() string {
	return os.Getenv("DISCORD_ERROR_NOTIFICATION_URL")
}
func DiscordSuccessNotificationUrl() string {
	return os.Getenv("DISCORD_SUCCESS_NOTIFICATION_URL")
}
