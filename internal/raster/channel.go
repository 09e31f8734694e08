package raster

import "fmt"

// Channel identifies one Sentinel-2 spectral band.
type Channel int

const (
	ChannelUnknown Channel = iota
	B01                    // Coastal aerosol
	B02                    // Blue
	B03                    // Green
	B04                    // Red
	B05                    // Red Edge 1
	B06                    // Red Edge 2
	B07                    // Red Edge 3
	B08                    // NIR
	B8A                    // NIR Narrow
	B09                    // Water vapor
	B11                    // SWIR 1
	B12                    // SWIR 2
)

type channelInfo struct {
	ID         string
	Name       string
	Resolution float64 // native meters per pixel
	Wavelength string
}

var channelTable = map[Channel]channelInfo{
	B01: {"B01", "Coastal aerosol", 60, "443nm"},
	B02: {"B02", "Blue", 10, "490nm"},
	B03: {"B03", "Green", 10, "560nm"},
	B04: {"B04", "Red", 10, "665nm"},
	B05: {"B05", "Red Edge 1", 20, "705nm"},
	B06: {"B06", "Red Edge 2", 20, "740nm"},
	B07: {"B07", "Red Edge 3", 20, "783nm"},
	B08: {"B08", "NIR", 10, "842nm"},
	B8A: {"B8A", "NIR Narrow", 20, "865nm"},
	B09: {"B09", "Water vapor", 60, "945nm"},
	B11: {"B11", "SWIR 1", 20, "1610nm"},
	B12: {"B12", "SWIR 2", 20, "2190nm"},
}

// AllChannels lists every known channel in band order.
var AllChannels = []Channel{B01, B02, B03, B04, B05, B06, B07, B08, B8A, B09, B11, B12}

func (c Channel) String() string {
	info, ok := channelTable[c]
	if !ok {
		return "unknown"
	}
	return info.ID
}

// Label returns a human readable label, e.g. "B04 - Red (665nm)".
func (c Channel) Label() string {
	info, ok := channelTable[c]
	if !ok {
		return "unknown channel"
	}
	return fmt.Sprintf("%s - %s (%s)", info.ID, info.Name, info.Wavelength)
}

// NativeResolution returns the channel acquisition resolution in meters per pixel.
func (c Channel) NativeResolution() float64 {
	info, ok := channelTable[c]
	if !ok {
		return 0
	}
	return info.Resolution
}

// ParseChannel converts a band identifier such as "B04" or "B8A" to a Channel.
func ParseChannel(id string) (Channel, error) {
	for channel, info := range channelTable {
		if info.ID == id {
			return channel, nil
		}
	}
	return ChannelUnknown, fmt.Errorf("unknown band identifier %q", id)
}
