package raster

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseChannel(t *testing.T) {
	channel, err := ParseChannel("B04")
	require.NoError(t, err)
	require.Equal(t, B04, channel)

	channel, err = ParseChannel("B8A")
	require.NoError(t, err)
	require.Equal(t, B8A, channel)

	_, err = ParseChannel("B42")
	require.Error(t, err)
}

func TestChannelMetadata(t *testing.T) {
	require.Equal(t, "B04 - Red (665nm)", B04.Label())
	require.Equal(t, 10.0, B04.NativeResolution())
	require.Equal(t, 20.0, B8A.NativeResolution())
	require.Equal(t, 60.0, B01.NativeResolution())
	require.Equal(t, "B8A", B8A.String())
}

func TestAllChannelsKnown(t *testing.T) {
	require.Len(t, AllChannels, 12)
	for _, channel := range AllChannels {
		require.NotZero(t, channel.NativeResolution(), "channel %s has no resolution", channel)
	}
}
