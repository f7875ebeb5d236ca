package media_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"nyx/internal/domain"
	"nyx/internal/media"
	"nyx/internal/services/call"
)

func TestGetUserMedia(t *testing.T) {
	d := media.NewStaticDevices(nil)

	s, err := d.GetUserMedia(context.Background(), domain.Constraints{Audio: true, Video: true})
	require.NoError(t, err)
	defer s.Stop()

	tracks := s.Tracks()
	require.Len(t, tracks, 2)
	require.Equal(t, domain.TrackAudio, tracks[0].Kind())
	require.Equal(t, domain.TrackVideo, tracks[1].Kind())
	for _, tr := range tracks {
		require.True(t, tr.Enabled())
		pt, ok := tr.(call.PionTrack)
		require.True(t, ok)
		require.Equal(t, s.ID(), pt.TrackLocal().StreamID())
	}

	tracks[0].SetEnabled(false)
	require.False(t, tracks[0].Enabled())
}

func TestGetUserMediaAudioOnly(t *testing.T) {
	d := media.NewStaticDevices(nil)
	s, err := d.GetUserMedia(context.Background(), domain.Constraints{Audio: true})
	require.NoError(t, err)
	require.Len(t, s.Tracks(), 1)
	s.Stop()
	s.Stop()
}

func TestMissingDevice(t *testing.T) {
	d := media.NewStaticDevices(nil)
	d.HasVideo = false

	_, err := d.GetUserMedia(context.Background(), domain.Constraints{Audio: true, Video: true})
	require.ErrorIs(t, err, domain.ErrDeviceAcquisition)

	_, err = d.GetUserMedia(context.Background(), domain.Constraints{})
	require.ErrorIs(t, err, domain.ErrDeviceAcquisition)
}
