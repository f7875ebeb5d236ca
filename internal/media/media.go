// Package media provides local capture tracks backed by pion.
//
// There is no capture hardware behind these tracks. Audio tracks send Opus
// silence frames while enabled so the remote side sees a live stream; video
// tracks are negotiated but stay quiet.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"gopkg.in/op/go-logging.v1"

	"nyx/internal/domain"
)

const frameDuration = 20 * time.Millisecond

// opusSilence is a single 20ms Opus frame of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// StaticDevices implements domain.MediaDevices with synthetic tracks.
// Clearing HasAudio or HasVideo simulates a missing or denied device.
type StaticDevices struct {
	HasAudio bool
	HasVideo bool

	log *logging.Logger
}

// NewStaticDevices returns devices offering both audio and video.
func NewStaticDevices(log *logging.Logger) *StaticDevices {
	return &StaticDevices{HasAudio: true, HasVideo: true, log: log}
}

// GetUserMedia returns a stream with one track per requested kind.
func (d *StaticDevices) GetUserMedia(ctx context.Context, c domain.Constraints) (domain.LocalStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.Audio && !c.Video {
		return nil, fmt.Errorf("%w: no media requested", domain.ErrDeviceAcquisition)
	}
	if (c.Audio && !d.HasAudio) || (c.Video && !d.HasVideo) {
		return nil, fmt.Errorf("%w: device unavailable", domain.ErrDeviceAcquisition)
	}

	s := &Stream{id: uuid.NewString()}
	if c.Audio {
		t, err := newTrack(s.id, domain.TrackAudio, d.log)
		if err != nil {
			return nil, err
		}
		s.tracks = append(s.tracks, t)
	}
	if c.Video {
		t, err := newTrack(s.id, domain.TrackVideo, d.log)
		if err != nil {
			s.Stop()
			return nil, err
		}
		s.tracks = append(s.tracks, t)
	}
	return s, nil
}

// Stream is a set of Tracks sharing a stream id.
type Stream struct {
	id     string
	tracks []*Track
}

func (s *Stream) ID() string { return s.id }

func (s *Stream) Tracks() []domain.LocalTrack {
	out := make([]domain.LocalTrack, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t
	}
	return out
}

// Stop stops every track.
func (s *Stream) Stop() {
	for _, t := range s.tracks {
		t.Stop()
	}
}

// Track is a local track writing samples to a pion static sample track.
type Track struct {
	kind    domain.TrackKind
	local   *webrtc.TrackLocalStaticSample
	enabled atomic.Bool
	log     *logging.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
}

func newTrack(streamID string, kind domain.TrackKind, log *logging.Logger) (*Track, error) {
	codec := webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	if kind == domain.TrackVideo {
		codec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
	}
	local, err := webrtc.NewTrackLocalStaticSample(codec, string(kind)+"-"+uuid.NewString(), streamID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDeviceAcquisition, err)
	}

	t := &Track{kind: kind, local: local, log: log, stopCh: make(chan struct{})}
	t.enabled.Store(true)
	if kind == domain.TrackAudio {
		go t.pump(opusSilence)
	}
	return t, nil
}

func (t *Track) ID() string { return t.local.ID() }

func (t *Track) Kind() domain.TrackKind { return t.kind }

func (t *Track) Enabled() bool { return t.enabled.Load() }

// SetEnabled pauses or resumes sending without renegotiating.
func (t *Track) SetEnabled(on bool) { t.enabled.Store(on) }

// Stop ends the sample pump. The pion track stays usable by the sender until
// the peer connection closes.
func (t *Track) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
}

// TrackLocal exposes the pion track for AddTrack.
func (t *Track) TrackLocal() webrtc.TrackLocal { return t.local }

func (t *Track) pump(frame []byte) {
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()
	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
		}
		if !t.enabled.Load() {
			continue
		}
		err := t.local.WriteSample(pionmedia.Sample{Data: frame, Duration: frameDuration})
		if err != nil && !errors.Is(err, io.ErrClosedPipe) && t.log != nil {
			t.log.Debugf("track %s: write sample: %v", t.ID(), err)
		}
	}
}

var _ domain.MediaDevices = (*StaticDevices)(nil)
