package call

import (
	"fmt"

	"github.com/pion/webrtc/v4"

	"nyx/internal/domain"
)

// PionTrack is implemented by local tracks that are backed by a pion track.
type PionTrack interface {
	TrackLocal() webrtc.TrackLocal
}

type pionPeer struct {
	pc *webrtc.PeerConnection
}

// NewPionFactory returns a PeerFactory creating pion peer connections with
// cfg and the default codecs.
func NewPionFactory(cfg webrtc.Configuration) PeerFactory {
	return func() (PeerConnection, error) {
		pc, err := webrtc.NewPeerConnection(cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrTransportFailed, err)
		}
		return &pionPeer{pc: pc}, nil
	}
}

// ICEConfiguration builds a pion configuration from STUN/TURN URLs.
func ICEConfiguration(urls []string) webrtc.Configuration {
	if len(urls) == 0 {
		return webrtc.Configuration{}
	}
	return webrtc.Configuration{
		ICEServers:           []webrtc.ICEServer{{URLs: urls}},
		ICECandidatePoolSize: 10,
	}
}

func (p *pionPeer) AddTrack(track domain.LocalTrack, streamID string) error {
	pt, ok := track.(PionTrack)
	if !ok {
		return fmt.Errorf("%w: track %s has no pion backing", domain.ErrTransportFailed, track.ID())
	}
	sender, err := p.pc.AddTrack(pt.TrackLocal())
	if err != nil {
		return err
	}
	// RTCP has to be read for interceptors such as NACK to run.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	return nil
}

func (p *pionPeer) CreateOffer() (domain.SessionDescription, error) {
	d, err := p.pc.CreateOffer(nil)
	if err != nil {
		return domain.SessionDescription{}, err
	}
	return fromPion(d), nil
}

func (p *pionPeer) CreateAnswer() (domain.SessionDescription, error) {
	d, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return domain.SessionDescription{}, err
	}
	return fromPion(d), nil
}

func (p *pionPeer) SetLocalDescription(desc domain.SessionDescription) error {
	return p.pc.SetLocalDescription(toPion(desc))
}

func (p *pionPeer) SetRemoteDescription(desc domain.SessionDescription) error {
	return p.pc.SetRemoteDescription(toPion(desc))
}

func (p *pionPeer) AddICECandidate(c domain.ICECandidate) error {
	return p.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	})
}

func (p *pionPeer) OnICECandidate(fn func(domain.ICECandidate)) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		// nil marks the end of gathering.
		if c == nil {
			return
		}
		init := c.ToJSON()
		fn(domain.ICECandidate{
			Candidate:        init.Candidate,
			SDPMid:           init.SDPMid,
			SDPMLineIndex:    init.SDPMLineIndex,
			UsernameFragment: init.UsernameFragment,
		})
	})
}

func (p *pionPeer) OnTrack(fn func(domain.TrackInfo)) {
	p.pc.OnTrack(func(t *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		kind := domain.TrackAudio
		if t.Kind() == webrtc.RTPCodecTypeVideo {
			kind = domain.TrackVideo
		}
		fn(domain.TrackInfo{ID: t.ID(), StreamID: t.StreamID(), Kind: kind, Enabled: true})

		// Nothing renders remote media yet; drain it so buffers don't fill.
		go func() {
			buf := make([]byte, 1500)
			for {
				if _, _, err := t.Read(buf); err != nil {
					return
				}
			}
		}()
	})
}

func (p *pionPeer) OnICEConnectionStateChange(fn func(string)) {
	p.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		fn(s.String())
	})
}

func (p *pionPeer) Close() error { return p.pc.Close() }

func fromPion(d webrtc.SessionDescription) domain.SessionDescription {
	return domain.SessionDescription{Type: domain.SDPType(d.Type.String()), SDP: d.SDP}
}

func toPion(d domain.SessionDescription) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.NewSDPType(string(d.Type)), SDP: d.SDP}
}
