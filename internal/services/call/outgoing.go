package call

import (
	"context"
	"fmt"
	"time"

	"nyx/internal/domain"
)

// StartCall tears down any current call, captures audio (and video when
// isVideo) and publishes an offer to partner. It returns once the offer is
// published; the session moves to connected when the answer arrives.
func (m *Manager) StartCall(ctx context.Context, partner domain.UserID, partnerName string, isVideo bool) error {
	var (
		g    uint64
		id   domain.CallID
		prev domain.CallID
		err  error
	)
	if lerr := m.onLoop(func() {
		if m.isBlocked(partner) {
			if !m.session.Active() {
				m.fail(MsgBlocked)
			}
			err = fmt.Errorf("call %s: %w", partner, domain.ErrBlocked)
			return
		}
		prev = m.callID
		m.cleanup()
		g, id = m.gen, m.store.NewCallID()
		m.callID = id
	}); lerr != nil {
		return lerr
	}
	if err != nil {
		return err
	}
	if prev != "" {
		m.deleteRecord(prev)
	}

	callType := domain.CallAudio
	if isVideo {
		callType = domain.CallVideo
	}
	stream, derr := m.devices.GetUserMedia(ctx, domain.Constraints{Audio: true, Video: isVideo})

	var offer domain.SessionDescription
	owned := false
	lerr := m.onLoop(func() {
		if m.gen != g {
			err = ErrCallSuperseded
			return
		}
		if derr != nil {
			// Nothing has been written yet.
			m.callID = ""
			m.fail(MsgDevices)
			err = fmt.Errorf("%w: %w", domain.ErrDeviceAcquisition, derr)
			return
		}
		owned = true
		if err = m.attach(g, stream, domain.CallerCandidates); err != nil {
			m.abort(MsgStartFailed)
			m.callID = ""
			return
		}

		s := domain.IdleSession()
		s.Status = domain.CallOutgoing
		s.PartnerID = partner
		s.PartnerName = partnerName
		s.CallType = callType
		s.IsVideoOff = !isVideo
		s.LocalTracks = trackInfos(m.stream)
		m.setSession(s)

		if offer, err = m.pc.CreateOffer(); err == nil {
			err = m.pc.SetLocalDescription(offer)
		}
		if err != nil {
			m.abort(MsgStartFailed)
			m.callID = ""
			err = fmt.Errorf("%w: offer: %w", domain.ErrTransportFailed, err)
		}
	})
	if lerr != nil {
		err = lerr
	}
	if !owned && stream != nil {
		stream.Stop()
	}
	if err != nil {
		return err
	}

	rec := domain.CallRecord{
		ID:       id,
		CallerID: m.me,
		CalleeID: partner,
		CallType: callType,
		Offer:    offer,
	}
	if err := m.store.CreateCall(ctx, rec); err != nil {
		m.postFor(g, func() { m.abort(MsgStartFailed) })
		return fmt.Errorf("%w: create call: %w", domain.ErrRemoteUnavailable, err)
	}
	m.log.Infof("call %s: offer sent to %s", id, partner)

	subs, err := m.watchOutgoing(ctx, g, id)
	if err != nil {
		m.postFor(g, func() { m.abort(MsgStartFailed) })
		return fmt.Errorf("%w: watch call: %w", domain.ErrRemoteUnavailable, err)
	}

	err = m.adopt(g, subs, func() {
		m.recordReady = true
		m.flushOutbound()
		if m.opts.RingTimeout > 0 {
			m.after(m.opts.RingTimeout, m.onRingTimeout)
		}
	})
	if err != nil {
		// The record may have been written after a hang-up already tried
		// to delete it.
		m.deleteRecord(id)
		return err
	}
	return nil
}

func (m *Manager) watchOutgoing(ctx context.Context, g uint64, id domain.CallID) ([]domain.Unsubscribe, error) {
	unsubCall, err := m.store.WatchCall(ctx, id, func(c domain.CallChange) {
		m.postFor(g, func() { m.onOutgoingChange(c) })
	})
	if err != nil {
		return nil, err
	}
	unsubCand, err := m.store.WatchCandidates(ctx, id, domain.AnswerCandidates, func(c domain.CandidateChange) {
		m.postFor(g, func() { m.onCandidateChange(c) })
	})
	if err != nil {
		unsubCall()
		return nil, err
	}
	return []domain.Unsubscribe{unsubCall, unsubCand}, nil
}

func (m *Manager) onOutgoingChange(c domain.CallChange) {
	switch {
	case c.Kind == domain.ChangeRemoved:
		m.log.Infof("call %s: record removed by partner", m.callID)
		m.cleanup()

	case c.Kind == domain.ChangeLost:
		m.log.Warningf("call %s: %s", m.callID, MsgSignalingLost)
		m.abort(MsgSignalingLost)

	case c.Record.Status == domain.RecordRejected:
		if m.session.Status == domain.CallError {
			return
		}
		m.log.Infof("call %s: declined", m.callID)
		m.fail(MsgDeclined)
		m.after(m.opts.DeclineDelay, m.cleanup)

	case c.Record.Answer != nil && !m.remoteSet:
		if err := m.applyRemote(*c.Record.Answer); err != nil {
			m.log.Warningf("call %s: apply answer: %v", m.callID, err)
			m.fail(MsgConnectFailed)
			return
		}
		s := m.session
		s.Status = domain.CallConnected
		s.CallStartTime = time.Now()
		m.setSession(s)
		m.log.Infof("call %s: connected", m.callID)
	}
}

func (m *Manager) onRingTimeout() {
	if m.session.Status != domain.CallOutgoing {
		return
	}
	id := m.callID
	m.log.Infof("call %s: no answer", id)
	m.cleanup()
	go m.deleteRecord(id)
}
