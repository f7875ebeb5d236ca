package call

import (
	"context"
	"fmt"
	"time"

	"nyx/internal/domain"
)

// onIncoming handles a change to any record addressed to this client.
func (m *Manager) onIncoming(c domain.CallChange) {
	rec := c.Record
	switch c.Kind {
	case domain.ChangeAdded:
		if m.callID != "" || rec.Status == domain.RecordRejected || rec.Answer != nil {
			return
		}
		if m.isBlocked(rec.CallerID) {
			m.log.Debugf("ignoring call %s from blocked user", rec.ID)
			return
		}
		m.gen++
		g := m.gen
		m.callID = rec.ID
		callType := rec.CallType
		if callType == "" {
			callType = domain.CallVideo
		}
		go m.announce(g, rec, callType)

	case domain.ChangeRemoved:
		if rec.ID != "" && rec.ID == m.callID {
			m.log.Infof("call %s: record removed by partner", rec.ID)
			m.cleanup()
		}

	case domain.ChangeLost:
		m.log.Errorf("lost the incoming call watch; calls to %s will not ring", m.me)
	}
}

// announce resolves the caller's display name, follows the record and moves
// to incoming. The record watch lasts for the whole call.
func (m *Manager) announce(g uint64, rec domain.CallRecord, callType domain.CallType) {
	ctx, cancel := context.WithTimeout(context.Background(), bestEffortTimeout)
	defer cancel()

	name := UnknownCaller
	if m.dir != nil {
		p, ok, err := m.dir.Lookup(ctx, rec.CallerID)
		switch {
		case err != nil:
			m.log.Warningf("look up caller %s: %v", rec.CallerID, err)
		case ok && p.Name != "":
			name = p.Name
		}
	}

	ring := func() {
		s := domain.IdleSession()
		s.Status = domain.CallIncoming
		s.PartnerID = rec.CallerID
		s.PartnerName = name
		s.CallType = callType
		m.setSession(s)
		m.log.Infof("call %s: incoming from %s", rec.ID, rec.CallerID)
	}

	unsub, err := m.store.WatchCall(ctx, rec.ID, func(c domain.CallChange) {
		m.postFor(g, func() { m.onInboundChange(c) })
	})
	if err != nil {
		// The incoming watch still reports removal.
		m.log.Warningf("call %s: watch record: %v", rec.ID, err)
		m.postFor(g, ring)
		return
	}
	if err := m.adopt(g, []domain.Unsubscribe{unsub}, ring); err != nil {
		m.log.Debugf("call %s: %v", rec.ID, err)
	}
}

func (m *Manager) onInboundChange(c domain.CallChange) {
	switch c.Kind {
	case domain.ChangeRemoved:
		m.log.Infof("call %s: record removed by partner", m.callID)
		m.cleanup()
	case domain.ChangeLost:
		m.log.Warningf("call %s: %s", m.callID, MsgSignalingLost)
		m.abort(MsgSignalingLost)
	}
}

// AnswerCall accepts the incoming call, capturing video only when isVideo.
func (m *Manager) AnswerCall(ctx context.Context, isVideo bool) error {
	var (
		g   uint64
		id  domain.CallID
		err error
	)
	if lerr := m.onLoop(func() {
		if m.session.Status != domain.CallIncoming || m.callID == "" {
			err = domain.ErrNoActiveCall
			return
		}
		g, id = m.gen, m.callID
	}); lerr != nil {
		return lerr
	}
	if err != nil {
		return err
	}

	stream, derr := m.devices.GetUserMedia(ctx, domain.Constraints{Audio: true, Video: isVideo})

	owned := false
	lerr := m.onLoop(func() {
		if m.gen != g {
			err = ErrCallSuperseded
			return
		}
		if derr != nil {
			m.fail(MsgDevices)
			err = fmt.Errorf("%w: %w", domain.ErrDeviceAcquisition, derr)
			return
		}
		owned = true
		if err = m.attach(g, stream, domain.AnswerCandidates); err != nil {
			m.abort(MsgConnectFailed)
			return
		}
		m.recordReady = true
		s := m.session
		s.IsVideoOff = !isVideo
		s.LocalTracks = trackInfos(m.stream)
		m.setSession(s)
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

	rec, ok, gerr := m.store.GetCall(ctx, id)

	var answer domain.SessionDescription
	if lerr := m.onLoop(func() {
		if m.gen != g {
			err = ErrCallSuperseded
			return
		}
		if gerr != nil || !ok {
			m.abort(MsgConnectFailed)
			if gerr == nil {
				gerr = domain.ErrNotFound
			}
			err = fmt.Errorf("%w: read call: %w", domain.ErrRemoteUnavailable, gerr)
			return
		}
		if err = m.applyRemote(rec.Offer); err == nil {
			if answer, err = m.pc.CreateAnswer(); err == nil {
				err = m.pc.SetLocalDescription(answer)
			}
		}
		if err != nil {
			m.abort(MsgConnectFailed)
			err = fmt.Errorf("%w: answer: %w", domain.ErrTransportFailed, err)
		}
	}); lerr != nil {
		return lerr
	}
	if err != nil {
		return err
	}

	if err := m.store.UpdateCall(ctx, id, domain.CallUpdate{Answer: &answer}); err != nil {
		m.postFor(g, func() { m.abort(MsgConnectFailed) })
		return fmt.Errorf("%w: publish answer: %w", domain.ErrRemoteUnavailable, err)
	}

	unsub, err := m.store.WatchCandidates(ctx, id, domain.CallerCandidates, func(c domain.CandidateChange) {
		m.postFor(g, func() { m.onCandidateChange(c) })
	})
	if err != nil {
		m.postFor(g, func() { m.abort(MsgConnectFailed) })
		return fmt.Errorf("%w: watch candidates: %w", domain.ErrRemoteUnavailable, err)
	}

	return m.adopt(g, []domain.Unsubscribe{unsub}, func() {
		s := m.session
		s.Status = domain.CallConnected
		s.CallStartTime = time.Now()
		m.setSession(s)
		m.log.Infof("call %s: answered", id)
	})
}

// RejectCall marks the current call rejected, returns to idle and deletes
// the record shortly after so the caller can observe the rejection. Store
// failures are logged, not returned.
func (m *Manager) RejectCall(ctx context.Context) error {
	var id domain.CallID
	if err := m.onLoop(func() {
		id = m.callID
		m.cleanup()
	}); err != nil {
		return err
	}
	if id == "" {
		return nil
	}

	st := domain.RecordRejected
	if err := m.store.UpdateCall(ctx, id, domain.CallUpdate{Status: &st}); err != nil {
		m.log.Warningf("mark call %s rejected: %v", id, err)
		return nil
	}
	time.AfterFunc(m.opts.RejectDeleteDelay, func() { m.deleteRecord(id) })
	return nil
}

// HangUp returns to idle at once, then deletes the record. A failed delete
// is logged and does not undo the local teardown.
func (m *Manager) HangUp(ctx context.Context) error {
	var id domain.CallID
	if err := m.onLoop(func() {
		id = m.callID
		m.cleanup()
	}); err != nil {
		return err
	}
	if id == "" {
		return nil
	}
	if err := m.store.DeleteCall(ctx, id); err != nil {
		m.log.Warningf("delete call %s: %v", id, err)
	}
	return nil
}
