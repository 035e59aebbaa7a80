package rtc

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/metaschool/rtcrelay/internal/core"
	"github.com/metaschool/rtcrelay/internal/domain"
)

// session adapts one *webrtc.PeerConnection to core.Session.
type session struct {
	pc   *webrtc.PeerConnection
	user domain.UserID

	mu       sync.Mutex
	state    core.SessionState
	onState  func(core.SessionState)
	onTrack  func(core.Track)
	attached []core.Track
}

func newSession(pc *webrtc.PeerConnection, user domain.UserID) *session {
	s := &session{pc: pc, user: user, state: core.StateNew}

	pc.OnConnectionStateChange(func(cs webrtc.PeerConnectionState) {
		log.Info().
			Str("module", "rtc").
			Str("user", string(user)).
			Str("peer_state", cs.String()).
			Msg("peer connection state")
		s.setState(mapState(cs))
	})

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("user", string(user)).
			Str("kind", remote.Kind().String()).
			Str("track_id", remote.ID()).
			Str("stream_id", remote.StreamID()).
			Msg("remote track received")
		rt, err := newRelayTrack(remote)
		if err != nil {
			log.Error().Err(err).
				Str("module", "rtc").
				Str("user", string(user)).
				Msg("wrap remote track")
			return
		}
		s.mu.Lock()
		fn := s.onTrack
		s.mu.Unlock()
		if fn != nil {
			fn(rt)
		}
		go rt.pump()
	})

	return s
}

// mapState folds pion peer-connection states onto the session lifecycle.
// Disconnected is not terminal: ICE may still recover.
func mapState(cs webrtc.PeerConnectionState) core.SessionState {
	switch cs {
	case webrtc.PeerConnectionStateNew:
		return core.StateNew
	case webrtc.PeerConnectionStateConnecting, webrtc.PeerConnectionStateDisconnected:
		return core.StateNegotiating
	case webrtc.PeerConnectionStateConnected:
		return core.StateActive
	case webrtc.PeerConnectionStateClosed:
		return core.StateClosing
	default:
		return core.StateFailed
	}
}

func (s *session) setState(next core.SessionState) {
	s.mu.Lock()
	if s.state == next {
		s.mu.Unlock()
		return
	}
	s.state = next
	fn := s.onState
	s.mu.Unlock()
	if fn != nil {
		fn(next)
	}
}

func (s *session) State() core.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *session) OnStateChange(fn func(core.SessionState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = fn
}

func (s *session) OnTrack(fn func(core.Track)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTrack = fn
}

func (s *session) AttachTrack(t core.Track) error {
	rt, ok := t.(*RelayTrack)
	if !ok {
		return fmt.Errorf("attach: track %q is not a relay track", t.ID())
	}
	if _, err := s.pc.AddTrack(rt.local); err != nil {
		return fmt.Errorf("attach: %w", err)
	}
	s.mu.Lock()
	s.attached = append(s.attached, t)
	s.mu.Unlock()
	return nil
}

func (s *session) Attached() []core.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Track, len(s.attached))
	copy(out, s.attached)
	return out
}

// Exchange runs the offer/answer half-round: remote description in, local
// answer out, ICE gathering bounded by ctx. The caller holds the session's
// negotiation lock.
func (s *session) Exchange(ctx context.Context, offer core.SessionDescription) (core.SessionDescription, error) {
	sdpType := webrtc.NewSDPType(offer.Type)
	if sdpType != webrtc.SDPTypeOffer {
		return core.SessionDescription{}, fmt.Errorf("exchange: unexpected description type %q", offer.Type)
	}

	s.setState(core.StateNegotiating)

	if err := s.pc.SetRemoteDescription(webrtc.SessionDescription{Type: sdpType, SDP: offer.SDP}); err != nil {
		return core.SessionDescription{}, fmt.Errorf("set remote description: %w", err)
	}
	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return core.SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(s.pc)
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return core.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}
	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return core.SessionDescription{}, fmt.Errorf("ice gathering: %w", ctx.Err())
	}

	local := s.pc.LocalDescription()
	return core.SessionDescription{SDP: local.SDP, Type: local.Type.String()}, nil
}

func (s *session) Close() error {
	// pion fires the Closed state change; setState propagates it to the
	// directory's observer.
	return s.pc.Close()
}
