package rtc

import (
	"errors"
	"io"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// RelayTrack forwards one inbound remote track to every peer connection it
// is attached to. A single TrackLocalStaticRTP fans out to all of its
// bindings, so the same RelayTrack instance is handed to every consumer and
// identity-based de-duplication holds across the registry and sessions.
type RelayTrack struct {
	src   *webrtc.TrackRemote
	local *webrtc.TrackLocalStaticRTP

	mu      sync.Mutex
	ended   bool
	onEnded []func()
}

func newRelayTrack(src *webrtc.TrackRemote) (*RelayTrack, error) {
	local, err := webrtc.NewTrackLocalStaticRTP(src.Codec().RTPCodecCapability, src.ID(), src.StreamID())
	if err != nil {
		return nil, err
	}
	return &RelayTrack{src: src, local: local}, nil
}

func (t *RelayTrack) ID() string   { return t.src.ID() }
func (t *RelayTrack) Kind() string { return t.src.Kind().String() }

// OnEnded registers fn to run once the source stream ends. Registration
// after the end invokes fn immediately.
func (t *RelayTrack) OnEnded(fn func()) {
	t.mu.Lock()
	if t.ended {
		t.mu.Unlock()
		fn()
		return
	}
	t.onEnded = append(t.onEnded, fn)
	t.mu.Unlock()
}

// pump copies RTP from the source track into the fan-out track until the
// source ends, then fires the end observers.
func (t *RelayTrack) pump() {
	logger := log.With().
		Str("module", "rtc.relay").
		Str("track_id", t.src.ID()).
		Str("kind", t.src.Kind().String()).
		Logger()

	for {
		pkt, _, err := t.src.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Error().Err(err).Msg("read RTP, stopping relay")
			}
			t.finish()
			return
		}
		if err := t.forward(pkt); err != nil {
			logger.Error().Err(err).Msg("write RTP, stopping relay")
			t.finish()
			return
		}
	}
}

// forward writes one packet to the fan-out track. ErrClosedPipe means no
// peer is bound yet; not an error.
func (t *RelayTrack) forward(pkt *rtp.Packet) error {
	if err := t.local.WriteRTP(pkt); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		return err
	}
	return nil
}

func (t *RelayTrack) finish() {
	t.mu.Lock()
	if t.ended {
		t.mu.Unlock()
		return
	}
	t.ended = true
	fns := t.onEnded
	t.onEnded = nil
	t.mu.Unlock()

	log.Info().
		Str("module", "rtc.relay").
		Str("track_id", t.src.ID()).
		Msg("track ended")
	for _, fn := range fns {
		fn()
	}
}
