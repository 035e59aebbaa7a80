package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/metaschool/rtcrelay/internal/core"
	"github.com/metaschool/rtcrelay/internal/domain"
)

// ErrSessionClosed means the participant's session was already terminal when
// negotiation was attempted. Benign: the transport turns it into a normal
// end-of-session response so a departing peer can stop renegotiating.
var ErrSessionClosed = errors.New("session closed")

// ExchangeError wraps a negotiation engine failure. The session stays in the
// directory; the caller may retry.
type ExchangeError struct {
	User domain.UserID
	Err  error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("exchange failed for %s: %v", e.User, e.Err)
}

func (e *ExchangeError) Unwrap() error { return e.Err }

// Orchestrator drives one signaling exchange end-to-end: resolve the
// session, sync outbound tracks, wire inbound registration, run the
// offer/answer exchange, and broadcast the renegotiation notice.
type Orchestrator struct {
	Tracks *TrackRegistry
	Conns  *Directory
	Bus    *EventBus

	// NegotiationTimeout bounds the engine exchange so a stuck
	// negotiation releases the per-session lock instead of wedging the
	// participant forever.
	NegotiationTimeout time.Duration
}

// HandleOffer performs the full exchange for one inbound offer and returns
// the local answer. Concurrent offers for the same participant serialize on
// the session's negotiation lock.
func (o *Orchestrator) HandleOffer(
	ctx context.Context,
	room domain.RoomID,
	user domain.UserID,
	offer core.SessionDescription,
) (core.SessionDescription, error) {
	conn, err := o.Conns.Resolve(user)
	if err != nil {
		return core.SessionDescription{}, &ExchangeError{User: user, Err: err}
	}

	conn.LockNegotiation()
	defer conn.UnlockNegotiation()

	sess := conn.Session
	// The session can go terminal between Resolve and here; treat it as
	// the peer having left, not as a server fault.
	if sess.State().Terminal() {
		return core.SessionDescription{}, ErrSessionClosed
	}

	o.syncOutbound(room, user, sess)

	// Latest room wins: the single-slot handler rebinds inbound
	// registration to wherever the participant negotiated last.
	sess.OnTrack(func(t core.Track) {
		log.Info().
			Str("module", "app.orchestrator").
			Str("room", string(room)).Str("user", string(user)).
			Str("track_id", t.ID()).Str("kind", t.Kind()).
			Msg("inbound track received")
		o.Tracks.Register(room, user, t)
	})

	if o.NegotiationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.NegotiationTimeout)
		defer cancel()
	}
	answer, err := sess.Exchange(ctx, offer)
	if err != nil {
		if sess.State().Terminal() {
			return core.SessionDescription{}, ErrSessionClosed
		}
		return core.SessionDescription{}, &ExchangeError{User: user, Err: err}
	}

	o.Bus.Broadcast(room, domain.NewRenegotiateEvent(user), user)

	log.Info().
		Str("module", "app.orchestrator").
		Str("room", string(room)).Str("user", string(user)).
		Msg("exchange complete")
	return answer, nil
}

// syncOutbound attaches every other participant's registered track that is
// not yet on the session. Identity-based, so re-running the sync across
// repeated negotiations never attaches a track twice.
func (o *Orchestrator) syncOutbound(room domain.RoomID, user domain.UserID, sess core.Session) {
	attached := make(map[core.Track]struct{})
	for _, t := range sess.Attached() {
		attached[t] = struct{}{}
	}
	for _, t := range o.Tracks.RemoteTracks(room, user) {
		if _, ok := attached[t]; ok {
			continue
		}
		if err := sess.AttachTrack(t); err != nil {
			// Logged, not fatal: the exchange can still produce a
			// valid answer for the tracks that did attach.
			log.Error().Err(err).
				Str("module", "app.orchestrator").
				Str("room", string(room)).Str("user", string(user)).
				Str("track_id", t.ID()).
				Msg("attach outbound track")
			continue
		}
		log.Info().
			Str("module", "app.orchestrator").
			Str("room", string(room)).Str("user", string(user)).
			Str("track_id", t.ID()).Str("kind", t.Kind()).
			Msg("outbound track attached")
	}
}
