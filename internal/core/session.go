package core

import (
	"context"

	"github.com/metaschool/rtcrelay/internal/domain"
)

// SessionState tracks the lifecycle of a negotiation-engine session.
type SessionState int32

const (
	StateNew SessionState = iota
	StateNegotiating
	StateActive
	StateClosing
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateNegotiating:
		return "negotiating"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether the session can never negotiate again.
func (s SessionState) Terminal() bool {
	return s == StateClosing || s == StateFailed
}

// SessionDescription is the wire shape of an offer or answer.
type SessionDescription struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

// Session is one participant's negotiation-engine instance.
//
// Callback setters hold a single slot: installing a callback replaces the
// previous one, so repeated installation across renegotiations is idempotent.
// Callbacks are invoked synchronously by the engine adapter.
type Session interface {
	// State returns the current lifecycle state.
	State() SessionState
	// OnStateChange installs the state transition observer.
	OnStateChange(func(SessionState))
	// OnTrack installs the observer for newly received inbound tracks.
	OnTrack(func(Track))
	// AttachTrack adds an outbound track to the session's media description.
	// Attaching the same track twice corrupts the description; callers must
	// check Attached first.
	AttachTrack(Track) error
	// Attached returns the tracks currently attached as outbound streams.
	Attached() []Track
	// Exchange sets offer as the remote description, generates a local
	// answer, sets it, and returns it. Not safe to call concurrently for
	// the same session; the caller serializes.
	Exchange(ctx context.Context, offer SessionDescription) (SessionDescription, error)
	// Close releases the underlying transport.
	Close() error
}

// SessionFactory constructs a fresh session for a participant.
type SessionFactory func(user domain.UserID) (Session, error)
