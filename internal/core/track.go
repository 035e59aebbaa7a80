package core

// Track is one inbound media stream owned by exactly one (room, participant)
// slot at a time. Implementations must be comparable by identity (pointer
// receivers), since the registry and the outbound sync de-duplicate on it.
type Track interface {
	// ID identifies the stream within its owning session.
	ID() string
	// Kind is the media kind, e.g. "audio" or "video".
	Kind() string
	// OnEnded registers an observer invoked exactly once when the
	// underlying stream ends. Registering after the end invokes fn
	// immediately.
	OnEnded(fn func())
}
