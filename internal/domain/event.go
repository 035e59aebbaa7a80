package domain

// Event is one notification delivered to room subscribers.
type Event struct {
	Type string `json:"type"`
	From UserID `json:"from"`
}

// EventRenegotiate tells every other participant in the room to re-run the
// offer/answer exchange so they pick up newly available tracks.
const EventRenegotiate = "renegotiate_needed"

func NewRenegotiateEvent(from UserID) Event {
	return Event{Type: EventRenegotiate, From: from}
}
