package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/metaschool/rtcrelay/internal/domain"
)

// NextStatus reports the outcome of a bounded dequeue.
type NextStatus int

const (
	// NextEvent: an event was dequeued.
	NextEvent NextStatus = iota
	// NextKeepAlive: the wait expired; the caller should emit a keep-alive.
	NextKeepAlive
	// NextClosed: the subscription was cancelled or replaced, or the
	// caller's context ended. The stream is over.
	NextClosed
)

// Subscription is one (room, participant) message queue. FIFO, bounded.
type Subscription struct {
	bus  *EventBus
	room domain.RoomID
	user domain.UserID
	ch   chan domain.Event

	closeOnce sync.Once
}

// Next dequeues the next event, waiting at most wait. It never blocks
// indefinitely: a cancelled subscription or context ends the stream.
func (s *Subscription) Next(ctx context.Context, wait time.Duration) (domain.Event, NextStatus) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case ev, ok := <-s.ch:
		if !ok {
			return domain.Event{}, NextClosed
		}
		return ev, NextEvent
	case <-timer.C:
		return domain.Event{}, NextKeepAlive
	case <-ctx.Done():
		return domain.Event{}, NextClosed
	}
}

// Cancel removes the subscription from the bus and closes its queue. Safe to
// call more than once, and safe after the subscription was replaced: only the
// bus entry that still points at this instance is removed.
func (s *Subscription) Cancel() {
	s.bus.unsubscribe(s)
}

// EventBus is the room-scoped publish/subscribe hub. A room's subscriber map
// is deleted once empty; no dangling empty rooms.
type EventBus struct {
	queueSize int

	mu    sync.Mutex
	rooms map[domain.RoomID]map[domain.UserID]*Subscription
}

func NewEventBus(queueSize int) *EventBus {
	if queueSize <= 0 {
		queueSize = 32
	}
	return &EventBus{
		queueSize: queueSize,
		rooms:     make(map[domain.RoomID]map[domain.UserID]*Subscription),
	}
}

// Subscribe creates the (room, user) subscription, replacing and closing any
// prior one for the same pair so its reader unblocks. The SSE transport
// guarantees at most one active reader per pair in practice.
func (b *EventBus) Subscribe(room domain.RoomID, user domain.UserID) *Subscription {
	sub := &Subscription{
		bus:  b,
		room: room,
		user: user,
		ch:   make(chan domain.Event, b.queueSize),
	}

	b.mu.Lock()
	users, ok := b.rooms[room]
	if !ok {
		users = make(map[domain.UserID]*Subscription)
		b.rooms[room] = users
	}
	prev := users[user]
	users[user] = sub
	b.mu.Unlock()

	if prev != nil {
		prev.closeOnce.Do(func() { close(prev.ch) })
	}
	log.Info().
		Str("module", "app.eventbus").
		Str("room", string(room)).Str("user", string(user)).
		Msg("subscribed")
	return sub
}

// Broadcast enqueues ev onto every subscriber's queue in room except the
// excluded participant's. No-op for a room with no subscribers. FIFO per
// queue; a full queue drops the event for that subscriber.
func (b *EventBus) Broadcast(room domain.RoomID, ev domain.Event, exclude domain.UserID) {
	// Sends stay under the lock so a concurrent Subscribe cannot close a
	// queue mid-send. Sends are non-blocking, so the lock is held briefly.
	b.mu.Lock()
	defer b.mu.Unlock()
	for user, sub := range b.rooms[room] {
		if user == exclude {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			log.Warn().
				Str("module", "app.eventbus").
				Str("room", string(room)).Str("user", string(user)).
				Str("type", ev.Type).
				Msg("subscriber queue full, dropping event")
		}
	}
}

func (b *EventBus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	users, ok := b.rooms[sub.room]
	if ok && users[sub.user] == sub {
		delete(users, sub.user)
		if len(users) == 0 {
			delete(b.rooms, sub.room)
		}
	}
	b.mu.Unlock()

	sub.closeOnce.Do(func() { close(sub.ch) })
	log.Info().
		Str("module", "app.eventbus").
		Str("room", string(sub.room)).Str("user", string(sub.user)).
		Msg("unsubscribed")
}

// Subscribers reports the current subscriber count for room.
func (b *EventBus) Subscribers(room domain.RoomID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rooms[room])
}
