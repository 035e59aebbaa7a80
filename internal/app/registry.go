package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/metaschool/rtcrelay/internal/core"
	"github.com/metaschool/rtcrelay/internal/domain"
)

// TrackRegistry maps room -> participant -> inbound tracks. It answers
// "what must be relayed to participant X" for the orchestrator's outbound
// sync. One lock guards the whole registry; every mutation is atomic with
// respect to readers.
type TrackRegistry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]map[domain.UserID][]core.Track
}

func NewTrackRegistry() *TrackRegistry {
	return &TrackRegistry{
		rooms: make(map[domain.RoomID]map[domain.UserID][]core.Track),
	}
}

// Register adds track to the (room, user) slot, creating buckets as needed,
// and installs an end-of-stream observer that evicts all of the user's tracks
// in that room. Registering the same track instance again is a no-op; a track
// already owned by a different slot is refused.
func (r *TrackRegistry) Register(room domain.RoomID, user domain.UserID, track core.Track) {
	r.mu.Lock()
	owner, ownerUser, owned := r.ownerLocked(track)
	if owned {
		r.mu.Unlock()
		if owner == room && ownerUser == user {
			return
		}
		// A track belongs to exactly one slot. Two owners means the
		// engine adapter handed the same track to two sessions.
		log.Error().
			Str("module", "app.registry").
			Str("room", string(room)).Str("user", string(user)).
			Str("owner_room", string(owner)).Str("owner_user", string(ownerUser)).
			Str("track_id", track.ID()).
			Msg("track already owned by another slot, refusing registration")
		return
	}

	users, ok := r.rooms[room]
	if !ok {
		users = make(map[domain.UserID][]core.Track)
		r.rooms[room] = users
	}
	users[user] = append(users[user], track)
	r.mu.Unlock()

	log.Info().
		Str("module", "app.registry").
		Str("room", string(room)).Str("user", string(user)).
		Str("track_id", track.ID()).Str("kind", track.Kind()).
		Msg("track registered")

	// Any single stream ending evicts the whole participant's media in
	// that room. Coarse on purpose: a dropped stream is treated as the
	// participant's departure.
	track.OnEnded(func() {
		r.RemoveParticipantTracks(room, user)
	})
}

// RemoveParticipantTracks removes all tracks owned by user in room and
// deletes the participant bucket; the room entry goes too once empty.
func (r *TrackRegistry) RemoveParticipantTracks(room domain.RoomID, user domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users, ok := r.rooms[room]
	if !ok {
		return
	}
	if _, ok := users[user]; !ok {
		return
	}
	delete(users, user)
	if len(users) == 0 {
		delete(r.rooms, room)
	}
	log.Info().
		Str("module", "app.registry").
		Str("room", string(room)).Str("user", string(user)).
		Msg("participant tracks removed")
}

// RemoteTracks returns every track owned by every participant in room other
// than exclude. Empty slice for an unknown room.
func (r *TrackRegistry) RemoteTracks(room domain.RoomID, exclude domain.UserID) []core.Track {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []core.Track
	for user, tracks := range r.rooms[room] {
		if user == exclude {
			continue
		}
		out = append(out, tracks...)
	}
	return out
}

// RoomExists reports whether room still has at least one registered track.
func (r *TrackRegistry) RoomExists(room domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[room]
	return ok
}

func (r *TrackRegistry) ownerLocked(track core.Track) (domain.RoomID, domain.UserID, bool) {
	for room, users := range r.rooms {
		for user, tracks := range users {
			for _, t := range tracks {
				if t == track {
					return room, user, true
				}
			}
		}
	}
	return "", "", false
}
