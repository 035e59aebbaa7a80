package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/metaschool/rtcrelay/internal/core"
	"github.com/metaschool/rtcrelay/internal/domain"
)

// Conn is a participant's directory entry: the live session plus the
// negotiation mutex that serializes offer/answer exchanges on it. The same
// *Conn is returned for every Resolve of the same live session, so locking
// negMu serializes negotiation across callers.
type Conn struct {
	User    domain.UserID
	Session core.Session

	negMu sync.Mutex
}

// LockNegotiation takes the per-session negotiation lock. A second offer for
// the same participant queues behind the first instead of interleaving.
func (c *Conn) LockNegotiation()   { c.negMu.Lock() }
func (c *Conn) UnlockNegotiation() { c.negMu.Unlock() }

// Directory maps participant identity to their long-lived session. At most
// one session per participant exists at any time; terminal sessions are
// evicted and replaced on the next Resolve.
type Directory struct {
	factory core.SessionFactory

	mu    sync.Mutex
	conns map[domain.UserID]*Conn
}

func NewDirectory(factory core.SessionFactory) *Directory {
	return &Directory{
		factory: factory,
		conns:   make(map[domain.UserID]*Conn),
	}
}

// Resolve returns the existing entry for user when its session is still
// usable; otherwise it discards the stale entry and constructs a fresh
// session. Callers must not hold a *Conn across a Resolve that may have
// replaced it.
func (d *Directory) Resolve(user domain.UserID) (*Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.conns[user]; ok {
		if !c.Session.State().Terminal() {
			return c, nil
		}
		delete(d.conns, user)
		log.Info().
			Str("module", "app.directory").
			Str("user", string(user)).
			Str("state", c.Session.State().String()).
			Msg("discarding terminal session")
	}

	sess, err := d.factory(user)
	if err != nil {
		return nil, err
	}
	c := &Conn{User: user, Session: sess}
	d.conns[user] = c

	// Evict on terminal transition, but only while the entry still points
	// at this exact session; a replacement created after this one closed
	// must not be removed by the stale observer.
	sess.OnStateChange(func(s core.SessionState) {
		if !s.Terminal() {
			return
		}
		d.evict(user, sess)
	})

	log.Info().
		Str("module", "app.directory").
		Str("user", string(user)).
		Msg("created session")
	return c, nil
}

func (d *Directory) evict(user domain.UserID, sess core.Session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.conns[user]
	if !ok || c.Session != sess {
		return
	}
	delete(d.conns, user)
	log.Info().
		Str("module", "app.directory").
		Str("user", string(user)).
		Msg("evicted terminal session")
}

// Lookup returns the current entry for user, if any. Read-only; never
// constructs a session.
func (d *Directory) Lookup(user domain.UserID) (*Conn, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.conns[user]
	return c, ok
}

// CloseAll closes every live session's transport and clears the directory.
// Runs once at process shutdown.
func (d *Directory) CloseAll() {
	d.mu.Lock()
	conns := make([]*Conn, 0, len(d.conns))
	for _, c := range d.conns {
		conns = append(conns, c)
	}
	d.conns = make(map[domain.UserID]*Conn)
	d.mu.Unlock()

	for _, c := range conns {
		if err := c.Session.Close(); err != nil {
			log.Error().Err(err).
				Str("module", "app.directory").
				Str("user", string(c.User)).
				Msg("close session")
		}
	}
	log.Info().Str("module", "app.directory").Int("closed", len(conns)).Msg("all sessions closed")
}
