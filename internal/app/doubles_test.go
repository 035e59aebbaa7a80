package app

import (
	"context"
	"sync"

	"github.com/metaschool/rtcrelay/internal/core"
	"github.com/metaschool/rtcrelay/internal/domain"
)

// fakeTrack implements core.Track with a manually triggered end signal.
type fakeTrack struct {
	id   string
	kind string

	mu      sync.Mutex
	ended   bool
	onEnded []func()
}

func newFakeTrack(id string) *fakeTrack {
	return &fakeTrack{id: id, kind: "audio"}
}

func (t *fakeTrack) ID() string   { return t.id }
func (t *fakeTrack) Kind() string { return t.kind }

func (t *fakeTrack) OnEnded(fn func()) {
	t.mu.Lock()
	if t.ended {
		t.mu.Unlock()
		fn()
		return
	}
	t.onEnded = append(t.onEnded, fn)
	t.mu.Unlock()
}

// End simulates the underlying stream ending.
func (t *fakeTrack) End() {
	t.mu.Lock()
	if t.ended {
		t.mu.Unlock()
		return
	}
	t.ended = true
	fns := t.onEnded
	t.onEnded = nil
	t.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// fakeSession implements core.Session without a network stack. Exchange
// delivers the configured inbound tracks through the OnTrack callback, the
// way the engine surfaces tracks mid-negotiation.
type fakeSession struct {
	user domain.UserID

	mu       sync.Mutex
	state    core.SessionState
	onState  func(core.SessionState)
	onTrack  func(core.Track)
	attached []core.Track

	inbound     []core.Track
	answer      core.SessionDescription
	exchangeErr error
	exchangeFn  func() // runs inside Exchange, before returning
	waitCtx     bool   // Exchange blocks until ctx ends, like a stuck engine
	attachErr   error
	exchanges   int
	closed      bool
}

func newFakeSession(user domain.UserID) *fakeSession {
	return &fakeSession{
		user:   user,
		state:  core.StateNew,
		answer: core.SessionDescription{SDP: "v=0 answer", Type: "answer"},
	}
}

func (s *fakeSession) State() core.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState transitions the session and fires the state observer, as the
// engine adapter does.
func (s *fakeSession) SetState(next core.SessionState) {
	s.mu.Lock()
	s.state = next
	fn := s.onState
	s.mu.Unlock()
	if fn != nil {
		fn(next)
	}
}

// SetStateSilent changes the state without notifying the observer, modeling
// a transition whose callback has not been delivered yet.
func (s *fakeSession) SetStateSilent(next core.SessionState) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
}

func (s *fakeSession) OnStateChange(fn func(core.SessionState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = fn
}

func (s *fakeSession) OnTrack(fn func(core.Track)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTrack = fn
}

func (s *fakeSession) AttachTrack(t core.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attachErr != nil {
		return s.attachErr
	}
	s.attached = append(s.attached, t)
	return nil
}

func (s *fakeSession) Attached() []core.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Track, len(s.attached))
	copy(out, s.attached)
	return out
}

func (s *fakeSession) Exchange(ctx context.Context, offer core.SessionDescription) (core.SessionDescription, error) {
	s.mu.Lock()
	s.exchanges++
	inbound := s.inbound
	s.inbound = nil
	onTrack := s.onTrack
	fn := s.exchangeFn
	err := s.exchangeErr
	answer := s.answer
	waitCtx := s.waitCtx
	s.mu.Unlock()

	if waitCtx {
		<-ctx.Done()
		return core.SessionDescription{}, ctx.Err()
	}
	if fn != nil {
		fn()
	}
	for _, t := range inbound {
		if onTrack != nil {
			onTrack(t)
		}
	}
	if err != nil {
		return core.SessionDescription{}, err
	}
	return answer, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.SetState(core.StateClosing)
	return nil
}

func (s *fakeSession) SetWaitCtx(v bool) {
	s.mu.Lock()
	s.waitCtx = v
	s.mu.Unlock()
}

func (s *fakeSession) Exchanges() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exchanges
}

func (s *fakeSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeFactory builds fakeSessions and remembers them per user, in creation
// order.
type fakeFactory struct {
	mu       sync.Mutex
	sessions map[domain.UserID][]*fakeSession
	err      error
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{sessions: make(map[domain.UserID][]*fakeSession)}
}

func (f *fakeFactory) New(user domain.UserID) (core.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s := newFakeSession(user)
	f.sessions[user] = append(f.sessions[user], s)
	return s, nil
}

func (f *fakeFactory) Created(user domain.UserID) []*fakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[user]
}

func (f *fakeFactory) Latest(user domain.UserID) *fakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	ss := f.sessions[user]
	if len(ss) == 0 {
		return nil
	}
	return ss[len(ss)-1]
}
