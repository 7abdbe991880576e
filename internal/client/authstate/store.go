// Package authstate holds the client's authentication state: the current
// session, if any, and the subscribers that want to know when it ends.
//
// Store is the single writer of that state. Clear moves it from
// authenticated to unauthenticated and notifies each subscriber once per
// such transition; clearing an already empty store notifies nobody.
package authstate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/hotelauth/internal/client/models"
	"github.com/dmitrijs2005/hotelauth/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/hotelauth/internal/logging"
)

const sessionKey = "session"

// Event is delivered to subscribers.
type Event int

const (
	// Unauthenticated: the session ended (logout, revoked or expired
	// token, password change elsewhere).
	Unauthenticated Event = iota + 1
)

func (e Event) String() string {
	if e == Unauthenticated {
		return "unauthenticated"
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

type Store struct {
	mu      sync.Mutex
	session *models.Session
	subs    map[int]chan Event
	nextSub int
	repo    metadata.Repository
	log     logging.Logger
}

type Option func(*Store)

// WithRepository persists the session so it survives restarts.
func WithRepository(r metadata.Repository) Option {
	return func(s *Store) { s.repo = r }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.log = l }
}

func New(opts ...Option) *Store {
	s := &Store{subs: map[int]chan Event{}, log: logging.Nop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load restores a persisted session. A missing record leaves the store
// unauthenticated; an unreadable one is dropped.
func (s *Store) Load(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	raw, err := s.repo.Get(ctx, sessionKey)
	if err != nil {
		return err
	}
	if raw == nil {
		return nil
	}

	var sess models.Session
	if err := json.Unmarshal(raw, &sess); err != nil || sess.AccessToken == "" {
		s.log.Warn(ctx, "discarding unreadable stored session")
		return s.repo.Delete(ctx, sessionKey)
	}

	s.mu.Lock()
	s.session = &sess
	s.mu.Unlock()
	return nil
}

// Set replaces the session, for a new login or a refresh.
func (s *Store) Set(ctx context.Context, sess *models.Session) error {
	if sess == nil || sess.AccessToken == "" {
		return fmt.Errorf("authstate: session without access token")
	}
	cp := *sess

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(ctx, &cp); err != nil {
		return err
	}
	s.session = &cp
	return nil
}

// Session returns a copy of the current session.
func (s *Store) Session() (models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return models.Session{}, false
	}
	return *s.session, true
}

func (s *Store) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return ""
	}
	return s.session.AccessToken
}

func (s *Store) IsAuthenticated() bool {
	return s.AccessToken() != ""
}

// Clear ends the session. It reports whether there was one; only then are
// subscribers notified. A persistence failure is logged, the in-memory
// state is cleared regardless.
func (s *Store) Clear(ctx context.Context) bool {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return false
	}
	s.session = nil
	if err := s.persist(ctx, nil); err != nil {
		s.log.Error(ctx, "failed to remove stored session", "error", err)
	}
	for _, ch := range s.subs {
		select {
		case ch <- Unauthenticated:
		default:
			// The subscriber has not drained the previous event yet; it
			// already knows the session is gone.
		}
	}
	s.mu.Unlock()

	s.log.Info(ctx, "session cleared")
	return true
}

// Subscribe returns a channel that receives Unauthenticated events and a
// function that stops the subscription and closes the channel.
func (s *Store) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// persist must be called with mu held.
func (s *Store) persist(ctx context.Context, sess *models.Session) error {
	if s.repo == nil {
		return nil
	}
	if sess == nil {
		return s.repo.Delete(ctx, sessionKey)
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := s.repo.Set(ctx, sessionKey, raw); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}
