// Package memory is an in-memory implementation of every server repository.
// It backs the "memory://" development mode and the service tests. Writes
// are applied immediately and survive a rolled-back transaction; Postgres is
// the only store with real transactional guarantees.
package memory

import (
	"context"
	"database/sql"
	"sync"

	"github.com/dmitrijs2005/hotelauth/internal/dbx"
	"github.com/dmitrijs2005/hotelauth/internal/server/models"
	"github.com/dmitrijs2005/hotelauth/internal/server/repositories/audit"
	"github.com/dmitrijs2005/hotelauth/internal/server/repositories/challenges"
	"github.com/dmitrijs2005/hotelauth/internal/server/repositories/passkeys"
	"github.com/dmitrijs2005/hotelauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/hotelauth/internal/server/repositories/users"
	"github.com/google/uuid"
)

// Store holds every table. Fields are exported so tests can seed and inspect
// state directly; hold the mutex when other goroutines may use the store.
type Store struct {
	sync.Mutex

	Users      map[string]*models.User
	Authz      map[string]*models.Authorization
	Passkeys   map[string]*models.Passkey
	Challenges map[string]*models.Challenge
	Tokens     map[string]*models.RefreshToken
	Audit      []*models.AuditEntry

	// AuditErr, when set, makes every audit insert fail.
	AuditErr error
}

func NewStore() *Store {
	return &Store{
		Users:      map[string]*models.User{},
		Authz:      map[string]*models.Authorization{},
		Passkeys:   map[string]*models.Passkey{},
		Challenges: map[string]*models.Challenge{},
		Tokens:     map[string]*models.RefreshToken{},
	}
}

// AddUser inserts u as is, generating an id when empty.
func (s *Store) AddUser(u *models.User) *models.User {
	s.Lock()
	defer s.Unlock()
	return s.addUser(u)
}

func (s *Store) addUser(u *models.User) *models.User {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	s.Users[u.ID] = u
	return u
}

// AuditActions lists recorded actions in insertion order.
func (s *Store) AuditActions() []models.AuditAction {
	s.Lock()
	defer s.Unlock()
	out := make([]models.AuditAction, 0, len(s.Audit))
	for _, e := range s.Audit {
		out = append(out, e.Action)
	}
	return out
}

// LiveTokens counts unrevoked refresh tokens of userID.
func (s *Store) LiveTokens(userID string) int {
	s.Lock()
	defer s.Unlock()
	n := 0
	for _, t := range s.Tokens {
		if t.UserID == userID && !t.IsRevoked {
			n++
		}
	}
	return n
}

// Manager vends repositories over one Store regardless of the DBTX passed.
type Manager struct {
	Store *Store
}

func NewManager(s *Store) *Manager {
	if s == nil {
		s = NewStore()
	}
	return &Manager{Store: s}
}

func (m *Manager) RunMigrations(context.Context, *sql.DB) error        { return nil }
func (m *Manager) Users(dbx.DBTX) users.Repository                 { return userRepo{m.Store} }
func (m *Manager) Passkeys(dbx.DBTX) passkeys.Repository           { return passkeyRepo{m.Store} }
func (m *Manager) Challenges(dbx.DBTX) challenges.Repository       { return challengeRepo{m.Store} }
func (m *Manager) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return tokenRepo{m.Store} }
func (m *Manager) Audit(dbx.DBTX) audit.Repository                 { return auditRepo{m.Store} }
