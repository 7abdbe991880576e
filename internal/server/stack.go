package server

import (
	"database/sql"

	"github.com/dmitrijs2005/hotelauth/internal/logging"
	"github.com/dmitrijs2005/hotelauth/internal/server/config"
	"github.com/dmitrijs2005/hotelauth/internal/server/httpapi"
	"github.com/dmitrijs2005/hotelauth/internal/server/passkey"
	"github.com/dmitrijs2005/hotelauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/hotelauth/internal/server/services"
)

// Stack is the full set of services over one database.
type Stack struct {
	Audit      *services.AuditService
	Challenges *services.ChallengeService
	Ceremonies *services.CeremonyService
	Sessions   *services.SessionService
	Users      *services.UserService
	Passkeys   *services.PasskeyService
	Sweeper    *services.Sweeper
}

func NewStack(db *sql.DB, m repomanager.RepositoryManager, c *config.Config, l logging.Logger) *Stack {
	opts := []services.Option{services.WithLogger(l)}
	rp := passkey.ConfigFrom(c)

	st := &Stack{}
	st.Audit = services.NewAuditService(db, m, opts...)
	st.Challenges = services.NewChallengeService(db, m, rp, opts...)
	st.Ceremonies = services.NewCeremonyService(db, m, rp, st.Audit, opts...)
	st.Sessions = services.NewSessionService(db, m, c, st.Audit, opts...)
	st.Users = services.NewUserService(db, m, c, st.Sessions, st.Audit, opts...)
	st.Passkeys = services.NewPasskeyService(db, m, st.Audit, opts...)
	st.Sweeper = services.NewSweeper(db, m, opts...)
	return st
}

// HTTPServices adapts the stack to the REST handlers.
func (st *Stack) HTTPServices() httpapi.Services {
	return httpapi.Services{
		Users:      st.Users,
		Challenges: st.Challenges,
		Ceremonies: st.Ceremonies,
		Sessions:   st.Sessions,
		Passkeys:   st.Passkeys,
		Audit:      st.Audit,
	}
}
