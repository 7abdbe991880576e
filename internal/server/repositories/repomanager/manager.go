package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/hotelauth/internal/dbx"
	"github.com/dmitrijs2005/hotelauth/internal/server/repositories/audit"
	"github.com/dmitrijs2005/hotelauth/internal/server/repositories/challenges"
	"github.com/dmitrijs2005/hotelauth/internal/server/repositories/passkeys"
	"github.com/dmitrijs2005/hotelauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/hotelauth/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a connection or a
// transaction, so services can compose several of them inside dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Passkeys(db dbx.DBTX) passkeys.Repository
	Challenges(db dbx.DBTX) challenges.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Audit(db dbx.DBTX) audit.Repository
}
