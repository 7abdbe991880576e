// Package repositories opens the client's local SQLite database and hands
// out the repositories built on it.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/hotelauth/internal/client/migrations"
	"github.com/dmitrijs2005/hotelauth/internal/client/repositories/keys"
	"github.com/dmitrijs2005/hotelauth/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/hotelauth/internal/common"
	"github.com/dmitrijs2005/hotelauth/internal/cryptox"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

type Repositories struct {
	DB       *sql.DB
	Metadata *metadata.SQLiteRepository
	Keys     *keys.SQLiteRepository
}

// gooseUp is a seam for tests.
var gooseUp = func(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// Open opens (creating if needed) the database at dsn and applies the
// embedded migrations. ":memory:" gives a private in-process database.
func Open(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One connection: SQLite has a single writer, and every ":memory:"
	// connection would otherwise see its own empty database.
	db.SetMaxOpenConns(1)

	if err := gooseUp(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate local database: %w", err)
	}

	return &Repositories{
		DB:       db,
		Metadata: metadata.NewSQLiteRepository(db),
		Keys:     keys.NewSQLiteRepository(db),
	}, nil
}

func (r *Repositories) Close() error {
	return r.DB.Close()
}

const (
	saltKey     = "device_key_salt"
	verifierKey = "device_key_verifier"
)

// ErrWrongPassphrase is returned by Unlock when the passphrase does not
// match the one the database was first unlocked with.
var ErrWrongPassphrase = errors.New("wrong device key passphrase")

// Unlock derives the sealing key from passphrase and installs it on the
// key repository. The first call on a database picks the salt and records
// a verifier; later calls must use the same passphrase.
func (r *Repositories) Unlock(ctx context.Context, passphrase []byte) error {
	salt, err := r.Metadata.Get(ctx, saltKey)
	if err != nil {
		return err
	}
	verifier, err := r.Metadata.Get(ctx, verifierKey)
	if err != nil {
		return err
	}

	if salt == nil {
		salt = common.GenerateRandByteArray(cryptox.SaltSize)
		key := cryptox.DeriveKey(passphrase, salt)
		if err := r.Metadata.Set(ctx, saltKey, salt); err != nil {
			return err
		}
		if err := r.Metadata.Set(ctx, verifierKey, cryptox.MakeVerifier(key)); err != nil {
			return err
		}
		return r.install(key)
	}

	key := cryptox.DeriveKey(passphrase, salt)
	if !cryptox.CheckVerifier(key, verifier) {
		return ErrWrongPassphrase
	}
	return r.install(key)
}

func (r *Repositories) install(key []byte) error {
	box, err := cryptox.NewBox(key)
	if err != nil {
		return err
	}
	r.Keys.SetSealer(box)
	return nil
}
