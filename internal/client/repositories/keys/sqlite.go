// Package keys persists the software authenticator's private keys in the
// client's local database. SQLiteRepository satisfies platform.KeyStore.
//
// With a Sealer installed private keys are stored sealed. Keys written
// before sealing was enabled stay readable as they are.
package keys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/hotelauth/internal/client/models"
	"github.com/dmitrijs2005/hotelauth/internal/dbx"
)

// timeLayout has a fixed width so that created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// sealedTag prefixes sealed private keys. PKCS#8 DER always starts with
// 0x30, so plain keys never carry it.
const sealedTag = 0x01

// ErrLocked is returned when a sealed key is read without a Sealer.
var ErrLocked = errors.New("device keys are sealed; a passphrase is required")

// Sealer encrypts private keys at rest. *cryptox.Box satisfies it.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

type SQLiteRepository struct {
	db     dbx.DBTX
	sealer Sealer
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// SetSealer makes later saves seal private keys and lets reads open them.
func (r *SQLiteRepository) SetSealer(s Sealer) {
	r.sealer = s
}

func (r *SQLiteRepository) seal(der []byte) ([]byte, error) {
	if r.sealer == nil {
		return der, nil
	}
	sealed, err := r.sealer.Seal(der)
	if err != nil {
		return nil, err
	}
	return append([]byte{sealedTag}, sealed...), nil
}

func (r *SQLiteRepository) open(stored []byte) ([]byte, error) {
	if len(stored) == 0 || stored[0] != sealedTag {
		return stored, nil
	}
	if r.sealer == nil {
		return nil, ErrLocked
	}
	return r.sealer.Open(stored[1:])
}

func (r *SQLiteRepository) Save(ctx context.Context, key *models.DeviceKey) error {
	stored, err := r.seal(key.PrivateKey)
	if err != nil {
		return fmt.Errorf("failed to seal device key: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO device_keys (credential_id, rp_id, user_handle, username, private_key, counter, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, key.CredentialID, key.RPID, key.UserHandle, key.Username, stored, key.Counter, key.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to save device key: %w", err)
	}
	return nil
}

// Get returns (nil, nil) when credentialID is unknown.
func (r *SQLiteRepository) Get(ctx context.Context, credentialID []byte) (*models.DeviceKey, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT credential_id, rp_id, user_handle, username, private_key, counter, created_at
		FROM device_keys WHERE credential_id = ?
	`, credentialID)

	k, err := r.scanKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device key: %w", err)
	}
	return k, nil
}

func (r *SQLiteRepository) ListByRP(ctx context.Context, rpID string) ([]*models.DeviceKey, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT credential_id, rp_id, user_handle, username, private_key, counter, created_at
		FROM device_keys WHERE rp_id = ? ORDER BY created_at
	`, rpID)
	if err != nil {
		return nil, fmt.Errorf("failed to list device keys: %w", err)
	}
	defer rows.Close()

	var out []*models.DeviceKey
	for rows.Next() {
		k, err := r.scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device key: %w", err)
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate device keys: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateCounter(ctx context.Context, credentialID []byte, counter uint32) error {
	_, err := r.db.ExecContext(ctx, `UPDATE device_keys SET counter = ? WHERE credential_id = ?`, counter, credentialID)
	if err != nil {
		return fmt.Errorf("failed to update device key counter: %w", err)
	}
	return nil
}

// Delete forgets a key, e.g. after its passkey was removed on the server.
func (r *SQLiteRepository) Delete(ctx context.Context, credentialID []byte) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM device_keys WHERE credential_id = ?`, credentialID); err != nil {
		return fmt.Errorf("failed to delete device key: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepository) scanKey(s scanner) (*models.DeviceKey, error) {
	var (
		k       models.DeviceKey
		counter int64
		created string
	)
	if err := s.Scan(&k.CredentialID, &k.RPID, &k.UserHandle, &k.Username, &k.PrivateKey, &counter, &created); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if k.PrivateKey, err = r.open(k.PrivateKey); err != nil {
		return nil, err
	}
	k.Counter = uint32(counter)
	k.CreatedAt = t
	return &k, nil
}
