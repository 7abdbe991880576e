package platform

import (
	"bytes"
	"context"
	"sync"

	"github.com/dmitrijs2005/hotelauth/internal/client/models"
)

// KeyStore persists device keys for the software authenticator.
// Get returns (nil, nil) when the credential is unknown.
type KeyStore interface {
	Save(ctx context.Context, key *models.DeviceKey) error
	Get(ctx context.Context, credentialID []byte) (*models.DeviceKey, error)
	ListByRP(ctx context.Context, rpID string) ([]*models.DeviceKey, error)
	UpdateCounter(ctx context.Context, credentialID []byte, counter uint32) error
}

// MemoryKeyStore keeps keys in process memory.
type MemoryKeyStore struct {
	mu   sync.Mutex
	keys []*models.DeviceKey
}

func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{}
}

func (m *MemoryKeyStore) Save(_ context.Context, key *models.DeviceKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *key
	m.keys = append(m.keys, &cp)
	return nil
}

func (m *MemoryKeyStore) Get(_ context.Context, credentialID []byte) (*models.DeviceKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.keys {
		if bytes.Equal(k.CredentialID, credentialID) {
			cp := *k
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryKeyStore) ListByRP(_ context.Context, rpID string) ([]*models.DeviceKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.DeviceKey
	for _, k := range m.keys {
		if k.RPID == rpID {
			cp := *k
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryKeyStore) UpdateCounter(_ context.Context, credentialID []byte, counter uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.keys {
		if bytes.Equal(k.CredentialID, credentialID) {
			k.Counter = counter
		}
	}
	return nil
}
