package store

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is a CredentialStore replacement that forgets everything on
// exit. It backs the "memory" store driver and tests.
type MemoryStore struct {
	mu         sync.Mutex
	credential string
	updatedAt  time.Time
}

// NewMemoryStore returns a store seeded with credential, which may be "".
func NewMemoryStore(credential string) *MemoryStore {
	m := &MemoryStore{}
	if credential = strings.TrimSpace(credential); credential != "" {
		m.credential = credential
		m.updatedAt = time.Now()
	}
	return m
}

func (m *MemoryStore) Load(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.credential, nil
}

func (m *MemoryStore) Save(_ context.Context, credential string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credential = strings.TrimSpace(credential)
	m.updatedAt = time.Now()
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credential = ""
	m.updatedAt = time.Time{}
	return nil
}

func (m *MemoryStore) Status(context.Context) (CredentialStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.credential == "" {
		return CredentialStatus{}, nil
	}
	return CredentialStatus{Set: true, UpdatedAt: m.updatedAt}, nil
}
