// ABOUTME: In-memory repository implementations for tests and fresh-instance isolation
// ABOUTME: Includes an in-memory keyring that can simulate an unavailable secure store

package repository

import (
	"context"
	"errors"
	"sync"

	"marketplace-client/models"
)

// InMemoryTokenRepository implements TokenRepository without I/O.
type InMemoryTokenRepository struct {
	mu     sync.RWMutex
	tokens *models.TokenPair

	// FailReads and FailWrites force storage errors for failure-path tests.
	FailReads  bool
	FailWrites bool
}

func NewInMemoryTokenRepository() *InMemoryTokenRepository {
	return &InMemoryTokenRepository{}
}

func (r *InMemoryTokenRepository) Read(ctx context.Context) (*models.TokenPair, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.FailReads {
		return nil, errors.New("simulated token read failure")
	}
	if r.tokens == nil {
		return nil, ErrTokenNotFound
	}
	copied := *r.tokens
	return &copied, nil
}

func (r *InMemoryTokenRepository) Write(ctx context.Context, tokens *models.TokenPair) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailWrites {
		return errors.New("simulated token write failure")
	}
	copied := *tokens
	r.tokens = &copied
	return nil
}

func (r *InMemoryTokenRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens = nil
	return nil
}

// InMemorySessionDataRepository implements SessionDataRepository without I/O.
type InMemorySessionDataRepository struct {
	mu     sync.RWMutex
	record *IdentityRecord

	FailReads  bool
	FailWrites bool
}

func NewInMemorySessionDataRepository() *InMemorySessionDataRepository {
	return &InMemorySessionDataRepository{}
}

func (r *InMemorySessionDataRepository) Read(ctx context.Context) (*IdentityRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.FailReads {
		return nil, errors.New("simulated session data read failure")
	}
	if r.record == nil {
		return nil, ErrSessionDataNotFound
	}
	copied := *r.record
	return &copied, nil
}

func (r *InMemorySessionDataRepository) Write(ctx context.Context, record *IdentityRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailWrites {
		return errors.New("simulated session data write failure")
	}
	copied := *record
	r.record = &copied
	return nil
}

func (r *InMemorySessionDataRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.record = nil
	return nil
}

// InMemoryKeyring implements Keyring in memory. Unavailable simulates a
// platform without a secure store: every call fails.
type InMemoryKeyring struct {
	mu          sync.RWMutex
	entries     map[string]string
	Unavailable bool
}

func NewInMemoryKeyring() *InMemoryKeyring {
	return &InMemoryKeyring{entries: make(map[string]string)}
}

func (k *InMemoryKeyring) Set(service, user, password string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.Unavailable {
		return ErrKeyringUnavailable
	}
	k.entries[service+"/"+user] = password
	return nil
}

func (k *InMemoryKeyring) Get(service, user string) (string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.Unavailable {
		return "", ErrKeyringUnavailable
	}
	secret, ok := k.entries[service+"/"+user]
	if !ok {
		return "", ErrKeyringEntryNotFound
	}
	return secret, nil
}

func (k *InMemoryKeyring) Delete(service, user string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.Unavailable {
		return ErrKeyringUnavailable
	}
	delete(k.entries, service+"/"+user)
	return nil
}

// Len reports how many entries the keyring holds, for assertions.
func (k *InMemoryKeyring) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.entries)
}
