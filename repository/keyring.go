// ABOUTME: Thin abstraction over the OS credential store
// ABOUTME: Allows the secure token repository to be tested without a real keychain

package repository

import (
	"errors"

	keyring "github.com/zalando/go-keyring"
)

// Keyring is the secure key-value surface the token repository writes
// through. The production implementation is the OS keychain; tests inject
// in-memory or failing fakes.
type Keyring interface {
	Set(service, user, password string) error
	Get(service, user string) (string, error)
	Delete(service, user string) error
}

// ErrKeyringEntryNotFound reports that the secure store is reachable but
// holds no entry, which is different from the store being unavailable.
var ErrKeyringEntryNotFound = errors.New("keyring entry not found")

// SystemKeyring is the OS-backed keyring (Keychain on macOS, Credential
// Manager on Windows, Secret Service on Linux).
type SystemKeyring struct{}

func (SystemKeyring) Set(service, user, password string) error {
	return keyring.Set(service, user, password)
}

func (SystemKeyring) Get(service, user string) (string, error) {
	secret, err := keyring.Get(service, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrKeyringEntryNotFound
	}
	return secret, err
}

func (SystemKeyring) Delete(service, user string) error {
	err := keyring.Delete(service, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
