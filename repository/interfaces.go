// ABOUTME: Repository layer contracts for local session persistence
// ABOUTME: Defines the token store and identity store interfaces and their sentinel errors

package repository

import (
	"context"
	"errors"

	"marketplace-client/models"
)

// Repository error definitions
var (
	ErrTokenNotFound       = errors.New("no token pair found in storage")
	ErrSessionDataNotFound = errors.New("no session data found in storage")
	ErrKeyringUnavailable  = errors.New("secure keyring is unavailable")
)

// TokenRepository stores the raw token pair. It has no expiry logic; it only
// moves bytes. The pair is always written as a unit, never partially.
type TokenRepository interface {
	// Read returns the last written pair, or ErrTokenNotFound when empty.
	Read(ctx context.Context) (*models.TokenPair, error)

	// Write persists the pair atomically.
	Write(ctx context.Context, tokens *models.TokenPair) error

	// Clear erases the pair from every storage path it may live in.
	Clear(ctx context.Context) error
}

// IdentityRecord holds the session metadata persisted alongside the tokens.
type IdentityRecord struct {
	UserID      int64    `json:"userId"`
	Roles       []string `json:"roles"`
	SellerID    *int64   `json:"sellerId"`
	Fingerprint string   `json:"fingerprint"`
}

// SessionDataRepository stores the identity fields of the session.
type SessionDataRepository interface {
	// Read returns the stored record, or ErrSessionDataNotFound when empty.
	Read(ctx context.Context) (*IdentityRecord, error)

	// Write persists the record as a unit.
	Write(ctx context.Context, record *IdentityRecord) error

	// Clear erases the record.
	Clear(ctx context.Context) error
}
