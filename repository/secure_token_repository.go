// ABOUTME: Hardware/OS-backed token store with a self-healing plaintext fallback
// ABOUTME: Writes always prefer the keyring again after a fallback write; Clear wipes both paths

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"marketplace-client/models"
)

// Default keyring coordinates, carried over from the persisted-state layout
// the backend family shares.
const (
	DefaultKeyringService = "kb_session_tokens"
	DefaultKeyringAccount = "kb_session"
)

// SecureTokenRepository prefers the OS keyring and degrades to a plain file
// store when the keyring is unavailable. A later successful keyring write
// erases any stale fallback copy, so the plaintext path never outlives the
// secure one.
type SecureTokenRepository struct {
	ring     Keyring
	fallback *FileTokenRepository
	service  string
	account  string
	logger   *slog.Logger
}

// NewSecureTokenRepository composes the keyring store with its file
// fallback. A nil keyring defaults to the OS-backed implementation.
func NewSecureTokenRepository(ring Keyring, fallback *FileTokenRepository, service, account string, logger *slog.Logger) *SecureTokenRepository {
	if ring == nil {
		ring = SystemKeyring{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if service == "" {
		service = DefaultKeyringService
	}
	if account == "" {
		account = DefaultKeyringAccount
	}

	return &SecureTokenRepository{
		ring:     ring,
		fallback: fallback,
		service:  service,
		account:  account,
		logger:   logger,
	}
}

// Read returns the stored pair, checking the keyring first and the fallback
// second. A prior write may have used either path.
func (r *SecureTokenRepository) Read(ctx context.Context) (*models.TokenPair, error) {
	secret, err := r.ring.Get(r.service, r.account)
	if err == nil {
		var tokens models.TokenPair
		if unmarshalErr := json.Unmarshal([]byte(secret), &tokens); unmarshalErr == nil {
			return &tokens, nil
		}
		r.logger.Warn("keyring entry holds an undecodable token blob, trying fallback")
	} else if !errors.Is(err, ErrKeyringEntryNotFound) {
		r.logger.Warn("failed to read tokens from keyring, trying fallback", "error", err)
	}

	return r.fallback.Read(ctx)
}

// Write persists the pair, preferring the keyring on every call regardless of
// which path the previous write used. On keyring success the fallback copy is
// erased; on keyring failure the fallback carries the pair.
func (r *SecureTokenRepository) Write(ctx context.Context, tokens *models.TokenPair) error {
	raw, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("failed to encode token pair: %w", err)
	}

	if err := r.ring.Set(r.service, r.account, string(raw)); err == nil {
		if clearErr := r.fallback.Clear(ctx); clearErr != nil {
			r.logger.Warn("failed to erase stale fallback token copy", "error", clearErr)
		}
		return nil
	} else {
		r.logger.Warn("failed to persist tokens to keyring, falling back to file store", "error", err)
	}

	if err := r.fallback.Write(ctx, tokens); err != nil {
		return fmt.Errorf("both token storage paths failed: %w", err)
	}
	return nil
}

// Clear erases both paths unconditionally, since a prior write might have
// used either.
func (r *SecureTokenRepository) Clear(ctx context.Context) error {
	if err := r.ring.Delete(r.service, r.account); err != nil {
		r.logger.Warn("failed to clear keyring tokens", "error", err)
	}
	return r.fallback.Clear(ctx)
}
