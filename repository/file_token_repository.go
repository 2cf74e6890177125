// ABOUTME: Plain-file fallback store for the token pair
// ABOUTME: Used only when the OS keyring is unavailable; a single JSON blob with 0600 permissions

package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"marketplace-client/models"
)

// FileTokenRepository implements TokenRepository on a single JSON file. It is
// the plaintext fallback path behind SecureTokenRepository, never the
// preferred store.
type FileTokenRepository struct {
	filePath string
	logger   *slog.Logger
	mu       sync.RWMutex
}

// NewFileTokenRepository creates a file-backed token repository at filePath.
func NewFileTokenRepository(filePath string, logger *slog.Logger) *FileTokenRepository {
	if logger == nil {
		logger = slog.Default()
	}

	repo := &FileTokenRepository{
		filePath: filePath,
		logger:   logger,
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0700); err != nil {
		logger.Warn("failed to create directory for fallback token file", "error", err)
	}

	return repo
}

// Read returns the stored pair, or ErrTokenNotFound when the file is absent.
func (r *FileTokenRepository) Read(ctx context.Context) (*models.TokenPair, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	raw, err := os.ReadFile(r.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to read fallback token file: %w", err)
	}

	var tokens models.TokenPair
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return nil, fmt.Errorf("failed to decode fallback token file: %w", err)
	}

	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return nil, ErrTokenNotFound
	}

	return &tokens, nil
}

// Write persists the pair as one JSON blob.
func (r *FileTokenRepository) Write(ctx context.Context, tokens *models.TokenPair) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("failed to encode token pair: %w", err)
	}

	if err := os.WriteFile(r.filePath, raw, 0600); err != nil {
		return fmt.Errorf("failed to write fallback token file: %w", err)
	}

	r.logger.Debug("token pair written to fallback file", "file_path", r.filePath)
	return nil
}

// Clear removes the file. A missing file is not an error.
func (r *FileTokenRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove fallback token file: %w", err)
	}
	return nil
}
