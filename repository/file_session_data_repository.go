// ABOUTME: Key/value file store for the identity half of the session
// ABOUTME: Persists userId, JSON-encoded roles, sellerId, and fingerprint with empty-string sentinels

package repository

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Persisted key names, shared with the other clients of the same backend.
const (
	userIDKey      = "kb_user_id"
	rolesKey       = "kb_roles"
	sellerIDKey    = "kb_seller_id"
	fingerprintKey = "kb_device_fingerprint"
)

// FileSessionDataRepository implements SessionDataRepository on a flat
// key=value file. sellerId and fingerprint use an empty-string sentinel for
// "not set".
type FileSessionDataRepository struct {
	filePath string
	logger   *slog.Logger
	mu       sync.RWMutex
}

// NewFileSessionDataRepository creates a session data repository at filePath.
func NewFileSessionDataRepository(filePath string, logger *slog.Logger) *FileSessionDataRepository {
	if logger == nil {
		logger = slog.Default()
	}

	repo := &FileSessionDataRepository{
		filePath: filePath,
		logger:   logger,
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0700); err != nil {
		logger.Warn("failed to create directory for session data file", "error", err)
	}

	return repo
}

// Read reconstructs the identity record. A missing file or a record without
// a user id both count as "no session data".
func (r *FileSessionDataRepository) Read(ctx context.Context) (*IdentityRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := os.Open(r.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSessionDataNotFound
		}
		return nil, fmt.Errorf("failed to open session data file: %w", err)
	}
	defer file.Close()

	entries := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		entries[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session data file: %w", err)
	}

	userID, err := strconv.ParseInt(entries[userIDKey], 10, 64)
	if err != nil {
		return nil, ErrSessionDataNotFound
	}

	return &IdentityRecord{
		UserID:      userID,
		Roles:       parseRoles(entries[rolesKey]),
		SellerID:    parseOptionalID(entries[sellerIDKey]),
		Fingerprint: entries[fingerprintKey],
	}, nil
}

// Write persists all four entries as a unit.
func (r *FileSessionDataRepository) Write(ctx context.Context, record *IdentityRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rolesJSON, err := json.Marshal(record.Roles)
	if err != nil {
		return fmt.Errorf("failed to encode roles: %w", err)
	}

	sellerID := ""
	if record.SellerID != nil {
		sellerID = strconv.FormatInt(*record.SellerID, 10)
	}

	lines := []string{
		fmt.Sprintf("%s=%d", userIDKey, record.UserID),
		fmt.Sprintf("%s=%s", rolesKey, rolesJSON),
		fmt.Sprintf("%s=%s", sellerIDKey, sellerID),
		fmt.Sprintf("%s=%s", fingerprintKey, record.Fingerprint),
	}

	if err := os.WriteFile(r.filePath, []byte(strings.Join(lines, "\n")+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write session data file: %w", err)
	}
	return nil
}

// Clear removes the file. A missing file is not an error.
func (r *FileSessionDataRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session data file: %w", err)
	}
	return nil
}

func parseRoles(raw string) []string {
	if raw == "" {
		return []string{}
	}
	var roles []string
	if err := json.Unmarshal([]byte(raw), &roles); err != nil {
		return []string{}
	}
	sanitized := roles[:0]
	for _, role := range roles {
		if role != "" {
			sanitized = append(sanitized, role)
		}
	}
	return sanitized
}

func parseOptionalID(raw string) *int64 {
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}
