// ABOUTME: The session record store: composes token and identity storage into one session object
// ABOUTME: Maintains the single authoritative in-memory copy and broadcasts every replacement

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"marketplace-client/event"
	"marketplace-client/models"
	"marketplace-client/repository"
)

// ErrInvalidSession reports an attempt to persist a session without a user id.
var ErrInvalidSession = errors.New("session requires a user id")

// SessionService owns the cached session. Storage read failures degrade to
// "no session" rather than propagating, because the safe default is forcing
// re-authentication. The cache is always updated strictly before any
// broadcast, so a listener's synchronous re-read is never stale.
type SessionService struct {
	tokens repository.TokenRepository
	data   repository.SessionDataRepository
	bus    *event.Bus
	logger *slog.Logger
	skew   time.Duration

	mu     sync.RWMutex
	cached *models.Session
	loaded bool
}

// NewSessionService creates a session store over the given repositories. A
// zero skew falls back to the default clock-skew margin.
func NewSessionService(tokens repository.TokenRepository, data repository.SessionDataRepository, bus *event.Bus, skew time.Duration, logger *slog.Logger) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	if skew <= 0 {
		skew = models.TokenExpirySkew
	}

	return &SessionService{
		tokens: tokens,
		data:   data,
		bus:    bus,
		logger: logger,
		skew:   skew,
	}
}

// LoadSession returns the current session, reconstructing it from persistent
// storage on first call. After that it is idempotent and does no I/O. A
// persisted session whose refresh token is already past its lifetime (minus
// the skew margin) is discarded, cleared, and reported as unauthorized.
func (s *SessionService) LoadSession(ctx context.Context) *models.Session {
	s.mu.Lock()
	if s.loaded {
		cached := s.cached
		s.mu.Unlock()
		return cached
	}

	session := s.rebuildFromStorage(ctx)
	expired := session != nil && session.IsRefreshTokenExpired(s.skew)
	if expired {
		s.logger.Warn("persisted refresh token already expired, discarding session")
		session = nil
	}
	s.cached = session
	s.loaded = true
	s.mu.Unlock()

	if session == nil {
		// Keep persisted state consistent with the empty result.
		s.clearStores(ctx)
		if expired {
			s.bus.PublishSessionChange(nil)
			s.bus.PublishUnauthorized()
		}
	}
	return session
}

// GetCached returns the cached session without touching storage. It is nil
// before the first LoadSession and after a clear.
func (s *SessionService) GetCached() *models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cached
}

// Persist writes the token pair and identity fields, replaces the cache, and
// broadcasts the new session. The broadcast only happens after both the
// cache and storage are updated.
func (s *SessionService) Persist(ctx context.Context, session *models.Session) error {
	if session == nil || session.UserID == 0 {
		return ErrInvalidSession
	}

	next := session.Clone()
	next.Roles = models.SanitizeRoles(next.Roles)

	s.mu.Lock()
	s.cached = next
	s.loaded = true
	s.mu.Unlock()

	tokens := &models.TokenPair{
		AccessToken:      next.AccessToken,
		RefreshToken:     next.RefreshToken,
		AccessExpiresAt:  next.AccessExpiresAt,
		RefreshExpiresAt: next.RefreshExpiresAt,
	}
	record := &repository.IdentityRecord{
		UserID:      next.UserID,
		Roles:       next.Roles,
		SellerID:    next.SellerID,
		Fingerprint: next.Fingerprint,
	}

	if err := s.tokens.Write(ctx, tokens); err != nil {
		return fmt.Errorf("failed to persist token pair: %w", err)
	}
	if err := s.data.Write(ctx, record); err != nil {
		return fmt.Errorf("failed to persist session data: %w", err)
	}

	s.bus.PublishSessionChange(next)
	return nil
}

// SessionPatch carries the fields Update may replace. A nil field keeps the
// current value; patches never reset a field back to empty.
type SessionPatch struct {
	AccessToken      *string
	RefreshToken     *string
	AccessExpiresAt  *time.Time
	RefreshExpiresAt *time.Time
	Roles            []string
	SellerID         *int64
	Fingerprint      *string
}

// Update shallow-merges the patch onto the current session and persists the
// result. It returns nil when there is no session to update.
func (s *SessionService) Update(ctx context.Context, patch SessionPatch) (*models.Session, error) {
	current := s.LoadSession(ctx)
	if current == nil {
		return nil, nil
	}

	next := current.Clone()
	if patch.AccessToken != nil {
		next.AccessToken = *patch.AccessToken
	}
	if patch.RefreshToken != nil {
		next.RefreshToken = *patch.RefreshToken
	}
	if patch.AccessExpiresAt != nil {
		at := *patch.AccessExpiresAt
		next.AccessExpiresAt = &at
	}
	if patch.RefreshExpiresAt != nil {
		at := *patch.RefreshExpiresAt
		next.RefreshExpiresAt = &at
	}
	if patch.Roles != nil {
		next.Roles = patch.Roles
	}
	if patch.SellerID != nil {
		id := *patch.SellerID
		next.SellerID = &id
	}
	if patch.Fingerprint != nil {
		next.Fingerprint = *patch.Fingerprint
	}

	if err := s.Persist(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

// Clear erases both persistent stores and the cache in one transition, then
// broadcasts the empty session. The unauthorized event is emitted separately
// and only when requested, because it marks an involuntary sign-out.
func (s *SessionService) Clear(ctx context.Context, emitUnauthorized bool) {
	s.mu.Lock()
	s.cached = nil
	s.loaded = true
	s.mu.Unlock()

	s.clearStores(ctx)

	s.bus.PublishSessionChange(nil)
	if emitUnauthorized {
		s.bus.PublishUnauthorized()
	}
}

// rebuildFromStorage reads both repositories and composes a session. Any
// missing half or storage failure yields nil.
func (s *SessionService) rebuildFromStorage(ctx context.Context) *models.Session {
	tokens, err := s.tokens.Read(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrTokenNotFound) {
			s.logger.Warn("failed to read token pair from storage", "error", err)
		}
		return nil
	}

	record, err := s.data.Read(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrSessionDataNotFound) {
			s.logger.Warn("failed to read session data from storage", "error", err)
		}
		return nil
	}

	return &models.Session{
		TokenPair:   *tokens,
		UserID:      record.UserID,
		Roles:       models.SanitizeRoles(record.Roles),
		SellerID:    record.SellerID,
		Fingerprint: record.Fingerprint,
	}
}

func (s *SessionService) clearStores(ctx context.Context) {
	if err := s.tokens.Clear(ctx); err != nil {
		s.logger.Warn("failed to clear token storage", "error", err)
	}
	if err := s.data.Clear(ctx); err != nil {
		s.logger.Warn("failed to clear session data storage", "error", err)
	}
}
