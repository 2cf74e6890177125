// ABOUTME: Login/logout facade: builds a session from credential exchange or tears it down
// ABOUTME: Server-side logout is best-effort; local sign-out always succeeds

package service

import (
	"context"
	"fmt"
	"log/slog"

	"marketplace-client/models"
)

// AuthService is the entry point UI layers use to establish or end a session.
type AuthService struct {
	sessions *SessionService
	driver   AuthDriver
	logger   *slog.Logger
}

// NewAuthService creates the login/logout facade.
func NewAuthService(sessions *SessionService, driver AuthDriver, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		sessions: sessions,
		driver:   driver,
		logger:   logger,
	}
}

// SignIn exchanges credentials for a token pair, resolves the seller identity
// best-effort, and persists the full session. A failed seller lookup does not
// abort the login; the sellerId is simply left unset.
func (s *AuthService) SignIn(ctx context.Context, username, password string) (*models.Session, error) {
	resp, err := s.driver.Login(ctx, &models.LoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	var sellerID *int64
	sellerID, err = s.driver.ResolveSellerID(ctx, resp.AccessToken, resp.UserID)
	if err != nil {
		s.logger.Warn("failed to resolve seller id for user", "user_id", resp.UserID, "error", err)
		sellerID = nil
	}

	session := models.NewSessionFromLogin(resp, sellerID)
	if err := s.sessions.Persist(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist session after login: %w", err)
	}

	s.logger.Info("signed in",
		"user_id", session.UserID,
		"roles", session.Roles,
		"has_seller_id", session.SellerID != nil)

	return session, nil
}

// SignOut calls the server-side invalidation endpoint best-effort, then
// unconditionally clears the local session. No unauthorized event is emitted:
// this is a deliberate action, not a forced one.
func (s *AuthService) SignOut(ctx context.Context) {
	if session := s.sessions.GetCached(); session != nil {
		if _, err := s.driver.Logout(ctx, session.AccessToken, session.Fingerprint); err != nil {
			s.logger.Warn("server-side logout failed, clearing local session anyway", "error", err)
		}
	}

	s.sessions.Clear(ctx, false)
	s.logger.Info("signed out")
}

// Register creates a new user account. It does not establish a session; the
// caller signs in afterwards.
func (s *AuthService) Register(ctx context.Context, req *models.RegisterRequest) error {
	if err := s.driver.Register(ctx, req); err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}
	s.logger.Info("user registered", "email", req.Email)
	return nil
}
