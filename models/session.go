// ABOUTME: This file defines domain models for the authenticated marketplace session
// ABOUTME: Handles token pair, identity fields, and expiry predicates with clock-skew tolerance

package models

import (
	"time"
)

// Default expiry policy values. The skew margin is a fail-safe buffer before
// declaring tokens expired; the refresh window is strictly larger so that
// proactive refreshes fire while the access token is still usable.
const (
	TokenExpirySkew     = 30 * time.Second
	AccessRefreshWindow = 60 * time.Second
)

// TokenPair holds the raw credential pair. Both tokens are always written
// together; a nil expiry means the backend omitted lifetime metadata and the
// token is treated as non-expiring.
type TokenPair struct {
	AccessToken      string     `json:"accessToken"`
	RefreshToken     string     `json:"refreshToken"`
	AccessExpiresAt  *time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt *time.Time `json:"refreshExpiresAt"`
}

// Session is the authoritative in-memory session object: the token pair plus
// the identity fields persisted alongside it. UserID is required; a session
// without one does not exist.
type Session struct {
	TokenPair
	UserID      int64    `json:"userId"`
	Roles       []string `json:"roles"`
	SellerID    *int64   `json:"sellerId"`
	Fingerprint string   `json:"fingerprint"` // empty = no device binding
}

// IsAccessTokenExpired reports whether the access token is unusable once the
// skew margin is applied.
func (s *Session) IsAccessTokenExpired(skew time.Duration) bool {
	return expiredAt(s.AccessExpiresAt, skew)
}

// IsRefreshTokenExpired reports whether the refresh token can no longer be
// exchanged. A refresh attempt with an expired refresh token can never succeed.
func (s *Session) IsRefreshTokenExpired(skew time.Duration) bool {
	return expiredAt(s.RefreshExpiresAt, skew)
}

// ShouldProactivelyRefresh reports whether the access token is inside the
// proactive refresh window. The window is wider than the skew margin, so a
// true result does not imply the token is already unusable.
func (s *Session) ShouldProactivelyRefresh(window time.Duration) bool {
	return expiredAt(s.AccessExpiresAt, window)
}

func expiredAt(expiresAt *time.Time, margin time.Duration) bool {
	if expiresAt == nil {
		return false
	}
	if margin < 0 {
		margin = 0
	}
	return !time.Now().Add(margin).Before(*expiresAt)
}

// Clone returns a deep copy so callers can hand sessions to listeners without
// sharing mutable slices.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cloned := *s
	cloned.Roles = append([]string(nil), s.Roles...)
	if s.SellerID != nil {
		id := *s.SellerID
		cloned.SellerID = &id
	}
	if s.AccessExpiresAt != nil {
		at := *s.AccessExpiresAt
		cloned.AccessExpiresAt = &at
	}
	if s.RefreshExpiresAt != nil {
		at := *s.RefreshExpiresAt
		cloned.RefreshExpiresAt = &at
	}
	return &cloned
}

// SanitizeRoles drops anything that is not a non-empty string role.
func SanitizeRoles(roles []string) []string {
	sanitized := make([]string, 0, len(roles))
	for _, role := range roles {
		if role != "" {
			sanitized = append(sanitized, role)
		}
	}
	return sanitized
}

// ExpiryFromLifetime converts a relative lifetime in seconds into an absolute
// timestamp anchored at now. Nil lifetimes stay nil.
func ExpiryFromLifetime(now time.Time, lifetimeSeconds *int64) *time.Time {
	if lifetimeSeconds == nil {
		return nil
	}
	at := now.Add(time.Duration(*lifetimeSeconds) * time.Second)
	return &at
}

// NewSessionFromLogin builds a session from a successful credential exchange.
// Expiries are computed as absolute timestamps at the moment the response is
// processed.
func NewSessionFromLogin(resp *LoginResponse, sellerID *int64) *Session {
	now := time.Now()
	return &Session{
		TokenPair: TokenPair{
			AccessToken:      resp.AccessToken,
			RefreshToken:     resp.RefreshToken,
			AccessExpiresAt:  ExpiryFromLifetime(now, resp.ExpiresIn),
			RefreshExpiresAt: ExpiryFromLifetime(now, resp.RefreshExpiresIn),
		},
		UserID:      resp.UserID,
		Roles:       SanitizeRoles(resp.Roles),
		SellerID:    sellerID,
		Fingerprint: resp.Fingerprint,
	}
}
