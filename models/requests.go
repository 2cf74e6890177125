// ABOUTME: Request and response shapes for the marketplace auth endpoints
package models

// LoginRequest is the credential exchange payload for POST /jwt/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the token issue response. Lifetime fields are relative
// seconds; absence means the backend omitted lifetime metadata.
type LoginResponse struct {
	AccessToken      string   `json:"accessToken"`
	RefreshToken     string   `json:"refreshToken"`
	TokenType        string   `json:"tokenType"`
	ExpiresIn        *int64   `json:"expiresIn"`
	RefreshExpiresIn *int64   `json:"refreshExpiresIn,omitempty"`
	Roles            []string `json:"roles"`
	UserID           int64    `json:"userId"`
	Fingerprint      string   `json:"fingerprint,omitempty"`
}

// RefreshRequest is the payload for POST /jwt/refresh. The fingerprint binds
// the rotated tokens to the device that originally logged in.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
	Fingerprint  string `json:"fingerprint,omitempty"`
}

// RefreshResponse mirrors LoginResponse minus the identity fields. The
// refresh token and fingerprint may be omitted when the server does not
// rotate them.
type RefreshResponse struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken,omitempty"`
	TokenType        string `json:"tokenType"`
	ExpiresIn        *int64 `json:"expiresIn"`
	RefreshExpiresIn *int64 `json:"refreshExpiresIn,omitempty"`
	Fingerprint      string `json:"fingerprint,omitempty"`
}

// LogoutResponse is the acknowledgement from POST /api/v1/auth/logout.
type LogoutResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RegisterRequest is the payload for POST /api/v1/users/register.
type RegisterRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	MobileNumber string `json:"mobileNumber"`
	Address      string `json:"address"`
	Role         string `json:"role"`
}

// SellerResponse is the shape of GET /api/v1/sellers/{userId}.
type SellerResponse struct {
	SellerID *int64 `json:"sellerId"`
}
