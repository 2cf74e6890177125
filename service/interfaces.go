// ABOUTME: Service layer contracts for the auth backend driver
// ABOUTME: Lets services be tested against mock servers or hand-rolled fakes

package service

import (
	"context"

	"marketplace-client/models"
)

// AuthDriver is the surface of the auth backend the services depend on,
// implemented by driver.AuthClient.
type AuthDriver interface {
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error)
	Refresh(ctx context.Context, req *models.RefreshRequest) (*models.RefreshResponse, error)
	Logout(ctx context.Context, accessToken, fingerprint string) (*models.LogoutResponse, error)
	Register(ctx context.Context, req *models.RegisterRequest) error
	ResolveSellerID(ctx context.Context, accessToken string, userID int64) (*int64, error)
}
