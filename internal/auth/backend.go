package auth

import (
	"context"

	"github.com/Skotchmaster/grocery_web/internal/apiclient"
)

// APIBackend adapts the REST client to Backend.
type APIBackend struct {
	Client *apiclient.Client
}

func (b APIBackend) SignIn(ctx context.Context, role apiclient.Role, email, password string) (*apiclient.AuthResult, error) {
	if role == apiclient.RoleAdmin {
		return b.Client.AdminSignIn(ctx, email, password)
	}
	return b.Client.Login(ctx, email, password)
}

func (b APIBackend) SignOut(ctx context.Context, cred apiclient.Credentials) error {
	return b.Client.Logout(ctx, cred)
}

// Validate probes a protected admin endpoint.
func (b APIBackend) Validate(ctx context.Context, cred apiclient.Credentials) error {
	_, err := b.Client.DashboardStats(ctx, cred)
	return err
}
