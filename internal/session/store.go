// Package session holds the per-device key/value state a browser would keep
// in its local storage: role tokens, cached profiles and checkout
// conveniences.
package session

import "context"

const (
	KeyUserToken             = "userToken"
	KeyUserData              = "userData"
	KeyAdminToken            = "adminToken"
	KeyAdminData             = "adminData"
	KeyShippingInfo          = "shippingInfo"
	KeyAdminLastViewedOrders = "adminLastViewedOrders"
)

type Store interface {
	Get(ctx context.Context, deviceID, key string) (string, bool, error)
	Set(ctx context.Context, deviceID, key, value string) error
	Delete(ctx context.Context, deviceID string, keys ...string) error
	// Devices lists every device that currently holds key.
	Devices(ctx context.Context, key string) ([]string, error)
}
