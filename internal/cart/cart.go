// Package cart keeps a per-device copy of the server-owned cart. Every
// mutation is followed by a full refetch; the copy is never edited locally.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Skotchmaster/grocery_web/internal/apiclient"
	"github.com/Skotchmaster/grocery_web/internal/logging"
)

var (
	ErrValidation      = errors.New("validation")
	ErrUnauthenticated = errors.New("please sign in to use the cart")
)

type Backend interface {
	Cart(ctx context.Context, cred apiclient.Credentials) ([]apiclient.CartItem, error)
	AddToCart(ctx context.Context, cred apiclient.Credentials, productID string, quantity int) error
	UpdateCartItem(ctx context.Context, cred apiclient.Credentials, productID string, quantity int) error
	RemoveFromCart(ctx context.Context, cred apiclient.Credentials, productID string) error
	ClearCart(ctx context.Context, cred apiclient.Credentials) error
}

type Cart struct {
	Items []apiclient.CartItem `json:"items"`
	Total float64              `json:"total"`
	Count int                  `json:"count"`
}

func newCart(items []apiclient.CartItem) Cart {
	if items == nil {
		items = []apiclient.CartItem{}
	}
	c := Cart{Items: items, Count: len(items)}
	for _, it := range items {
		c.Total += it.Subtotal()
	}
	return c
}

func (c Cart) Empty() bool { return len(c.Items) == 0 }

type Service struct {
	API Backend
	log *slog.Logger

	mu    sync.Mutex
	carts map[string][]apiclient.CartItem
}

func NewService(api Backend, log *slog.Logger) *Service {
	if log == nil {
		log = logging.Discard()
	}
	return &Service{API: api, log: log.With("component", "cart"), carts: make(map[string][]apiclient.CartItem)}
}

func (s *Service) replace(deviceID string, items []apiclient.CartItem) Cart {
	c := newCart(items)
	s.mu.Lock()
	s.carts[deviceID] = c.Items
	s.mu.Unlock()
	return c
}

// Snapshot returns the last fetched cart without a backend call.
func (s *Service) Snapshot(deviceID string) Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return newCart(append([]apiclient.CartItem(nil), s.carts[deviceID]...))
}

// Fetch loads the cart, or empties it when there is no session. A failed
// load also leaves an empty cart.
func (s *Service) Fetch(ctx context.Context, cred apiclient.Credentials) (Cart, error) {
	if !cred.Authenticated() {
		return s.replace(cred.DeviceID, nil), nil
	}
	items, err := s.API.Cart(ctx, cred)
	if err != nil {
		s.replace(cred.DeviceID, nil)
		return newCart(nil), fmt.Errorf("fetch cart: %w", err)
	}
	return s.replace(cred.DeviceID, items), nil
}

func (s *Service) mutate(ctx context.Context, cred apiclient.Credentials, op string, call func() error) (Cart, error) {
	if !cred.Authenticated() {
		return Cart{}, ErrUnauthenticated
	}
	if err := call(); err != nil {
		return Cart{}, fmt.Errorf("%s: %w", op, err)
	}
	// the change went through; a failed refetch leaves the cart empty
	c, err := s.Fetch(ctx, cred)
	if err != nil {
		s.log.Warn("cart_refetch_error", "op", op, "device_id", cred.DeviceID, "error", err)
	}
	return c, nil
}

func (s *Service) Add(ctx context.Context, cred apiclient.Credentials, productID string, quantity int) (Cart, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Cart{}, fmt.Errorf("product id is required: %w", ErrValidation)
	}
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 {
		return Cart{}, fmt.Errorf("quantity must be positive: %w", ErrValidation)
	}
	return s.mutate(ctx, cred, "add to cart", func() error {
		return s.API.AddToCart(ctx, cred, productID, quantity)
	})
}

func (s *Service) Update(ctx context.Context, cred apiclient.Credentials, productID string, quantity int) (Cart, error) {
	if productID == "" {
		return Cart{}, fmt.Errorf("product id is required: %w", ErrValidation)
	}
	if quantity < 1 {
		return Cart{}, fmt.Errorf("quantity must be at least 1: %w", ErrValidation)
	}
	return s.mutate(ctx, cred, "update cart", func() error {
		return s.API.UpdateCartItem(ctx, cred, productID, quantity)
	})
}

func (s *Service) Remove(ctx context.Context, cred apiclient.Credentials, productID string) (Cart, error) {
	if productID == "" {
		return Cart{}, fmt.Errorf("product id is required: %w", ErrValidation)
	}
	return s.mutate(ctx, cred, "remove from cart", func() error {
		return s.API.RemoveFromCart(ctx, cred, productID)
	})
}

func (s *Service) Clear(ctx context.Context, cred apiclient.Credentials) (Cart, error) {
	return s.mutate(ctx, cred, "clear cart", func() error {
		return s.API.ClearCart(ctx, cred)
	})
}

// Forget drops the cached cart, used when the device signs out.
func (s *Service) Forget(deviceID string) {
	s.mu.Lock()
	delete(s.carts, deviceID)
	s.mu.Unlock()
}
