package wishlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Skotchmaster/grocery_web/internal/apiclient"
	"github.com/Skotchmaster/grocery_web/internal/logging"
)

var (
	ErrValidation      = errors.New("validation")
	ErrUnauthenticated = errors.New("please sign in to add to wishlist")
	// ErrAlreadyPresent is informational; nothing was sent to the backend.
	ErrAlreadyPresent = errors.New("already in wishlist")
)

type Backend interface {
	Wishlist(ctx context.Context, cred apiclient.Credentials) ([]apiclient.Product, error)
	AddToWishlist(ctx context.Context, cred apiclient.Credentials, productID string) error
	RemoveFromWishlist(ctx context.Context, cred apiclient.Credentials, productID string) error
	ClearWishlist(ctx context.Context, cred apiclient.Credentials) error
}

type entry struct {
	loaded   bool
	products []apiclient.Product
}

type Service struct {
	API Backend
	log *slog.Logger

	mu    sync.Mutex
	lists map[string]entry
}

func NewService(api Backend, log *slog.Logger) *Service {
	if log == nil {
		log = logging.Discard()
	}
	return &Service{API: api, log: log.With("component", "wishlist"), lists: make(map[string]entry)}
}

func (s *Service) replace(deviceID string, products []apiclient.Product) []apiclient.Product {
	if products == nil {
		products = []apiclient.Product{}
	}
	s.mu.Lock()
	s.lists[deviceID] = entry{loaded: true, products: products}
	s.mu.Unlock()
	return products
}

func (s *Service) Snapshot(deviceID string) []apiclient.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]apiclient.Product, len(s.lists[deviceID].products))
	copy(out, s.lists[deviceID].products)
	return out
}

func (s *Service) Contains(deviceID, productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.lists[deviceID].products {
		if p.ID == productID {
			return true
		}
	}
	return false
}

func (s *Service) Fetch(ctx context.Context, cred apiclient.Credentials) ([]apiclient.Product, error) {
	if !cred.Authenticated() {
		return s.replace(cred.DeviceID, nil), nil
	}
	products, err := s.API.Wishlist(ctx, cred)
	if err != nil {
		s.replace(cred.DeviceID, nil)
		return []apiclient.Product{}, fmt.Errorf("fetch wishlist: %w", err)
	}
	return s.replace(cred.DeviceID, products), nil
}

func (s *Service) mutate(ctx context.Context, cred apiclient.Credentials, op string, call func() error) ([]apiclient.Product, error) {
	if !cred.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if err := call(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	// the change went through; a failed refetch leaves the list empty
	list, err := s.Fetch(ctx, cred)
	if err != nil {
		s.log.Warn("wishlist_refetch_error", "op", op, "device_id", cred.DeviceID, "error", err)
	}
	return list, nil
}

func (s *Service) Add(ctx context.Context, cred apiclient.Credentials, productID string) ([]apiclient.Product, error) {
	if productID == "" {
		return nil, fmt.Errorf("product id is required: %w", ErrValidation)
	}
	if !cred.Authenticated() {
		return nil, ErrUnauthenticated
	}

	s.mu.Lock()
	loaded := s.lists[cred.DeviceID].loaded
	s.mu.Unlock()
	if !loaded {
		if _, err := s.Fetch(ctx, cred); err != nil {
			return nil, err
		}
	}
	if s.Contains(cred.DeviceID, productID) {
		return s.Snapshot(cred.DeviceID), ErrAlreadyPresent
	}

	return s.mutate(ctx, cred, "add to wishlist", func() error {
		return s.API.AddToWishlist(ctx, cred, productID)
	})
}

func (s *Service) Remove(ctx context.Context, cred apiclient.Credentials, productID string) ([]apiclient.Product, error) {
	if productID == "" {
		return nil, fmt.Errorf("product id is required: %w", ErrValidation)
	}
	return s.mutate(ctx, cred, "remove from wishlist", func() error {
		return s.API.RemoveFromWishlist(ctx, cred, productID)
	})
}

func (s *Service) Clear(ctx context.Context, cred apiclient.Credentials) ([]apiclient.Product, error) {
	return s.mutate(ctx, cred, "clear wishlist", func() error {
		return s.API.ClearWishlist(ctx, cred)
	})
}

func (s *Service) Forget(deviceID string) {
	s.mu.Lock()
	delete(s.lists, deviceID)
	s.mu.Unlock()
}
