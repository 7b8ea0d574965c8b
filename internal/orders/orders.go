// Package orders serves the signed-in user's order history.
package orders

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
	ErrNotFound        = errors.New("order not found")
	ErrNotCancellable  = errors.New("only pending orders can be cancelled")
	ErrUnauthenticated = errors.New("please sign in to view your orders")
)

type Backend interface {
	MyOrders(ctx context.Context, cred apiclient.Credentials) ([]apiclient.Order, error)
	Order(ctx context.Context, cred apiclient.Credentials, id string) (*apiclient.Order, error)
	CancelOrder(ctx context.Context, cred apiclient.Credentials, id string) error
}

type View struct {
	apiclient.Order
	CanCancel bool `json:"canCancel"`
	CanReview bool `json:"canReview"`
}

func viewOf(o apiclient.Order) View {
	return View{
		Order:     o,
		CanCancel: o.Status == apiclient.OrderPending,
		CanReview: o.Status == apiclient.OrderDelivered,
	}
}

type Service struct {
	API Backend
	log *slog.Logger

	mu     sync.Mutex
	orders map[string][]apiclient.Order
}

func NewService(api Backend, log *slog.Logger) *Service {
	if log == nil {
		log = logging.Discard()
	}
	return &Service{API: api, log: log.With("component", "orders"), orders: make(map[string][]apiclient.Order)}
}

func (s *Service) List(ctx context.Context, cred apiclient.Credentials) ([]View, error) {
	if !cred.Authenticated() {
		return nil, ErrUnauthenticated
	}
	list, err := s.API.MyOrders(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	s.mu.Lock()
	s.orders[cred.DeviceID] = list
	s.mu.Unlock()

	out := make([]View, 0, len(list))
	for _, o := range list {
		out = append(out, viewOf(o))
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, cred apiclient.Credentials, id string) (View, error) {
	if !cred.Authenticated() {
		return View{}, ErrUnauthenticated
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return View{}, fmt.Errorf("order id is required: %w", ErrValidation)
	}
	o, err := s.API.Order(ctx, cred, id)
	if err != nil {
		return View{}, fmt.Errorf("get order %s: %w", id, err)
	}
	s.store(cred.DeviceID, *o)
	return viewOf(*o), nil
}

func (s *Service) cached(deviceID, id string) (apiclient.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders[deviceID] {
		if o.ID == id {
			return o, true
		}
	}
	return apiclient.Order{}, false
}

func (s *Service) store(deviceID string, o apiclient.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.orders[deviceID]
	for i := range list {
		if list[i].ID == o.ID {
			list[i] = o
			return
		}
	}
	s.orders[deviceID] = append(list, o)
}

// Cancel is refused unless the order is pending in the last fetched list.
// On success the cached copy is marked cancelled; the list is not refetched.
func (s *Service) Cancel(ctx context.Context, cred apiclient.Credentials, id string) (View, error) {
	if !cred.Authenticated() {
		return View{}, ErrUnauthenticated
	}
	o, ok := s.cached(cred.DeviceID, id)
	if !ok {
		return View{}, ErrNotFound
	}
	if o.Status != apiclient.OrderPending {
		return viewOf(o), ErrNotCancellable
	}
	if err := s.API.CancelOrder(ctx, cred, id); err != nil {
		return viewOf(o), fmt.Errorf("cancel order %s: %w", id, err)
	}
	o.Status = apiclient.OrderCancelled
	s.store(cred.DeviceID, o)
	s.log.Info("order cancelled", "device_id", cred.DeviceID, "order_id", id)
	return viewOf(o), nil
}

// Find returns the cached order without a backend call.
func (s *Service) Find(deviceID, id string) (apiclient.Order, bool) {
	return s.cached(deviceID, id)
}

func (s *Service) Forget(deviceID string) {
	s.mu.Lock()
	delete(s.orders, deviceID)
	s.mu.Unlock()
}
