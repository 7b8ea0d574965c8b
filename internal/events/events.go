package events

import (
	"context"
	"time"
)

const (
	TypeOrderPlaced      = "order_placed"
	TypePaymentConfirmed = "payment_confirmed"
	TypePaymentFailed    = "payment_failed"
	TypeNewPendingOrders = "new_pending_orders"
)

type Event struct {
	Type     string    `json:"type"`
	OrderID  string    `json:"orderID,omitempty"`
	DeviceID string    `json:"deviceID,omitempty"`
	Method   string    `json:"method,omitempty"`
	Amount   float64   `json:"amount,omitempty"`
	Count    int       `json:"count,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
	Close() error
}

type Topics struct {
	Orders   string
	Payments string
	Admin    string
}

func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = "storefront"
	}
	return Topics{
		Orders:   prefix + ".orders",
		Payments: prefix + ".payments",
		Admin:    prefix + ".admin",
	}
}

type Noop struct{}

func (Noop) Publish(context.Context, string, string, any) error { return nil }
func (Noop) Close() error                                       { return nil }
