// Package notify polls the backend for orders an admin has not looked at
// yet and keeps the counts per admin device.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Skotchmaster/grocery_web/internal/apiclient"
	"github.com/Skotchmaster/grocery_web/internal/events"
	"github.com/Skotchmaster/grocery_web/internal/logging"
	"github.com/Skotchmaster/grocery_web/internal/session"
)

type Backend interface {
	PendingOrdersCount(ctx context.Context, cred apiclient.Credentials) (int, error)
	NewOrdersSince(ctx context.Context, cred apiclient.Credentials, since time.Time) (int, error)
}

type Status struct {
	Pending    int       `json:"pending"`
	New        int       `json:"new"`
	LastViewed time.Time `json:"lastViewed,omitempty"`
	CheckedAt  time.Time `json:"checkedAt,omitempty"`
}

type Poller struct {
	API    Backend
	Store  session.Store
	Events events.Publisher
	Topic  string
	Now    func() time.Time
	log    *slog.Logger

	mu     sync.Mutex
	status map[string]Status
}

func NewPoller(api Backend, store session.Store, pub events.Publisher, topic string, log *slog.Logger) *Poller {
	if log == nil {
		log = logging.Discard()
	}
	if pub == nil {
		pub = events.Noop{}
	}
	return &Poller{
		API: api, Store: store, Events: pub, Topic: topic, Now: time.Now,
		log:    log.With("component", "notify"),
		status: make(map[string]Status),
	}
}

func (p *Poller) lastViewed(ctx context.Context, deviceID string) time.Time {
	raw, ok, err := p.Store.Get(ctx, deviceID, session.KeyAdminLastViewedOrders)
	if err != nil || !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Check refreshes the counts for one admin device.
func (p *Poller) Check(ctx context.Context, cred apiclient.Credentials) (Status, error) {
	since := p.lastViewed(ctx, cred.DeviceID)

	pending, err := p.API.PendingOrdersCount(ctx, cred)
	if err != nil {
		return Status{}, fmt.Errorf("pending count: %w", err)
	}
	// nothing counts as new until the admin has opened the order list once
	var fresh int
	if !since.IsZero() {
		fresh, err = p.API.NewOrdersSince(ctx, cred, since)
		if err != nil {
			return Status{}, fmt.Errorf("new orders: %w", err)
		}
	}

	st := Status{Pending: pending, New: fresh, LastViewed: since, CheckedAt: p.Now().UTC()}
	p.mu.Lock()
	prev := p.status[cred.DeviceID]
	p.status[cred.DeviceID] = st
	p.mu.Unlock()

	// the first check after startup only sets the baseline
	if !prev.CheckedAt.IsZero() && st.New > prev.New {
		ev := events.Event{Type: events.TypeNewPendingOrders, DeviceID: cred.DeviceID, Count: st.New, At: st.CheckedAt}
		if err := p.Events.Publish(ctx, p.Topic, cred.DeviceID, ev); err != nil {
			p.log.Warn("event_publish_error", "type", ev.Type, "error", err)
		}
	}
	return st, nil
}

// Poll checks every device that holds an admin token.
func (p *Poller) Poll(ctx context.Context) {
	devices, err := p.Store.Devices(ctx, session.KeyAdminToken)
	if err != nil {
		p.log.Error("poll_list_error", "error", err)
		return
	}
	for _, dev := range devices {
		if ctx.Err() != nil {
			return
		}
		token, ok, err := p.Store.Get(ctx, dev, session.KeyAdminToken)
		if err != nil || !ok || token == "" {
			continue
		}
		cred := apiclient.Credentials{Role: apiclient.RoleAdmin, Token: token, DeviceID: dev}
		if _, err := p.Check(ctx, cred); err != nil {
			p.log.Warn("poll_device_error", "device_id", dev, "error", err)
		}
	}
}

func (p *Poller) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	p.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.Poll(ctx)
		}
	}
}

func (p *Poller) Status(deviceID string) Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status[deviceID]
}

// MarkSeen records that the admin opened the order list at now.
func (p *Poller) MarkSeen(ctx context.Context, deviceID string, now time.Time) error {
	now = now.UTC().Truncate(time.Second)
	if err := p.Store.Set(ctx, deviceID, session.KeyAdminLastViewedOrders, now.Format(time.RFC3339)); err != nil {
		return fmt.Errorf("store last viewed: %w", err)
	}
	p.mu.Lock()
	st := p.status[deviceID]
	st.New = 0
	st.LastViewed = now
	p.status[deviceID] = st
	p.mu.Unlock()
	return nil
}

func (p *Poller) Forget(deviceID string) {
	p.mu.Lock()
	delete(p.status, deviceID)
	p.mu.Unlock()
}
