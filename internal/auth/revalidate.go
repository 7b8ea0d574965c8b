package auth

import (
	"context"
	"time"

	"github.com/Skotchmaster/grocery_web/internal/apiclient"
)

// Revalidate checks every stored session of this role once. Admin sessions
// are probed against the backend; user sessions only need a stored token.
func (m *Manager) Revalidate(ctx context.Context) {
	l := m.log.With("worker", "revalidate")

	if !m.remoteCheck {
		m.dropMissingTokens(ctx)
		return
	}

	devices, err := m.store.Devices(ctx, m.keys.token)
	if err != nil {
		l.Error("revalidate_list_error", "error", err)
		return
	}

	for _, dev := range devices {
		if ctx.Err() != nil {
			return
		}
		token, ok, err := m.store.Get(ctx, dev, m.keys.token)
		if err != nil || !ok || token == "" {
			continue
		}
		if expiredLocally(token, time.Now()) {
			l.Info("revalidate_expired", "device_id", dev)
			if err := m.clear(ctx, dev); err != nil {
				l.Warn("revalidate_clear_error", "device_id", dev, "error", err)
			}
			continue
		}
		cred := apiclient.Credentials{Role: m.role, Token: token, DeviceID: dev}
		if err := m.backend.Validate(ctx, cred); err != nil {
			l.Info("revalidate_failed", "device_id", dev, "error", err)
			if err := m.clear(ctx, dev); err != nil {
				l.Warn("revalidate_clear_error", "device_id", dev, "error", err)
			}
		}
	}
}

func (m *Manager) dropMissingTokens(ctx context.Context) {
	m.mu.Lock()
	var authed []string
	for dev, s := range m.devices {
		if s.State == StateAuthenticated {
			authed = append(authed, dev)
		}
	}
	m.mu.Unlock()

	for _, dev := range authed {
		token, ok, err := m.store.Get(ctx, dev, m.keys.token)
		if err != nil {
			m.log.Warn("revalidate_get_error", "device_id", dev, "error", err)
			continue
		}
		if !ok || token == "" {
			m.forget(dev)
		}
	}
}

func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Revalidate(ctx)
		}
	}
}
