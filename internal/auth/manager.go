package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Skotchmaster/grocery_web/internal/apiclient"
	"github.com/Skotchmaster/grocery_web/internal/logging"
	"github.com/Skotchmaster/grocery_web/internal/session"
)

type State int

const (
	StateUninitialized State = iota
	StateRestoring
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateRestoring:
		return "restoring"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "uninitialized"
	}
}

var ErrValidation = errors.New("validation")

// Backend is the part of the REST API a Manager needs.
type Backend interface {
	SignIn(ctx context.Context, role apiclient.Role, email, password string) (*apiclient.AuthResult, error)
	SignOut(ctx context.Context, cred apiclient.Credentials) error
	Validate(ctx context.Context, cred apiclient.Credentials) error
}

type Snapshot struct {
	State   State
	Token   string
	Profile json.RawMessage
}

func (s Snapshot) Authenticated() bool {
	return s.State == StateAuthenticated
}

type keys struct {
	token, data string
}

func keysFor(role apiclient.Role) keys {
	if role == apiclient.RoleAdmin {
		return keys{token: session.KeyAdminToken, data: session.KeyAdminData}
	}
	return keys{token: session.KeyUserToken, data: session.KeyUserData}
}

// Manager tracks one role's session for every device.
type Manager struct {
	role    apiclient.Role
	keys    keys
	store   session.Store
	backend Backend
	log     *slog.Logger

	// remoteCheck makes Revalidate call the backend instead of only looking
	// for a stored token.
	remoteCheck bool

	peer *Manager

	mu      sync.Mutex
	devices map[string]*Snapshot
	sf      singleflight.Group
}

func NewManager(role apiclient.Role, store session.Store, backend Backend, log *slog.Logger) *Manager {
	if log == nil {
		log = logging.Discard()
	}
	return &Manager{
		role:        role,
		keys:        keysFor(role),
		store:       store,
		backend:     backend,
		log:         log.With("component", "auth", "role", string(role)),
		remoteCheck: role == apiclient.RoleAdmin,
		devices:     make(map[string]*Snapshot),
	}
}

// Link makes a login in either manager clear the other role's session.
func Link(a, b *Manager) {
	a.peer = b
	b.peer = a
}

func (m *Manager) Role() apiclient.Role { return m.role }

func (m *Manager) Snapshot(deviceID string) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.devices[deviceID]; ok {
		return *s
	}
	return Snapshot{State: StateUninitialized}
}

func (m *Manager) Credentials(deviceID string) apiclient.Credentials {
	s := m.Snapshot(deviceID)
	cred := apiclient.Credentials{Role: m.role, DeviceID: deviceID}
	if s.Authenticated() {
		cred.Token = s.Token
	}
	return cred
}

func (m *Manager) set(deviceID string, s Snapshot) {
	m.mu.Lock()
	m.devices[deviceID] = &s
	m.mu.Unlock()
}

func (m *Manager) forget(deviceID string) {
	m.mu.Lock()
	m.devices[deviceID] = &Snapshot{State: StateAnonymous}
	m.mu.Unlock()
}

// Ensure restores the device's session if it has not been restored yet. It
// waits at most wait for the restore and then reports StateRestoring.
func (m *Manager) Ensure(ctx context.Context, deviceID string, wait time.Duration) Snapshot {
	m.mu.Lock()
	if s, ok := m.devices[deviceID]; ok && s.State != StateUninitialized && s.State != StateRestoring {
		m.mu.Unlock()
		return *s
	}
	m.devices[deviceID] = &Snapshot{State: StateRestoring}
	m.mu.Unlock()

	ch := m.sf.DoChan(deviceID, func() (any, error) {
		// detached so one impatient caller does not abort the shared restore
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return m.restore(rctx, deviceID), nil
	})

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case res := <-ch:
		return res.Val.(Snapshot)
	case <-timer.C:
		return Snapshot{State: StateRestoring}
	case <-ctx.Done():
		return Snapshot{State: StateRestoring}
	}
}

// restore trusts whatever is stored; no backend round trip. A restored
// admin session pushes out any user session on the same device.
func (m *Manager) restore(ctx context.Context, deviceID string) Snapshot {
	l := m.log.With("device_id", deviceID)

	token, ok, err := m.store.Get(ctx, deviceID, m.keys.token)
	if err != nil {
		l.Warn("restore_error", "error", err)
	}
	if err != nil || !ok || token == "" {
		s := Snapshot{State: StateAnonymous}
		m.set(deviceID, s)
		return s
	}

	s := Snapshot{State: StateAuthenticated, Token: token}
	raw, hasData, err := m.store.Get(ctx, deviceID, m.keys.data)
	if err == nil && hasData && json.Valid([]byte(raw)) {
		s.Profile = json.RawMessage(raw)
	}

	if m.role == apiclient.RoleAdmin && s.Profile != nil {
		if err := m.store.Delete(ctx, deviceID, session.KeyUserToken, session.KeyUserData); err != nil {
			l.Warn("restore_clear_user_error", "error", err)
		}
		if m.peer != nil {
			m.peer.forget(deviceID)
		}
	}

	m.set(deviceID, s)
	l.Debug("session restored")
	return s
}

func (m *Manager) Login(ctx context.Context, deviceID, email, password string) (Snapshot, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Snapshot{}, fmt.Errorf("email and password are required: %w", ErrValidation)
	}

	res, err := m.backend.SignIn(ctx, m.role, email, password)
	if err != nil {
		return Snapshot{}, err
	}

	if err := m.store.Set(ctx, deviceID, m.keys.token, res.Token); err != nil {
		return Snapshot{}, fmt.Errorf("persist token: %w", err)
	}
	profile := res.Profile
	if len(profile) == 0 {
		profile = json.RawMessage("null")
	}
	if err := m.store.Set(ctx, deviceID, m.keys.data, string(profile)); err != nil {
		return Snapshot{}, fmt.Errorf("persist profile: %w", err)
	}

	other := keysFor(apiclient.RoleUser)
	if m.role == apiclient.RoleUser {
		other = keysFor(apiclient.RoleAdmin)
	}
	if err := m.store.Delete(ctx, deviceID, other.token, other.data); err != nil {
		return Snapshot{}, fmt.Errorf("clear other role: %w", err)
	}
	if m.peer != nil {
		m.peer.forget(deviceID)
	}

	s := Snapshot{State: StateAuthenticated, Token: res.Token, Profile: profile}
	m.set(deviceID, s)
	m.log.Info("signed in", "device_id", deviceID)
	return s, nil
}

func (m *Manager) Logout(ctx context.Context, deviceID string) error {
	cred := m.Credentials(deviceID)
	if m.role == apiclient.RoleUser && cred.Authenticated() {
		if err := m.backend.SignOut(ctx, cred); err != nil {
			m.log.Warn("logout_backend_error", "device_id", deviceID, "error", err)
		}
	}
	return m.clear(ctx, deviceID)
}

// Expire drops the session after the backend rejected its token.
func (m *Manager) Expire(ctx context.Context, deviceID string) {
	if err := m.clear(ctx, deviceID); err != nil {
		m.log.Warn("expire_error", "device_id", deviceID, "error", err)
		return
	}
	m.log.Info("session expired", "device_id", deviceID)
}

// UpdateProfile replaces the cached profile after a successful edit.
func (m *Manager) UpdateProfile(ctx context.Context, deviceID string, profile json.RawMessage) error {
	s := m.Snapshot(deviceID)
	if !s.Authenticated() {
		return nil
	}
	if err := m.store.Set(ctx, deviceID, m.keys.data, string(profile)); err != nil {
		return fmt.Errorf("persist profile: %w", err)
	}
	s.Profile = profile
	m.set(deviceID, s)
	return nil
}

func (m *Manager) clear(ctx context.Context, deviceID string) error {
	m.forget(deviceID)
	if err := m.store.Delete(ctx, deviceID, m.keys.token, m.keys.data); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
