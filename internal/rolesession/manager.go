// Package rolesession keeps short-lived elevated-access windows for
// management roles. A window opens after a PIN or password check and closes
// on expiry, explicit clear or logout.
//
// Sessions live in process memory only. Expiry is enforced twice: IsVerified
// compares against the expiry instant on every read, and Run sweeps expired
// entries in the background.
package rolesession

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"procure/internal/metrics"
	"procure/internal/security/password"
	"procure/models"
)

// DefaultTTL is the lifetime of a verified session.
const DefaultTTL = 15 * time.Minute

// Store is the persistence the manager needs: PIN hashes, account password
// hashes and the audit log.
type Store interface {
	GetRolePin(ctx context.Context, userID string, role models.Role) (string, bool, error)
	SetRolePin(ctx context.Context, userID string, role models.Role, pinHash string) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	InsertAudit(ctx context.Context, e *models.AuditEvent) error
}

// Method is how a session was verified.
type Method string

const (
	MethodPIN      Method = "pin"
	MethodPassword Method = "password"
)

// Session is one verified (user, role) window.
type Session struct {
	Role       models.Role `json:"role"`
	Method     Method      `json:"method"`
	VerifiedAt time.Time   `json:"verifiedAt"`
	ExpiresAt  time.Time   `json:"expiresAt"`
}

type key struct {
	userID string
	role   models.Role
}

// Manager holds verified sessions for all users of this process.
type Manager struct {
	mu       sync.Mutex
	sessions map[key]Session
	ttl      time.Duration
	now      func() time.Time

	store   Store
	hasher  password.Hasher
	log     *slog.Logger
	metrics *metrics.Metrics
}

// New creates a manager. A non-positive ttl means DefaultTTL; m may be nil.
func New(store Store, ttl time.Duration, log *slog.Logger, m *metrics.Metrics) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		sessions: make(map[key]Session),
		ttl:      ttl,
		now:      time.Now,
		store:    store,
		hasher:   password.Default(),
		log:      log,
		metrics:  m,
	}
}

// SetClock replaces the time source.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// TTL returns the session lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// HasPinConfigured reports whether userID has a PIN for role.
func (m *Manager) HasPinConfigured(ctx context.Context, userID string, role models.Role) (bool, error) {
	if !models.ValidRole(role) {
		return false, models.E("hasPinConfigured", models.ErrInvalidInput, "unknown role")
	}
	_, ok, err := m.store.GetRolePin(ctx, userID, role)
	return ok, err
}

// ConfigurePin sets or replaces the PIN for role after checking the account
// password. It does not open a session.
func (m *Manager) ConfigurePin(ctx context.Context, userID string, role models.Role, pin, pw string) error {
	const op = "configurePin"
	if !models.ValidRole(role) {
		return models.E(op, models.ErrInvalidInput, "unknown role")
	}
	if !password.ValidPIN(pin) {
		return models.E(op, models.ErrInvalidInput, password.ErrInvalidPIN.Error())
	}
	if err := m.checkPassword(ctx, op, userID, role, pw); err != nil {
		return err
	}
	hash, err := m.hasher.HashPIN(pin)
	if err != nil {
		return err
	}
	if err := m.store.SetRolePin(ctx, userID, role, hash); err != nil {
		return err
	}
	m.log.Info("role.pin.configured", "user_id", userID, "role", role)
	m.audit(ctx, "role.pin.configured", userID, role, nil, nil)
	return nil
}

// VerifyWithPin opens a session for role if pin matches the stored PIN hash.
func (m *Manager) VerifyWithPin(ctx context.Context, userID string, role models.Role, pin string) (Session, error) {
	const op = "verifyWithPin"
	if !models.ValidRole(role) {
		return Session{}, models.E(op, models.ErrInvalidInput, "unknown role")
	}

	hash, ok, err := m.store.GetRolePin(ctx, userID, role)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, m.fail(ctx, op, userID, role, MethodPIN, "no_pin_configured")
	}
	if !password.ValidPIN(pin) {
		return Session{}, m.fail(ctx, op, userID, role, MethodPIN, "malformed_pin")
	}
	match, err := m.hasher.Verify(hash, pin)
	if err != nil {
		if errors.Is(err, password.ErrInvalidHash) {
			return Session{}, m.fail(ctx, op, userID, role, MethodPIN, "stored_hash_invalid")
		}
		return Session{}, err
	}
	if !match {
		return Session{}, m.fail(ctx, op, userID, role, MethodPIN, "wrong_pin")
	}
	return m.open(ctx, userID, role, MethodPIN), nil
}

// VerifyWithPassword opens a session for role if pw matches the account password.
func (m *Manager) VerifyWithPassword(ctx context.Context, userID string, role models.Role, pw string) (Session, error) {
	const op = "verifyWithPassword"
	if !models.ValidRole(role) {
		return Session{}, models.E(op, models.ErrInvalidInput, "unknown role")
	}
	if err := m.checkPassword(ctx, op, userID, role, pw); err != nil {
		return Session{}, err
	}
	return m.open(ctx, userID, role, MethodPassword), nil
}

func (m *Manager) checkPassword(ctx context.Context, op, userID string, role models.Role, pw string) error {
	u, err := m.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return m.fail(ctx, op, userID, role, MethodPassword, "user_not_found")
		}
		return err
	}
	if u.PasswordHash == "" {
		return m.fail(ctx, op, userID, role, MethodPassword, "no_password")
	}
	match, err := m.hasher.Verify(u.PasswordHash, pw)
	if err != nil && !errors.Is(err, password.ErrInvalidHash) {
		return err
	}
	if !match {
		return m.fail(ctx, op, userID, role, MethodPassword, "wrong_password")
	}
	return nil
}

func (m *Manager) open(ctx context.Context, userID string, role models.Role, method Method) Session {
	m.mu.Lock()
	now := m.now()
	s := Session{Role: role, Method: method, VerifiedAt: now, ExpiresAt: now.Add(m.ttl)}
	m.sessions[key{userID, role}] = s
	m.setGauge()
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RoleVerification.WithLabelValues(string(method), "success").Inc()
	}
	m.log.Info("role.verify.success", "user_id", userID, "role", role, "method", method, "expires_at", s.ExpiresAt)
	m.audit(ctx, "role.verify.success", userID, role, nil, map[string]any{"method": method})
	return s
}

// fail records a rejected verification and returns VerificationFailed. No
// session state is touched.
func (m *Manager) fail(ctx context.Context, op, userID string, role models.Role, method Method, reason string) error {
	if m.metrics != nil {
		m.metrics.RoleVerification.WithLabelValues(string(method), "failure").Inc()
	}
	m.log.Warn("role.verify.failed", "user_id", userID, "role", role, "method", method, "reason", reason)
	m.audit(ctx, "role.verify.failed", userID, role, &reason, map[string]any{"method": method})
	return models.E(op, models.ErrVerificationFailed, "")
}

func (m *Manager) audit(ctx context.Context, action, userID string, role models.Role, reason *string, meta map[string]any) {
	r := string(role)
	e := &models.AuditEvent{Action: action, ActorID: &userID, Role: &r, Reason: reason}
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			s := string(b)
			e.Meta = &s
		}
	}
	if err := m.store.InsertAudit(ctx, e); err != nil {
		m.log.Error("audit.insert.failed", "action", action, "err", err)
	}
}

// Session returns the live session for (userID, role).
func (m *Manager) Session(userID string, role models.Role) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key{userID, role}]
	if !ok || !m.now().Before(s.ExpiresAt) {
		return Session{}, false
	}
	return s, true
}

// IsVerified reports whether (userID, role) has a session that has not
// reached its expiry instant.
func (m *Manager) IsVerified(userID string, role models.Role) bool {
	_, ok := m.Session(userID, role)
	return ok
}

// Clear removes one role's session. It reports whether one existed.
func (m *Manager) Clear(userID string, role models.Role) bool {
	m.mu.Lock()
	k := key{userID, role}
	_, ok := m.sessions[k]
	delete(m.sessions, k)
	m.setGauge()
	m.mu.Unlock()

	return ok
}

// ClearAll removes every session of userID and returns how many were dropped.
func (m *Manager) ClearAll(userID string) int {
	m.mu.Lock()
	dropped := 0
	for k := range m.sessions {
		if k.userID == userID {
			delete(m.sessions, k)
			dropped++
		}
	}
	m.setGauge()
	m.mu.Unlock()

	return dropped
}

// Sweep drops expired sessions and returns how many were removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	now := m.now()
	removed := 0
	for k, s := range m.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(m.sessions, k)
			removed++
		}
	}
	m.setGauge()
	m.mu.Unlock()

	return removed
}

// Len returns the number of stored sessions, expired ones included.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Sweep(); n > 0 {
				m.log.Debug("role.sessions.swept", "removed", n)
			}
		}
	}
}

// setGauge must be called with m.mu held so the published value follows
// the map in lock order.
func (m *Manager) setGauge() {
	if m.metrics != nil {
		m.metrics.RoleSessionsActive.Set(float64(len(m.sessions)))
	}
}
