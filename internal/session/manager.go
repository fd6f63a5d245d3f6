// Package session holds the client-side authentication session derived from a bearer token.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/bookshelf/internal/clock"
	"github.com/and161185/bookshelf/internal/errs"
	"github.com/and161185/bookshelf/internal/tokencodec"
)

// DefaultLoginError is shown when the identity provider gives no reason.
const DefaultLoginError = "login failed"

// Authenticator exchanges credentials for an access token.
type Authenticator interface {
	PasswordToken(ctx context.Context, username, password string) (string, error)
}

// Navigator is told to show the login entry point.
type Navigator interface {
	ToLogin()
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func()

func (f NavigatorFunc) ToLogin() { f() }

// Snapshot is the observable session state.
type Snapshot struct {
	LoggedIn  bool
	Principal string
	Roles     []string
	ExpiresAt *time.Time
}

type observer struct {
	id int
	fn func(Snapshot)
}

// Manager owns the session. Safe for concurrent use.
type Manager struct {
	store Store
	auth  Authenticator
	clock clock.Clock
	nav   Navigator
	log   *zap.Logger

	mu        sync.Mutex
	token     string
	username  string
	claims    tokencodec.Claims
	loggedIn  bool // last announced state, used for transition detection
	loginErr  string
	observers []observer
	nextID    int
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option { return func(m *Manager) { m.clock = c } }

// WithNavigator sets the redirect target used on logout.
func WithNavigator(n Navigator) Option { return func(m *Manager) { m.nav = n } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(m *Manager) { m.log = l } }

// NewManager restores the session from store and purges it if no longer valid.
func NewManager(store Store, auth Authenticator, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		auth:  auth,
		clock: clock.New(),
		nav:   NavigatorFunc(func() {}),
		log:   zap.NewNop(),
	}
	for _, o := range opts {
		o(m)
	}
	m.log = m.log.Named("session")

	rec, err := store.Load()
	switch {
	case err == nil:
		m.token = rec.AccessToken
		m.username = rec.Username
		if c, derr := tokencodec.Decode(rec.AccessToken); derr == nil {
			m.claims = c
			m.loggedIn = c.ValidAt(m.clock.Now())
		}
	case errors.Is(err, errs.ErrNoSession):
	default:
		m.log.Warn("load session", zap.Error(err))
	}
	m.CheckValidity()
	return m
}

// Login performs the password grant and stores the token on success.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	m.mu.Lock()
	m.loginErr = ""
	m.mu.Unlock()

	tok, err := m.auth.PasswordToken(ctx, username, password)
	if err != nil {
		return m.fail(username, err)
	}
	claims, err := tokencodec.Decode(tok)
	if err != nil {
		return m.fail(username, &errs.Error{Kind: errs.KindLoginFailure, Message: "identity provider returned an unusable token", Err: err})
	}
	if !claims.ValidAt(m.clock.Now()) {
		return m.fail(username, &errs.Error{Kind: errs.KindLoginFailure, Message: "identity provider returned an expired token"})
	}

	rec := Record{AccessToken: tok, Username: username}
	if claims.ExpiresAt != nil {
		rec.ExpiresAt = *claims.ExpiresAt
	}
	if err := m.store.Save(rec); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	m.mu.Lock()
	m.token = tok
	m.username = username
	m.claims = claims
	m.loggedIn = true
	snap := m.snapshotLocked()
	subs := m.subscribersLocked()
	m.mu.Unlock()

	m.log.Info("logged in", zap.String("user", username), zap.Strings("roles", claims.Roles))
	notify(subs, snap)
	return nil
}

func (m *Manager) fail(username string, err error) error {
	reason := DefaultLoginError
	var e *errs.Error
	if errors.As(err, &e) && e.Message != "" {
		reason = e.Message
	}
	m.mu.Lock()
	m.loginErr = reason
	m.mu.Unlock()

	m.log.Info("login failed", zap.String("user", username), zap.String("reason", reason))
	if errors.Is(err, errs.ErrLoginFailed) || errors.Is(err, errs.ErrUnreachable) {
		return err
	}
	return &errs.Error{Kind: errs.KindLoginFailure, Message: reason, Err: err}
}

// Logout clears the session and sends the user to login. Calling it twice is harmless.
func (m *Manager) Logout() {
	changed, snap, subs := m.reset()
	if changed {
		m.log.Info("logged out")
		notify(subs, snap)
	}
	m.nav.ToLogin()
}

// reset wipes memory and storage and reports whether the announced state changed.
func (m *Manager) reset() (bool, Snapshot, []func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Clear(); err != nil {
		m.log.Warn("clear session", zap.Error(err))
	}
	was := m.loggedIn
	m.token = ""
	m.username = ""
	m.claims = tokencodec.Claims{}
	m.loggedIn = false
	return was, m.snapshotLocked(), m.subscribersLocked()
}

// IsLoggedIn re-derives validity from the stored token and the current time.
func (m *Manager) IsLoggedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validLocked()
}

func (m *Manager) validLocked() bool {
	return m.token != "" && m.claims.ValidAt(m.clock.Now())
}

// HasRole reports whether the logged-in principal carries role.
func (m *Manager) HasRole(role string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validLocked() && m.claims.HasRole(role)
}

// Roles returns the roles of a valid session, or nil.
func (m *Manager) Roles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.validLocked() {
		return nil
	}
	return append([]string(nil), m.claims.Roles...)
}

// CurrentToken returns the bearer token while the session is valid.
func (m *Manager) CurrentToken() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.validLocked() {
		return "", false
	}
	return m.token, true
}

// Snapshot returns the current observable state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	if !m.validLocked() {
		return Snapshot{Roles: []string{}}
	}
	s := Snapshot{
		LoggedIn:  true,
		Principal: m.username,
		Roles:     append([]string{}, m.claims.Roles...),
	}
	if m.claims.PreferredUsername != "" {
		s.Principal = m.claims.PreferredUsername
	}
	if m.claims.ExpiresAt != nil {
		t := *m.claims.ExpiresAt
		s.ExpiresAt = &t
	}
	return s
}

// LoginError returns the reason of the last failed login, if any.
func (m *Manager) LoginError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loginErr
}

// ClearError forgets the last login failure.
func (m *Manager) ClearError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loginErr = ""
}

// CheckValidity purges a stored token that is malformed or expired.
// It reports whether the session is still valid.
func (m *Manager) CheckValidity() bool {
	m.mu.Lock()
	if m.token == "" {
		m.loggedIn = false
		m.mu.Unlock()
		return false
	}
	if m.validLocked() {
		m.mu.Unlock()
		return true
	}
	m.mu.Unlock()

	changed, snap, subs := m.reset()
	m.log.Info("stored token expired or invalid, session cleared")
	if changed {
		notify(subs, snap)
	}
	return false
}

// Watch runs CheckValidity every interval until ctx is done.
func (m *Manager) Watch(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.CheckValidity()
		}
	}
}

// Subscribe registers fn for state changes. The returned func unregisters it.
func (m *Manager) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.observers = append(m.observers, observer{id: id, fn: fn})
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, o := range m.observers {
			if o.id == id {
				m.observers = append(m.observers[:i], m.observers[i+1:]...)
				return
			}
		}
	}
}

func (m *Manager) subscribersLocked() []func(Snapshot) {
	out := make([]func(Snapshot), len(m.observers))
	for i, o := range m.observers {
		out[i] = o.fn
	}
	return out
}

func notify(subs []func(Snapshot), s Snapshot) {
	for _, fn := range subs {
		fn(s)
	}
}
