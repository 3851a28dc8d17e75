// ABOUTME: Session manager owning authentication state, persistence, and the push connection lifecycle
// ABOUTME: Explicit state container; readers subscribe to State snapshots instead of reaching into globals

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arham771790/Chat-Frontend/internal/api"
	"github.com/arham771790/Chat-Frontend/internal/auth"
	"github.com/arham771790/Chat-Frontend/internal/broadcast"
	"github.com/arham771790/Chat-Frontend/internal/notify"
	"github.com/arham771790/Chat-Frontend/internal/store"
)

// ErrUnauthenticated is returned when an operation needs a session and
// there is none, and by CheckAuth when no session could be established.
var ErrUnauthenticated = errors.New("session: not authenticated")

// Notification texts.
const (
	msgSignupOK       = "Account created successfully"
	msgSignupFailed   = "Signup failed"
	msgLoginOK        = "Logged in successfully"
	msgLoginFailed    = "Failed to login"
	msgLogoutOK       = "Logged out successfully"
	msgLogoutFailed   = "Some error occurred while logging out"
	msgProfileOK      = "Profile updated successfully"
	msgProfileFailed  = "Failed to update profile"
	msgSessionExpired = "Session expired, please log in again"
)

// Backend is the part of the REST API the manager calls.
type Backend interface {
	CheckAuth(ctx context.Context) (api.User, error)
	Refresh(ctx context.Context) (api.User, error)
	Signup(ctx context.Context, req api.SignupRequest) (api.User, error)
	Login(ctx context.Context, creds api.Credentials) (api.LoginResult, error)
	Logout(ctx context.Context) error
	UpdateProfile(ctx context.Context, update api.ProfileUpdate) (api.User, error)
}

// Socket is the push connection whose lifecycle the manager drives.
type Socket interface {
	Connect(ctx context.Context, userID string) error
	Disconnect()
}

// credentialClearer is implemented by backends holding session cookies.
type credentialClearer interface {
	ClearCredentials()
}

// State is a snapshot of the session.
type State struct {
	User              *api.User // nil when signed out
	IsCheckingAuth    bool
	IsSigningUp       bool
	IsLoggingIn       bool
	IsUpdatingProfile bool
}

// Authenticated reports whether a user is signed in.
func (s State) Authenticated() bool {
	return s.User != nil
}

// Options configure a Manager.
type Options struct {
	API      Backend
	Socket   Socket
	Storage  store.Store
	Notifier notify.Notifier
	Logger   *slog.Logger
}

// Manager owns the signed-in user. Construct one per process and pass it to
// whatever needs the current identity.
type Manager struct {
	api      Backend
	socket   Socket
	storage  store.Store
	notifier notify.Notifier
	logger   *slog.Logger
	now      func() time.Time

	mu           sync.Mutex
	state        State
	checkStarted bool

	changes *broadcast.Broadcaster[State]
}

// NewManager creates a manager in the "checking" state. Call CheckAuth once
// at startup to resolve it.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Discard{}
	}

	return &Manager{
		api:      opts.API,
		socket:   opts.Socket,
		storage:  opts.Storage,
		notifier: notifier,
		logger:   logger.With("component", "session"),
		now:      time.Now,
		state:    State{IsCheckingAuth: true},
		changes:  broadcast.New[State](logger, "session"),
	}
}

// State returns the current snapshot.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// User returns a copy of the signed-in user, or nil.
func (m *Manager) User() *api.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.User == nil {
		return nil
	}
	u := *m.state.User
	return &u
}

// UserID returns the signed-in user's id, or "".
func (m *Manager) UserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.User == nil {
		return ""
	}
	return m.state.User.ID
}

// Subscribe returns a channel receiving a snapshot after every change.
func (m *Manager) Subscribe(ctx context.Context) (<-chan State, string) {
	return m.changes.Subscribe(ctx)
}

// Unsubscribe removes a subscription created by Subscribe.
func (m *Manager) Unsubscribe(id string) {
	m.changes.Unsubscribe(id)
}

// Close ends every subscription.
func (m *Manager) Close() {
	m.changes.Close()
}

// CheckAuth resolves the session at startup: the persisted user first, then
// the server's session check, then exactly one refresh. Only the first call
// does anything.
func (m *Manager) CheckAuth(ctx context.Context) error {
	m.mu.Lock()
	if m.checkStarted {
		authed := m.state.User != nil
		m.mu.Unlock()
		if authed {
			return nil
		}
		return ErrUnauthenticated
	}
	m.checkStarted = true
	m.mu.Unlock()

	// Trust the local copy without revalidating it
	if user, ok := m.loadPersistedUser(ctx); ok {
		m.logger.Info("restored persisted session", "user_id", user.ID)
		m.warnIfTokenExpired(ctx)
		m.finishCheck(&user)
		m.connect(ctx)
		return nil
	}

	user, err := m.api.CheckAuth(ctx)
	if err == nil {
		m.logger.Info("session check succeeded", "user_id", user.ID)
		m.persistUser(ctx, user)
		m.finishCheck(&user)
		m.connect(ctx)
		return nil
	}
	m.logger.Info("session check failed, refreshing", "error", err)

	user, err = m.api.Refresh(ctx)
	if err == nil {
		m.logger.Info("session refreshed", "user_id", user.ID)
		m.persistUser(ctx, user)
		m.finishCheck(&user)
		m.connect(ctx)
		return nil
	}

	m.logger.Warn("session refresh failed", "error", err)
	m.notifier.Error(api.MessageOr(err, msgSessionExpired))
	m.clearStorage(ctx)
	m.finishCheck(nil)
	return fmt.Errorf("%w: %w", ErrUnauthenticated, err)
}

// Signup creates an account and signs it in.
func (m *Manager) Signup(ctx context.Context, req api.SignupRequest) error {
	if err := ValidateSignup(req); err != nil {
		m.notifier.Error(err.Error())
		return err
	}

	m.setFlag(func(s *State) { s.IsSigningUp = true })
	defer m.setFlag(func(s *State) { s.IsSigningUp = false })

	user, err := m.api.Signup(ctx, req)
	if err != nil {
		m.logger.Warn("signup failed", "email", req.Email, "error", err)
		m.notifier.Error(api.MessageOr(err, msgSignupFailed))
		return fmt.Errorf("signup: %w", err)
	}

	m.persistUser(ctx, user)
	m.adopt(&user)
	m.connect(ctx)
	m.notifier.Success(msgSignupOK)
	return nil
}

// Login signs in with email and password, persisting the user and any
// issued tokens.
func (m *Manager) Login(ctx context.Context, creds api.Credentials) error {
	if err := ValidateCredentials(creds); err != nil {
		m.notifier.Error(err.Error())
		return err
	}

	m.setFlag(func(s *State) { s.IsLoggingIn = true })
	defer m.setFlag(func(s *State) { s.IsLoggingIn = false })

	res, err := m.api.Login(ctx, creds)
	if err != nil {
		m.logger.Warn("login failed", "email", creds.Email, "error", err)
		m.notifier.Error(msgLoginFailed)
		return fmt.Errorf("login: %w", err)
	}

	m.persistToken(ctx, store.KeyAccessToken, res.AccessToken)
	m.persistToken(ctx, store.KeyRefreshToken, res.RefreshToken)
	m.persistUser(ctx, res.User)
	m.adopt(&res.User)
	m.connect(ctx)
	m.notifier.Success(msgLoginOK)
	return nil
}

// Logout ends the session. The server call is best effort; local state is
// always cleared.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.api.Logout(ctx); err != nil {
		m.logger.Warn("logout request failed", "error", err)
		m.notifier.Error(msgLogoutFailed)
	}

	m.DisconnectSocket()
	m.clearStorage(ctx)
	if c, ok := m.api.(credentialClearer); ok {
		c.ClearCredentials()
	}
	m.adopt(nil)
	m.notifier.Success(msgLogoutOK)
	return nil
}

// UpdateProfile changes profile fields of the signed-in user.
func (m *Manager) UpdateProfile(ctx context.Context, update api.ProfileUpdate) error {
	if m.UserID() == "" {
		return ErrUnauthenticated
	}
	if update.FullName == "" && update.ProfilePic == "" {
		err := &ValidationError{Field: "profile", Message: "Nothing to update"}
		m.notifier.Error(err.Error())
		return err
	}

	m.setFlag(func(s *State) { s.IsUpdatingProfile = true })
	defer m.setFlag(func(s *State) { s.IsUpdatingProfile = false })

	user, err := m.api.UpdateProfile(ctx, update)
	if err != nil {
		m.logger.Warn("profile update failed", "error", err)
		m.notifier.Error(api.MessageOr(err, msgProfileFailed))
		return fmt.Errorf("updating profile: %w", err)
	}

	m.persistUser(ctx, user)
	m.adopt(&user)
	m.notifier.Success(msgProfileOK)
	return nil
}

// ConnectSocket connects the push channel as the signed-in user. Without a
// session it does nothing.
func (m *Manager) ConnectSocket(ctx context.Context) error {
	userID := m.UserID()
	if userID == "" || m.socket == nil {
		return nil
	}
	return m.socket.Connect(ctx, userID)
}

// DisconnectSocket closes the push channel.
func (m *Manager) DisconnectSocket() {
	if m.socket != nil {
		m.socket.Disconnect()
	}
}

// TokenExpiry returns when the stored access token expires, read from its
// claims without verification. ok is false if there is no readable token or
// it has no expiry.
func (m *Manager) TokenExpiry(ctx context.Context) (expiresAt time.Time, ok bool) {
	if m.storage == nil {
		return time.Time{}, false
	}
	token, err := m.storage.Get(ctx, store.KeyAccessToken)
	if err != nil || token == "" {
		return time.Time{}, false
	}
	info, err := auth.Inspect(token)
	if err != nil || info.ExpiresAt.IsZero() {
		return time.Time{}, false
	}
	return info.ExpiresAt, true
}

// connect attempts the push connection. Failures are logged; the session
// stays valid without live updates.
func (m *Manager) connect(ctx context.Context) {
	if err := m.ConnectSocket(ctx); err != nil {
		m.logger.Warn("push channel connect failed", "error", err)
	}
}

func (m *Manager) warnIfTokenExpired(ctx context.Context) {
	expiresAt, ok := m.TokenExpiry(ctx)
	if ok && !m.now().Before(expiresAt) {
		m.logger.Warn("restored session uses an expired access token", "expired_at", expiresAt)
	}
}

func (m *Manager) loadPersistedUser(ctx context.Context) (api.User, bool) {
	if m.storage == nil {
		return api.User{}, false
	}
	raw, err := m.storage.Get(ctx, store.KeyAuthUser)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.logger.Warn("reading persisted user", "error", err)
		}
		return api.User{}, false
	}

	var user api.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil || user.ID == "" {
		m.logger.Warn("ignoring unreadable persisted user")
		return api.User{}, false
	}
	return user, true
}

func (m *Manager) persistUser(ctx context.Context, user api.User) {
	if m.storage == nil {
		return
	}
	data, err := json.Marshal(user)
	if err != nil {
		m.logger.Error("encoding user", "error", err)
		return
	}
	if err := m.storage.Set(ctx, store.KeyAuthUser, string(data)); err != nil {
		m.logger.Error("persisting user", "error", err)
	}
}

func (m *Manager) persistToken(ctx context.Context, key, token string) {
	if m.storage == nil || token == "" {
		return
	}
	if err := m.storage.Set(ctx, key, token); err != nil {
		m.logger.Error("persisting token", "key", key, "error", err)
	}
}

func (m *Manager) clearStorage(ctx context.Context) {
	if m.storage == nil {
		return
	}
	if err := m.storage.Clear(ctx); err != nil {
		m.logger.Error("clearing persisted state", "error", err)
	}
}

func (m *Manager) finishCheck(user *api.User) {
	m.update(func(s *State) {
		s.User = user
		s.IsCheckingAuth = false
	})
}

func (m *Manager) adopt(user *api.User) {
	m.update(func(s *State) { s.User = user })
}

func (m *Manager) setFlag(fn func(s *State)) {
	m.update(fn)
}

// update applies fn and publishes under mu, keeping snapshots in order.
func (m *Manager) update(fn func(s *State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.state)
	m.changes.Publish(m.snapshotLocked())
}

// snapshotLocked must be called with mu held.
func (m *Manager) snapshotLocked() State {
	snap := m.state
	if snap.User != nil {
		u := *snap.User
		snap.User = &u
	}
	return snap
}
