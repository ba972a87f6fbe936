package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/VPR42/servigo-go/internal/api"
	"github.com/VPR42/servigo-go/internal/model"
	"github.com/VPR42/servigo-go/internal/token"
)

// AuthAPI is the slice of the API client the session manager needs.
type AuthAPI interface {
	Login(ctx context.Context, creds model.Credentials) (*api.AuthResponse, error)
	Register(ctx context.Context, params model.RegisterParams) (*api.AuthResponse, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*model.User, error)
}

// Manager holds the authenticated-user state. It is authenticated iff both a
// token and a user profile are present; every mutation keeps that invariant.
type Manager struct {
	api    AuthAPI
	tokens token.Store

	mu    sync.Mutex
	user  *model.User
	token string
}

func NewManager(authAPI AuthAPI, tokens token.Store) *Manager {
	return &Manager{api: authAPI, tokens: tokens}
}

// Init restores the session from the persisted token. A missing token leaves
// the session unauthenticated; a token the server no longer accepts is
// cleared.
func (m *Manager) Init(ctx context.Context) error {
	stored, err := m.tokens.Load(ctx)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if stored == "" {
		return nil
	}

	user, err := m.api.Me(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("stored token rejected, starting unauthenticated")
		m.clear()
		return nil
	}

	// The call above may have rotated the token via the refresh flow.
	if current, err := m.tokens.Load(ctx); err == nil && current != "" {
		stored = current
	}
	m.set(stored, user)
	log.Info().Str("userId", user.ID).Msg("session restored")
	return nil
}

func (m *Manager) Login(ctx context.Context, creds model.Credentials) error {
	resp, err := m.api.Login(ctx, creds)
	if err != nil {
		return err
	}
	m.set(resp.AccessToken, &resp.User)
	return nil
}

func (m *Manager) Register(ctx context.Context, params model.RegisterParams) error {
	resp, err := m.api.Register(ctx, params)
	if err != nil {
		return err
	}
	m.set(resp.AccessToken, &resp.User)
	return nil
}

// Logout always ends with an unauthenticated local session, even when the
// server-side call fails.
func (m *Manager) Logout(ctx context.Context) error {
	err := m.api.Logout(ctx)
	m.clear()
	return err
}

// HandleAuthLost clears the in-memory session after an irrecoverable refresh
// failure. Wired to the API client's auth-lost hook.
func (m *Manager) HandleAuthLost() {
	log.Info().Msg("session expired, clearing local state")
	m.clear()
}

func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token != "" && m.user != nil
}

// User returns the current profile, or nil when unauthenticated.
func (m *Manager) User() *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

func (m *Manager) set(tok string, user *model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = tok
	m.user = user
}

func (m *Manager) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.user = nil
}
