package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/VPR42/servigo-go/internal/model"
)

const (
	loginPath    = "/auth/login"
	registerPath = "/auth/register"
	refreshPath  = "/auth/refresh"
	logoutPath   = "/auth/logout"
	mePath       = "/auth/me"
)

type AuthResponse struct {
	AccessToken string     `json:"accessToken"`
	User        model.User `json:"user"`
}

// Login exchanges credentials for a token and persists it. A 401 here maps
// to invalid credentials and never enters the refresh flow.
func (c *Client) Login(ctx context.Context, creds model.Credentials) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, loginPath, nil, creds, &out); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if err := c.tokens.Save(ctx, out.AccessToken); err != nil {
		return nil, fmt.Errorf("persist token: %w", err)
	}
	log.Info().Str("userId", out.User.ID).Msg("logged in")
	return &out, nil
}

func (c *Client) Register(ctx context.Context, params model.RegisterParams) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, registerPath, nil, params, &out); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	if err := c.tokens.Save(ctx, out.AccessToken); err != nil {
		return nil, fmt.Errorf("persist token: %w", err)
	}
	log.Info().Str("userId", out.User.ID).Msg("registered")
	return &out, nil
}

// Logout tells the server to invalidate the session and clears the persisted
// token either way.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, logoutPath, nil, nil, nil)
	if clearErr := c.tokens.Clear(ctx); clearErr != nil {
		return fmt.Errorf("clear token: %w", clearErr)
	}
	if err != nil {
		log.Warn().Err(err).Msg("server-side logout failed, local session cleared")
	}
	return nil
}

// Me returns the profile of the authenticated user.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var out model.User
	if err := c.do(ctx, http.MethodGet, mePath, nil, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	return &out, nil
}
