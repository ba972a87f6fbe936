package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/VPR42/servigo-go/internal/errors"
	"github.com/VPR42/servigo-go/internal/token"
)

// DefaultTimeout bounds every outbound call. Exceeding it surfaces as a
// network error, never as an auth failure.
const DefaultTimeout = 15 * time.Second

// Client performs all outbound API calls. Every request reads the currently
// stored bearer token; a 401 on any endpoint except login and refresh joins a
// single-flight refresh cycle and is re-issued exactly once.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  token.Store

	// onAuthLost runs when a refresh cycle fails irrecoverably, after the
	// persisted token has been cleared.
	onAuthLost func()

	refreshMu sync.Mutex
	refresh   *refreshCall
}

// refreshCall is the shared pending outcome of one refresh cycle. All callers
// that observed a 401 while it is in flight await the same result.
type refreshCall struct {
	done  chan struct{}
	token string
	err   error
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithAuthLostHandler(fn func()) Option {
	return func(c *Client) { c.onAuthLost = fn }
}

func New(baseURL string, tokens token.Store, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		tokens:  tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do marshals in as JSON, performs the request and decodes the response into
// out. A 401 outside the login and refresh endpoints triggers one refresh
// cycle and one retry of the original request.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var payload []byte
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return apperrors.Internal("failed to encode request body").WithCause(err)
		}
		payload = data
	}
	return c.invoke(ctx, method, path, query, payload, "application/json", out)
}

// invoke carries the retry-once-after-refresh contract shared by JSON and
// multipart requests.
func (c *Client) invoke(ctx context.Context, method, path string, query url.Values, payload []byte, contentType string, out any) error {
	status, body, err := c.send(ctx, method, path, query, payload, contentType, "")
	if err != nil {
		return apperrors.Network(err)
	}

	if status == http.StatusUnauthorized && path != refreshPath && path != loginPath {
		refreshed, rerr := c.refreshAccessToken(ctx)
		if rerr != nil {
			return rerr
		}
		// Re-issue the original request once with the refreshed token.
		// A second 401 falls through to the error mapping below.
		status, body, err = c.send(ctx, method, path, query, payload, contentType, refreshed)
		if err != nil {
			return apperrors.Network(err)
		}
	}

	if status >= 400 {
		return errorFromResponse(path, status, body)
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return apperrors.Server("Unexpected response from server").WithCause(err)
		}
	}
	return nil
}

// send performs one HTTP round trip. The bearer token is read from the store
// per request unless an override is supplied, so a token refreshed elsewhere
// is picked up automatically.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload []byte, contentType, tokenOverride string) (int, []byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	bearer := tokenOverride
	if bearer == "" {
		bearer, err = c.tokens.Load(ctx)
		if err != nil {
			return 0, nil, err
		}
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, data, nil
}

// refreshAccessToken joins the in-flight refresh cycle, starting one if none
// exists. Exactly one refresh request reaches the server no matter how many
// concurrent requests fail with 401.
func (c *Client) refreshAccessToken(ctx context.Context) (string, error) {
	c.refreshMu.Lock()
	call := c.refresh
	if call == nil {
		call = &refreshCall{done: make(chan struct{})}
		c.refresh = call
		go c.runRefresh(call)
	}
	c.refreshMu.Unlock()

	select {
	case <-call.done:
		return call.token, call.err
	case <-ctx.Done():
		return "", apperrors.Network(ctx.Err())
	}
}

func (c *Client) runRefresh(call *refreshCall) {
	// The cycle is shared by many callers, so it gets its own deadline
	// instead of inheriting any single caller's context.
	ctx, cancel := context.WithTimeout(context.Background(), c.http.Timeout)
	defer cancel()

	call.token, call.err = c.performRefresh(ctx)

	// Clear the slot before waking waiters so a later 401 starts a new cycle.
	c.refreshMu.Lock()
	c.refresh = nil
	c.refreshMu.Unlock()
	close(call.done)
}

func (c *Client) performRefresh(ctx context.Context) (string, error) {
	status, body, err := c.send(ctx, http.MethodPost, refreshPath, nil, nil, "", "")
	if err != nil {
		log.Warn().Err(err).Msg("token refresh transport failure")
		c.dropSession(ctx)
		return "", apperrors.AuthExpired().WithCause(err)
	}
	if status != http.StatusOK {
		log.Warn().Int("status", status).Msg("token refresh rejected")
		c.dropSession(ctx)
		return "", apperrors.AuthExpired()
	}

	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.AccessToken == "" {
		c.dropSession(ctx)
		return "", apperrors.AuthExpired().WithCause(err)
	}

	if err := c.tokens.Save(ctx, resp.AccessToken); err != nil {
		return "", apperrors.Internal("failed to persist refreshed token").WithCause(err)
	}
	log.Debug().Msg("access token refreshed")
	return resp.AccessToken, nil
}

func (c *Client) dropSession(ctx context.Context) {
	if err := c.tokens.Clear(ctx); err != nil {
		log.Error().Err(err).Msg("failed to clear persisted token")
	}
	if c.onAuthLost != nil {
		c.onAuthLost()
	}
}

// errorFromResponse maps a failure status to the client error taxonomy, with
// a best-effort extraction of the server-supplied message.
func errorFromResponse(path string, status int, body []byte) error {
	message := extractMessage(body)

	switch status {
	case http.StatusUnauthorized:
		// Login 401 means bad credentials, an expected user-facing
		// outcome. Anywhere else the token is no longer usable.
		if path == loginPath {
			return apperrors.InvalidCredentials()
		}
		return apperrors.AuthExpired()
	case http.StatusNotFound:
		if message != "" {
			return apperrors.New(apperrors.ErrCodeNotFound, message)
		}
		return apperrors.NotFound("Resource")
	case http.StatusConflict:
		if message != "" {
			return apperrors.New(apperrors.ErrCodeConflict, message)
		}
		return apperrors.Conflict("Resource")
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if message != "" {
			return apperrors.ValidationError(message)
		}
		return apperrors.ValidationError("Invalid request")
	default:
		return apperrors.Server(message)
	}
}

func extractMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}
