package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/VPR42/servigo-go/internal/errors"
	"github.com/VPR42/servigo-go/internal/model"
	"github.com/VPR42/servigo-go/internal/token"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func TestBearerAttachment(t *testing.T) {
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, model.User{ID: "u1"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	tokens := token.NewMemoryStore()
	require.NoError(t, tokens.Save(context.Background(), "tok-abc"))
	client := New(server.URL, tokens)

	user, err := client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "Bearer tok-abc", gotAuth)
}

func TestSingleFlightRefresh(t *testing.T) {
	var refreshCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		// Hold the cycle open long enough for every concurrent 401 to join it.
		time.Sleep(100 * time.Millisecond)
		writeJSON(w, http.StatusOK, map[string]string{"accessToken": "fresh"})
	})
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "token expired"})
			return
		}
		writeJSON(w, http.StatusOK, []model.Order{})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	tokens := token.NewMemoryStore()
	require.NoError(t, tokens.Save(context.Background(), "stale"))
	client := New(server.URL, tokens)

	const concurrency = 8
	errs := make([]error, concurrency)
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = client.Orders(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "request %d", i)
	}
	assert.Equal(t, int32(1), refreshCalls.Load(), "exactly one refresh call must reach the server")

	stored, err := tokens.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", stored)
}

func TestNoDoubleRetry(t *testing.T) {
	var refreshCalls, orderCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		writeJSON(w, http.StatusOK, map[string]string{"accessToken": "fresh"})
	})
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		orderCalls.Add(1)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "still expired"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	tokens := token.NewMemoryStore()
	require.NoError(t, tokens.Save(context.Background(), "stale"))
	client := New(server.URL, tokens)

	_, err := client.Orders(context.Background())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAuthExpired))
	assert.Equal(t, int32(1), refreshCalls.Load(), "second 401 must not trigger another refresh")
	assert.Equal(t, int32(2), orderCalls.Load(), "request is retried exactly once")
}

func TestRefreshEndpointExemption(t *testing.T) {
	var refreshCalls atomic.Int32
	var authLost atomic.Bool

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "refresh token invalid"})
	})
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "token expired"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	tokens := token.NewMemoryStore()
	require.NoError(t, tokens.Save(context.Background(), "stale"))
	client := New(server.URL, tokens, WithAuthLostHandler(func() { authLost.Store(true) }))

	_, err := client.Orders(context.Background())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAuthExpired))
	assert.Equal(t, int32(1), refreshCalls.Load(), "a 401 on refresh itself never recurses")
	assert.True(t, authLost.Load())

	stored, loadErr := tokens.Load(context.Background())
	require.NoError(t, loadErr)
	assert.Empty(t, stored, "failed refresh clears the persisted token")
}

func TestRefreshSlotResets(t *testing.T) {
	var refreshCalls atomic.Int32
	var accept atomic.Bool

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		if accept.Load() {
			writeJSON(w, http.StatusOK, map[string]string{"accessToken": "fresh"})
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "nope"})
	})
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "token expired"})
			return
		}
		writeJSON(w, http.StatusOK, []model.Order{})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	tokens := token.NewMemoryStore()
	require.NoError(t, tokens.Save(context.Background(), "stale"))
	client := New(server.URL, tokens)

	// First cycle fails and settles.
	_, err := client.Orders(context.Background())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAuthExpired))

	// A later 401 starts a brand new cycle, which now succeeds.
	accept.Store(true)
	require.NoError(t, tokens.Save(context.Background(), "stale-again"))
	_, err = client.Orders(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int32(2), refreshCalls.Load())
}

func TestLogin401MapsToInvalidCredentials(t *testing.T) {
	var refreshCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "wrong password"})
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		writeJSON(w, http.StatusOK, map[string]string{"accessToken": "fresh"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := New(server.URL, token.NewMemoryStore())

	_, err := client.Login(context.Background(), model.Credentials{Email: "a@b.c", Password: "bad"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidCredentials))
	assert.Equal(t, int32(0), refreshCalls.Load(), "login 401 never enters the refresh flow")
}

func TestLoginPersistsToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds model.Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "a@b.c", creds.Email)
		writeJSON(w, http.StatusOK, AuthResponse{
			AccessToken: "tok-login",
			User:        model.User{ID: "u1", Email: creds.Email},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	tokens := token.NewMemoryStore()
	client := New(server.URL, tokens)

	resp, err := client.Login(context.Background(), model.Credentials{Email: "a@b.c", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "u1", resp.User.ID)

	stored, err := tokens.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-login", stored)
}

func TestTimeoutSurfacesAsNetworkError(t *testing.T) {
	var refreshCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		writeJSON(w, http.StatusOK, []model.Order{})
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := New(server.URL, token.NewMemoryStore(), WithTimeout(50*time.Millisecond))

	_, err := client.Orders(context.Background())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNetwork))
	assert.Equal(t, int32(0), refreshCalls.Load(), "timeouts never trigger the refresh flow")
}

func TestFavorites404IsEmptyList(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/favorites", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "No favorites found"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := New(server.URL, token.NewMemoryStore())

	favorites, err := client.Favorites(context.Background())
	require.NoError(t, err)
	assert.Empty(t, favorites)
}

func TestServerMessageExtraction(t *testing.T) {
	t.Run("message field", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/services", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "storage unavailable"})
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		client := New(server.URL, token.NewMemoryStore())
		_, err := client.ListServices(context.Background(), model.ServiceFilter{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage unavailable")
	})

	t.Run("error field fallback", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/services", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "broken"})
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		client := New(server.URL, token.NewMemoryStore())
		_, err := client.ListServices(context.Background(), model.ServiceFilter{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken")
	})

	t.Run("generic fallback for unparseable body", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/services", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("<html>oops</html>"))
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		client := New(server.URL, token.NewMemoryStore())
		_, err := client.ListServices(context.Background(), model.ServiceFilter{})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeServer))
	})
}

func TestRetriedCallSucceedsTransparently(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"accessToken": "fresh"})
	})
	mux.HandleFunc("/chats", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "token expired"})
			return
		}
		writeJSON(w, http.StatusOK, []model.Chat{{ID: "chat-1"}})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	tokens := token.NewMemoryStore()
	require.NoError(t, tokens.Save(context.Background(), "stale"))
	client := New(server.URL, tokens)

	chats, err := client.Chats(context.Background())
	require.NoError(t, err, "caller must not observe the mid-session expiry")
	require.Len(t, chats, 1)
	assert.Equal(t, "chat-1", chats[0].ID)
}
