package devserver_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VPR42/servigo-go/internal/api"
	"github.com/VPR42/servigo-go/internal/chat"
	"github.com/VPR42/servigo-go/internal/devserver"
	apperrors "github.com/VPR42/servigo-go/internal/errors"
	"github.com/VPR42/servigo-go/internal/model"
	"github.com/VPR42/servigo-go/internal/token"
)

type env struct {
	server  *devserver.Server
	httpSrv *httptest.Server
}

func newEnv(t *testing.T) *env {
	t.Helper()
	server := devserver.New()
	server.Seed()
	httpSrv := httptest.NewServer(server)
	t.Cleanup(httpSrv.Close)
	return &env{server: server, httpSrv: httpSrv}
}

func (e *env) apiBase() string {
	return e.httpSrv.URL + "/api/v1"
}

func (e *env) wsBase() string {
	return strings.Replace(e.httpSrv.URL, "http", "ws", 1) + "/api/v1/ws"
}

func (e *env) login(t *testing.T, email, password string) (*api.Client, *model.User) {
	t.Helper()
	client := api.New(e.apiBase(), token.NewMemoryStore())
	resp, err := client.Login(context.Background(), model.Credentials{Email: email, Password: password})
	require.NoError(t, err)
	return client, &resp.User
}

func TestAuthFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	t.Run("register then fetch profile", func(t *testing.T) {
		client := api.New(e.apiBase(), token.NewMemoryStore())
		resp, err := client.Register(ctx, model.RegisterParams{
			Email:    "new@servigo.local",
			Password: "secret99",
			Name:     "Newcomer",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.AccessToken)

		me, err := client.Me(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Newcomer", me.Name)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		client := api.New(e.apiBase(), token.NewMemoryStore())
		_, err := client.Register(ctx, model.RegisterParams{
			Email:    "client@servigo.local",
			Password: "whatever",
			Name:     "Impostor",
		})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConflict))
	})

	t.Run("wrong password is invalid credentials", func(t *testing.T) {
		client := api.New(e.apiBase(), token.NewMemoryStore())
		_, err := client.Login(ctx, model.Credentials{Email: "client@servigo.local", Password: "nope"})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidCredentials))
	})

	t.Run("logout invalidates the session", func(t *testing.T) {
		client, _ := e.login(t, "client@servigo.local", "client123")
		require.NoError(t, client.Logout(ctx))

		_, err := client.Me(ctx)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAuthExpired))
	})
}

func TestCatalogAndOrders(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	client, user := e.login(t, "client@servigo.local", "client123")

	var serviceID string
	t.Run("browse seeded services", func(t *testing.T) {
		page, err := client.ListServices(ctx, model.ServiceFilter{})
		require.NoError(t, err)
		require.NotEmpty(t, page.Items)
		assert.Equal(t, 2, page.Total)
		serviceID = page.Items[0].ID
	})

	t.Run("filter by category", func(t *testing.T) {
		page, err := client.ListServices(ctx, model.ServiceFilter{CategoryID: "cat-2"})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "Bathroom deep clean", page.Items[0].Title)
	})

	t.Run("empty favorites is an empty list", func(t *testing.T) {
		favorites, err := client.Favorites(ctx)
		require.NoError(t, err)
		assert.Empty(t, favorites)
	})

	t.Run("favorite round trip", func(t *testing.T) {
		require.NoError(t, client.AddFavorite(ctx, serviceID))

		favorites, err := client.Favorites(ctx)
		require.NoError(t, err)
		require.Len(t, favorites, 1)
		assert.Equal(t, serviceID, favorites[0].ID)

		require.NoError(t, client.RemoveFavorite(ctx, serviceID))
		favorites, err = client.Favorites(ctx)
		require.NoError(t, err)
		assert.Empty(t, favorites)
	})

	t.Run("order lifecycle", func(t *testing.T) {
		order, err := client.CreateOrder(ctx, model.CreateOrderParams{
			ServiceID: serviceID,
			Comment:   "tomorrow morning if possible",
		})
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusPending, order.Status)
		assert.Equal(t, user.ID, order.ClientID)

		master, _ := e.login(t, "master@servigo.local", "master123")
		orders, err := master.Orders(ctx)
		require.NoError(t, err)
		require.Len(t, orders, 1)

		updated, err := master.UpdateOrderStatus(ctx, order.ID, model.OrderStatusAccepted)
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusAccepted, updated.Status)
	})

	t.Run("reference data is served", func(t *testing.T) {
		cities, err := client.Cities(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, cities)

		categories, err := client.Categories(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, categories)

		skills, err := client.Skills(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, skills)
	})
}

func TestChatOverWebsocket(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	client, clientUser := e.login(t, "client@servigo.local", "client123")
	master, masterUser := e.login(t, "master@servigo.local", "master123")

	clientChat := chat.NewManager(client, e.wsBase(), clientUser.ID)
	masterChat := chat.NewManager(master, e.wsBase(), masterUser.ID)

	chats, err := clientChat.LoadChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 1, "seeded conversation expected")
	chatID := chats[0].ID

	t.Run("history loads the seeded message", func(t *testing.T) {
		require.NoError(t, clientChat.Activate(ctx, chatID))
		messages := clientChat.Messages(chatID)
		require.Len(t, messages, 1)
		assert.Equal(t, masterUser.ID, messages[0].SenderID)
	})

	t.Run("messages flow both ways", func(t *testing.T) {
		require.NoError(t, masterChat.Activate(ctx, chatID))

		require.NoError(t, clientChat.Send(ctx, "Does 10am work?"))

		require.Eventually(t, func() bool {
			for _, msg := range masterChat.Messages(chatID) {
				if msg.Content == "Does 10am work?" {
					return true
				}
			}
			return false
		}, 3*time.Second, 20*time.Millisecond, "master should receive the pushed message")

		require.NoError(t, masterChat.Send(ctx, "10am works, see you then"))

		require.Eventually(t, func() bool {
			for _, msg := range clientChat.Messages(chatID) {
				if msg.Content == "10am works, see you then" {
					return true
				}
			}
			return false
		}, 3*time.Second, 20*time.Millisecond, "client should receive the reply")
	})

	t.Run("server echo of own message is absorbed", func(t *testing.T) {
		// Give the echo time to arrive, then confirm no duplicate was kept.
		time.Sleep(200 * time.Millisecond)
		var count int
		for _, msg := range clientChat.Messages(chatID) {
			if msg.Content == "Does 10am work?" {
				count++
			}
		}
		assert.Equal(t, 1, count)
	})

	t.Run("chatmate is resolved", func(t *testing.T) {
		chatmate, err := clientChat.Chatmate(ctx, chatID)
		require.NoError(t, err)
		assert.Equal(t, masterUser.ID, chatmate.ID)
	})

	t.Run("outsider cannot open the socket", func(t *testing.T) {
		outsider := api.New(e.apiBase(), token.NewMemoryStore())
		resp, err := outsider.Register(ctx, model.RegisterParams{
			Email:    "outsider@servigo.local",
			Password: "outsider1",
			Name:     "Outsider",
		})
		require.NoError(t, err)

		stranger := chat.NewManager(outsider, e.wsBase(), resp.User.ID)
		err = stranger.Activate(ctx, chatID)
		require.Error(t, err)
	})

	clientChat.Deactivate()
	masterChat.Deactivate()
}

func TestTransparentRefresh(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	client, user := e.login(t, "client@servigo.local", "client123")

	e.server.ExpireAllSessions()

	// The expired token triggers a 401, a single refresh cycle and a retry;
	// the caller never sees the detour.
	me, err := client.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, user.ID, me.ID)

	// The rotated token keeps working for subsequent calls.
	_, err = client.ListServices(ctx, model.ServiceFilter{})
	require.NoError(t, err)
}

func TestSweeperDropsExpiredSessions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	client, _ := e.login(t, "client@servigo.local", "client123")

	e.server.ExpireAllSessions()

	sweeper := devserver.NewSweeper(e.server.Store(), 10*time.Millisecond)
	sweeper.Start()
	time.Sleep(50 * time.Millisecond)
	sweeper.Stop()

	// The token is gone from the session table, so refresh is refused and
	// the session is lost for good.
	_, err := client.Me(ctx)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAuthExpired))
}
