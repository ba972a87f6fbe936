package devserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/VPR42/servigo-go/internal/config"
	"github.com/VPR42/servigo-go/internal/model"
)

// Server is the in-memory development backend. It exposes the full HTTP API
// plus the per-conversation websocket endpoint, with short-lived rotating
// bearer tokens so the client's refresh flow is exercised for real.
type Server struct {
	store    *Store
	hub      *Hub
	tokenTTL time.Duration
	router   chi.Router
}

func New() *Server {
	s := &Server{
		store:    NewStore(),
		hub:      NewHub(),
		tokenTTL: config.DevAccessTokenTTL,
	}
	s.router = s.routes()
	return s
}

// WithTokenTTL overrides the access token lifetime. Used by tests to force
// expiry quickly.
func (s *Server) WithTokenTTL(ttl time.Duration) *Server {
	s.tokenTTL = ttl
	return s
}

func (s *Server) Store() *Store { return s.store }

// ExpireAllSessions backdates every live token, forcing the next
// authenticated request into the refresh flow.
func (s *Server) ExpireAllSessions() {
	s.store.ExpireSessions()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/refresh", s.handleRefresh)

		// The websocket endpoint authenticates via query parameter because
		// browser websocket clients cannot set an Authorization header.
		r.Get("/ws/chats/{chatID}", s.handleChatSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Post("/auth/logout", s.handleLogout)
			r.Get("/auth/me", s.handleMe)

			r.Patch("/users/me", s.handleUpdateProfile)
			r.Get("/masters/{userID}", s.handleMasterProfile)
			r.Patch("/masters/me", s.handleUpdateMaster)

			r.Get("/services", s.handleListServices)
			r.Post("/services", s.handleCreateService)
			r.Get("/services/{serviceID}", s.handleGetService)
			r.Put("/services/{serviceID}", s.handleUpdateService)
			r.Delete("/services/{serviceID}", s.handleDeleteService)
			r.Post("/services/{serviceID}/cover", s.handleUploadServiceCover)

			r.Get("/favorites", s.handleFavorites)
			r.Post("/favorites/{serviceID}", s.handleAddFavorite)
			r.Delete("/favorites/{serviceID}", s.handleRemoveFavorite)

			r.Get("/orders", s.handleOrders)
			r.Post("/orders", s.handleCreateOrder)
			r.Patch("/orders/{orderID}/status", s.handleUpdateOrderStatus)

			r.Get("/cities", s.handleCities)
			r.Get("/categories", s.handleCategories)
			r.Get("/skills", s.handleSkills)

			r.Get("/chats", s.handleChats)
			r.Get("/chats/{chatID}/messages", s.handleChatHistory)
			r.Get("/chats/{chatID}/chatmate", s.handleChatmate)

			r.Post("/upload/avatar", s.handleUploadAvatar)
		})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// Seed populates the store with a pair of demo accounts, a few listings and
// one conversation, so a fresh dev server is immediately usable.
func (s *Server) Seed() {
	master, err := s.store.CreateUser(model.RegisterParams{
		Email:    "master@servigo.local",
		Password: "master123",
		Name:     "Viktor the Plumber",
		IsMaster: true,
	})
	if err != nil {
		return
	}
	client, err := s.store.CreateUser(model.RegisterParams{
		Email:    "client@servigo.local",
		Password: "client123",
		Name:     "Ana",
	})
	if err != nil {
		return
	}

	s.store.CreateService(master.ID, model.CreateServiceParams{
		Title:      "Leaky faucet repair",
		Price:      4500,
		CategoryID: "cat-1",
		CityID:     "city-1",
	})
	s.store.CreateService(master.ID, model.CreateServiceParams{
		Title:      "Bathroom deep clean",
		Price:      8000,
		CategoryID: "cat-2",
		CityID:     "city-1",
	})

	chatID := s.store.EnsureChat(client.ID, master.ID)
	s.store.AppendMessage(model.Message{
		ChatID:   chatID,
		SenderID: master.ID,
		Content:  "Hi! When would you like me to come by?",
		SentAt:   time.Now().UTC().Add(-time.Hour),
	})

	log.Info().
		Str("masterId", master.ID).
		Str("clientId", client.ID).
		Msg("development data seeded")
}
