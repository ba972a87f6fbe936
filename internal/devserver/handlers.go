package devserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/VPR42/servigo-go/internal/model"
)

type contextKey string

const userIDKey contextKey = "userID"

func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

// requireAuth resolves the bearer token to a user and stores the user id in
// the request context. Expired and unknown tokens get 401.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Missing bearer token")
			return
		}
		userID, ok := s.store.ResolveToken(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

type authResponse struct {
	AccessToken string     `json:"accessToken"`
	User        model.User `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var params model.RegisterParams
	if !decodeBody(w, r, &params) {
		return
	}
	if params.Email == "" || params.Password == "" || params.Name == "" {
		writeError(w, http.StatusBadRequest, "email, password and name are required")
		return
	}

	user, err := s.store.CreateUser(params)
	if err != nil {
		writeError(w, http.StatusConflict, "Email already registered")
		return
	}
	token, err := s.store.IssueToken(user.ID, s.tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	log.Info().Str("userId", user.ID).Msg("user registered")
	writeJSON(w, http.StatusCreated, authResponse{AccessToken: token, User: *user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if !decodeBody(w, r, &creds) {
		return
	}

	user, ok := s.store.Authenticate(creds.Email, creds.Password)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	token, err := s.store.IssueToken(user.ID, s.tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, authResponse{AccessToken: token, User: *user})
}

// handleRefresh rotates a known token, expired or not. The old token is
// invalidated in the same step.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "Missing bearer token")
		return
	}
	fresh, userID, ok := s.store.RotateToken(token, s.tokenTTL)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unknown token")
		return
	}
	log.Debug().Str("userId", userID).Msg("token rotated")
	writeJSON(w, http.StatusOK, map[string]string{"accessToken": fresh})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.store.RevokeToken(bearerToken(r))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := s.store.User(userIDFrom(r.Context()))
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var params model.UpdateProfileParams
	if !decodeBody(w, r, &params) {
		return
	}
	user, ok := s.store.UpdateUser(userIDFrom(r.Context()), params)
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleMasterProfile(w http.ResponseWriter, r *http.Request) {
	master, ok := s.store.Master(chi.URLParam(r, "userID"))
	if !ok {
		writeError(w, http.StatusNotFound, "Master profile not found")
		return
	}
	writeJSON(w, http.StatusOK, master)
}

func (s *Server) handleUpdateMaster(w http.ResponseWriter, r *http.Request) {
	var params model.UpdateMasterParams
	if !decodeBody(w, r, &params) {
		return
	}
	master, ok := s.store.UpdateMaster(userIDFrom(r.Context()), params)
	if !ok {
		writeError(w, http.StatusNotFound, "Master profile not found")
		return
	}
	writeJSON(w, http.StatusOK, master)
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	page := s.store.ListServices(model.ServiceFilter{
		Query:      r.URL.Query().Get("query"),
		CityID:     r.URL.Query().Get("cityId"),
		CategoryID: r.URL.Query().Get("categoryId"),
		Limit:      limit,
		Offset:     offset,
	})
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetService(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.store.Service(chi.URLParam(r, "serviceID"))
	if !ok {
		writeError(w, http.StatusNotFound, "Service not found")
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (s *Server) handleCreateService(w http.ResponseWriter, r *http.Request) {
	var params model.CreateServiceParams
	if !decodeBody(w, r, &params) {
		return
	}
	if params.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	svc := s.store.CreateService(userIDFrom(r.Context()), params)
	writeJSON(w, http.StatusCreated, svc)
}

func (s *Server) handleUpdateService(w http.ResponseWriter, r *http.Request) {
	var params model.UpdateServiceParams
	if !decodeBody(w, r, &params) {
		return
	}
	svc, ok := s.store.UpdateService(chi.URLParam(r, "serviceID"), params)
	if !ok {
		writeError(w, http.StatusNotFound, "Service not found")
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (s *Server) handleDeleteService(w http.ResponseWriter, r *http.Request) {
	if !s.store.DeleteService(chi.URLParam(r, "serviceID")) {
		writeError(w, http.StatusNotFound, "Service not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	favorites := s.store.Favorites(userIDFrom(r.Context()))
	// An empty favorites list answers 404. Clients treat that as empty.
	if len(favorites) == 0 {
		writeError(w, http.StatusNotFound, "No favorites found")
		return
	}
	writeJSON(w, http.StatusOK, favorites)
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	if !s.store.AddFavorite(userIDFrom(r.Context()), chi.URLParam(r, "serviceID")) {
		writeError(w, http.StatusNotFound, "Service not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	s.store.RemoveFavorite(userIDFrom(r.Context()), chi.URLParam(r, "serviceID"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	orders := s.store.Orders(userIDFrom(r.Context()))
	if orders == nil {
		orders = []model.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var params model.CreateOrderParams
	if !decodeBody(w, r, &params) {
		return
	}
	order, ok := s.store.CreateOrder(userIDFrom(r.Context()), params)
	if !ok {
		writeError(w, http.StatusNotFound, "Service not found")
		return
	}
	log.Info().Str("orderId", order.ID).Str("serviceId", order.ServiceID).Msg("order placed")
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status model.OrderStatus `json:"status"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if !body.Status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid order status")
		return
	}
	order, ok := s.store.UpdateOrderStatus(chi.URLParam(r, "orderID"), body.Status)
	if !ok {
		writeError(w, http.StatusNotFound, "Order not found")
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Cities())
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Categories())
}

func (s *Server) handleSkills(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Skills())
}

func (s *Server) handleChats(w http.ResponseWriter, r *http.Request) {
	chats := s.store.Chats(userIDFrom(r.Context()))
	if chats == nil {
		chats = []model.Chat{}
	}
	writeJSON(w, http.StatusOK, chats)
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	if !s.store.IsChatMember(chatID, userIDFrom(r.Context())) {
		writeError(w, http.StatusNotFound, "Chat not found")
		return
	}
	messages, _ := s.store.ChatMessages(chatID)
	if messages == nil {
		messages = []model.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

func (s *Server) handleChatmate(w http.ResponseWriter, r *http.Request) {
	chatmate, ok := s.store.Chatmate(chi.URLParam(r, "chatID"), userIDFrom(r.Context()))
	if !ok {
		writeError(w, http.StatusNotFound, "Chat not found")
		return
	}
	writeJSON(w, http.StatusOK, chatmate)
}

const maxUploadBytes = 10 << 20

func (s *Server) handleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	filename, ok := readUpload(w, r)
	if !ok {
		return
	}
	url := "/static/avatars/" + userIDFrom(r.Context()) + "-" + filename
	if _, updated := s.store.UpdateUser(userIDFrom(r.Context()), model.UpdateProfileParams{AvatarURL: &url}); !updated {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleUploadServiceCover(w http.ResponseWriter, r *http.Request) {
	filename, ok := readUpload(w, r)
	if !ok {
		return
	}
	serviceID := chi.URLParam(r, "serviceID")
	url := "/static/covers/" + serviceID + "-" + filename
	if !s.store.SetServiceCover(serviceID, url) {
		writeError(w, http.StatusNotFound, "Service not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// readUpload validates the multipart body and returns the uploaded filename.
// File contents are discarded; the development server only fabricates URLs.
func readUpload(w http.ResponseWriter, r *http.Request) (string, bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart body")
		return "", false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return "", false
	}
	file.Close()
	return header.Filename, true
}
