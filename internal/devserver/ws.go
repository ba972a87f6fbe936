package devserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/VPR42/servigo-go/internal/model"
)

type chatFrame struct {
	SenderID string `json:"senderId"`
	Content  string `json:"content"`
}

// handleChatSocket upgrades to a websocket for one conversation. Frames sent
// by the peer are stored, then fanned out to every subscriber of the chat,
// the sender's own connection included.
func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	userID := r.URL.Query().Get("userId")

	if !s.store.IsChatMember(chatID, userID) {
		writeError(w, http.StatusNotFound, "Chat not found")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("chatId", chatID).Msg("websocket upgrade failed")
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	messages, unsubscribe := s.hub.Subscribe(chatID)
	defer unsubscribe()

	log.Debug().Str("chatId", chatID).Str("userId", userID).Msg("chat socket open")

	go func() {
		defer cancel()
		for msg := range messages {
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			log.Debug().Str("chatId", chatID).Str("userId", userID).Msg("chat socket closed")
			return
		}

		var frame chatFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Content == "" {
			log.Warn().Str("chatId", chatID).Msg("ignoring malformed chat frame")
			continue
		}

		msg := model.Message{
			ChatID:   chatID,
			SenderID: userID,
			Content:  frame.Content,
			SentAt:   time.Now().UTC(),
		}
		if !s.store.AppendMessage(msg) {
			return
		}
		s.hub.Publish(msg)
	}
}
