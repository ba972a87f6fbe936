package devserver

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/VPR42/servigo-go/internal/model"
)

const subscriberBuffer = 16

// Hub fans chat messages out to the websocket subscribers of each
// conversation. Delivery is best-effort: a subscriber that cannot keep up has
// the message dropped rather than blocking the publisher.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan model.Message]bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan model.Message]bool)}
}

// Subscribe registers a listener for a conversation and returns its channel
// plus an unsubscribe func.
func (h *Hub) Subscribe(chatID string) (<-chan model.Message, func()) {
	ch := make(chan model.Message, subscriberBuffer)

	h.mu.Lock()
	if h.subs[chatID] == nil {
		h.subs[chatID] = make(map[chan model.Message]bool)
	}
	h.subs[chatID][ch] = true
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.subs[chatID]; ok && set[ch] {
			delete(set, ch)
			close(ch)
			if len(set) == 0 {
				delete(h.subs, chatID)
			}
		}
	}
	return ch, unsubscribe
}

// Publish delivers a message to every subscriber of its conversation,
// including the sender's own connection.
func (h *Hub) Publish(msg model.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[msg.ChatID] {
		select {
		case ch <- msg:
		default:
			log.Warn().Str("chatId", msg.ChatID).Msg("dropping message for slow subscriber")
		}
	}
}
