package chat

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/VPR42/servigo-go/internal/model"
)

// dedupWindow bounds the send-time distance within which two messages from
// the same sender with identical content are treated as one logical event.
// The transport carries no stable message id, so this heuristic is all the
// client has; clock skew beyond the window defeats it.
const dedupWindow = 2 * time.Second

// Sync maintains per-conversation message lists fed by two independent
// channels: the history fetch and the live socket. It also keeps the
// conversation list ordered by most recent activity.
type Sync struct {
	mu       sync.Mutex
	chats    []model.Chat
	messages map[string][]model.Message
	histGen  map[string]uint64
}

func NewSync() *Sync {
	return &Sync{
		messages: make(map[string][]model.Message),
		histGen:  make(map[string]uint64),
	}
}

// SetChats replaces the conversation list wholesale.
func (s *Sync) SetChats(chats []model.Chat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = append([]model.Chat(nil), chats...)
}

// Chats returns the conversation list, most recent activity first.
func (s *Sync) Chats() []model.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Chat(nil), s.chats...)
}

// BeginHistory claims a history generation for the chat. The matching
// CompleteHistory call installs its snapshot only while the generation is
// still current, so a fetch superseded by a newer one is dropped late.
func (s *Sync) BeginHistory(chatID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histGen[chatID]++
	return s.histGen[chatID]
}

// CompleteHistory installs the fetched history as the authoritative snapshot
// for the chat, replacing the cached list wholesale. Returns false when the
// snapshot was superseded and discarded.
func (s *Sync) CompleteHistory(chatID string, gen uint64, msgs []model.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.histGen[chatID] {
		log.Debug().Str("chatId", chatID).Msg("dropping superseded chat history")
		return false
	}
	s.messages[chatID] = append([]model.Message(nil), msgs...)
	return true
}

// Apply merges a pushed message into the chat's list. Duplicates of a message
// already present (same sender, same content, sent within the window) are
// discarded silently. A kept message moves its conversation to the front of
// the list and becomes its preview.
func (s *Sync) Apply(msg model.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.messages[msg.ChatID] {
		if existing.SenderID == msg.SenderID && existing.Content == msg.Content &&
			absDuration(existing.SentAt.Sub(msg.SentAt)) <= dedupWindow {
			return false
		}
	}

	s.messages[msg.ChatID] = append(s.messages[msg.ChatID], msg)
	s.promote(msg)
	return true
}

// Messages returns the chat's messages sorted ascending by send time. The two
// feeding channels append independently, so ordering is established here, at
// the read path, not at insertion.
func (s *Sync) Messages(chatID string) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := append([]model.Message(nil), s.messages[chatID]...)
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].SentAt.Before(msgs[j].SentAt)
	})
	return msgs
}

// promote moves the chat to the front of the conversation list and updates
// its last-message preview. Caller holds s.mu.
func (s *Sync) promote(msg model.Message) {
	preview := msg
	for i, chat := range s.chats {
		if chat.ID == msg.ChatID {
			chat.LastMessage = &preview
			s.chats = append(s.chats[:i], s.chats[i+1:]...)
			s.chats = append([]model.Chat{chat}, s.chats...)
			return
		}
	}
	// Message for a conversation not in the list yet, e.g. a brand new chat.
	s.chats = append([]model.Chat{{ID: msg.ChatID, LastMessage: &preview}}, s.chats...)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
