package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/VPR42/servigo-go/internal/errors"
	"github.com/VPR42/servigo-go/internal/model"
)

// ChatAPI is the slice of the API client the chat manager needs.
type ChatAPI interface {
	Chats(ctx context.Context) ([]model.Chat, error)
	ChatHistory(ctx context.Context, chatID string) ([]model.Message, error)
	Chatmate(ctx context.Context, chatID string) (*model.ChatmateSummary, error)
}

// Manager owns the chat state: the synchronized message lists and the single
// live channel of the active conversation.
type Manager struct {
	api    ChatAPI
	wsBase string
	selfID string
	sync   *Sync

	mu     sync.Mutex
	live   *LiveChannel
	active string
}

func NewManager(api ChatAPI, wsBase, selfID string) *Manager {
	return &Manager{
		api:    api,
		wsBase: wsBase,
		selfID: selfID,
		sync:   NewSync(),
	}
}

// LoadChats fetches the conversation list and installs it.
func (m *Manager) LoadChats(ctx context.Context) ([]model.Chat, error) {
	chats, err := m.api.Chats(ctx)
	if err != nil {
		return nil, err
	}
	m.sync.SetChats(chats)
	return chats, nil
}

// Activate makes chatID the active conversation: the previous live channel is
// torn down, history is fetched as the authoritative snapshot, and a fresh
// live channel is dialed.
func (m *Manager) Activate(ctx context.Context, chatID string) error {
	m.mu.Lock()
	if m.live != nil {
		m.live.Close()
		m.live = nil
	}
	m.active = chatID
	m.mu.Unlock()

	gen := m.sync.BeginHistory(chatID)
	history, err := m.api.ChatHistory(ctx, chatID)
	if err != nil {
		return fmt.Errorf("activate chat: %w", err)
	}
	m.sync.CompleteHistory(chatID, gen, history)

	channel := NewLiveChannel(chatID, m.selfID,
		func(msg model.Message) { m.sync.Apply(msg) },
		func() { log.Warn().Str("chatId", chatID).Msg("chat connection lost") },
	)
	if err := channel.Connect(ctx, m.wsBase); err != nil {
		return fmt.Errorf("activate chat: %w", err)
	}

	m.mu.Lock()
	// The active conversation may have changed while dialing.
	if m.active != chatID {
		m.mu.Unlock()
		channel.Close()
		return nil
	}
	m.live = channel
	m.mu.Unlock()
	return nil
}

// Deactivate tears down the live channel of the active conversation.
func (m *Manager) Deactivate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.live != nil {
		m.live.Close()
		m.live = nil
	}
	m.active = ""
}

// Send transmits content to the active conversation. Rejected locally when no
// live channel is open. The local copy is applied immediately; the server
// echo arriving through the socket is absorbed by de-duplication.
func (m *Manager) Send(ctx context.Context, content string) error {
	m.mu.Lock()
	live := m.live
	chatID := m.active
	m.mu.Unlock()

	if live == nil {
		return apperrors.ChatOffline()
	}
	if err := live.Send(ctx, content); err != nil {
		return err
	}

	m.sync.Apply(model.Message{
		ChatID:   chatID,
		SenderID: m.selfID,
		Content:  content,
		SentAt:   time.Now(),
	})
	return nil
}

// Messages returns the active view of a conversation, time-sorted.
func (m *Manager) Messages(chatID string) []model.Message {
	return m.sync.Messages(chatID)
}

// Chats returns the conversation list, most recent activity first.
func (m *Manager) Chats() []model.Chat {
	return m.sync.Chats()
}

// Chatmate fetches the counterpart's summary for a conversation.
func (m *Manager) Chatmate(ctx context.Context, chatID string) (*model.ChatmateSummary, error) {
	return m.api.Chatmate(ctx, chatID)
}

// Connected reports whether the active conversation's live channel is open.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live != nil && m.live.State() == StateOpen
}
