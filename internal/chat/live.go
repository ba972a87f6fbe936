package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	apperrors "github.com/VPR42/servigo-go/internal/errors"
	"github.com/VPR42/servigo-go/internal/model"
)

// State of a live channel. A channel instance moves forward only:
// Idle -> Connecting -> Open -> Closed. Closed is terminal; a fresh instance
// is created for the next activation.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// ErrChannelConsumed indicates Connect was called on an instance that already
// left the Idle state.
var ErrChannelConsumed = errors.New("live channel already used")

// inboundFrame is the wire shape of a pushed message. The server guarantees
// chatId and content; sentAt may be absent, in which case receipt time is
// used.
type inboundFrame struct {
	ChatID   string     `json:"chatId"`
	SenderID string     `json:"senderId"`
	Content  string     `json:"content"`
	SentAt   *time.Time `json:"sentAt,omitempty"`
}

type outboundFrame struct {
	SenderID string `json:"senderId"`
	Content  string `json:"content"`
}

// LiveChannel is the per-conversation push connection. At most one exists at
// a time, owned exclusively by the chat manager.
type LiveChannel struct {
	chatID       string
	selfID       string
	onMessage    func(model.Message)
	onDisconnect func()

	mu     sync.Mutex
	state  State
	conn   *websocket.Conn
	cancel context.CancelFunc
}

func NewLiveChannel(chatID, selfID string, onMessage func(model.Message), onDisconnect func()) *LiveChannel {
	return &LiveChannel{
		chatID:       chatID,
		selfID:       selfID,
		onMessage:    onMessage,
		onDisconnect: onDisconnect,
		state:        StateIdle,
	}
}

// Connect dials the channel endpoint and starts the read loop. Usable once
// per instance.
func (l *LiveChannel) Connect(ctx context.Context, wsBase string) error {
	l.mu.Lock()
	if l.state != StateIdle {
		l.mu.Unlock()
		return ErrChannelConsumed
	}
	l.state = StateConnecting
	l.mu.Unlock()

	endpoint := fmt.Sprintf("%s/chats/%s?userId=%s", wsBase, l.chatID, url.QueryEscape(l.selfID))
	conn, _, err := websocket.Dial(ctx, endpoint, nil)
	if err != nil {
		l.transitionClosed()
		return apperrors.ChatOffline().WithCause(err)
	}

	readCtx, cancel := context.WithCancel(context.Background())

	l.mu.Lock()
	l.conn = conn
	l.cancel = cancel
	l.state = StateOpen
	l.mu.Unlock()

	log.Debug().Str("chatId", l.chatID).Msg("live channel open")
	go l.readLoop(readCtx, conn)
	return nil
}

func (l *LiveChannel) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Send transmits a message while the channel is open. There is no queueing:
// a channel that is not open rejects the send locally.
func (l *LiveChannel) Send(ctx context.Context, content string) error {
	l.mu.Lock()
	conn := l.conn
	open := l.state == StateOpen
	l.mu.Unlock()

	if !open {
		return apperrors.ChatOffline()
	}

	data, err := json.Marshal(outboundFrame{SenderID: l.selfID, Content: content})
	if err != nil {
		return apperrors.Internal("failed to encode message").WithCause(err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		l.transitionClosed()
		return apperrors.ChatOffline().WithCause(err)
	}
	return nil
}

// Close tears the channel down explicitly. Idempotent.
func (l *LiveChannel) Close() {
	l.mu.Lock()
	if l.state == StateClosed {
		l.mu.Unlock()
		return
	}
	conn := l.conn
	cancel := l.cancel
	l.state = StateClosed
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "conversation closed")
	}
	log.Debug().Str("chatId", l.chatID).Msg("live channel closed")
}

func (l *LiveChannel) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			// Server close, transport error or local teardown all end the
			// instance; no automatic reconnect is attempted.
			wasOpen := l.transitionClosed()
			if wasOpen && websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				log.Warn().Err(err).Str("chatId", l.chatID).Msg("live channel read error")
			}
			if wasOpen && l.onDisconnect != nil {
				l.onDisconnect()
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Warn().Err(err).Str("chatId", l.chatID).Msg("dropping malformed chat frame")
			continue
		}

		msg := model.Message{
			ChatID:   frame.ChatID,
			SenderID: frame.SenderID,
			Content:  frame.Content,
			SentAt:   time.Now(),
		}
		if frame.ChatID == "" {
			msg.ChatID = l.chatID
		}
		if frame.SentAt != nil {
			msg.SentAt = *frame.SentAt
		}
		if l.onMessage != nil {
			l.onMessage(msg)
		}
	}
}

// transitionClosed marks the channel closed and reports whether it was open
// or connecting before.
func (l *LiveChannel) transitionClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	was := l.state
	l.state = StateClosed
	return was == StateOpen || was == StateConnecting
}
