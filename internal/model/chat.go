package model

import "time"

// Chat is one entry in the user's conversation list
type Chat struct {
	ID          string          `json:"id"`
	Chatmate    ChatmateSummary `json:"chatmate"`
	LastMessage *Message        `json:"lastMessage,omitempty"`
}

type ChatmateSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Message is immutable once created. It carries no stable server id;
// identity for de-duplication is derived from sender, content and send time.
type Message struct {
	ChatID   string    `json:"chatId"`
	SenderID string    `json:"senderId"`
	Content  string    `json:"content"`
	SentAt   time.Time `json:"sentAt"`
}
