package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/VPR42/servigo-go/internal/model"
)

func (c *Client) Chats(ctx context.Context) ([]model.Chat, error) {
	var out []model.Chat
	if err := c.do(ctx, http.MethodGet, "/chats", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return out, nil
}

func (c *Client) ChatHistory(ctx context.Context, chatID string) ([]model.Message, error) {
	var out []model.Message
	if err := c.do(ctx, http.MethodGet, "/chats/"+chatID+"/messages", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}
	return out, nil
}

func (c *Client) Chatmate(ctx context.Context, chatID string) (*model.ChatmateSummary, error) {
	var out model.ChatmateSummary
	if err := c.do(ctx, http.MethodGet, "/chats/"+chatID+"/chatmate", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("get chatmate: %w", err)
	}
	return &out, nil
}
