package api

import (
	"context"
	"net/http"

	"github.com/streakmates/sync-client/internal/domain"
)

// ListMessages fetches a room's chat history ordered by creation time.
func (c *Client) ListMessages(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	var msgs []domain.ChatMessage
	if err := c.do(ctx, http.MethodGet, "/api/rooms/"+roomID+"/messages", nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendMessage posts a chat message and returns the server-confirmed copy.
func (c *Client) SendMessage(ctx context.Context, roomID, text string) (*domain.ChatMessage, error) {
	var msg domain.ChatMessage
	in := struct {
		Text string `json:"text"`
	}{Text: text}
	if err := c.do(ctx, http.MethodPost, "/api/rooms/"+roomID+"/messages", in, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
