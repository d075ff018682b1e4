package api

import (
	"context"
	"net/http"

	"github.com/streakmates/sync-client/internal/domain"
)

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetRoom fetches a room with its member list.
func (c *Client) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	var room domain.Room
	if err := c.do(ctx, http.MethodGet, "/api/rooms/"+roomID, nil, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// ListRooms fetches the rooms the user belongs to.
func (c *Client) ListRooms(ctx context.Context) ([]domain.Room, error) {
	var rooms []domain.Room
	if err := c.do(ctx, http.MethodGet, "/api/rooms", nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// JoinRoom joins a room by its join code.
func (c *Client) JoinRoom(ctx context.Context, joinCode string) (*domain.Room, error) {
	var room domain.Room
	in := struct {
		JoinCode string `json:"joinCode"`
	}{JoinCode: joinCode}
	if err := c.do(ctx, http.MethodPost, "/api/rooms/join", in, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// LeaveRoom removes the current user from a room.
func (c *Client) LeaveRoom(ctx context.Context, roomID string) error {
	return c.do(ctx, http.MethodDelete, "/api/rooms/"+roomID+"/members/me", nil, nil)
}
