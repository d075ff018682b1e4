package api

import (
	"context"
	"net/http"

	"github.com/streakmates/sync-client/internal/domain"
)

// ListRoomTasks fetches a room's tasks with today's completions.
func (c *Client) ListRoomTasks(ctx context.Context, roomID string) ([]domain.Task, error) {
	var tasks []domain.Task
	if err := c.do(ctx, http.MethodGet, "/api/rooms/"+roomID+"/tasks", nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// CreateTaskRequest is the payload for CreateTask.
type CreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Points      int    `json:"points"`
	Frequency   string `json:"frequency"`
}

// CreateTask creates a task in a room.
func (c *Client) CreateTask(ctx context.Context, roomID string, req CreateTaskRequest) (*domain.Task, error) {
	var task domain.Task
	if err := c.do(ctx, http.MethodPost, "/api/rooms/"+roomID+"/tasks", req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// DeleteTask removes a task from a room.
func (c *Client) DeleteTask(ctx context.Context, roomID, taskID string) error {
	return c.do(ctx, http.MethodDelete, "/api/rooms/"+roomID+"/tasks/"+taskID, nil, nil)
}

// CompleteTask records today's completion of a task by the current user.
func (c *Client) CompleteTask(ctx context.Context, roomID, taskID string) error {
	return c.do(ctx, http.MethodPost, "/api/rooms/"+roomID+"/tasks/"+taskID+"/complete", nil, nil)
}

// UncompleteTask reverses today's completion by the current user.
func (c *Client) UncompleteTask(ctx context.Context, roomID, taskID string) error {
	return c.do(ctx, http.MethodDelete, "/api/rooms/"+roomID+"/tasks/"+taskID+"/complete", nil, nil)
}
