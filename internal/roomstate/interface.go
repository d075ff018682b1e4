package roomstate

import (
	"context"

	"github.com/streakmates/sync-client/internal/api"
	"github.com/streakmates/sync-client/internal/domain"
)

// API is the slice of the REST client the store depends on.
// *api.Client satisfies it.
type API interface {
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	ListRoomTasks(ctx context.Context, roomID string) ([]domain.Task, error)
	CompleteTask(ctx context.Context, roomID, taskID string) error
	UncompleteTask(ctx context.Context, roomID, taskID string) error
	CreateTask(ctx context.Context, roomID string, req api.CreateTaskRequest) (*domain.Task, error)
	DeleteTask(ctx context.Context, roomID, taskID string) error
}
