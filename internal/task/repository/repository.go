package repository

import (
	"context"

	"tasktimer/internal/task/domain"
)

// Storage keys shared by every execution context.
const (
	ActiveKey    = "tasks"
	CompletedKey = "completedTasks"
)

// Storage is the key-value medium as seen by one execution context.
// *kvstore.Session satisfies it.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// TaskRepository defines the interface for task list persistence
type TaskRepository interface {
	// Load returns the list stored under key. It never fails: a missing or
	// unreadable list loads as empty.
	Load(ctx context.Context, key string) []domain.Task

	// SaveAll writes both lists. A failed write is a *domain.PersistenceError.
	SaveAll(ctx context.Context, active, completed []domain.Task) error
}
