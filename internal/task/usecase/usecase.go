package usecase

import (
	"context"

	"tasktimer/internal/task/domain"
	"tasktimer/internal/task/sorter"
)

// TaskUsecase defines the interface for task business logic. Mutations return
// the affected task; a non-nil *domain.PersistenceError alongside a result
// means the change is applied in memory but was not saved.
type TaskUsecase interface {
	// CreateTask adds a new active task dated today
	CreateTask(ctx context.Context, in TaskInput) (domain.Task, error)

	// EditTask overwrites the editable fields, leaving the timer alone
	EditTask(ctx context.Context, id string, in TaskInput) (domain.Task, error)

	DeleteTask(ctx context.Context, id string) error
	ToggleImportant(ctx context.Context, id string) (domain.Task, error)
	StartTimer(ctx context.Context, id string) (domain.Task, error)
	StopTimer(ctx context.Context, id string) (domain.Task, error)

	// CompleteTask folds the running segment and moves the task to history
	CompleteTask(ctx context.Context, id string) (domain.Task, error)

	// ClearHistory empties the completed list
	ClearHistory(ctx context.Context) error

	GetTask(id string) (domain.Task, error)
	ActiveTasks(mode sorter.Mode) []domain.Task

	// SearchTasks returns active tasks matching query, best match first
	SearchTasks(query string, mode sorter.Mode) []domain.Task

	// CompletedTasks returns history in completion order
	CompletedTasks() []domain.Task
	RunningTasks() []domain.Task

	// ReloadActive and ReloadCompleted replace a list with what storage holds.
	// Calling them repeatedly is harmless.
	ReloadActive(ctx context.Context)
	ReloadCompleted(ctx context.Context)

	// Subscribe registers fn for refresh events until cancel is called
	Subscribe(fn func(RefreshEvent)) (cancel func())
}

// TaskInput is the user-editable part of a task
type TaskInput struct {
	Title     string `json:"title"`
	Deadline  string `json:"deadline"`
	Notes     string `json:"notes"`
	Highlight bool   `json:"highlight"`
}

// RefreshEvent tells views which lists need re-rendering
type RefreshEvent struct {
	Reason    string `json:"reason"`
	TaskID    string `json:"taskId,omitempty"`
	Active    bool   `json:"active"`
	Completed bool   `json:"completed"`
}

// Refresh reasons
const (
	ReasonCreated   = "created"
	ReasonEdited    = "edited"
	ReasonDeleted   = "deleted"
	ReasonImportant = "important"
	ReasonTimer     = "timer"
	ReasonCompleted = "completed"
	ReasonCleared   = "history_cleared"
	ReasonSync      = "sync"
)
