package repository

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"tasktimer/internal/task/domain"
	"tasktimer/pkg/datefmt"
)

// storedTask is the loose shape of a record on disk. Older records may lack
// the timer fields, so every optional field is a pointer and gets its default
// in toDomain.
type storedTask struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	CreationDate string  `json:"creationDate"`
	Deadline     string  `json:"deadline"`
	Notes        string  `json:"notes"`
	Highlight    bool    `json:"highlight"`
	Done         bool    `json:"done"`
	DoneDate     *string `json:"doneDate,omitempty"`
	TimeSpentMs  *int64  `json:"timeSpentMs"`
	TimerRunning *bool   `json:"timerRunning"`
	TimerStart   *string `json:"timerStart"`
}

type storageTaskRepository struct {
	storage Storage
}

// NewStorageTaskRepository creates a TaskRepository over a key-value storage
func NewStorageTaskRepository(storage Storage) TaskRepository {
	return &storageTaskRepository{storage: storage}
}

func (r *storageTaskRepository) Load(ctx context.Context, key string) []domain.Task {
	raw, ok, err := r.storage.Get(ctx, key)
	if err != nil {
		log.Printf("[TaskRepository] Failed to read %q: %v", key, err)
		return []domain.Task{}
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return []domain.Task{}
	}

	var records []storedTask
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		log.Printf("[TaskRepository] Failed to deserialize %q, loading empty list: %v", key, err)
		return []domain.Task{}
	}

	tasks := make([]domain.Task, 0, len(records))
	for _, rec := range records {
		tasks = append(tasks, rec.toDomain())
	}
	return tasks
}

func (r *storageTaskRepository) SaveAll(ctx context.Context, active, completed []domain.Task) error {
	if err := r.save(ctx, ActiveKey, active); err != nil {
		return err
	}
	return r.save(ctx, CompletedKey, completed)
}

func (r *storageTaskRepository) save(ctx context.Context, key string, tasks []domain.Task) error {
	if tasks == nil {
		tasks = []domain.Task{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return &domain.PersistenceError{Key: key, Err: err}
	}
	if err := r.storage.Set(ctx, key, string(data)); err != nil {
		return &domain.PersistenceError{Key: key, Err: err}
	}
	return nil
}

// toDomain fills in defaults for fields an older record may not carry.
func (s storedTask) toDomain() domain.Task {
	t := domain.Task{
		ID:        s.ID,
		Title:     s.Title,
		Notes:     s.Notes,
		Highlight: s.Highlight,
		Done:      s.Done,
	}
	t.CreationDate, _ = datefmt.Parse(s.CreationDate)
	t.Deadline, _ = datefmt.Parse(s.Deadline)

	if s.TimeSpentMs != nil && *s.TimeSpentMs > 0 {
		t.TimeSpentMs = *s.TimeSpentMs
	}
	if s.TimerRunning != nil && *s.TimerRunning {
		if start, ok := parseTimestamp(s.TimerStart); ok {
			t.TimerRunning = true
			t.TimerStart = &start
		}
	}
	if done, ok := parseTimestamp(s.DoneDate); ok {
		t.DoneDate = &done
	}
	return t
}

func parseTimestamp(s *string) (time.Time, bool) {
	if s == nil || *s == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
