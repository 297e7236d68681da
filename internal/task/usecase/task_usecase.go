package usecase

import (
	"cmp"
	"context"
	"log"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"tasktimer/internal/task/domain"
	"tasktimer/internal/task/repository"
	"tasktimer/internal/task/sorter"
	"tasktimer/pkg/datefmt"
	"tasktimer/pkg/fuzzy"
)

// taskUsecase implements TaskUsecase. mu serializes every operation so a
// mutation runs to completion before the next one starts.
type taskUsecase struct {
	taskRepo repository.TaskRepository
	clock    clockwork.Clock
	newID    func() string

	mu        sync.Mutex
	active    []domain.Task
	completed []domain.Task

	subMu   sync.Mutex
	nextSub int
	subs    map[int]func(RefreshEvent)
}

// NewTaskUsecase creates a store and loads both lists from taskRepo
func NewTaskUsecase(ctx context.Context, taskRepo repository.TaskRepository, clock clockwork.Clock) TaskUsecase {
	u := &taskUsecase{
		taskRepo: taskRepo,
		clock:    clock,
		newID:    func() string { return uuid.New().String() },
		subs:     map[int]func(RefreshEvent){},
	}
	u.active = taskRepo.Load(ctx, repository.ActiveKey)
	u.completed = taskRepo.Load(ctx, repository.CompletedKey)
	return u
}

func (u *taskUsecase) CreateTask(ctx context.Context, in TaskInput) (domain.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Task{}, &domain.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	deadline, err := parseDeadline(in.Deadline)
	if err != nil {
		return domain.Task{}, err
	}

	u.mu.Lock()
	task := domain.Task{
		ID:           u.uniqueID(),
		Title:        title,
		CreationDate: datefmt.Today(u.clock.Now()),
		Deadline:     deadline,
		Notes:        in.Notes,
		Highlight:    in.Highlight,
	}
	u.active = append(u.active, task)
	err = u.persist(ctx)
	u.mu.Unlock()

	u.emit(RefreshEvent{Reason: ReasonCreated, TaskID: task.ID, Active: true})
	return task, err
}

func (u *taskUsecase) EditTask(ctx context.Context, id string, in TaskInput) (domain.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Task{}, &domain.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	deadline, err := parseDeadline(in.Deadline)
	if err != nil {
		return domain.Task{}, err
	}

	return u.mutate(ctx, id, ReasonEdited, func(t *domain.Task) bool {
		t.Title = title
		t.Deadline = deadline
		t.Notes = in.Notes
		t.Highlight = in.Highlight
		return true
	})
}

func (u *taskUsecase) ToggleImportant(ctx context.Context, id string) (domain.Task, error) {
	return u.mutate(ctx, id, ReasonImportant, func(t *domain.Task) bool {
		t.Highlight = !t.Highlight
		return true
	})
}

func (u *taskUsecase) StartTimer(ctx context.Context, id string) (domain.Task, error) {
	now := u.clock.Now()
	return u.mutate(ctx, id, ReasonTimer, func(t *domain.Task) bool {
		return t.StartTimer(now)
	})
}

func (u *taskUsecase) StopTimer(ctx context.Context, id string) (domain.Task, error) {
	now := u.clock.Now()
	return u.mutate(ctx, id, ReasonTimer, func(t *domain.Task) bool {
		return t.StopTimer(now)
	})
}

func (u *taskUsecase) DeleteTask(ctx context.Context, id string) error {
	u.mu.Lock()
	idx := u.indexOf(id)
	if idx < 0 {
		u.mu.Unlock()
		return &domain.NotFoundError{ID: id}
	}
	u.active = slices.Delete(u.active, idx, idx+1)
	err := u.persist(ctx)
	u.mu.Unlock()

	u.emit(RefreshEvent{Reason: ReasonDeleted, TaskID: id, Active: true})
	return err
}

func (u *taskUsecase) CompleteTask(ctx context.Context, id string) (domain.Task, error) {
	u.mu.Lock()
	idx := u.indexOf(id)
	if idx < 0 {
		u.mu.Unlock()
		return domain.Task{}, &domain.NotFoundError{ID: id}
	}
	task := u.active[idx]
	task.MarkDone(u.clock.Now())
	u.active = slices.Delete(u.active, idx, idx+1)
	u.completed = append(u.completed, task)
	err := u.persist(ctx)
	u.mu.Unlock()

	u.emit(RefreshEvent{Reason: ReasonCompleted, TaskID: id, Active: true, Completed: true})
	return task, err
}

func (u *taskUsecase) ClearHistory(ctx context.Context) error {
	u.mu.Lock()
	u.completed = []domain.Task{}
	err := u.persist(ctx)
	u.mu.Unlock()

	u.emit(RefreshEvent{Reason: ReasonCleared, Completed: true})
	return err
}

func (u *taskUsecase) GetTask(id string) (domain.Task, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	idx := u.indexOf(id)
	if idx < 0 {
		return domain.Task{}, &domain.NotFoundError{ID: id}
	}
	return u.active[idx], nil
}

func (u *taskUsecase) ActiveTasks(mode sorter.Mode) []domain.Task {
	u.mu.Lock()
	defer u.mu.Unlock()
	return sorter.Sort(u.active, mode)
}

func (u *taskUsecase) SearchTasks(query string, mode sorter.Mode) []domain.Task {
	sorted := u.ActiveTasks(mode)
	if strings.TrimSpace(query) == "" {
		return sorted
	}

	matches := make([]domain.Task, 0, len(sorted))
	scores := map[string]float64{}
	for _, t := range sorted {
		if fuzzy.MatchTask(query, t.Title, t.Notes) {
			matches = append(matches, t)
			scores[t.ID] = fuzzy.Score(query, t.Title, t.Notes)
		}
	}
	// ties keep the sort mode's order
	slices.SortStableFunc(matches, func(a, b domain.Task) int {
		return cmp.Compare(scores[b.ID], scores[a.ID])
	})
	return matches
}

func (u *taskUsecase) CompletedTasks() []domain.Task {
	u.mu.Lock()
	defer u.mu.Unlock()
	return slices.Clone(u.completed)
}

func (u *taskUsecase) RunningTasks() []domain.Task {
	u.mu.Lock()
	defer u.mu.Unlock()

	var running []domain.Task
	for _, t := range u.active {
		if t.TimerRunning {
			running = append(running, t)
		}
	}
	return running
}

func (u *taskUsecase) ReloadActive(ctx context.Context) {
	tasks := u.taskRepo.Load(ctx, repository.ActiveKey)

	u.mu.Lock()
	u.active = tasks
	u.mu.Unlock()

	u.emit(RefreshEvent{Reason: ReasonSync, Active: true})
}

func (u *taskUsecase) ReloadCompleted(ctx context.Context) {
	tasks := u.taskRepo.Load(ctx, repository.CompletedKey)

	u.mu.Lock()
	u.completed = tasks
	u.mu.Unlock()

	u.emit(RefreshEvent{Reason: ReasonSync, Completed: true})
}

func (u *taskUsecase) Subscribe(fn func(RefreshEvent)) (cancel func()) {
	u.subMu.Lock()
	defer u.subMu.Unlock()

	id := u.nextSub
	u.nextSub++
	u.subs[id] = fn
	return func() {
		u.subMu.Lock()
		delete(u.subs, id)
		u.subMu.Unlock()
	}
}

// mutate applies fn to the active task id under the lock. fn reports whether
// it changed anything; unchanged tasks are neither saved nor announced.
func (u *taskUsecase) mutate(ctx context.Context, id, reason string, fn func(*domain.Task) bool) (domain.Task, error) {
	u.mu.Lock()
	idx := u.indexOf(id)
	if idx < 0 {
		u.mu.Unlock()
		return domain.Task{}, &domain.NotFoundError{ID: id}
	}
	if !fn(&u.active[idx]) {
		task := u.active[idx]
		u.mu.Unlock()
		return task, nil
	}
	task := u.active[idx]
	err := u.persist(ctx)
	u.mu.Unlock()

	u.emit(RefreshEvent{Reason: reason, TaskID: id, Active: true})
	return task, err
}

// persist must be called with mu held.
func (u *taskUsecase) persist(ctx context.Context) error {
	if err := u.taskRepo.SaveAll(ctx, u.active, u.completed); err != nil {
		log.Printf("[TaskUsecase] Warning: changes kept in memory only: %v", err)
		return err
	}
	return nil
}

func (u *taskUsecase) emit(ev RefreshEvent) {
	u.subMu.Lock()
	fns := make([]func(RefreshEvent), 0, len(u.subs))
	for _, fn := range u.subs {
		fns = append(fns, fn)
	}
	u.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (u *taskUsecase) indexOf(id string) int {
	return slices.IndexFunc(u.active, func(t domain.Task) bool { return t.ID == id })
}

// uniqueID must be called with mu held.
func (u *taskUsecase) uniqueID() string {
	for {
		id := u.newID()
		taken := u.indexOf(id) >= 0 ||
			slices.ContainsFunc(u.completed, func(t domain.Task) bool { return t.ID == id })
		if !taken {
			return id
		}
	}
}

// parseDeadline accepts an empty deadline; anything else must be a date.
func parseDeadline(text string) (datefmt.Date, error) {
	if strings.TrimSpace(text) == "" {
		return datefmt.Date{}, nil
	}
	d, ok := datefmt.Parse(text)
	if !ok {
		return datefmt.Date{}, &domain.ValidationError{Field: "deadline", Reason: "not a recognizable date"}
	}
	return d, nil
}
