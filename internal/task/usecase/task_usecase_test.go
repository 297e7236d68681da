package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasktimer/internal/task/domain"
	"tasktimer/internal/task/repository"
	"tasktimer/internal/task/sorter"
	"tasktimer/pkg/datefmt"
	"tasktimer/pkg/kvstore"
)

var t0 = time.Date(2025, time.February, 20, 10, 0, 0, 0, time.Local)

type advancer interface {
	clockwork.Clock
	Advance(d time.Duration)
}

type fixture struct {
	uc    TaskUsecase
	repo  repository.TaskRepository
	clock advancer
}

func newFixture(t *testing.T, quota int) fixture {
	t.Helper()
	session := kvstore.NewSession(kvstore.NewMemoryMedium(quota), nil)
	repo := repository.NewStorageTaskRepository(session)
	clock := clockwork.NewFakeClockAt(t0)
	return fixture{
		uc:    NewTaskUsecase(context.Background(), repo, clock),
		repo:  repo,
		clock: clock,
	}
}

func taskIDs(tasks []domain.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestCreateTask(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	task, err := f.uc.CreateTask(ctx, TaskInput{Title: "  Write report  ", Deadline: "01.03.2025", Notes: "q1"})
	require.NoError(t, err)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "Write report", task.Title)
	assert.Equal(t, datefmt.New(2025, time.February, 20), task.CreationDate)
	assert.Equal(t, datefmt.New(2025, time.March, 1), task.Deadline)
	assert.Zero(t, task.TimeSpentMs)
	assert.False(t, task.TimerRunning)

	stored := f.repo.Load(ctx, repository.ActiveKey)
	assert.Equal(t, []string{task.ID}, taskIDs(stored))
}

func TestCreateTask_Validation(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	_, err := f.uc.CreateTask(ctx, TaskInput{Title: "   "})
	assert.True(t, errors.Is(err, domain.ErrInvalidTask))

	_, err = f.uc.CreateTask(ctx, TaskInput{Title: "x", Deadline: "not a date"})
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "deadline", ve.Field)

	assert.Empty(t, f.uc.ActiveTasks(sorter.DefaultMode))
}

func TestCreateTask_IDsUniqueAcrossLists(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	uc := f.uc.(*taskUsecase)

	first, err := uc.CreateTask(ctx, TaskInput{Title: "a"})
	require.NoError(t, err)
	_, err = uc.CompleteTask(ctx, first.ID)
	require.NoError(t, err)

	ids := []string{first.ID, first.ID, "fresh"}
	uc.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	second, err := uc.CreateTask(ctx, TaskInput{Title: "b"})
	require.NoError(t, err)
	assert.Equal(t, "fresh", second.ID)
}

func TestWriteReportScenario(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	task, err := f.uc.CreateTask(ctx, TaskInput{Title: "Write report", Deadline: "2025-03-01"})
	require.NoError(t, err)

	_, err = f.uc.StartTimer(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, f.uc.RunningTasks(), 1)

	f.clock.Advance(5 * time.Second)
	stopped, err := f.uc.StopTimer(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), stopped.TimeSpentMs)
	assert.Empty(t, f.uc.RunningTasks())

	toggled, err := f.uc.ToggleImportant(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Highlight)

	done, err := f.uc.CompleteTask(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, done.Done)
	require.NotNil(t, done.DoneDate)
	assert.True(t, done.DoneDate.Equal(t0.Add(5*time.Second)))
	assert.Equal(t, int64(5000), done.TimeSpentMs)

	assert.Empty(t, f.uc.ActiveTasks(sorter.DefaultMode))
	assert.Equal(t, []string{task.ID}, taskIDs(f.uc.CompletedTasks()))
	assert.Empty(t, f.repo.Load(ctx, repository.ActiveKey))
	assert.Equal(t, []string{task.ID}, taskIDs(f.repo.Load(ctx, repository.CompletedKey)))
}

func TestCompleteWhileRunningFoldsSegment(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	task, _ := f.uc.CreateTask(ctx, TaskInput{Title: "x"})
	_, _ = f.uc.StartTimer(ctx, task.ID)
	f.clock.Advance(3 * time.Second)

	done, err := f.uc.CompleteTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), done.TimeSpentMs)
	assert.False(t, done.TimerRunning)
	assert.Nil(t, done.TimerStart)
}

func TestTimerOperationsAreIdempotent(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	task, _ := f.uc.CreateTask(ctx, TaskInput{Title: "x"})

	var events []RefreshEvent
	cancel := f.uc.Subscribe(func(ev RefreshEvent) { events = append(events, ev) })
	defer cancel()

	_, _ = f.uc.StartTimer(ctx, task.ID)
	f.clock.Advance(time.Second)
	again, err := f.uc.StartTimer(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, again.TimerStart.Equal(t0), "restart keeps the original start")

	_, _ = f.uc.StopTimer(ctx, task.ID)
	stopped, err := f.uc.StopTimer(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), stopped.TimeSpentMs)

	assert.Len(t, events, 2, "no-ops emit nothing")
}

func TestEditTask_KeepsTimer(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	task, _ := f.uc.CreateTask(ctx, TaskInput{Title: "x", Deadline: "2025-03-01"})
	_, _ = f.uc.StartTimer(ctx, task.ID)

	edited, err := f.uc.EditTask(ctx, task.ID, TaskInput{Title: "y", Notes: "n", Highlight: true})
	require.NoError(t, err)
	assert.Equal(t, "y", edited.Title)
	assert.False(t, edited.HasDeadline())
	assert.True(t, edited.Highlight)
	assert.True(t, edited.TimerRunning)
	assert.Equal(t, task.CreationDate, edited.CreationDate)

	_, err = f.uc.EditTask(ctx, task.ID, TaskInput{Title: ""})
	assert.True(t, errors.Is(err, domain.ErrInvalidTask))
}

func TestUnknownIDIsNotFound(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	_, err := f.uc.StartTimer(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrTaskNotFound))
	assert.True(t, errors.Is(f.uc.DeleteTask(ctx, "missing"), domain.ErrTaskNotFound))
	_, err = f.uc.CompleteTask(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrTaskNotFound))
	_, err = f.uc.GetTask("missing")
	assert.True(t, errors.Is(err, domain.ErrTaskNotFound))
}

func TestRemovedTasksNeverReappear(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	a, _ := f.uc.CreateTask(ctx, TaskInput{Title: "a"})
	b, _ := f.uc.CreateTask(ctx, TaskInput{Title: "b"})
	c, _ := f.uc.CreateTask(ctx, TaskInput{Title: "c"})

	require.NoError(t, f.uc.DeleteTask(ctx, a.ID))
	_, err := f.uc.CompleteTask(ctx, b.ID)
	require.NoError(t, err)
	_, _ = f.uc.ToggleImportant(ctx, c.ID)

	assert.Equal(t, []string{c.ID}, taskIDs(f.repo.Load(ctx, repository.ActiveKey)))
}

func TestClearHistory(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	a, _ := f.uc.CreateTask(ctx, TaskInput{Title: "a"})
	_, _ = f.uc.CompleteTask(ctx, a.ID)

	require.NoError(t, f.uc.ClearHistory(ctx))
	assert.Empty(t, f.uc.CompletedTasks())
	assert.Empty(t, f.repo.Load(ctx, repository.CompletedKey))
}

func TestCompletedTasksInCompletionOrder(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	a, _ := f.uc.CreateTask(ctx, TaskInput{Title: "a"})
	b, _ := f.uc.CreateTask(ctx, TaskInput{Title: "b"})
	_, _ = f.uc.CompleteTask(ctx, a.ID)
	f.clock.Advance(time.Minute)
	_, _ = f.uc.CompleteTask(ctx, b.ID)

	assert.Equal(t, []string{a.ID, b.ID}, taskIDs(f.uc.CompletedTasks()))
}

func TestSearchTasks(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	notes, _ := f.uc.CreateTask(ctx, TaskInput{Title: "Meeting", Notes: "bring the report"})
	title, _ := f.uc.CreateTask(ctx, TaskInput{Title: "Write report"})
	_, _ = f.uc.CreateTask(ctx, TaskInput{Title: "Call Anna"})

	assert.Equal(t, []string{title.ID, notes.ID}, taskIDs(f.uc.SearchTasks("report", sorter.DefaultMode)))
	assert.Len(t, f.uc.SearchTasks("", sorter.DefaultMode), 3)
}

func TestPersistenceFailureKeepsChange(t *testing.T) {
	f := newFixture(t, 64)
	ctx := context.Background()

	task, err := f.uc.CreateTask(ctx, TaskInput{Title: "A title long enough to blow the tiny storage quota"})
	require.Error(t, err)
	assert.True(t, domain.IsPersistenceError(err))
	assert.True(t, errors.Is(err, kvstore.ErrQuotaExceeded))

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, []string{task.ID}, taskIDs(f.uc.ActiveTasks(sorter.DefaultMode)))
}

func TestReloadReplacesLists(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	_, _ = f.uc.CreateTask(ctx, TaskInput{Title: "mine"})

	other := []domain.Task{{ID: "theirs", Title: "from another context"}}
	require.NoError(t, f.repo.SaveAll(ctx, other, nil))

	var events []RefreshEvent
	cancel := f.uc.Subscribe(func(ev RefreshEvent) { events = append(events, ev) })

	f.uc.ReloadActive(ctx)
	f.uc.ReloadActive(ctx)
	assert.Equal(t, []string{"theirs"}, taskIDs(f.uc.ActiveTasks(sorter.DefaultMode)))
	require.Len(t, events, 2)
	assert.Equal(t, ReasonSync, events[0].Reason)

	cancel()
	f.uc.ReloadCompleted(ctx)
	assert.Len(t, events, 2, "cancelled subscriber hears nothing")
}
