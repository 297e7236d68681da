package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"tasktimer/internal/task/domain"
	"tasktimer/pkg/datefmt"
)

// doneDateLayout renders like a German locale timestamp, e.g. "2.1.2006, 15:04:05".
const doneDateLayout = "2.1.2006, 15:04:05"

// TaskView is one row of the active list, ready to render.
type TaskView struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Notes        string `json:"notes"`
	CreationDate string `json:"creationDate"`
	Deadline     string `json:"deadline"`
	Elapsed      string `json:"elapsed"`
	Highlight    bool   `json:"highlight"`
	Running      bool   `json:"running"`
}

// CompletedView is one row of the history list.
type CompletedView struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Notes        string `json:"notes"`
	CreationDate string `json:"creationDate"`
	Deadline     string `json:"deadline"`
	DoneDate     string `json:"doneDate"`
	TimeSpent    string `json:"timeSpent"`
}

// TaskForm pre-fills the edit form with raw values.
type TaskForm struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Deadline  string `json:"deadline"`
	Notes     string `json:"notes"`
	Highlight bool   `json:"highlight"`
}

// TimerTick carries the live elapsed display of one running task.
type TimerTick struct {
	ID      string `json:"id"`
	Elapsed string `json:"elapsed"`
}

// Builder projects tasks into views as of its clock's now.
type Builder struct {
	clock clockwork.Clock
}

func NewBuilder(clock clockwork.Clock) *Builder {
	return &Builder{clock: clock}
}

func (b *Builder) Task(t domain.Task) TaskView {
	return TaskView{
		ID:           t.ID,
		Title:        EscapeHTML(t.Title),
		Notes:        EscapeHTML(t.Notes),
		CreationDate: datefmt.Format(t.CreationDate),
		Deadline:     datefmt.Format(t.Deadline),
		Elapsed:      FormatElapsed(domain.CurrentElapsed(t, b.clock.Now())),
		Highlight:    t.Highlight,
		Running:      t.TimerRunning,
	}
}

func (b *Builder) Tasks(tasks []domain.Task) []TaskView {
	views := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, b.Task(t))
	}
	return views
}

func (b *Builder) Completed(t domain.Task) CompletedView {
	return CompletedView{
		ID:           t.ID,
		Title:        EscapeHTML(t.Title),
		Notes:        EscapeHTML(t.Notes),
		CreationDate: datefmt.Format(t.CreationDate),
		Deadline:     datefmt.Format(t.Deadline),
		DoneDate:     FormatDoneDate(t.DoneDate),
		TimeSpent:    FormatElapsed(t.TimeSpentMs),
	}
}

func (b *Builder) History(tasks []domain.Task) []CompletedView {
	views := make([]CompletedView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, b.Completed(t))
	}
	return views
}

func (b *Builder) Tick(t domain.Task) TimerTick {
	return TimerTick{ID: t.ID, Elapsed: FormatElapsed(domain.CurrentElapsed(t, b.clock.Now()))}
}

// Form returns the unescaped values, with the deadline in ISO form.
func Form(t domain.Task) TaskForm {
	return TaskForm{
		ID:        t.ID,
		Title:     t.Title,
		Deadline:  t.Deadline.String(),
		Notes:     t.Notes,
		Highlight: t.Highlight,
	}
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// EscapeHTML makes user text safe to embed in markup.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

// FormatElapsed renders milliseconds as HH:MM:SS. Hours are not capped at 24
// and negative input renders as zero.
func FormatElapsed(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total%3600/60, total%60)
}

// FormatDoneDate renders a completion timestamp in local time.
func FormatDoneDate(ts *time.Time) string {
	if ts == nil || ts.IsZero() {
		return datefmt.Placeholder
	}
	return ts.In(time.Local).Format(doneDateLayout)
}
