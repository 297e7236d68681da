package domain

import (
	"time"

	"tasktimer/pkg/datefmt"
)

// Task is a to-do item. While active Done is false and DoneDate is nil; a
// completed task is an immutable snapshot with Done set and the timer folded in.
type Task struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	CreationDate datefmt.Date `json:"creationDate"`
	Deadline     datefmt.Date `json:"deadline"`
	Notes        string       `json:"notes"`
	Highlight    bool         `json:"highlight"`

	Done     bool       `json:"done"`
	DoneDate *time.Time `json:"doneDate,omitempty"`

	// timer fields
	TimeSpentMs  int64      `json:"timeSpentMs"`
	TimerRunning bool       `json:"timerRunning"`
	TimerStart   *time.Time `json:"timerStart"`
}

// HasDeadline reports whether a deadline is set.
func (t *Task) HasDeadline() bool {
	return !t.Deadline.IsZero()
}

// StartTimer opens a segment at now. It reports false if one is already open.
func (t *Task) StartTimer(now time.Time) bool {
	if t.TimerRunning {
		return false
	}
	start := now
	t.TimerRunning = true
	t.TimerStart = &start
	return true
}

// StopTimer closes the open segment and folds its duration into TimeSpentMs.
// A start time in the future counts as zero. It reports false if no segment was open.
func (t *Task) StopTimer(now time.Time) bool {
	if !t.TimerRunning {
		return false
	}
	t.TimeSpentMs += openSegmentMs(t, now)
	t.TimerRunning = false
	t.TimerStart = nil
	return true
}

// MarkDone turns t into a completed snapshot.
func (t *Task) MarkDone(now time.Time) {
	t.StopTimer(now)
	done := now
	t.Done = true
	t.DoneDate = &done
}

// CurrentElapsed is the accumulated time plus the open segment, if any.
func CurrentElapsed(t Task, now time.Time) int64 {
	return t.TimeSpentMs + openSegmentMs(&t, now)
}

func openSegmentMs(t *Task, now time.Time) int64 {
	if !t.TimerRunning || t.TimerStart == nil {
		return 0
	}
	delta := now.Sub(*t.TimerStart).Milliseconds()
	if delta < 0 {
		return 0
	}
	return delta
}
