package sorter

import (
	"slices"
	"time"

	"tasktimer/internal/task/domain"
	"tasktimer/pkg/datefmt"
)

// Mode names an ordering of the active list.
type Mode string

const (
	CreatedDesc    Mode = "created_desc"
	CreatedAsc     Mode = "created_asc"
	DeadlineAsc    Mode = "deadline_asc"
	DeadlineDesc   Mode = "deadline_desc"
	ImportantFirst Mode = "important_first"
)

// DefaultMode is used for empty or unrecognized modes.
const DefaultMode = CreatedDesc

// Missing deadlines sort as the far future when ascending and the far past
// when descending, so undated tasks never look most urgent.
var (
	latestDate   = datefmt.New(9999, time.December, 31)
	earliestDate = datefmt.New(0, time.January, 1)
)

// Option describes a mode for selection lists.
type Option struct {
	Mode  Mode   `json:"mode"`
	Label string `json:"label"`
}

// Modes lists every mode in display order.
func Modes() []Option {
	return []Option{
		{Mode: CreatedDesc, Label: "Creation date ↓ (newest)"},
		{Mode: CreatedAsc, Label: "Creation date ↑ (oldest)"},
		{Mode: DeadlineAsc, Label: "Deadline date ↑ (soonest)"},
		{Mode: DeadlineDesc, Label: "Deadline date ↓ (latest)"},
		{Mode: ImportantFirst, Label: "Important first"},
	}
}

// ParseMode maps s to a known mode, falling back to DefaultMode.
func ParseMode(s string) Mode {
	switch m := Mode(s); m {
	case CreatedDesc, CreatedAsc, DeadlineAsc, DeadlineDesc, ImportantFirst:
		return m
	default:
		return DefaultMode
	}
}

// Sort returns a sorted copy of tasks. Tasks with equal keys keep their input
// order, so sorting a sorted list changes nothing.
func Sort(tasks []domain.Task, mode Mode) []domain.Task {
	out := slices.Clone(tasks)
	slices.SortStableFunc(out, compareFunc(ParseMode(string(mode))))
	return out
}

func compareFunc(mode Mode) func(a, b domain.Task) int {
	switch mode {
	case CreatedAsc:
		return func(a, b domain.Task) int {
			return datefmt.Compare(a.CreationDate, b.CreationDate)
		}
	case DeadlineAsc:
		return func(a, b domain.Task) int {
			return datefmt.Compare(deadlineOr(a, latestDate), deadlineOr(b, latestDate))
		}
	case DeadlineDesc:
		return func(a, b domain.Task) int {
			return datefmt.Compare(deadlineOr(b, earliestDate), deadlineOr(a, earliestDate))
		}
	case ImportantFirst:
		return func(a, b domain.Task) int {
			switch {
			case a.Highlight && !b.Highlight:
				return -1
			case !a.Highlight && b.Highlight:
				return 1
			}
			return datefmt.Compare(b.CreationDate, a.CreationDate)
		}
	default:
		return func(a, b domain.Task) int {
			return datefmt.Compare(b.CreationDate, a.CreationDate)
		}
	}
}

func deadlineOr(t domain.Task, missing datefmt.Date) datefmt.Date {
	if !t.HasDeadline() {
		return missing
	}
	return t.Deadline
}

// HistoryOrder names an ordering of completed tasks.
type HistoryOrder string

const (
	// HistoryCompleted keeps completion order, oldest first.
	HistoryCompleted HistoryOrder = "completed"
	HistoryNewest    HistoryOrder = "newest"
)

// ParseHistoryOrder maps s to a known order, falling back to HistoryCompleted.
func ParseHistoryOrder(s string) HistoryOrder {
	if HistoryOrder(s) == HistoryNewest {
		return HistoryNewest
	}
	return HistoryCompleted
}

// SortHistory returns completed tasks in the given order. The input must be in
// completion order.
func SortHistory(tasks []domain.Task, order HistoryOrder) []domain.Task {
	out := slices.Clone(tasks)
	if ParseHistoryOrder(string(order)) == HistoryNewest {
		slices.Reverse(out)
	}
	return out
}
