package dto

import (
	"tasktimer/internal/task/sorter"
	"tasktimer/internal/task/usecase"
)

// Notices shown to the user after an action.
const (
	MessageCreated      = "new Task has been save successfully."
	MessageUpdated      = "Task updated."
	MessageDeleted      = "Task deleted."
	MessageCompleted    = "Task marked as done. You can find it in History."
	MessageHistoryEmpty = "No completed tasks yet."
	MessageHistoryClear = "History cleared."
	PromptDelete        = "Delete this task?"
	PromptClearHistory  = "Clear all completed tasks?"
)

type TaskRequest = usecase.TaskInput

type TaskResponse struct {
	Task    TaskView `json:"task"`
	Message string   `json:"message,omitempty"`
	Warning string   `json:"warning,omitempty"`
}

type TasksResponse struct {
	Tasks    []TaskView  `json:"tasks"`
	SortMode sorter.Mode `json:"sortMode"`
	Query    string      `json:"query,omitempty"`
	Total    int         `json:"total"`
}

type HistoryResponse struct {
	Tasks   []CompletedView `json:"tasks"`
	Total   int             `json:"total"`
	Message string          `json:"message,omitempty"`
}

type SortModeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

type SortModeResponse struct {
	Mode  sorter.Mode `json:"mode"`
	Label string      `json:"label"`
}

type SortModesResponse struct {
	Modes   []sorter.Option `json:"modes"`
	Current sorter.Mode     `json:"current"`
}

// ConfirmResponse asks the caller to repeat the request with confirm=true.
type ConfirmResponse struct {
	Error   string `json:"error"`
	Confirm string `json:"confirm"`
}
