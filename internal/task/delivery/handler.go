package delivery

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tasktimer/internal/task/domain"
	"tasktimer/internal/task/dto"
	"tasktimer/internal/task/sorter"
	"tasktimer/internal/task/usecase"
)

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	taskUsecase usecase.TaskUsecase
	views       *dto.Builder
	sortMode    func() sorter.Mode
}

// NewTaskHandler creates a new TaskHandler. sortMode supplies the mode used
// when a request does not name one.
func NewTaskHandler(taskUsecase usecase.TaskUsecase, views *dto.Builder, sortMode func() sorter.Mode) *TaskHandler {
	return &TaskHandler{
		taskUsecase: taskUsecase,
		views:       views,
		sortMode:    sortMode,
	}
}

// RegisterRoutes mounts the task and history routes on rg
func (h *TaskHandler) RegisterRoutes(rg *gin.RouterGroup) {
	tasks := rg.Group("/tasks")
	{
		tasks.GET("", h.GetTasks)
		tasks.POST("", h.CreateTask)
		tasks.GET("/:id", h.GetTaskForm)
		tasks.PUT("/:id", h.UpdateTask)
		tasks.DELETE("/:id", h.DeleteTask)
		tasks.PATCH("/:id/important", h.ToggleImportant)
		tasks.POST("/:id/timer/start", h.StartTimer)
		tasks.POST("/:id/timer/stop", h.StopTimer)
		tasks.POST("/:id/complete", h.CompleteTask)
	}

	history := rg.Group("/history")
	{
		history.GET("", h.GetHistory)
		history.DELETE("", h.ClearHistory)
	}
}

// GetTasks returns the active list
// GET /api/tasks?sort=deadline_asc&q=report
func (h *TaskHandler) GetTasks(c *gin.Context) {
	mode := h.sortMode()
	if s := c.Query("sort"); s != "" {
		mode = sorter.ParseMode(s)
	}
	query := c.Query("q")

	tasks := h.taskUsecase.SearchTasks(query, mode)
	c.JSON(http.StatusOK, dto.TasksResponse{
		Tasks:    h.views.Tasks(tasks),
		SortMode: mode,
		Query:    query,
		Total:    len(tasks),
	})
}

// GetTaskForm returns the raw values to pre-fill the edit form
// GET /api/tasks/:id
func (h *TaskHandler) GetTaskForm(c *gin.Context) {
	task, err := h.taskUsecase.GetTask(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.Form(task))
}

// CreateTask creates a new task
// POST /api/tasks
func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req dto.TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.taskUsecase.CreateTask(c.Request.Context(), req)
	h.respondTask(c, http.StatusCreated, task, dto.MessageCreated, err)
}

// UpdateTask edits title, deadline, notes and importance
// PUT /api/tasks/:id
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	var req dto.TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.taskUsecase.EditTask(c.Request.Context(), c.Param("id"), req)
	h.respondTask(c, http.StatusOK, task, dto.MessageUpdated, err)
}

// DeleteTask deletes a task once confirmed
// DELETE /api/tasks/:id?confirm=true
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	if !confirmed(c) {
		c.JSON(http.StatusPreconditionRequired, dto.ConfirmResponse{Error: "confirmation required", Confirm: dto.PromptDelete})
		return
	}

	err := h.taskUsecase.DeleteTask(c.Request.Context(), c.Param("id"))
	if err != nil && !domain.IsPersistenceError(err) {
		respondError(c, err)
		return
	}
	resp := gin.H{"message": dto.MessageDeleted}
	if err != nil {
		resp["warning"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// ToggleImportant flips the important flag
// PATCH /api/tasks/:id/important
func (h *TaskHandler) ToggleImportant(c *gin.Context) {
	task, err := h.taskUsecase.ToggleImportant(c.Request.Context(), c.Param("id"))
	h.respondTask(c, http.StatusOK, task, "", err)
}

// StartTimer starts the task timer
// POST /api/tasks/:id/timer/start
func (h *TaskHandler) StartTimer(c *gin.Context) {
	task, err := h.taskUsecase.StartTimer(c.Request.Context(), c.Param("id"))
	h.respondTask(c, http.StatusOK, task, "", err)
}

// StopTimer stops the task timer
// POST /api/tasks/:id/timer/stop
func (h *TaskHandler) StopTimer(c *gin.Context) {
	task, err := h.taskUsecase.StopTimer(c.Request.Context(), c.Param("id"))
	h.respondTask(c, http.StatusOK, task, "", err)
}

// CompleteTask moves a task to history
// POST /api/tasks/:id/complete
func (h *TaskHandler) CompleteTask(c *gin.Context) {
	task, err := h.taskUsecase.CompleteTask(c.Request.Context(), c.Param("id"))
	if err != nil && !domain.IsPersistenceError(err) {
		respondError(c, err)
		return
	}
	resp := gin.H{"task": h.views.Completed(task), "message": dto.MessageCompleted}
	if err != nil {
		resp["warning"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// GetHistory returns completed tasks in completion order, or newest first
// with order=newest
// GET /api/history
func (h *TaskHandler) GetHistory(c *gin.Context) {
	tasks := sorter.SortHistory(h.taskUsecase.CompletedTasks(), sorter.ParseHistoryOrder(c.Query("order")))
	resp := dto.HistoryResponse{Tasks: h.views.History(tasks), Total: len(tasks)}
	if len(tasks) == 0 {
		resp.Message = dto.MessageHistoryEmpty
	}
	c.JSON(http.StatusOK, resp)
}

// ClearHistory empties the history once confirmed
// DELETE /api/history?confirm=true
func (h *TaskHandler) ClearHistory(c *gin.Context) {
	if !confirmed(c) {
		c.JSON(http.StatusPreconditionRequired, dto.ConfirmResponse{Error: "confirmation required", Confirm: dto.PromptClearHistory})
		return
	}

	resp := gin.H{"message": dto.MessageHistoryClear}
	if err := h.taskUsecase.ClearHistory(c.Request.Context()); err != nil {
		if !domain.IsPersistenceError(err) {
			respondError(c, err)
			return
		}
		resp["warning"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// respondTask writes a task result. A persistence error still reports
// success, with the failure as a warning.
func (h *TaskHandler) respondTask(c *gin.Context, status int, task domain.Task, message string, err error) {
	if err != nil && !domain.IsPersistenceError(err) {
		respondError(c, err)
		return
	}
	resp := dto.TaskResponse{Task: h.views.Task(task), Message: message}
	if err != nil {
		resp.Warning = err.Error()
	}
	c.JSON(status, resp)
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidTask):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func confirmed(c *gin.Context) bool {
	ok, _ := strconv.ParseBool(c.Query("confirm"))
	return ok
}
