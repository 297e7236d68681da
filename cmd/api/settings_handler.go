package api

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"tasktimer/internal/task/dto"
	"tasktimer/internal/task/sorter"
)

// RuntimeSettings holds settings that change while the server runs. They live
// in this process only and are not persisted.
type RuntimeSettings struct {
	SortMode sorter.Mode `json:"sort_mode"`
}

var (
	runtimeSettings     = RuntimeSettings{SortMode: sorter.DefaultMode}
	runtimeSettingsLock sync.RWMutex
)

// InitRuntimeSettings initializes runtime settings from static config
func InitRuntimeSettings(sortMode string) {
	runtimeSettingsLock.Lock()
	defer runtimeSettingsLock.Unlock()
	runtimeSettings = RuntimeSettings{SortMode: sorter.ParseMode(sortMode)}
}

// GetRuntimeSortMode returns the current sort mode
func GetRuntimeSortMode() sorter.Mode {
	runtimeSettingsLock.RLock()
	defer runtimeSettingsLock.RUnlock()
	return runtimeSettings.SortMode
}

// GetSortSettings returns the current sort mode
// GET /api/settings/sort
func GetSortSettings(c *gin.Context) {
	mode := GetRuntimeSortMode()
	c.JSON(http.StatusOK, dto.SortModeResponse{Mode: mode, Label: labelOf(mode)})
}

// UpdateSortSettings changes the sort mode
// PUT /api/settings/sort
func UpdateSortSettings(c *gin.Context) {
	var req dto.SortModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mode := sorter.Mode(req.Mode)
	if sorter.ParseMode(req.Mode) != mode {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown sort mode: " + req.Mode})
		return
	}

	runtimeSettingsLock.Lock()
	runtimeSettings.SortMode = mode
	runtimeSettingsLock.Unlock()

	c.JSON(http.StatusOK, dto.SortModeResponse{Mode: mode, Label: labelOf(mode)})
}

// GetSortModes lists the selectable sort modes
// GET /api/settings/sort/modes
func GetSortModes(c *gin.Context) {
	c.JSON(http.StatusOK, dto.SortModesResponse{Modes: sorter.Modes(), Current: GetRuntimeSortMode()})
}

func labelOf(mode sorter.Mode) string {
	for _, opt := range sorter.Modes() {
		if opt.Mode == mode {
			return opt.Label
		}
	}
	return ""
}
