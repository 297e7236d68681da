package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasktimer/internal/task/dto"
	"tasktimer/internal/task/repository"
	"tasktimer/internal/task/sorter"
	"tasktimer/internal/task/usecase"
	"tasktimer/pkg/config"
	"tasktimer/pkg/kvstore"
	"tasktimer/pkg/sse"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	clock := clockwork.NewFakeClock()
	session := kvstore.NewSession(kvstore.NewMemoryMedium(0), nil)
	uc := usecase.NewTaskUsecase(context.Background(), repository.NewStorageTaskRepository(session), clock)

	m := sse.NewManager()
	go m.Run()
	t.Cleanup(m.Stop)

	h := NewHandler(uc, dto.NewBuilder(clock), m, &config.Config{DefaultSortMode: "deadline_asc"}, nil)
	t.Cleanup(h.Close)
	return h
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := newTestHandler(t).Router()

	w := serve(r, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSortSettings(t *testing.T) {
	r := newTestHandler(t).Router()

	w := serve(r, http.MethodGet, "/api/settings/sort", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got dto.SortModeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, sorter.DeadlineAsc, got.Mode)

	w = serve(r, http.MethodPut, "/api/settings/sort", `{"mode":"important_first"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, sorter.ImportantFirst, GetRuntimeSortMode())

	w = serve(r, http.MethodPut, "/api/settings/sort", `{"mode":"alphabetical"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, sorter.ImportantFirst, GetRuntimeSortMode())

	w = serve(r, http.MethodGet, "/api/tasks", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sortMode":"important_first"`)
}

func TestSortModes(t *testing.T) {
	r := newTestHandler(t).Router()

	w := serve(r, http.MethodGet, "/api/settings/sort/modes", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got dto.SortModesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got.Modes, 5)
}

func TestCORSPreflight(t *testing.T) {
	r := newTestHandler(t).Router()

	w := serve(r, http.MethodOptions, "/api/tasks", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestAssetsRouteAbsentWithoutOrigin(t *testing.T) {
	r := newTestHandler(t).Router()

	w := serve(r, http.MethodGet, "/assets/app.js", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
