package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasktimer/internal/task/sorter"
	"tasktimer/internal/task/usecase"
)

func setupEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", filepath.Join(dir, "tasks.db"))
	t.Setenv("SYNC_MODE", "local")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd("test")
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

var idPattern = regexp.MustCompile(`\(([0-9a-f-]{36})\)`)

func TestTaskLifecycleAcrossInvocations(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "add", "Write", "report", "--deadline", "2025-03-01", "--notes", "q1")
	require.NoError(t, err)
	m := idPattern.FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	id := m[1]

	out, err = run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Write report")
	assert.Contains(t, out, "01.03.2025")

	_, err = run(t, "start", id[:8])
	require.NoError(t, err)
	out, err = run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "▶")

	_, err = run(t, "important", id)
	require.NoError(t, err)

	_, err = run(t, "edit", id, "--title", "Write final report")
	require.NoError(t, err)

	out, err = run(t, "done", id)
	require.NoError(t, err)
	assert.Contains(t, out, "History")

	out, err = run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No tasks.")

	out, err = run(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "Write final report")
	assert.Contains(t, out, "01.03.2025")
}

func TestDeleteAndClearNeedConfirmation(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "add", "x")
	require.NoError(t, err)
	id := idPattern.FindStringSubmatch(out)[1]

	_, err = run(t, "delete", id)
	assert.ErrorContains(t, err, "Delete this task?")

	_, err = run(t, "delete", id, "--yes")
	require.NoError(t, err)

	_, err = run(t, "delete", id, "--yes")
	assert.ErrorContains(t, err, "not found")

	_, err = run(t, "clear-history")
	assert.Error(t, err)

	out, err = run(t, "clear-history", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "History cleared.")

	out, err = run(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No completed tasks yet.")
}

func TestAddRejectsBadDeadline(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "add", "x", "--deadline", "someday")
	assert.ErrorContains(t, err, "deadline")
}

func TestServeSeesWritesMadeWhileStarting(t *testing.T) {
	setupEnv(t)
	t.Setenv("SYNC_MODE", "poll")
	// no poll tick fires during the test
	t.Setenv("SYNC_POLL_INTERVAL", "1h")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server, err := openApp(ctx, "")
	require.NoError(t, err)
	defer server.Close()
	require.Empty(t, server.store.ActiveTasks(sorter.DefaultMode))

	_, err = run(t, "add", "written during startup")
	require.NoError(t, err)

	ctrl, err := server.watch(ctx)
	require.NoError(t, err)
	defer ctrl.Stop()

	tasks := server.store.ActiveTasks(sorter.DefaultMode)
	require.Len(t, tasks, 1)
	assert.Equal(t, "written during startup", tasks[0].Title)

	// the next server-side write keeps the other process's task
	_, err = server.store.CreateTask(ctx, usecase.TaskInput{Title: "from server"})
	require.NoError(t, err)
	out, err := run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "written during startup")
	assert.Contains(t, out, "from server")
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
