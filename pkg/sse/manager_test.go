package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// nextEvent reads until a complete event and returns its name and data.
func nextEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		switch {
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "" && name != "":
			return name, data
		}
	}
}

func TestManager_BroadcastReachesClient(t *testing.T) {
	m := NewManager()
	go m.Run()
	defer m.Stop()

	r := gin.New()
	r.GET("/events", m.ServeHTTP)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	reader := bufio.NewReader(resp.Body)

	name, _ := nextEvent(t, reader)
	assert.Equal(t, "connected", name)
	require.Eventually(t, func() bool { return m.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	m.Broadcast("refresh", map[string]string{"reason": "created"})
	name, data := nextEvent(t, reader)
	assert.Equal(t, "refresh", name)
	assert.JSONEq(t, `{"reason":"created"}`, data)

	cancel()
	assert.Eventually(t, func() bool { return m.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestManager_BroadcastWithoutClients(t *testing.T) {
	m := NewManager()
	go m.Run()

	m.Broadcast("timer", nil)
	m.Stop()
	m.Broadcast("timer", nil)
	assert.Zero(t, m.ClientCount())
}
