package assetcache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type origin struct {
	srv  *httptest.Server
	hits atomic.Int32
}

func newOrigin(t *testing.T) *origin {
	t.Helper()
	o := &origin{}
	o.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.hits.Add(1)
		switch r.URL.Path {
		case "/missing.js":
			http.NotFound(w, r)
		case "/offline.html", "/index.html":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprintf(w, "page %s", r.URL.Path)
		default:
			w.Header().Set("Content-Type", "application/javascript")
			fmt.Fprintf(w, "asset %s", r.URL.Path)
		}
	}))
	t.Cleanup(o.srv.Close)
	return o
}

func TestFetch_CachesAfterFirstHit(t *testing.T) {
	o := newOrigin(t)
	c, err := New(Options{Origin: o.srv.URL})
	require.NoError(t, err)
	ctx := context.Background()

	first, err := c.Fetch(ctx, "/js/app.js", false)
	require.NoError(t, err)
	second, err := c.Fetch(ctx, "js/app.js", false)
	require.NoError(t, err)

	assert.Equal(t, "asset /js/app.js", string(first.Body))
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), o.hits.Load())
}

func TestFetch_NotFoundIsNotCached(t *testing.T) {
	o := newOrigin(t)
	c, err := New(Options{Origin: o.srv.URL})
	require.NoError(t, err)

	asset, err := c.Fetch(context.Background(), "/missing.js", false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, asset.Status)
	assert.Zero(t, c.Len())
}

func TestFetch_EvictsOldestFirst(t *testing.T) {
	o := newOrigin(t)
	c, err := New(Options{Origin: o.srv.URL, Limit: 2})
	require.NoError(t, err)
	ctx := context.Background()

	for _, p := range []string{"/a.js", "/b.js", "/c.js"} {
		_, err := c.Fetch(ctx, p, false)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Len())

	_, ok := c.lookup("/a.js")
	assert.False(t, ok)
	_, ok = c.lookup("/c.js")
	assert.True(t, ok)
}

func TestFetch_OfflineFallback(t *testing.T) {
	o := newOrigin(t)
	c, err := New(Options{Origin: o.srv.URL, Shell: []string{"./index.html"}})
	require.NoError(t, err)
	ctx := context.Background()

	assert.Equal(t, 2, c.Precache(ctx))
	_, err = c.Fetch(ctx, "/cached.js", false)
	require.NoError(t, err)

	o.srv.Close()

	cached, err := c.Fetch(ctx, "/cached.js", false)
	require.NoError(t, err)
	assert.Equal(t, "asset /cached.js", string(cached.Body))

	shell, err := c.Fetch(ctx, "/index.html", true)
	require.NoError(t, err)
	assert.Equal(t, "page /index.html", string(shell.Body))

	page, err := c.Fetch(ctx, "/pages/history.html", false)
	require.NoError(t, err)
	assert.Equal(t, "page /offline.html", string(page.Body))

	_, err = c.Fetch(ctx, "/uncached.js", false)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	o := newOrigin(t)
	c, err := New(Options{Origin: o.srv.URL})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/assets/*path", c.Handler)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/assets/js/app.js", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "asset /js/app.js", w.Body.String())
	assert.Equal(t, "application/javascript", w.Header().Get("Content-Type"))

	o.srv.Close()
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/assets/other.js", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestFetch_StaysOnOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	o := newOrigin(t)
	other := newOrigin(t)
	c, err := New(Options{Origin: o.srv.URL + "/static/"})
	require.NoError(t, err)
	ctx := context.Background()

	for _, p := range []string{
		"/" + other.srv.URL + "/x.js",
		"///" + other.srv.Listener.Addr().String() + "/x.js",
		"/../secret.js",
		"/js/../../secret.js",
	} {
		_, err := c.Fetch(ctx, p, true)
		assert.ErrorIs(t, err, ErrOutsideOrigin, p)
	}
	assert.Zero(t, other.hits.Load())
	assert.Zero(t, o.hits.Load())
	assert.Zero(t, c.Len())

	asset, err := c.Fetch(ctx, "/js/../app.js", false)
	require.NoError(t, err)
	assert.Equal(t, "asset /static/app.js", string(asset.Body))

	r := gin.New()
	r.GET("/assets/*path", c.Handler)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/assets/"+other.srv.URL+"/x.js", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, other.hits.Load())
}

func TestNew_RejectsBadOrigin(t *testing.T) {
	_, err := New(Options{Origin: "not a url"})
	assert.Error(t, err)
}
