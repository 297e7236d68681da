// Package assetcache serves static assets from a local cache backed by an
// origin server, so the app shell keeps loading while the origin is down.
package assetcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	// ErrUnavailable means the asset is neither cached nor reachable.
	ErrUnavailable = errors.New("asset unavailable")
	// ErrOutsideOrigin rejects paths that resolve to another host or above
	// the origin path.
	ErrOutsideOrigin = errors.New("asset path outside origin")
)

const (
	DefaultLimit       = 24
	DefaultOfflinePage = "/offline.html"
)

// Asset is a cached response.
type Asset struct {
	Status int
	Header http.Header
	Body   []byte
}

type Options struct {
	Origin      string
	Limit       int
	OfflinePage string
	Shell       []string
	Client      *http.Client
}

// Cache keeps precached shell assets indefinitely and at most limit other
// assets, evicting the oldest first.
type Cache struct {
	origin      *url.URL
	client      *http.Client
	limit       int
	offlinePage string
	shellPaths  []string

	mu      sync.Mutex
	shell   map[string]*Asset
	dynamic map[string]*Asset
	order   []string
}

func New(opts Options) (*Cache, error) {
	origin, err := url.Parse(opts.Origin)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("invalid asset origin %q", opts.Origin)
	}
	if !strings.HasSuffix(origin.Path, "/") {
		origin.Path += "/"
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.OfflinePage == "" {
		opts.OfflinePage = DefaultOfflinePage
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 10 * time.Second}
	}

	shellPaths := append([]string{}, opts.Shell...)
	if !contains(shellPaths, opts.OfflinePage) {
		shellPaths = append(shellPaths, opts.OfflinePage)
	}

	return &Cache{
		origin:      origin,
		client:      opts.Client,
		limit:       opts.Limit,
		offlinePage: normalizePath(opts.OfflinePage),
		shellPaths:  shellPaths,
		shell:       map[string]*Asset{},
		dynamic:     map[string]*Asset{},
	}, nil
}

// Precache downloads the shell. Assets that fail are logged and skipped; the
// number stored is returned.
func (c *Cache) Precache(ctx context.Context) int {
	log.Printf("[AssetCache] Caching %d shell assets", len(c.shellPaths))
	stored := 0
	for _, p := range c.shellPaths {
		asset, err := c.fetchOrigin(ctx, p)
		if err != nil {
			log.Printf("[AssetCache] Failed to cache shell asset %s: %v", p, err)
			continue
		}
		if asset.Status != http.StatusOK {
			log.Printf("[AssetCache] Shell asset %s returned %d, skipping", p, asset.Status)
			continue
		}
		c.mu.Lock()
		c.shell[normalizePath(p)] = asset
		c.mu.Unlock()
		stored++
	}
	return stored
}

// Fetch returns the cached asset for path, or fetches and caches it. When the
// origin is unreachable a page navigation falls back to the offline page.
func (c *Cache) Fetch(ctx context.Context, path string, navigation bool) (*Asset, error) {
	key := normalizePath(path)
	target, err := c.resolve(key)
	if err != nil {
		return nil, err
	}
	if asset, ok := c.lookup(key); ok {
		return asset, nil
	}

	asset, err := c.get(ctx, target)
	if err != nil {
		if navigation || strings.Contains(key, ".html") {
			if offline, ok := c.lookup(c.offlinePage); ok {
				return offline, nil
			}
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, key, err)
	}

	if asset.Status == http.StatusOK {
		c.store(key, asset)
	}
	return asset, nil
}

// Len is the number of dynamically cached assets.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// Handler serves the asset named by the *path route parameter.
func (c *Cache) Handler(ctx *gin.Context) {
	navigation := strings.Contains(ctx.GetHeader("Accept"), "text/html")
	asset, err := c.Fetch(ctx.Request.Context(), ctx.Param("path"), navigation)
	if errors.Is(err, ErrOutsideOrigin) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	for _, h := range []string{"Content-Type", "Cache-Control", "ETag", "Last-Modified"} {
		if v := asset.Header.Get(h); v != "" {
			ctx.Header(h, v)
		}
	}
	ctx.Data(asset.Status, asset.Header.Get("Content-Type"), asset.Body)
}

func (c *Cache) lookup(key string) (*Asset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if a, ok := c.shell[key]; ok {
		return a, true
	}
	a, ok := c.dynamic[key]
	return a, ok
}

func (c *Cache) store(key string, asset *Asset) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.dynamic[key]; !ok {
		c.order = append(c.order, key)
	}
	c.dynamic[key] = asset
	for len(c.order) > c.limit {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.dynamic, oldest)
	}
}

func (c *Cache) fetchOrigin(ctx context.Context, path string) (*Asset, error) {
	target, err := c.resolve(path)
	if err != nil {
		return nil, err
	}
	return c.get(ctx, target)
}

// resolve maps path onto the origin. Absolute references and paths that
// climb out of the origin path are rejected.
func (c *Cache) resolve(path string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOutsideOrigin, path, err)
	}
	if ref.IsAbs() || ref.Host != "" || ref.User != nil {
		return nil, fmt.Errorf("%w: %s", ErrOutsideOrigin, path)
	}
	target := c.origin.ResolveReference(ref)
	if target.Scheme != c.origin.Scheme || target.Host != c.origin.Host || !strings.HasPrefix(target.Path, c.origin.Path) {
		return nil, fmt.Errorf("%w: %s", ErrOutsideOrigin, path)
	}
	return target, nil
}

func (c *Cache) get(ctx context.Context, target *url.URL) (*Asset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Asset{Status: resp.StatusCode, Header: resp.Header.Clone(), Body: body}, nil
}

func normalizePath(p string) string {
	if p == "" || p == "." || p == "./" {
		return "/"
	}
	p = strings.TrimPrefix(p, ".")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if normalizePath(v) == normalizePath(s) {
			return true
		}
	}
	return false
}
