// Package tabsync keeps an execution context's task lists in step with
// writes made by other contexts sharing the same storage.
package tabsync

import (
	"context"
	"log"
	"sync"

	"tasktimer/internal/task/repository"
	"tasktimer/pkg/kvstore"
)

// Watcher delivers changes written by other contexts. *kvstore.Session
// satisfies it.
type Watcher interface {
	Watch(fn func(kvstore.Change)) (cancel func())
}

// Reloader replaces a list wholesale from storage.
type Reloader interface {
	ReloadActive(ctx context.Context)
	ReloadCompleted(ctx context.Context)
}

// Controller reloads the store whenever another context rewrites one of the
// task keys. The last write wins; nothing is merged.
type Controller struct {
	watcher Watcher
	store   Reloader

	mu     sync.Mutex
	cancel func()
}

func NewController(watcher Watcher, store Reloader) *Controller {
	return &Controller{watcher: watcher, store: store}
}

// Start begins watching. Calling it again while running does nothing.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}

	log.Println("[TabSync] Watching for changes from other contexts")
	c.cancel = c.watcher.Watch(func(change kvstore.Change) {
		c.Handle(ctx, change)
	})
}

func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return
	}
	c.cancel()
	c.cancel = nil
	log.Println("[TabSync] Stopped")
}

// Handle reacts to a single change. Unrelated keys are ignored.
func (c *Controller) Handle(ctx context.Context, change kvstore.Change) {
	switch change.Key {
	case repository.ActiveKey:
		log.Printf("[TabSync] Reloading active tasks (revision %d from %s)", change.Revision, change.Origin)
		c.store.ReloadActive(ctx)
	case repository.CompletedKey:
		log.Printf("[TabSync] Reloading history (revision %d from %s)", change.Revision, change.Origin)
		c.store.ReloadCompleted(ctx)
	}
}
