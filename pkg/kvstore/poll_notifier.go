package kvstore

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// PollNotifier detects writes made by other processes by polling the medium
// for revision bumps. Publish delivers in-process changes immediately.
type PollNotifier struct {
	local    *LocalNotifier
	medium   Medium
	clock    clockwork.Clock
	interval time.Duration

	mu   sync.Mutex
	seen map[string]int64

	stopChan chan struct{}
	stopOnce sync.Once
}

func NewPollNotifier(medium Medium, clock clockwork.Clock, interval time.Duration) *PollNotifier {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &PollNotifier{
		local:    NewLocalNotifier(),
		medium:   medium,
		clock:    clock,
		interval: interval,
		seen:     map[string]int64{},
		stopChan: make(chan struct{}),
	}
}

func (p *PollNotifier) Publish(_ context.Context, change Change) error {
	p.mu.Lock()
	if change.Revision > p.seen[change.Key] {
		p.seen[change.Key] = change.Revision
	}
	p.mu.Unlock()

	p.local.Dispatch(change)
	return nil
}

func (p *PollNotifier) Subscribe(fn func(Change)) (cancel func()) {
	return p.local.Subscribe(fn)
}

// Start records the current revisions and begins polling. Entries already in
// the medium at start are not announced.
func (p *PollNotifier) Start(ctx context.Context) error {
	entries, err := p.medium.List(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	for _, e := range entries {
		p.seen[e.Key] = e.Revision
	}
	p.mu.Unlock()

	log.Printf("[KVStore] Polling for storage changes every %s", p.interval)

	ticker := p.clock.NewTicker(p.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				p.poll(ctx)
			case <-ctx.Done():
				return
			case <-p.stopChan:
				return
			}
		}
	}()
	return nil
}

func (p *PollNotifier) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
}

func (p *PollNotifier) poll(ctx context.Context) {
	entries, err := p.medium.List(ctx)
	if err != nil {
		log.Printf("[KVStore] Error polling storage: %v", err)
		return
	}

	var changed []Change
	p.mu.Lock()
	for _, e := range entries {
		if e.Revision > p.seen[e.Key] {
			p.seen[e.Key] = e.Revision
			changed = append(changed, Change{Key: e.Key, Origin: e.Origin, Revision: e.Revision})
		}
	}
	p.mu.Unlock()

	for _, c := range changed {
		p.local.Dispatch(c)
	}
}
