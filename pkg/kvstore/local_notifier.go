package kvstore

import (
	"context"
	"sync"
)

// LocalNotifier fans changes out to in-process subscribers. Each subscriber
// runs on its own goroutine; changes to the same key that pile up before the
// subscriber wakes are coalesced into the latest one.
type LocalNotifier struct {
	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{subs: map[int]*subscriber{}}
}

func (n *LocalNotifier) Publish(_ context.Context, change Change) error {
	n.Dispatch(change)
	return nil
}

// Dispatch queues change for every subscriber without blocking.
func (n *LocalNotifier) Dispatch(change Change) {
	n.mu.Lock()
	subs := make([]*subscriber, 0, len(n.subs))
	for _, s := range n.subs {
		subs = append(subs, s)
	}
	n.mu.Unlock()

	for _, s := range subs {
		s.enqueue(change)
	}
}

func (n *LocalNotifier) Subscribe(fn func(Change)) (cancel func()) {
	s := &subscriber{
		fn:      fn,
		pending: map[string]Change{},
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = s
	n.mu.Unlock()

	go s.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
			close(s.done)
		})
	}
}

type subscriber struct {
	fn func(Change)

	mu      sync.Mutex
	pending map[string]Change
	order   []string

	wake chan struct{}
	done chan struct{}
}

func (s *subscriber) enqueue(change Change) {
	s.mu.Lock()
	if _, queued := s.pending[change.Key]; !queued {
		s.order = append(s.order, change.Key)
	}
	s.pending[change.Key] = change
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) drain() []Change {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Change, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.pending[key])
	}
	s.pending = map[string]Change{}
	s.order = nil
	return out
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
			for _, c := range s.drain() {
				s.fn(c)
			}
		}
	}
}
