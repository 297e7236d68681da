package kvstore

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
)

// Session is one execution context's view of the shared medium. Its writes
// are stamped with the session ID and announced to the other contexts.
type Session struct {
	id       string
	medium   Medium
	notifier Notifier
}

// NewSession opens a session with a fresh origin ID. notifier may be nil when
// the context never shares the medium.
func NewSession(medium Medium, notifier Notifier) *Session {
	return NewSessionWithID(uuid.New().String(), medium, notifier)
}

// NewSessionWithID opens a session with a caller-chosen origin ID, for
// notifiers that must know the origin before the session exists.
func NewSessionWithID(id string, medium Medium, notifier Notifier) *Session {
	return &Session{
		id:       id,
		medium:   medium,
		notifier: notifier,
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Get(ctx context.Context, key string) (string, bool, error) {
	e, ok, err := s.medium.Get(ctx, key)
	if err != nil {
		return "", false, err
	}
	return e.Value, ok, nil
}

// Set writes value under key. Writing the value already stored is a no-op and
// announces nothing. A failed announcement is logged; the write stands.
func (s *Session) Set(ctx context.Context, key, value string) error {
	current, ok, err := s.medium.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("read %q: %w", key, err)
	}
	if ok && current.Value == value {
		return nil
	}

	entry, err := s.medium.Put(ctx, key, value, s.id)
	if err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}

	if s.notifier == nil {
		return nil
	}
	change := Change{Key: key, Origin: s.id, Revision: entry.Revision}
	if err := s.notifier.Publish(ctx, change); err != nil {
		log.Printf("[KVStore] Failed to announce change of %q: %v", key, err)
	}
	return nil
}

// Watch calls fn for changes written by other sessions.
func (s *Session) Watch(fn func(Change)) (cancel func()) {
	if s.notifier == nil {
		return func() {}
	}
	return s.notifier.Subscribe(func(c Change) {
		if c.Origin == s.id {
			return
		}
		fn(c)
	})
}
