// Package kvstore is the shared key-value storage medium that execution
// contexts persist into, plus the change notifications they coordinate over.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrQuotaExceeded is returned when a write would grow the medium past its quota.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Entry is one stored key. Revision increases on every write to the key and
// Origin names the session that wrote it last.
type Entry struct {
	Key       string    `json:"key" gorm:"column:storage_key;primaryKey;size:191"`
	Value     string    `json:"value" gorm:"type:text"`
	Origin    string    `json:"origin" gorm:"size:64"`
	Revision  int64     `json:"revision" gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Entry) TableName() string {
	return "kv_entries"
}

// Medium is the storage shared by every execution context.
type Medium interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, key, value, origin string) (Entry, error)
	List(ctx context.Context) ([]Entry, error)
}

// Change signals that a key was written by Origin.
type Change struct {
	Key      string `json:"key"`
	Origin   string `json:"origin"`
	Revision int64  `json:"revision"`
}

// Notifier carries changes between execution contexts. Delivery is
// asynchronous and best-effort; several writes may arrive as one Change.
type Notifier interface {
	Publish(ctx context.Context, change Change) error
	Subscribe(fn func(Change)) (cancel func())
}

func entrySize(key, value string) int {
	return len(key) + len(value)
}
