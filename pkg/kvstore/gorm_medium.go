package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// OpenDatabase connects to a postgres or sqlite database.
func OpenDatabase(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	return db, nil
}

// GormMedium stores entries in the kv_entries table.
type GormMedium struct {
	db    *gorm.DB
	quota int
}

// NewGormMedium migrates the kv_entries table and returns a medium over it.
func NewGormMedium(db *gorm.DB, quota int) (*GormMedium, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate kv_entries: %w", err)
	}
	return &GormMedium{db: db, quota: quota}, nil
}

func (m *GormMedium) Get(ctx context.Context, key string) (Entry, bool, error) {
	var e Entry
	err := m.db.WithContext(ctx).Where("storage_key = ?", key).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	return e, true, nil
}

func (m *GormMedium) Put(ctx context.Context, key, value, origin string) (Entry, error) {
	var out Entry
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if m.quota > 0 {
			var entries []Entry
			if err := tx.Find(&entries).Error; err != nil {
				return err
			}
			total := entrySize(key, value)
			for _, e := range entries {
				if e.Key != key {
					total += entrySize(e.Key, e.Value)
				}
			}
			if total > m.quota {
				return ErrQuotaExceeded
			}
		}

		now := time.Now()
		entry := Entry{Key: key, Value: value, Origin: origin, Revision: 1, UpdatedAt: now}

		// Atomic upsert: INSERT ... ON CONFLICT (storage_key) DO UPDATE, bumping the revision
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "storage_key"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"value":      value,
				"origin":     origin,
				"updated_at": now,
				"revision":   gorm.Expr("kv_entries.revision + 1"),
			}),
		}).Create(&entry).Error
		if err != nil {
			return err
		}

		return tx.Where("storage_key = ?", key).First(&out).Error
	})
	if err != nil {
		return Entry{}, err
	}
	return out, nil
}

func (m *GormMedium) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := m.db.WithContext(ctx).Order("storage_key ASC").Find(&entries).Error
	return entries, err
}
