package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository caches fetched telemetry and computed analytics on the local file system
// (sqlite), so that restarts and repeated scans don't hammer the backend. Every entry
// carries a TTL; expired entries are treated as misses.
//
// Keys are structured paths like `readings/<device-id>` - InvalidatePrefix relies on
// them never containing SQL wildcard characters.
type Repository struct {
	db *gorm.DB
}

func New(path string) (*Repository, error) {

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Migrate the schema
	err = db.AutoMigrate(&CacheEntry{})
	if err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Repository{
		db: db,
	}, nil
}

// Get returns the cached value for the given key. The second return is false on a
// miss - either the key was never set, or its TTL has lapsed.
func (r *Repository) Get(key string) ([]byte, bool, error) {
	var entry CacheEntry

	result := r.db.Where("key = ?", key).Take(&entry)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if result.Error != nil {
		return nil, false, result.Error
	}
	if !entry.ExpiresAt.After(time.Now()) {
		// Lapsed entries stay on disk until the next PurgeExpired
		return nil, false, nil
	}
	return entry.Value, true, nil
}

// Set stores the value under the given key for the given TTL, replacing any previous
// entry.
func (r *Repository) Set(key string, value []byte, ttl time.Duration) error {
	entry := newCacheEntry(key, value, time.Now().Add(ttl))

	result := r.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&entry)
	return result.Error
}

// InvalidatePrefix drops every entry whose key starts with the given prefix, e.g.
// `readings/` for all devices or `readings/<device-id>` for one.
func (r *Repository) InvalidatePrefix(prefix string) error {
	result := r.db.Where("key LIKE ?", prefix+"%").Delete(&CacheEntry{})
	return result.Error
}

// PurgeExpired removes the entries whose TTL has lapsed.
func (r *Repository) PurgeExpired() error {
	result := r.db.Where("expires_at <= ?", time.Now()).Delete(&CacheEntry{})
	return result.Error
}
