package repository

import "time"

// CacheEntry represents one cached value that is persisted to the SQLite database,
// together with the instant it stops being servable.
type CacheEntry struct {
	Key       string `gorm:"primaryKey"`
	Value     []byte
	ExpiresAt time.Time
}

func newCacheEntry(key string, value []byte, expiresAt time.Time) CacheEntry {
	return CacheEntry{
		Key:       key,
		Value:     value,
		ExpiresAt: expiresAt,
	}
}
