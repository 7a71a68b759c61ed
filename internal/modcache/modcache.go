// Package modcache exposes the digest-keyed mod cache as capabilities the
// resolver consumes, with a bitcask-backed and an in-memory implementation.
package modcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go-voxura-native/internal/database"
	"go-voxura-native/internal/models"

	log "github.com/sirupsen/logrus"
)

// KeyPrefix is prepended to the digest to form the database key of an entry.
const KeyPrefix = "p_"

// Lookup is the read-only cache capability. Absence is not an error.
type Lookup interface {
	Get(digest string) (models.CacheEntry, bool, error)
}

// Store adds write access for cache population.
type Store interface {
	Lookup
	Put(digest string, entry models.CacheEntry) error
}

// DBCache stores entries in the key-value database as JSON.
type DBCache struct {
	db *database.DB
}

// NewDBCache wraps an open database.
func NewDBCache(db *database.DB) *DBCache {
	return &DBCache{db: db}
}

// Get returns the entry for digest, if any.
func (c *DBCache) Get(digest string) (models.CacheEntry, bool, error) {
	value, err := c.db.Get([]byte(KeyPrefix + digest))
	if errors.Is(err, database.ErrNotFound) {
		return models.CacheEntry{}, false, nil
	}
	if err != nil {
		return models.CacheEntry{}, false, err
	}
	var entry models.CacheEntry
	if err := json.Unmarshal(value, &entry); err != nil {
		// A damaged entry behaves like a miss so the archive is read instead.
		log.WithError(err).WithField("digest", digest).Warn("Ignoring unreadable cache entry")
		return models.CacheEntry{}, false, nil
	}
	return entry, true, nil
}

// Put stores entry under digest.
func (c *DBCache) Put(digest string, entry models.CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry %s: %w", digest, err)
	}
	return c.db.Put([]byte(KeyPrefix+digest), data)
}

// Delete removes the entry for digest.
func (c *DBCache) Delete(digest string) error {
	return c.db.Delete([]byte(KeyPrefix + digest))
}

// Each calls fn for every cache entry in the database.
func (c *DBCache) Each(fn func(digest string, entry models.CacheEntry) error) error {
	return c.db.Fold(func(key, value []byte) error {
		keyStr := string(key)
		if !strings.HasPrefix(keyStr, KeyPrefix) {
			return nil
		}
		var entry models.CacheEntry
		if err := json.Unmarshal(value, &entry); err != nil {
			log.WithError(err).Warnf("Failed to unmarshal cache entry %s, skipping", keyStr)
			return nil
		}
		return fn(strings.TrimPrefix(keyStr, KeyPrefix), entry)
	})
}

// MapCache is an in-memory Store, safe for concurrent use.
type MapCache struct {
	mu      sync.RWMutex
	entries map[string]models.CacheEntry
}

// NewMapCache returns a MapCache seeded with entries (which may be nil).
func NewMapCache(entries map[string]models.CacheEntry) *MapCache {
	m := &MapCache{entries: make(map[string]models.CacheEntry, len(entries))}
	for k, v := range entries {
		m.entries[k] = v
	}
	return m
}

func (m *MapCache) Get(digest string) (models.CacheEntry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[digest]
	return e, ok, nil
}

func (m *MapCache) Put(digest string, entry models.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[digest] = entry
	return nil
}

// Len returns the number of cached entries.
func (m *MapCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
