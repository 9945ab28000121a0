package cache

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/elastic/go-freelru"
)

// Cache memoizes results computed for a published version. Versions are
// immutable once published, so entries never need invalidation; the LRU
// only bounds memory.
//
// A Cache with size 0 is disabled: Get always misses and Put is a no-op.
type Cache[T any] struct {
	lru *freelru.SyncedLRU[uint64, T]

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New creates a cache holding at most size versions.
func New[T any](size uint32) (*Cache[T], error) {
	c := &Cache[T]{}
	if size == 0 {
		return c, nil
	}

	lru, err := freelru.NewSynced[uint64, T](size, hashVersion)
	if err != nil {
		return nil, err
	}
	c.lru = lru
	return c, nil
}

func hashVersion(v uint64) uint32 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return uint32(xxhash.Sum64(buf[:]))
}

// Enabled reports whether the cache stores anything.
func (c *Cache[T]) Enabled() bool {
	return c.lru != nil
}

// Get returns the value cached for version.
func (c *Cache[T]) Get(version uint64) (T, bool) {
	if c.lru == nil {
		var zero T
		c.misses.Add(1)
		return zero, false
	}

	value, ok := c.lru.Get(version)
	if !ok {
		c.misses.Add(1)
		return value, false
	}
	c.hits.Add(1)
	return value, true
}

// Put caches value for version, evicting the least recently used entry
// when full.
func (c *Cache[T]) Put(version uint64, value T) {
	if c.lru == nil {
		return
	}
	if evicted := c.lru.Add(version, value); evicted {
		c.evictions.Add(1)
	}
}

// Size returns current number of cached entries
func (c *Cache[T]) Size() int {
	if c.lru == nil {
		return 0
	}
	return c.lru.Len()
}

type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Stats returns cache statistics
func (c *Cache[T]) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// ClearStats resets the cache's positive incrementing statistics
func (c *Cache[T]) ClearStats() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
}
