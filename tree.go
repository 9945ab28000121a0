package hokkaido

import (
	"cmp"
	"fmt"
	"sync"

	"github.com/talDoFlemis/hokkaido/internal/cache"
	"github.com/talDoFlemis/hokkaido/internal/node"
	"github.com/talDoFlemis/hokkaido/internal/versions"
)

// Version identifies a state of the tree. Version 0 is the empty tree and
// the n-th successful insert produces version n.
type Version = uint64

// Tree is a partially persistent red-black tree. Only the latest version
// accepts inserts; every earlier version stays readable exactly as it was
// published.
//
// A Tree allows a single writer and any number of readers. Inserts hold the
// write lock for their whole duration, so readers only ever observe
// completed versions.
type Tree[K cmp.Ordered, V any] struct {
	mu       sync.RWMutex
	store    *node.Store[K, V]
	versions *versions.Table
	queries  *cache.Cache[[]K]
	logger   Logger

	// root is the writer's working root while an insert is in progress. It
	// may go stale when the root is copied; it is resolved before publish.
	root node.Handle
}

// New creates an empty tree at version 0.
func New[K cmp.Ordered, V any](options ...TreeOption) (*Tree[K, V], error) {
	opts := defaultTreeOptions()
	for _, opt := range options {
		opt(&opts)
	}

	if opts.modCapacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidModCapacity, opts.modCapacity)
	}

	queries, err := cache.New[[]K](opts.queryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("query cache: %w", err)
	}

	opts.logger.Info("persistent tree created",
		"mod_capacity", opts.modCapacity,
		"query_cache_size", opts.queryCacheSize)

	return &Tree[K, V]{
		store:    node.NewStore[K, V](opts.modCapacity),
		versions: versions.NewTable(),
		queries:  queries,
		logger:   opts.logger,
	}, nil
}

// Insert adds key with its value, producing a new version which is
// returned. A key already present in the latest version is rejected with
// ErrDuplicateKey and the version does not advance.
func (t *Tree[K, V]) Insert(key K, value V) (Version, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	latest := t.versions.Latest()
	v := t.versions.Next()

	root, err := t.versions.Root(latest)
	if err != nil {
		return latest, err
	}

	s := t.store
	parent, x := node.Nil, s.Resolve(root, v)
	less := false
	for x != node.Nil {
		parent = x
		c := cmp.Compare(key, s.Key(x))
		if c == 0 {
			return latest, fmt.Errorf("%w: %v", ErrDuplicateKey, key)
		}
		less = c < 0
		x = s.Child(x, less, v)
	}

	z := s.Alloc(key, value, v, parent, node.Red)
	t.root = root
	if parent == node.Nil {
		t.root = z
	} else {
		s.SetChild(parent, less, v, z)
	}

	t.insertFixup(z, v)

	newRoot := s.Resolve(t.root, v)
	t.root = node.Nil
	return t.versions.Append(newRoot), nil
}

// LatestVersion returns the newest published version.
func (t *Tree[K, V]) LatestVersion() Version {
	return t.versions.Latest()
}

// Stats describes the memory and cache footprint of the tree.
type Stats struct {
	Versions    Version // Latest published version.
	Nodes       int     // Nodes allocated, copies included. Never shrinks.
	Copies      uint64  // Nodes allocated because a field log overflowed.
	FieldWrites uint64  // Versioned field writes, in place rewrites included.
	CacheHits   uint64
	CacheMisses uint64
}

// Stats returns a snapshot of the tree's counters.
func (t *Tree[K, V]) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ns := t.store.Stats()
	cs := t.queries.Stats()
	return Stats{
		Versions:    t.versions.Latest(),
		Nodes:       ns.Nodes,
		Copies:      ns.Copies,
		FieldWrites: ns.FieldWrites,
		CacheHits:   cs.Hits,
		CacheMisses: cs.Misses,
	}
}
