package hokkaido

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/talDoFlemis/hokkaido/internal/node"
)

// Color is the red-black color of a node.
type Color = node.Color

const (
	Red   = node.Red
	Black = node.Black
)

// NodeInfo describes one node of a version, as reported by Nodes.
type NodeInfo[K cmp.Ordered, V any] struct {
	Key   K
	Value V
	Color Color
	Depth int // Root is at depth 0.
}

// rootAt returns the root of version v. Callers hold t.mu for reading.
func (t *Tree[K, V]) rootAt(v Version) (node.Handle, error) {
	root, err := t.versions.Root(v)
	if err != nil {
		return node.Nil, fmt.Errorf("version %d (latest %d): %w", v, t.versions.Latest(), err)
	}
	return root, nil
}

// inorder visits the nodes of the subtree at root in key order as of v,
// stopping early when fn returns false.
func (t *Tree[K, V]) inorder(root node.Handle, v Version, fn func(h node.Handle, depth int) bool) {
	type frame struct {
		h     node.Handle
		depth int
	}

	s := t.store
	var stack []frame
	h, depth := root, 0
	for h != node.Nil || len(stack) > 0 {
		for h != node.Nil {
			stack = append(stack, frame{h: h, depth: depth})
			h = s.Left(h, v)
			depth++
		}

		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(f.h, f.depth) {
			return
		}
		h, depth = s.Right(f.h, v), f.depth+1
	}
}

// find descends from root to key as of v.
func (t *Tree[K, V]) find(root node.Handle, v Version, key K) node.Handle {
	s := t.store
	x := root
	for x != node.Nil {
		c := cmp.Compare(key, s.Key(x))
		if c == 0 {
			return x
		}
		x = s.Child(x, c < 0, v)
	}
	return node.Nil
}

// QueryAt returns the keys present in version v in ascending order. The
// returned slice belongs to the caller.
func (t *Tree[K, V]) QueryAt(v Version) ([]K, error) {
	if keys, ok := t.queries.Get(v); ok {
		return slices.Clone(keys), nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	root, err := t.rootAt(v)
	if err != nil {
		return nil, err
	}

	keys := make([]K, 0, int(v))
	t.inorder(root, v, func(h node.Handle, _ int) bool {
		keys = append(keys, t.store.Key(h))
		return true
	})

	t.queries.Put(v, keys)
	return slices.Clone(keys), nil
}

// SearchAt reports whether key is present in version v.
func (t *Tree[K, V]) SearchAt(v Version, key K) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	root, err := t.rootAt(v)
	if err != nil {
		return false, err
	}
	return t.find(root, v, key) != node.Nil, nil
}

// Get returns the value stored with key in version v.
func (t *Tree[K, V]) Get(v Version, key K) (V, error) {
	var zero V

	t.mu.RLock()
	defer t.mu.RUnlock()

	root, err := t.rootAt(v)
	if err != nil {
		return zero, err
	}

	h := t.find(root, v, key)
	if h == node.Nil {
		return zero, fmt.Errorf("%w: %v at version %d", ErrKeyNotFound, key, v)
	}
	return t.store.Value(h), nil
}

// Successor returns the smallest key of version v strictly greater than key.
// The boolean is false when no such key exists.
func (t *Tree[K, V]) Successor(v Version, key K) (K, bool, error) {
	return t.neighbor(v, key, true)
}

// Predecessor returns the greatest key of version v strictly less than key.
func (t *Tree[K, V]) Predecessor(v Version, key K) (K, bool, error) {
	return t.neighbor(v, key, false)
}

func (t *Tree[K, V]) neighbor(v Version, key K, above bool) (K, bool, error) {
	var best K

	t.mu.RLock()
	defer t.mu.RUnlock()

	root, err := t.rootAt(v)
	if err != nil {
		return best, false, err
	}

	s := t.store
	found := false
	for x := root; x != node.Nil; {
		k := s.Key(x)
		c := cmp.Compare(key, k)
		switch {
		case above && c < 0, !above && c > 0:
			best, found = k, true
			x = s.Child(x, above, v)
		default:
			x = s.Child(x, !above, v)
		}
	}
	return best, found, nil
}

// Len returns the number of keys in version v. Every version adds exactly
// one key, so this is v itself once v is known.
func (t *Tree[K, V]) Len(v Version) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if _, err := t.rootAt(v); err != nil {
		return 0, err
	}
	return int(v), nil
}

// Ascend calls fn for every key of version v in ascending order until fn
// returns false. The read lock is held for the whole walk, so fn must not
// insert into the tree.
func (t *Tree[K, V]) Ascend(v Version, fn func(key K, value V) bool) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	root, err := t.rootAt(v)
	if err != nil {
		return err
	}

	t.inorder(root, v, func(h node.Handle, _ int) bool {
		n := t.store.Node(h)
		return fn(n.Key, n.Value)
	})
	return nil
}

// Nodes returns every node of version v in key order with its color and
// depth as of v.
func (t *Tree[K, V]) Nodes(v Version) ([]NodeInfo[K, V], error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	root, err := t.rootAt(v)
	if err != nil {
		return nil, err
	}

	infos := make([]NodeInfo[K, V], 0, int(v))
	t.inorder(root, v, func(h node.Handle, depth int) bool {
		n := t.store.Node(h)
		infos = append(infos, NodeInfo[K, V]{
			Key:   n.Key,
			Value: n.Value,
			Color: t.store.Color(h, v),
			Depth: depth,
		})
		return true
	})
	return infos, nil
}

// Checksum hashes the shape of version v: every key with its depth and
// color, in order. Two versions with equal checksums hold the same keys
// arranged in the same tree.
func (t *Tree[K, V]) Checksum(v Version) (uint64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	root, err := t.rootAt(v)
	if err != nil {
		return 0, err
	}

	d := xxhash.New()
	t.inorder(root, v, func(h node.Handle, depth int) bool {
		_, _ = fmt.Fprintf(d, "%v/%d/%d;", t.store.Key(h), depth, t.store.Color(h, v))
		return true
	})
	return d.Sum64(), nil
}
