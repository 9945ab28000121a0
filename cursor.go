package hokkaido

import (
	"cmp"

	"github.com/talDoFlemis/hokkaido/internal/node"
)

// Cursor provides ordered iteration over the keys of one version. A cursor
// is bound to its version for its whole life; inserts made after it was
// opened are never observed. A Cursor is not safe for concurrent use.
type Cursor[K cmp.Ordered, V any] struct {
	tree    *Tree[K, V]
	version Version
	root    node.Handle
	stack   []node.Handle // Path from root to the current node
	key     K             // Cached current key
	value   V             // Cached current value
	valid   bool          // Is cursor positioned on valid key?
}

// Cursor opens a cursor over version v. It starts unpositioned.
func (t *Tree[K, V]) Cursor(v Version) (*Cursor[K, V], error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	root, err := t.rootAt(v)
	if err != nil {
		return nil, err
	}
	return &Cursor[K, V]{tree: t, version: v, root: root}, nil
}

// Version returns the version the cursor reads.
func (c *Cursor[K, V]) Version() Version {
	return c.version
}

// First positions cursor at the smallest key.
func (c *Cursor[K, V]) First() (K, V) {
	c.tree.mu.RLock()
	defer c.tree.mu.RUnlock()

	c.stack = c.stack[:0]
	c.descend(c.root, true)
	return c.load()
}

// Last positions cursor at the greatest key.
func (c *Cursor[K, V]) Last() (K, V) {
	c.tree.mu.RLock()
	defer c.tree.mu.RUnlock()

	c.stack = c.stack[:0]
	c.descend(c.root, false)
	return c.load()
}

// Seek positions cursor at the first key >= target. The cursor is invalid
// when every key is smaller.
func (c *Cursor[K, V]) Seek(target K) (K, V) {
	c.tree.mu.RLock()
	defer c.tree.mu.RUnlock()

	s := c.tree.store
	c.stack = c.stack[:0]

	for x := c.root; x != node.Nil; {
		c.stack = append(c.stack, x)
		k := cmp.Compare(target, s.Key(x))
		if k == 0 {
			return c.load()
		}
		x = s.Child(x, k < 0, c.version)
	}

	// Back up to the deepest ancestor greater than target.
	for len(c.stack) > 0 && cmp.Less(s.Key(c.stack[len(c.stack)-1]), target) {
		c.stack = c.stack[:len(c.stack)-1]
	}
	return c.load()
}

// Next advances cursor to the next key in ascending order.
func (c *Cursor[K, V]) Next() (K, V) {
	if !c.valid {
		var (
			k K
			v V
		)
		return k, v
	}

	c.tree.mu.RLock()
	defer c.tree.mu.RUnlock()

	s := c.tree.store
	cur := c.stack[len(c.stack)-1]
	if right := s.Right(cur, c.version); right != node.Nil {
		c.descend(right, true)
		return c.load()
	}

	// Climb until we arrive from a left subtree.
	for len(c.stack) > 1 {
		child := c.stack[len(c.stack)-1]
		c.stack = c.stack[:len(c.stack)-1]
		if s.Left(c.stack[len(c.stack)-1], c.version) == child {
			return c.load()
		}
	}
	c.stack = c.stack[:0]
	return c.load()
}

// Prev moves cursor to the previous key in descending order.
func (c *Cursor[K, V]) Prev() (K, V) {
	if !c.valid {
		var (
			k K
			v V
		)
		return k, v
	}

	c.tree.mu.RLock()
	defer c.tree.mu.RUnlock()

	s := c.tree.store
	cur := c.stack[len(c.stack)-1]
	if left := s.Left(cur, c.version); left != node.Nil {
		c.descend(left, false)
		return c.load()
	}

	for len(c.stack) > 1 {
		child := c.stack[len(c.stack)-1]
		c.stack = c.stack[:len(c.stack)-1]
		if s.Right(c.stack[len(c.stack)-1], c.version) == child {
			return c.load()
		}
	}
	c.stack = c.stack[:0]
	return c.load()
}

// Key returns the current key, or the zero key when the cursor is invalid.
func (c *Cursor[K, V]) Key() K {
	return c.key
}

// Value returns the current value.
func (c *Cursor[K, V]) Value() V {
	return c.value
}

// Valid reports whether the cursor is positioned on a key.
func (c *Cursor[K, V]) Valid() bool {
	return c.valid
}

// descend pushes x and its leftmost (or rightmost) spine onto the path.
func (c *Cursor[K, V]) descend(x node.Handle, leftmost bool) {
	s := c.tree.store
	for x != node.Nil {
		c.stack = append(c.stack, x)
		x = s.Child(x, leftmost, c.version)
	}
}

// load caches the node at the top of the path.
func (c *Cursor[K, V]) load() (K, V) {
	if len(c.stack) == 0 {
		var (
			k K
			v V
		)
		c.key, c.value, c.valid = k, v, false
		return k, v
	}

	n := c.tree.store.Node(c.stack[len(c.stack)-1])
	c.key, c.value, c.valid = n.Key, n.Value, true
	return c.key, c.value
}
