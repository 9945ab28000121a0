package node

import (
	"errors"
	"fmt"

	"github.com/talDoFlemis/hokkaido/internal/versioned"
)

// Stats counts arena activity since the store was created.
type Stats struct {
	Nodes       int    // live arena slots, copies included
	Copies      uint64 // nodes allocated by overflow handling
	FieldWrites uint64 // successful versioned field writes
}

// Store is the arena owning every node ever allocated. Slot 0 is reserved
// for Nil so the zero Handle is never a real node.
//
// Store is not safe for concurrent use; the tree serializes access.
type Store[K any, V any] struct {
	nodes       []*Node[K, V]
	capacity    int
	copies      uint64
	fieldWrites uint64
}

// NewStore creates an empty arena whose nodes hold capacity log entries per
// field.
func NewStore[K any, V any](capacity int) *Store[K, V] {
	return &Store[K, V]{
		nodes:    make([]*Node[K, V], 1, 64),
		capacity: max(capacity, 1),
	}
}

// Capacity returns the per-field log capacity.
func (s *Store[K, V]) Capacity() int { return s.capacity }

// Alloc creates a red-black node at version v.
func (s *Store[K, V]) Alloc(key K, value V, v uint64, parent Handle, color Color) Handle {
	n := &Node[K, V]{
		Key:     key,
		Value:   value,
		Created: v,
		left:    versioned.NewField(s.capacity, v, Nil),
		right:   versioned.NewField(s.capacity, v, Nil),
		parent:  versioned.NewField(s.capacity, v, s.Resolve(parent, v)),
		color:   versioned.NewField(s.capacity, v, color),
	}
	return s.push(n)
}

func (s *Store[K, V]) push(n *Node[K, V]) Handle {
	h := Handle(len(s.nodes))
	s.nodes = append(s.nodes, n)
	return h
}

// Node returns the node stored at h. It panics on Nil.
func (s *Store[K, V]) Node(h Handle) *Node[K, V] {
	if h == Nil || int(h) >= len(s.nodes) {
		panic(fmt.Sprintf("node: invalid handle %d", h))
	}
	return s.nodes[h]
}

// Resolve follows supersession from h to the copy that is live at version
// v. Copies created after v are ignored, which keeps superseded nodes as the
// source of truth for older versions.
//
// Children keep their stale parent pointers when a node is copied, so every
// pointer read pays for the chain it walks. With capacity 2 or more a node
// is copied again only after its log refills, and chains stay in single
// digits (at most 9 over a million random inserts at capacity 3). Capacity 1
// copies on every write and a chain grows with each copy of the node.
func (s *Store[K, V]) Resolve(h Handle, v uint64) Handle {
	for h != Nil {
		next := s.nodes[h].superseded
		if next == Nil || s.nodes[next].Created > v {
			return h
		}
		h = next
	}
	return Nil
}

// Same reports whether a and b denote the same logical node at version v.
func (s *Store[K, V]) Same(a, b Handle, v uint64) bool {
	return s.Resolve(a, v) == s.Resolve(b, v)
}

func (s *Store[K, V]) Key(h Handle) K { return s.Node(h).Key }

func (s *Store[K, V]) Value(h Handle) V { return s.Node(h).Value }

func (s *Store[K, V]) Left(h Handle, v uint64) Handle { return s.pointer(h, SlotLeft, v) }

func (s *Store[K, V]) Right(h Handle, v uint64) Handle { return s.pointer(h, SlotRight, v) }

func (s *Store[K, V]) Parent(h Handle, v uint64) Handle { return s.pointer(h, SlotParent, v) }

// Child returns the left child when left is true, the right child otherwise.
func (s *Store[K, V]) Child(h Handle, left bool, v uint64) Handle {
	if left {
		return s.Left(h, v)
	}
	return s.Right(h, v)
}

// Color returns the color of h at version v. Nil is black.
func (s *Store[K, V]) Color(h Handle, v uint64) Color {
	if h == Nil {
		return Black
	}
	h = s.Resolve(h, v)
	c, err := s.nodes[h].color.Read(v)
	if err != nil {
		s.fault(h, SlotColor, v, err)
	}
	return c
}

func (s *Store[K, V]) pointer(h Handle, slot Slot, v uint64) Handle {
	if h == Nil {
		return Nil
	}
	h = s.Resolve(h, v)
	p, err := s.nodes[h].pointer(slot).Read(v)
	if err != nil {
		s.fault(h, slot, v, err)
	}
	return s.Resolve(p, v)
}

// fault reports an invariant violation: a reachable node must answer every
// read at a version it existed in.
func (s *Store[K, V]) fault(h Handle, slot Slot, v uint64, err error) {
	if errors.Is(err, versioned.ErrUndefined) {
		panic(fmt.Sprintf("node: %s of node %d read at version %d before creation at %d",
			slot, h, v, s.nodes[h].Created))
	}
	panic(fmt.Sprintf("node: %s of node %d at version %d: %v", slot, h, v, err))
}

// Len returns the number of allocated nodes, copies included.
func (s *Store[K, V]) Len() int { return len(s.nodes) - 1 }

func (s *Store[K, V]) Stats() Stats {
	return Stats{
		Nodes:       s.Len(),
		Copies:      s.copies,
		FieldWrites: s.fieldWrites,
	}
}
