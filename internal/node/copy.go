package node

import (
	"errors"
	"fmt"

	"github.com/talDoFlemis/hokkaido/internal/versioned"
)

func (s *Store[K, V]) SetLeft(h Handle, v uint64, child Handle) {
	s.apply(h, v, mod{slot: SlotLeft, ptr: child})
}

func (s *Store[K, V]) SetRight(h Handle, v uint64, child Handle) {
	s.apply(h, v, mod{slot: SlotRight, ptr: child})
}

// SetChild sets the left child when left is true, the right child otherwise.
func (s *Store[K, V]) SetChild(h Handle, left bool, v uint64, child Handle) {
	if left {
		s.SetLeft(h, v, child)
		return
	}
	s.SetRight(h, v, child)
}

func (s *Store[K, V]) SetParent(h Handle, v uint64, parent Handle) {
	s.apply(h, v, mod{slot: SlotParent, ptr: parent})
}

func (s *Store[K, V]) SetColor(h Handle, v uint64, c Color) {
	s.apply(h, v, mod{slot: SlotColor, color: c})
}

// apply writes m to h at version v. When the target field is full the node
// is copied and the parent's child slot is redirected to the copy, which is
// itself a write that may overflow. The cascade runs as a loop and stops at
// the first write that fits or at a node without a parent.
func (s *Store[K, V]) apply(h Handle, v uint64, m mod) {
	if h == Nil {
		panic(fmt.Sprintf("node: write of %s to nil node", m.slot))
	}
	for {
		h = s.Resolve(h, v)
		m.ptr = s.Resolve(m.ptr, v)
		if s.current(h, m.slot, v) == m {
			return
		}

		err := s.nodes[h].write(v, m)
		if err == nil {
			s.fieldWrites++
			return
		}
		if !errors.Is(err, versioned.ErrOverflow) {
			panic(fmt.Sprintf("node: write %s of node %d at version %d: %v", m.slot, h, v, err))
		}

		cp := s.copyNode(h, v, m)
		parent := s.Parent(cp, v)
		if parent == Nil {
			return
		}

		switch cp {
		case s.Left(parent, v):
			h, m = parent, mod{slot: SlotLeft, ptr: cp}
		case s.Right(parent, v):
			h, m = parent, mod{slot: SlotRight, ptr: cp}
		default:
			// Mid-rotation the parent does not reference this node yet;
			// the pending pointer write will resolve to the copy.
			return
		}
	}
}

// current returns the stored value of slot as of v, shaped as a mod for
// comparison. Pointers are compared unresolved so that redirecting a slot
// from a superseded node to its copy is not mistaken for a no-op.
func (s *Store[K, V]) current(h Handle, slot Slot, v uint64) mod {
	if slot == SlotColor {
		return mod{slot: slot, color: s.Color(h, v)}
	}
	p, err := s.nodes[h].pointer(slot).Read(v)
	if err != nil {
		s.fault(h, slot, v, err)
	}
	return mod{slot: slot, ptr: p}
}

// copyNode replaces h with a fresh node carrying its live attributes at v
// and the pending write m. Every field of the copy restarts with a single
// entry at v.
func (s *Store[K, V]) copyNode(h Handle, v uint64, m mod) Handle {
	old := s.nodes[h]
	if old.superseded != Nil {
		panic(fmt.Sprintf("node: node %d already superseded by %d", h, old.superseded))
	}

	left, right, parent := s.Left(h, v), s.Right(h, v), s.Parent(h, v)
	color := s.Color(h, v)
	switch m.slot {
	case SlotLeft:
		left = m.ptr
	case SlotRight:
		right = m.ptr
	case SlotParent:
		parent = m.ptr
	case SlotColor:
		color = m.color
	}

	cp := s.push(&Node[K, V]{
		Key:     old.Key,
		Value:   old.Value,
		Created: v,
		left:    versioned.NewField(s.capacity, v, left),
		right:   versioned.NewField(s.capacity, v, right),
		parent:  versioned.NewField(s.capacity, v, parent),
		color:   versioned.NewField(s.capacity, v, color),
	})
	old.superseded = cp
	s.copies++
	return cp
}
