package node

import (
	"fmt"

	"github.com/talDoFlemis/hokkaido/internal/versioned"
)

// Handle identifies a node in a Store. Handles are never reused.
type Handle uint32

// Nil is the empty child/parent reference.
const Nil Handle = 0

// Color of a red-black tree node. The nil node is black.
type Color uint8

const (
	Red Color = iota
	Black
)

func (c Color) String() string {
	switch c {
	case Red:
		return "red"
	case Black:
		return "black"
	default:
		return fmt.Sprintf("Color(%d)", uint8(c))
	}
}

// Slot names one of the versioned attributes of a node.
type Slot uint8

const (
	SlotLeft Slot = iota
	SlotRight
	SlotParent
	SlotColor
)

func (s Slot) String() string {
	switch s {
	case SlotLeft:
		return "left"
	case SlotRight:
		return "right"
	case SlotParent:
		return "parent"
	case SlotColor:
		return "color"
	default:
		return fmt.Sprintf("Slot(%d)", uint8(s))
	}
}

// Node is a persistent tree node. Key, Value and Created never change after
// allocation; the structural attributes are versioned fields. A node replaced
// by a copy records it in superseded exactly once and is never written again.
type Node[K any, V any] struct {
	Key     K
	Value   V
	Created uint64

	left   versioned.Field[Handle]
	right  versioned.Field[Handle]
	parent versioned.Field[Handle]
	color  versioned.Field[Color]

	superseded Handle
}

// Superseded returns the copy that replaced this node, or Nil.
func (n *Node[K, V]) Superseded() Handle { return n.superseded }

// pointer returns the field backing a pointer slot.
func (n *Node[K, V]) pointer(s Slot) *versioned.Field[Handle] {
	switch s {
	case SlotLeft:
		return &n.left
	case SlotRight:
		return &n.right
	case SlotParent:
		return &n.parent
	default:
		panic(fmt.Sprintf("node: %s is not a pointer slot", s))
	}
}

// ModCount returns the number of log entries currently held by slot.
func (n *Node[K, V]) ModCount(s Slot) int {
	if s == SlotColor {
		return n.color.Len()
	}
	return n.pointer(s).Len()
}

// mod is a pending write to one slot.
type mod struct {
	slot  Slot
	ptr   Handle
	color Color
}

func (n *Node[K, V]) write(v uint64, m mod) error {
	if m.slot == SlotColor {
		return n.color.Write(v, m.color)
	}
	return n.pointer(m.slot).Write(v, m.ptr)
}
