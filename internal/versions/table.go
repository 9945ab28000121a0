package versions

import (
	"errors"
	"sync/atomic"

	"github.com/talDoFlemis/hokkaido/internal/node"
)

var ErrUnknownVersion = errors.New("unknown version")

// Table maps every published version to the root node live at that
// version. Version 0 is the empty tree. Entries are append-only and never
// rewritten.
//
// Append and Root must be serialized by the caller; Latest may be read
// concurrently with Append.
type Table struct {
	roots  []node.Handle
	latest atomic.Uint64
}

// NewTable creates a table holding only version 0.
func NewTable() *Table {
	return &Table{
		roots: []node.Handle{node.Nil},
	}
}

// Append records root as the next version and publishes it.
func (t *Table) Append(root node.Handle) uint64 {
	t.roots = append(t.roots, root)
	v := uint64(len(t.roots) - 1)
	t.latest.Store(v)
	return v
}

// Root returns the root handle recorded for version v.
func (t *Table) Root(v uint64) (node.Handle, error) {
	if v > t.latest.Load() {
		return node.Nil, ErrUnknownVersion
	}
	return t.roots[v], nil
}

// Latest returns the newest published version.
func (t *Table) Latest() uint64 {
	return t.latest.Load()
}

// Next returns the version the next Append will produce.
func (t *Table) Next() uint64 {
	return t.latest.Load() + 1
}
