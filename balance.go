package hokkaido

import "github.com/talDoFlemis/hokkaido/internal/node"

// insertFixup restores the red-black properties after z was attached as a
// red leaf at version v. Every write goes through the node store, so a
// handle held across a write may be superseded by a copy; all reads
// resolve their argument first and comparisons use Same.
func (t *Tree[K, V]) insertFixup(z node.Handle, v Version) {
	s := t.store
	for {
		p := s.Parent(z, v)
		if p == node.Nil || s.Color(p, v) != node.Red {
			break
		}

		// A red parent is never the root, so the grandparent exists.
		g := s.Parent(p, v)
		parentIsLeft := s.Same(p, s.Left(g, v), v)
		uncle := s.Child(g, !parentIsLeft, v)

		if s.Color(uncle, v) == node.Red {
			s.SetColor(p, v, node.Black)
			s.SetColor(uncle, v, node.Black)
			s.SetColor(g, v, node.Red)
			z = g
			continue
		}

		// Triangle: rotate z into line with its parent first.
		if s.Same(z, s.Child(p, !parentIsLeft, v), v) {
			z = p
			t.rotate(z, parentIsLeft, v)
			p = s.Parent(z, v)
			g = s.Parent(p, v)
		}

		// Line: single rotation at the grandparent.
		s.SetColor(p, v, node.Black)
		s.SetColor(g, v, node.Red)
		t.rotate(g, !parentIsLeft, v)
	}

	s.SetColor(t.root, v, node.Black)
}

// rotate performs a left rotation at x when left is true, a right rotation
// otherwise. The child opposite to the rotation direction takes x's place.
func (t *Tree[K, V]) rotate(x node.Handle, left bool, v Version) {
	s := t.store

	y := s.Child(x, !left, v)
	inner := s.Child(y, left, v)

	s.SetChild(x, !left, v, inner)
	if inner != node.Nil {
		s.SetParent(inner, v, x)
	}

	xp := s.Parent(x, v)
	s.SetParent(y, v, xp)
	switch {
	case xp == node.Nil:
		t.root = y
	case s.Same(x, s.Left(xp, v), v):
		s.SetLeft(xp, v, y)
	default:
		s.SetRight(xp, v, y)
	}

	s.SetChild(y, left, v, x)
	s.SetParent(x, v, y)
}
