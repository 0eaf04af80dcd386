package document

import (
	"errors"
	"fmt"
)

// Relation places a new cell relative to a reference cell.
type Relation int

const (
	Before Relation = iota // previous sibling of the reference
	After                  // next sibling of the reference
	Child                  // appended as last child of the reference
)

func (r Relation) String() string {
	switch r {
	case Before:
		return "before"
	case After:
		return "after"
	case Child:
		return "child"
	default:
		return "invalid"
	}
}

var (
	// ErrCellNotFound is returned when a supplied cell ID does not resolve
	// in the tree at the time the operation runs.
	ErrCellNotFound = errors.New("cell not found")
	// ErrDuplicateID is returned when an insert would register an ID the
	// tree already holds.
	ErrDuplicateID = errors.New("duplicate cell id")
)

// node carries the tree structure for one cell. Cells never hold structure
// themselves, so a removed subtree can be reattached without copying.
type node struct {
	cell     *Cell
	parent   *node
	children []*node
}

// Cursor is the logical editing position: a cell plus a rune offset into its
// content. Offset is only meaningful while Cell is set.
type Cursor struct {
	Cell   ID
	Offset int
}

// Tree is the notebook document: an ordered forest of cells under a hidden
// root, with an arena index for O(1) lookup by ID. Tree is not safe for
// concurrent use; a single owner applies all mutations (see executor).
type Tree struct {
	root   *node
	index  map[ID]*node
	cursor Cursor
}

// NewTree creates an empty document.
func NewTree() *Tree {
	t := &Tree{
		root:  &node{},
		index: make(map[ID]*node),
	}
	return t
}

// Len returns the number of cells in the document.
func (t *Tree) Len() int { return len(t.index) }

// Contains reports whether id resolves to a live cell.
func (t *Tree) Contains(id ID) bool {
	_, ok := t.index[id]
	return ok
}

// Cell resolves id to its cell.
func (t *Tree) Cell(id ID) (*Cell, error) {
	n, ok := t.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCellNotFound, id)
	}
	return n.cell, nil
}

// Cursor returns the current logical cursor.
func (t *Tree) Cursor() Cursor { return t.cursor }

// SetCursor moves the logical cursor. A zero cell ID clears it.
func (t *Tree) SetCursor(cur Cursor) { t.cursor = cur }

// AppendRoot adds a cell as the last top-level cell.
func (t *Tree) AppendRoot(c *Cell) error {
	if t.Contains(c.id) {
		return fmt.Errorf("%w: %s", ErrDuplicateID, c.id)
	}
	n := &node{cell: c, parent: t.root}
	t.root.children = append(t.root.children, n)
	t.index[c.id] = n
	return nil
}

// Insert places a new cell relative to the cell identified by ref. The
// reference is resolved now, not at construction time, so queued actions see
// the tree as it is when they run.
func (t *Tree) Insert(c *Cell, ref ID, rel Relation) error {
	refNode, ok := t.index[ref]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCellNotFound, ref)
	}
	if t.Contains(c.id) {
		return fmt.Errorf("%w: %s", ErrDuplicateID, c.id)
	}
	n := &node{cell: c}
	switch rel {
	case Child:
		n.parent = refNode
		refNode.children = append(refNode.children, n)
	case Before, After:
		parent := refNode.parent
		idx := childIndex(parent, refNode)
		if rel == After {
			idx++
		}
		n.parent = parent
		parent.children = insertAt(parent.children, idx, n)
	default:
		return fmt.Errorf("invalid relation %d", rel)
	}
	t.index[c.id] = n
	return nil
}

// Position reports where id currently sits: its parent's ID (zero for a
// top-level cell) and its index among that parent's children.
func (t *Tree) Position(id ID) (parent ID, index int, err error) {
	n, ok := t.index[id]
	if !ok {
		return ID{}, 0, fmt.Errorf("%w: %s", ErrCellNotFound, id)
	}
	if n.parent != t.root {
		parent = n.parent.cell.id
	}
	return parent, childIndex(n.parent, n), nil
}

// Subtree is a detached fragment of the document: one cell plus all its
// descendants, with order and nesting intact. It stays valid until it is
// reinserted into a tree.
type Subtree struct {
	top *node
}

// Root returns the cell at the top of the detached fragment.
func (s Subtree) Root() *Cell { return s.top.cell }

// Remove detaches id and its whole subtree. It returns the detached fragment
// together with the parent ID (zero for top-level) and the child index it
// occupied, which is exactly what Reinsert needs to undo the removal.
func (t *Tree) Remove(id ID) (Subtree, ID, int, error) {
	n, ok := t.index[id]
	if !ok {
		return Subtree{}, ID{}, 0, fmt.Errorf("%w: %s", ErrCellNotFound, id)
	}
	parent := n.parent
	idx := childIndex(parent, n)
	parent.children = append(parent.children[:idx], parent.children[idx+1:]...)
	n.parent = nil

	walkNodes(n, func(m *node) {
		delete(t.index, m.cell.id)
		if t.cursor.Cell == m.cell.id {
			t.cursor = Cursor{}
		}
	})

	var parentID ID
	if parent != t.root {
		parentID = parent.cell.id
	}
	return Subtree{top: n}, parentID, idx, nil
}

// Reinsert attaches a previously removed subtree under parent (zero for
// top-level) at the given child index. The restored fragment is
// indistinguishable from one that was never removed.
func (t *Tree) Reinsert(sub Subtree, parent ID, index int) error {
	if sub.top == nil {
		return errors.New("empty subtree")
	}
	parentNode := t.root
	if (parent != ID{}) {
		n, ok := t.index[parent]
		if !ok {
			return fmt.Errorf("%w: %s", ErrCellNotFound, parent)
		}
		parentNode = n
	}
	if index < 0 || index > len(parentNode.children) {
		return fmt.Errorf("reinsert index %d out of range", index)
	}
	// Check for ID conflicts before touching structure.
	conflict := false
	walkNodes(sub.top, func(m *node) {
		if t.Contains(m.cell.id) {
			conflict = true
		}
	})
	if conflict {
		return fmt.Errorf("%w: subtree overlaps live tree", ErrDuplicateID)
	}
	sub.top.parent = parentNode
	parentNode.children = insertAt(parentNode.children, index, sub.top)
	walkNodes(sub.top, func(m *node) {
		t.index[m.cell.id] = m
	})
	return nil
}

// Walk visits every cell in document (preorder) order, with its depth.
// Returning false stops the walk.
func (t *Tree) Walk(fn func(c *Cell, depth int) bool) {
	var visit func(n *node, depth int) bool
	visit = func(n *node, depth int) bool {
		for _, ch := range n.children {
			if !fn(ch.cell, depth) {
				return false
			}
			if !visit(ch, depth+1) {
				return false
			}
		}
		return true
	}
	visit(t.root, 0)
}

// Cells returns all cells in document order.
func (t *Tree) Cells() []*Cell {
	out := make([]*Cell, 0, len(t.index))
	t.Walk(func(c *Cell, _ int) bool {
		out = append(out, c)
		return true
	})
	return out
}

// Roots returns the top-level cells in order.
func (t *Tree) Roots() []*Cell {
	out := make([]*Cell, 0, len(t.root.children))
	for _, n := range t.root.children {
		out = append(out, n.cell)
	}
	return out
}

// Children returns the ordered child cells of id.
func (t *Tree) Children(id ID) ([]*Cell, error) {
	n, ok := t.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCellNotFound, id)
	}
	out := make([]*Cell, 0, len(n.children))
	for _, ch := range n.children {
		out = append(out, ch.cell)
	}
	return out, nil
}

// NextOfType returns the first cell of type ct after id in document order,
// skipping id's own descendants, or nil if none exists.
func (t *Tree) NextOfType(id ID, ct CellType) (*Cell, error) {
	if !t.Contains(id) {
		return nil, fmt.Errorf("%w: %s", ErrCellNotFound, id)
	}
	var found *Cell
	seen := false
	inSubtree := false
	refDepth := 0
	t.Walk(func(c *Cell, depth int) bool {
		if c.id == id {
			seen = true
			inSubtree = true
			refDepth = depth
			return true
		}
		if !seen {
			return true
		}
		if inSubtree {
			// Deeper cells right after the reference are its descendants;
			// the first cell back at its level or above ends the subtree.
			if depth > refDepth {
				return true
			}
			inSubtree = false
		}
		if c.Type == ct {
			found = c
			return false
		}
		return true
	})
	return found, nil
}

// PrevOfType returns the last cell of type ct strictly before id in document
// order, or nil if none exists.
func (t *Tree) PrevOfType(id ID, ct CellType) (*Cell, error) {
	if !t.Contains(id) {
		return nil, fmt.Errorf("%w: %s", ErrCellNotFound, id)
	}
	var last *Cell
	t.Walk(func(c *Cell, _ int) bool {
		if c.id == id {
			return false
		}
		if c.Type == ct {
			last = c
		}
		return true
	})
	return last, nil
}

// Adopt replaces this tree's entire contents with those of other, in place.
// Other is drained and must not be used afterwards. Used by the Open action
// so that holders of the *Tree keep a valid document.
func (t *Tree) Adopt(other *Tree) {
	t.root = other.root
	t.index = other.index
	t.cursor = other.cursor
	other.root = &node{}
	other.index = make(map[ID]*node)
	other.cursor = Cursor{}
}

func childIndex(parent, n *node) int {
	for i, ch := range parent.children {
		if ch == n {
			return i
		}
	}
	return -1
}

func insertAt(s []*node, i int, n *node) []*node {
	s = append(s, nil)
	copy(s[i+1:], s[i:])
	s[i] = n
	return s
}

func walkNodes(n *node, fn func(*node)) {
	fn(n)
	for _, ch := range n.children {
		walkNodes(ch, fn)
	}
}
