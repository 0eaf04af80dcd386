package action

import (
	"fmt"

	"github.com/quirelabs/quire/internal/document"
	"github.com/quirelabs/quire/internal/logger"
	"github.com/quirelabs/quire/internal/text"
)

// NewAddCell inserts cell relative to the cell identified by ref. Set
// Replacement on the returned action when the insert stands in for removed
// content and should not be independently undoable.
func NewAddCell(cell *document.Cell, ref document.ID, rel document.Relation) *Action {
	return &Action{Kind: KindAddCell, Cell: cell, Ref: ref, Rel: rel}
}

func (a *Action) executeAddCell(env *Env) error {
	if a.Cell == nil {
		return fmt.Errorf("add cell: no cell payload")
	}
	// A replacement child stands in for the previous run's artifacts, so
	// stale output and error cells under the same parent go first.
	if a.Replacement && a.Rel == document.Child {
		children, err := env.Doc.Children(a.Ref)
		if err != nil {
			return fmt.Errorf("add cell: %w", err)
		}
		for _, c := range children {
			if c.Type != document.CellOutput && c.Type != document.CellError {
				continue
			}
			if _, _, _, err := env.Doc.Remove(c.ID()); err != nil {
				return fmt.Errorf("add cell: %w", err)
			}
			env.UI.CellRemoved(c.ID())
		}
	}
	if err := env.Doc.Insert(a.Cell, a.Ref, a.Rel); err != nil {
		return fmt.Errorf("add cell: %w", err)
	}
	logger.Debugf("action: added cell %s %s %s", a.Cell.ID(), a.Rel, a.Ref)
	env.UI.CellAdded(a.Cell.ID())
	return nil
}

func (a *Action) revertAddCell(env *Env) error {
	if _, _, _, err := env.Doc.Remove(a.Cell.ID()); err != nil {
		return fmt.Errorf("revert add cell: %w", err)
	}
	env.UI.CellRemoved(a.Cell.ID())
	return nil
}

// NewPositionCursor moves the logical cursor relative to ref. With
// CursorNext and no input cell following ref, a fresh input cell is created;
// that creation is what makes the action land on the undo stack.
func NewPositionCursor(ref document.ID, rel CursorRelation) *Action {
	return &Action{Kind: KindPositionCursor, Ref: ref, CursorRel: rel}
}

func (a *Action) executePositionCursor(env *Env) error {
	if !env.Doc.Contains(a.Ref) {
		return fmt.Errorf("position cursor: %w: %s", document.ErrCellNotFound, a.Ref)
	}
	a.prevCursor = env.Doc.Cursor()

	var target document.ID
	switch a.CursorRel {
	case CursorIn:
		target = a.Ref
	case CursorNext:
		if a.createdCell != nil {
			// Redo: put back the cell the first execute created.
			if err := env.Doc.Insert(a.createdCell, a.Ref, document.After); err != nil {
				return fmt.Errorf("position cursor: %w", err)
			}
			env.UI.CellAdded(a.createdCell.ID())
			target = a.createdCell.ID()
			break
		}
		next, err := env.Doc.NextOfType(a.Ref, document.CellInput)
		if err != nil {
			return fmt.Errorf("position cursor: %w", err)
		}
		if next != nil {
			target = next.ID()
			break
		}
		fresh := document.NewCell(document.CellInput, "")
		if err := env.Doc.Insert(fresh, a.Ref, document.After); err != nil {
			return fmt.Errorf("position cursor: %w", err)
		}
		a.createdCell = fresh
		logger.Debugf("action: created trailing input cell %s", fresh.ID())
		env.UI.CellAdded(fresh.ID())
		target = fresh.ID()
	case CursorPrevious:
		prev, err := env.Doc.PrevOfType(a.Ref, document.CellInput)
		if err != nil {
			return fmt.Errorf("position cursor: %w", err)
		}
		if prev == nil {
			return nil // nowhere to go; cursor stays put
		}
		target = prev.ID()
	default:
		return fmt.Errorf("position cursor: invalid relation %d", a.CursorRel)
	}

	cur := document.Cursor{Cell: target}
	env.Doc.SetCursor(cur)
	env.UI.CursorMoved(cur)
	return nil
}

func (a *Action) revertPositionCursor(env *Env) error {
	if a.createdCell != nil {
		if _, _, _, err := env.Doc.Remove(a.createdCell.ID()); err != nil {
			return fmt.Errorf("revert position cursor: %w", err)
		}
		env.UI.CellRemoved(a.createdCell.ID())
	}
	env.Doc.SetCursor(a.prevCursor)
	env.UI.CursorMoved(a.prevCursor)
	return nil
}

// NewSetRunStatus flips the evaluation status flag of a cell. Transient
// computation state, never recorded as history.
func NewSetRunStatus(ref document.ID, running bool) *Action {
	return &Action{Kind: KindSetRunStatus, Ref: ref, Running: running}
}

func (a *Action) executeSetRunStatus(env *Env) error {
	cell, err := env.Doc.Cell(a.Ref)
	if err != nil {
		return fmt.Errorf("set run status: %w", err)
	}
	a.prevRunning = cell.Running
	cell.Running = a.Running
	env.UI.RunStatusChanged(a.Ref, a.Running)
	return nil
}

func (a *Action) revertSetRunStatus(env *Env) error {
	cell, err := env.Doc.Cell(a.Ref)
	if err != nil {
		return fmt.Errorf("revert set run status: %w", err)
	}
	cell.Running = a.prevRunning
	env.UI.RunStatusChanged(a.Ref, a.prevRunning)
	return nil
}

// NewSetVariableList replaces the referenced-variable set of a cell. Derived
// metadata, never recorded as history.
func NewSetVariableList(ref document.ID, names []string) *Action {
	return &Action{Kind: KindSetVariableList, Ref: ref, Variables: names}
}

func (a *Action) executeSetVariableList(env *Env) error {
	cell, err := env.Doc.Cell(a.Ref)
	if err != nil {
		return fmt.Errorf("set variable list: %w", err)
	}
	a.prevVariables = cell.Variables()
	cell.SetVariables(a.Variables)
	env.UI.ContentChanged(a.Ref)
	return nil
}

func (a *Action) revertSetVariableList(env *Env) error {
	cell, err := env.Doc.Cell(a.Ref)
	if err != nil {
		return fmt.Errorf("revert set variable list: %w", err)
	}
	cell.SetVariables(a.prevVariables)
	env.UI.ContentChanged(a.Ref)
	return nil
}

// NewRemoveCell detaches a cell and its whole subtree from the document.
func NewRemoveCell(ref document.ID) *Action {
	return &Action{Kind: KindRemoveCell, Ref: ref}
}

func (a *Action) executeRemoveCell(env *Env) error {
	a.prevCursor = env.Doc.Cursor()
	sub, parent, idx, err := env.Doc.Remove(a.Ref)
	if err != nil {
		return fmt.Errorf("remove cell: %w", err)
	}
	a.removed = sub
	a.removedParent = parent
	a.removedIndex = idx
	logger.Debugf("action: removed cell %s (parent %s, index %d)", a.Ref, parent, idx)
	env.UI.CellRemoved(a.Ref)
	// Removing the subtree clears the cursor when it was inside it.
	if cur := env.Doc.Cursor(); cur != a.prevCursor {
		env.UI.CursorMoved(cur)
	}
	return nil
}

func (a *Action) revertRemoveCell(env *Env) error {
	if err := env.Doc.Reinsert(a.removed, a.removedParent, a.removedIndex); err != nil {
		return fmt.Errorf("revert remove cell: %w", err)
	}
	env.UI.CellAdded(a.Ref)
	if env.Doc.Cursor() != a.prevCursor {
		env.Doc.SetCursor(a.prevCursor)
		env.UI.CursorMoved(a.prevCursor)
	}
	return nil
}

// NewReplaceCell destructively swaps the content of a cell. There is nothing
// to restore, so the action never appears on the undo stack.
func NewReplaceCell(ref document.ID, content string) *Action {
	return &Action{Kind: KindReplaceCell, Ref: ref, Text: content}
}

func (a *Action) executeReplaceCell(env *Env) error {
	cell, err := env.Doc.Cell(a.Ref)
	if err != nil {
		return fmt.Errorf("replace cell: %w", err)
	}
	cell.Content = a.Text
	env.UI.ContentChanged(a.Ref)
	return nil
}

// NewSplitCell divides the target cell at the current cursor offset into two
// sibling cells of the same type.
func NewSplitCell(ref document.ID) *Action {
	return &Action{Kind: KindSplitCell, Ref: ref}
}

func (a *Action) executeSplitCell(env *Env) error {
	cell, err := env.Doc.Cell(a.Ref)
	if err != nil {
		return fmt.Errorf("split cell: %w", err)
	}
	if !a.splitDone {
		cur := env.Doc.Cursor()
		if cur.Cell != a.Ref {
			return fmt.Errorf("split cell: %w", ErrCursorOutside)
		}
		a.splitOffset = cur.Offset
	}
	head, tail, err := text.Split(cell.Content, a.splitOffset)
	if err != nil {
		return fmt.Errorf("split cell: %w", err)
	}
	if a.splitDone {
		// Redo: reuse the cell created on first execute so identity holds.
		a.createdCell.Content = tail
	} else {
		a.createdCell = document.NewCell(cell.Type, tail)
		a.splitDone = true
	}
	if err := env.Doc.Insert(a.createdCell, a.Ref, document.After); err != nil {
		return fmt.Errorf("split cell: %w", err)
	}
	cell.Content = head
	env.UI.ContentChanged(a.Ref)
	env.UI.CellAdded(a.createdCell.ID())
	return nil
}

func (a *Action) revertSplitCell(env *Env) error {
	cell, err := env.Doc.Cell(a.Ref)
	if err != nil {
		return fmt.Errorf("revert split cell: %w", err)
	}
	if _, _, _, err := env.Doc.Remove(a.createdCell.ID()); err != nil {
		return fmt.Errorf("revert split cell: %w", err)
	}
	cell.Content += a.createdCell.Content
	env.UI.CellRemoved(a.createdCell.ID())
	env.UI.ContentChanged(a.Ref)
	return nil
}
