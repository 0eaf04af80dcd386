// Package action defines the closed set of reversible edits that may be
// applied to a notebook document. Every mutation of the tree happens inside
// an action's Execute or Revert; that discipline is what keeps the undo
// stack sound. Actions are plain data: a kind tag plus kind-specific payload
// fields, dispatched through a single switch, so the undo stack stays a flat
// inspectable sequence.
package action

import (
	"errors"
	"fmt"

	"github.com/quirelabs/quire/internal/document"
	"github.com/quirelabs/quire/internal/notify"
)

// Kind tags one of the supported edit variants.
type Kind int

const (
	KindInvalid Kind = iota
	KindAddCell
	KindPositionCursor
	KindSetRunStatus
	KindSetVariableList
	KindRemoveCell
	KindReplaceCell
	KindSplitCell
	KindRunCell
	KindOpen
	KindInsertText
	KindCompleteText
	KindEraseText
)

func (k Kind) String() string {
	switch k {
	case KindAddCell:
		return "add_cell"
	case KindPositionCursor:
		return "position_cursor"
	case KindSetRunStatus:
		return "set_run_status"
	case KindSetVariableList:
		return "set_variable_list"
	case KindRemoveCell:
		return "remove_cell"
	case KindReplaceCell:
		return "replace_cell"
	case KindSplitCell:
		return "split_cell"
	case KindRunCell:
		return "run_cell"
	case KindOpen:
		return "open"
	case KindInsertText:
		return "insert_text"
	case KindCompleteText:
		return "complete_text"
	case KindEraseText:
		return "erase_text"
	default:
		return "invalid"
	}
}

// CursorRelation places the logical cursor relative to a reference cell.
type CursorRelation int

const (
	CursorIn       CursorRelation = iota // into the reference cell itself
	CursorNext                           // the next input cell, created if missing
	CursorPrevious                       // the previous input cell, if any
)

var (
	// ErrCursorOutside is returned when an action needs the cursor inside
	// its target cell and it is elsewhere.
	ErrCursorOutside = errors.New("cursor is not in the target cell")
	// ErrNoEngine is returned when a run is requested without a configured
	// compute engine.
	ErrNoEngine = errors.New("no compute engine configured")
	// ErrNoLoader is returned when Open runs without a configured loader.
	ErrNoLoader = errors.New("no document loader configured")
)

// Engine is the boundary to the external computation kernel. RunCell only
// submits work; results come back later as new actions, never synchronously.
type Engine interface {
	RunCell(id document.ID, content string) error
}

// Loader produces a fully formed document from an external source. Open
// adopts the result only when Load succeeds.
type Loader interface {
	Load(source string) (*document.Tree, error)
}

// Env bundles the collaborators an action may touch while it runs: the
// document itself, the presentation sink, and the two external boundaries.
type Env struct {
	Doc    *document.Tree
	UI     notify.Sink
	Engine Engine
	Loader Loader
}

// Action is one reversible edit. Construct it with one of the New*
// constructors, then hand it to the executor; the zero value is invalid.
//
// Exported fields are the request payload. Unexported fields capture exactly
// the state Execute needs so Revert can restore the pre-execute tree, and so
// a later re-Execute (redo) reproduces the original outcome including cell
// identity.
type Action struct {
	Kind Kind

	Ref       document.ID       // target cell, where the kind has one
	Rel       document.Relation // AddCell placement
	CursorRel CursorRelation    // PositionCursor placement
	Cell      *document.Cell    // AddCell payload
	// Replacement marks an AddCell that stands in for content it replaced;
	// such inserts are not independently undoable.
	Replacement bool
	Pos         int      // text rune offset; EraseText start
	End         int      // EraseText end (exclusive)
	Text        string   // InsertText/CompleteText payload, ReplaceCell content
	Alt         int      // CompleteText alternative index
	Running     bool     // SetRunStatus payload
	Variables   []string // SetVariableList payload
	Path        string   // Open source
	RunAll      bool     // RunCell without a target

	// Completion is an optional continuation token registered with the
	// executor; it fires exactly once after the first successful Execute.
	Completion uint64

	// captured inversion state
	prevRunning   bool
	prevVariables []string
	prevCursor    document.Cursor
	removed       document.Subtree
	removedParent document.ID
	removedIndex  int
	createdCell   *document.Cell // cell this action had to create
	splitOffset   int
	splitDone     bool
	removedText   string
}

// Execute applies the edit to env.Doc and keeps env.UI in step. It returns
// before any mutation if a reference or precondition check fails, so a
// failed action leaves the tree untouched.
func (a *Action) Execute(env *Env) error {
	switch a.Kind {
	case KindAddCell:
		return a.executeAddCell(env)
	case KindPositionCursor:
		return a.executePositionCursor(env)
	case KindSetRunStatus:
		return a.executeSetRunStatus(env)
	case KindSetVariableList:
		return a.executeSetVariableList(env)
	case KindRemoveCell:
		return a.executeRemoveCell(env)
	case KindReplaceCell:
		return a.executeReplaceCell(env)
	case KindSplitCell:
		return a.executeSplitCell(env)
	case KindRunCell:
		return a.executeRunCell(env)
	case KindOpen:
		return a.executeOpen(env)
	case KindInsertText:
		return a.executeInsertText(env)
	case KindCompleteText:
		return a.executeCompleteText(env)
	case KindEraseText:
		return a.executeEraseText(env)
	default:
		return fmt.Errorf("execute: invalid action kind %d", a.Kind)
	}
}

// Revert restores the tree and presentation to their pre-Execute state. It
// is only called on the most recently applied undoable action.
func (a *Action) Revert(env *Env) error {
	switch a.Kind {
	case KindAddCell:
		return a.revertAddCell(env)
	case KindPositionCursor:
		return a.revertPositionCursor(env)
	case KindSetRunStatus:
		return a.revertSetRunStatus(env)
	case KindSetVariableList:
		return a.revertSetVariableList(env)
	case KindRemoveCell:
		return a.revertRemoveCell(env)
	case KindSplitCell:
		return a.revertSplitCell(env)
	case KindInsertText:
		return a.revertInsertText(env)
	case KindCompleteText:
		return a.revertCompleteText(env)
	case KindEraseText:
		return a.revertEraseText(env)
	case KindReplaceCell, KindRunCell, KindOpen:
		// Not undoable; nothing to restore.
		return nil
	default:
		return fmt.Errorf("revert: invalid action kind %d", a.Kind)
	}
}

// Undoable reports whether the executor should keep this action on the undo
// stack. The stack records document history, not transient runtime signals,
// so run status, variable lists and pure cursor motion stay off it. The
// executor consults Undoable after Execute, which lets PositionCursor answer
// based on whether it had to create a cell.
func (a *Action) Undoable() bool {
	switch a.Kind {
	case KindSetRunStatus, KindSetVariableList, KindReplaceCell, KindRunCell, KindOpen:
		return false
	case KindAddCell:
		if a.Replacement {
			return false
		}
		// Input-form companions live and die with their owner cell; the
		// owner's own undo takes them along.
		return a.Cell == nil || a.Cell.Type != document.CellInputForm
	case KindPositionCursor:
		return a.createdCell != nil
	default:
		return true
	}
}

// ResetsHistory reports whether executing this action invalidates every
// recorded action. Open swaps the whole document, so references held by the
// stack would dangle.
func (a *Action) ResetsHistory() bool {
	return a.Kind == KindOpen
}
