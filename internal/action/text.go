package action

import (
	"fmt"

	"github.com/quirelabs/quire/internal/document"
	"github.com/quirelabs/quire/internal/text"
)

// NewInsertText inserts a string (possibly a single character) into a cell's
// content at a rune offset. The edit originates from the user's own view,
// which has already painted it, so Execute does not notify the presentation;
// Revert does, because on undo nobody else will repaint.
func NewInsertText(ref document.ID, pos int, s string) *Action {
	return &Action{Kind: KindInsertText, Ref: ref, Pos: pos, Text: s}
}

func (a *Action) executeInsertText(env *Env) error {
	cell, err := env.Doc.Cell(a.Ref)
	if err != nil {
		return fmt.Errorf("insert text: %w", err)
	}
	updated, err := text.Insert(cell.Content, a.Pos, a.Text)
	if err != nil {
		return fmt.Errorf("insert text: %w", err)
	}
	cell.Content = updated
	return nil
}

func (a *Action) revertInsertText(env *Env) error {
	cell, err := env.Doc.Cell(a.Ref)
	if err != nil {
		return fmt.Errorf("revert insert text: %w", err)
	}
	remaining, _, err := text.Delete(cell.Content, a.Pos, a.Pos+text.Length(a.Text))
	if err != nil {
		return fmt.Errorf("revert insert text: %w", err)
	}
	cell.Content = remaining
	env.UI.ContentChanged(a.Ref)
	return nil
}

// NewCompleteText inserts a completion produced server-side. Unlike
// InsertText the view has no idea yet, so both Execute and Revert notify the
// presentation. alt records which completion alternative was taken.
func NewCompleteText(ref document.ID, pos int, s string, alt int) *Action {
	return &Action{Kind: KindCompleteText, Ref: ref, Pos: pos, Text: s, Alt: alt}
}

// Length returns the rune length of the completion text.
func (a *Action) Length() int { return text.Length(a.Text) }

// Alternative returns the index of the chosen completion alternative.
func (a *Action) Alternative() int { return a.Alt }

func (a *Action) executeCompleteText(env *Env) error {
	cell, err := env.Doc.Cell(a.Ref)
	if err != nil {
		return fmt.Errorf("complete text: %w", err)
	}
	updated, err := text.Insert(cell.Content, a.Pos, a.Text)
	if err != nil {
		return fmt.Errorf("complete text: %w", err)
	}
	cell.Content = updated
	env.UI.ContentChanged(a.Ref)
	return nil
}

func (a *Action) revertCompleteText(env *Env) error {
	cell, err := env.Doc.Cell(a.Ref)
	if err != nil {
		return fmt.Errorf("revert complete text: %w", err)
	}
	remaining, _, err := text.Delete(cell.Content, a.Pos, a.Pos+text.Length(a.Text))
	if err != nil {
		return fmt.Errorf("revert complete text: %w", err)
	}
	cell.Content = remaining
	env.UI.ContentChanged(a.Ref)
	return nil
}

// NewEraseText removes the rune span [from, to) from a cell's content,
// remembering the removed text for revert. Presentation rules match
// InsertText: the originating view already shows the deletion.
func NewEraseText(ref document.ID, from, to int) *Action {
	return &Action{Kind: KindEraseText, Ref: ref, Pos: from, End: to}
}

func (a *Action) executeEraseText(env *Env) error {
	cell, err := env.Doc.Cell(a.Ref)
	if err != nil {
		return fmt.Errorf("erase text: %w", err)
	}
	remaining, removed, err := text.Delete(cell.Content, a.Pos, a.End)
	if err != nil {
		return fmt.Errorf("erase text: %w", err)
	}
	cell.Content = remaining
	a.removedText = removed
	return nil
}

func (a *Action) revertEraseText(env *Env) error {
	cell, err := env.Doc.Cell(a.Ref)
	if err != nil {
		return fmt.Errorf("revert erase text: %w", err)
	}
	updated, err := text.Insert(cell.Content, a.Pos, a.removedText)
	if err != nil {
		return fmt.Errorf("revert erase text: %w", err)
	}
	cell.Content = updated
	env.UI.ContentChanged(a.Ref)
	return nil
}
