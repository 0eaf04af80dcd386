// Package notify carries mutation notifications from the action subsystem to
// a presentation layer. Actions call the Sink synchronously while they run;
// a sink must never mutate the tree in response.
package notify

import "github.com/quirelabs/quire/internal/document"

// Sink receives one notification per mutation category. Implementations keep
// a view in step with the tree without re-deriving it from scratch.
type Sink interface {
	CellAdded(id document.ID)
	CellRemoved(id document.ID)
	ContentChanged(id document.ID)
	RunStatusChanged(id document.ID, running bool)
	CursorMoved(cur document.Cursor)
	DocumentReset()
}

// Discard is a Sink that drops every notification. Useful for headless hosts
// and tests that only care about the tree.
var Discard Sink = discard{}

type discard struct{}

func (discard) CellAdded(document.ID)              {}
func (discard) CellRemoved(document.ID)            {}
func (discard) ContentChanged(document.ID)         {}
func (discard) RunStatusChanged(document.ID, bool) {}
func (discard) CursorMoved(document.Cursor)        {}
func (discard) DocumentReset()                     {}
