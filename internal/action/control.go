package action

import (
	"fmt"

	"github.com/quirelabs/quire/internal/document"
	"github.com/quirelabs/quire/internal/logger"
)

// NewRunCell submits one cell to the compute engine.
func NewRunCell(ref document.ID) *Action {
	return &Action{Kind: KindRunCell, Ref: ref}
}

// NewRunAll submits every input cell, in document order.
func NewRunAll() *Action {
	return &Action{Kind: KindRunCell, RunAll: true}
}

func (a *Action) executeRunCell(env *Env) error {
	if env.Engine == nil {
		return ErrNoEngine
	}
	if a.RunAll {
		for _, c := range env.Doc.Cells() {
			if c.Type != document.CellInput {
				continue
			}
			if err := env.Engine.RunCell(c.ID(), c.Content); err != nil {
				return fmt.Errorf("run all: cell %s: %w", c.ID(), err)
			}
		}
		return nil
	}
	cell, err := env.Doc.Cell(a.Ref)
	if err != nil {
		return fmt.Errorf("run cell: %w", err)
	}
	return env.Engine.RunCell(cell.ID(), cell.Content)
}

// NewOpen replaces the whole current document with the one loaded from the
// given source. The load is delegated to the configured Loader; on failure
// the current document stays untouched.
func NewOpen(path string) *Action {
	return &Action{Kind: KindOpen, Path: path}
}

func (a *Action) executeOpen(env *Env) error {
	if env.Loader == nil {
		return ErrNoLoader
	}
	loaded, err := env.Loader.Load(a.Path)
	if err != nil {
		return fmt.Errorf("open %q: %w", a.Path, err)
	}
	env.Doc.Adopt(loaded)
	logger.Infof("action: opened %q (%d cells)", a.Path, env.Doc.Len())
	env.UI.DocumentReset()
	return nil
}
