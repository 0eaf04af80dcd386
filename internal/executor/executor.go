// Package executor applies actions to the document and keeps the undo/redo
// history. Executor itself is not safe for concurrent use; wrap it in a
// Dispatcher when actions arrive from more than one goroutine.
package executor

import (
	"errors"
	"fmt"
	"sync"

	"github.com/quirelabs/quire/internal/action"
	"github.com/quirelabs/quire/internal/logger"
)

// DefaultMaxHistory bounds the undo stack; the oldest entries are evicted
// first once the bound is hit.
const DefaultMaxHistory = 100

var (
	// ErrNothingToUndo is returned by Undo on an empty stack.
	ErrNothingToUndo = errors.New("nothing to undo")
	// ErrNothingToRedo is returned by Redo with no reverted entry.
	ErrNothingToRedo = errors.New("nothing to redo")
)

// Executor runs actions against its environment and records the undoable
// ones. Applied actions live in applied[:index]; applied[index:] is the redo
// buffer, invalidated by the next fresh Perform.
type Executor struct {
	env        action.Env
	applied    []*action.Action
	index      int
	maxHistory int

	// Continuations are registered by producer contexts before queuing and
	// fired on the owner context, so this map gets its own lock even though
	// the executor itself is single-owner.
	contMu        sync.Mutex
	continuations map[uint64]func()
	nextToken     uint64
}

// New creates an executor over env. maxHistory <= 0 selects the default.
func New(env action.Env, maxHistory int) *Executor {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Executor{
		env:           env,
		applied:       make([]*action.Action, 0, maxHistory),
		maxHistory:    maxHistory,
		continuations: make(map[uint64]func()),
	}
}

// Env returns the executor's environment. The document it carries must only
// be mutated through Perform/Undo/Redo.
func (ex *Executor) Env() action.Env { return ex.env }

// SetEngine installs the compute engine after construction; the engine
// usually needs the executor first so its replies have somewhere to go.
func (ex *Executor) SetEngine(eng action.Engine) { ex.env.Engine = eng }

// RegisterContinuation stores fn and returns a token to place in an action's
// Completion field. The continuation fires exactly once, on the execution
// context that ran the action, after its first successful Execute.
func (ex *Executor) RegisterContinuation(fn func()) uint64 {
	ex.contMu.Lock()
	defer ex.contMu.Unlock()
	ex.nextToken++
	ex.continuations[ex.nextToken] = fn
	return ex.nextToken
}

// Perform executes a. If the action reports itself undoable it is pushed
// onto the stack and the redo buffer is discarded; otherwise the stack is
// left alone. Actions that reset history (Open) clear it entirely.
func (ex *Executor) Perform(a *action.Action) error {
	if err := a.Execute(&ex.env); err != nil {
		return err
	}
	ex.fireContinuation(a)

	if a.ResetsHistory() {
		ex.Clear()
		logger.Debugf("executor: %s cleared history", a.Kind)
		return nil
	}
	if !a.Undoable() {
		logger.Debugf("executor: %s not undoable, skipping stack", a.Kind)
		return nil
	}

	// A fresh action invalidates whatever was undone before it.
	ex.applied = ex.applied[:ex.index]
	ex.applied = append(ex.applied, a)
	if len(ex.applied) > ex.maxHistory {
		ex.applied = ex.applied[len(ex.applied)-ex.maxHistory:]
	}
	ex.index = len(ex.applied)
	logger.Debugf("executor: recorded %s (index %d)", a.Kind, ex.index)
	return nil
}

// Undo reverts the most recently applied action and moves it to the redo
// buffer.
func (ex *Executor) Undo() error {
	if ex.index <= 0 {
		return ErrNothingToUndo
	}
	a := ex.applied[ex.index-1]
	if err := a.Revert(&ex.env); err != nil {
		return fmt.Errorf("undo %s: %w", a.Kind, err)
	}
	ex.index--
	logger.Debugf("executor: undid %s (index %d)", a.Kind, ex.index)
	return nil
}

// Redo re-executes the most recently undone action and pushes it back onto
// the stack.
func (ex *Executor) Redo() error {
	if ex.index >= len(ex.applied) {
		return ErrNothingToRedo
	}
	a := ex.applied[ex.index]
	if err := a.Execute(&ex.env); err != nil {
		return fmt.Errorf("redo %s: %w", a.Kind, err)
	}
	ex.index++
	logger.Debugf("executor: redid %s (index %d)", a.Kind, ex.index)
	return nil
}

// CanUndo reports whether the stack has an applied entry.
func (ex *Executor) CanUndo() bool { return ex.index > 0 }

// CanRedo reports whether the redo buffer has an entry.
func (ex *Executor) CanRedo() bool { return ex.index < len(ex.applied) }

// Depth returns the number of applied actions currently undoable.
func (ex *Executor) Depth() int { return ex.index }

// Clear drops the whole history. Called when the document is replaced.
func (ex *Executor) Clear() {
	ex.applied = ex.applied[:0]
	ex.index = 0
}

func (ex *Executor) fireContinuation(a *action.Action) {
	if a.Completion == 0 {
		return
	}
	ex.contMu.Lock()
	fn, ok := ex.continuations[a.Completion]
	if ok {
		delete(ex.continuations, a.Completion) // exactly once, redo never refires
	}
	ex.contMu.Unlock()
	if ok {
		fn()
	}
}
