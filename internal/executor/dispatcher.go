package executor

import (
	"context"
	"errors"

	"github.com/quirelabs/quire/internal/action"
	"github.com/quirelabs/quire/internal/document"
	"github.com/quirelabs/quire/internal/logger"
)

// ErrStopped is returned for requests submitted after the owner loop exited.
var ErrStopped = errors.New("dispatcher stopped")

type opKind int

const (
	opPerform opKind = iota
	opUndo
	opRedo
	opInspect
)

type request struct {
	op      opKind
	act     *action.Action
	inspect func(doc *document.Tree)
	reply   chan error
}

// Dispatcher serializes access to an Executor. Producers on any goroutine
// enqueue requests; a single Run loop drains them strictly in arrival order,
// so no two Execute/Revert calls ever overlap.
type Dispatcher struct {
	ex   *Executor
	reqs chan request
	done chan struct{} // closed when Run returns
}

// NewDispatcher wraps ex. buffer sizes the request queue; 0 makes every
// producer rendezvous with the owner loop.
func NewDispatcher(ex *Executor, buffer int) *Dispatcher {
	return &Dispatcher{
		ex:   ex,
		reqs: make(chan request, buffer),
		done: make(chan struct{}),
	}
}

// Executor exposes the wrapped executor for single-goroutine hosts. Never
// call it concurrently with Run.
func (d *Dispatcher) Executor() *Executor { return d.ex }

// Run drains the queue until ctx is cancelled, then releases any blocked
// producers. It is the single owner of the tree and the undo stack; Run must
// be called at most once.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer close(d.done)
	logger.Debugf("dispatcher: owner loop started")
	for {
		select {
		case <-ctx.Done():
			logger.Debugf("dispatcher: owner loop stopping: %v", ctx.Err())
			return ctx.Err()
		case req := <-d.reqs:
			var err error
			switch req.op {
			case opPerform:
				err = d.ex.Perform(req.act)
			case opUndo:
				err = d.ex.Undo()
			case opRedo:
				err = d.ex.Redo()
			case opInspect:
				req.inspect(d.ex.env.Doc)
			}
			if req.reply != nil {
				req.reply <- err
			}
		}
	}
}

func (d *Dispatcher) submit(ctx context.Context, req request) error {
	select {
	case d.reqs <- req:
	case <-d.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-d.done:
		// The loop may have answered just before exiting.
		select {
		case err := <-req.reply:
			return err
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Perform enqueues a and waits for the owner loop to run it.
func (d *Dispatcher) Perform(ctx context.Context, a *action.Action) error {
	return d.submit(ctx, request{op: opPerform, act: a, reply: make(chan error, 1)})
}

// Enqueue hands a to the owner loop without waiting for the result. The
// send happens on the caller's goroutine so two Enqueues from one producer
// keep their order. Errors are logged; use Perform when the caller needs
// them. Once the owner loop has stopped the action is dropped, so producers
// that outlive the loop never wedge on the queue.
func (d *Dispatcher) Enqueue(a *action.Action) {
	req := request{op: opPerform, act: a, reply: make(chan error, 1)}
	select {
	case d.reqs <- req:
	case <-d.done:
		logger.Debugf("dispatcher: dropped %s, owner loop stopped", a.Kind)
		return
	}
	go func() {
		select {
		case err := <-req.reply:
			if err != nil {
				logger.Errorf("dispatcher: %s failed: %v", a.Kind, err)
			}
		case <-d.done:
		}
	}()
}

// Undo asks the owner loop to revert the top of the stack.
func (d *Dispatcher) Undo(ctx context.Context) error {
	return d.submit(ctx, request{op: opUndo, reply: make(chan error, 1)})
}

// Redo asks the owner loop to re-apply the most recently undone action.
func (d *Dispatcher) Redo(ctx context.Context) error {
	return d.submit(ctx, request{op: opRedo, reply: make(chan error, 1)})
}

// Inspect runs fn on the owner loop with the live tree. fn must only read;
// every mutation goes through an action so the undo stack stays sound.
func (d *Dispatcher) Inspect(ctx context.Context, fn func(doc *document.Tree)) error {
	return d.submit(ctx, request{op: opInspect, inspect: fn, reply: make(chan error, 1)})
}
