package executor

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/quirelabs/quire/internal/action"
	"github.com/quirelabs/quire/internal/document"
	"github.com/quirelabs/quire/internal/notify"
)

func newExecutor(t *testing.T, maxHistory int) (*Executor, []*document.Cell) {
	t.Helper()
	tree := document.NewTree()
	cells := []*document.Cell{
		document.NewCell(document.CellInput, "x = 1"),
		document.NewCell(document.CellText, "prose"),
	}
	for _, c := range cells {
		if err := tree.AppendRoot(c); err != nil {
			t.Fatal(err)
		}
	}
	return New(action.Env{Doc: tree, UI: notify.Discard}, maxHistory), cells
}

func snapshot(tree *document.Tree) []string {
	var rows []string
	tree.Walk(func(c *document.Cell, depth int) bool {
		rows = append(rows, fmt.Sprintf("%d|%s|%s|%s", depth, c.ID(), c.Type, c.Content))
		return true
	})
	return rows
}

func TestUndoEmptyStack(t *testing.T) {
	ex, _ := newExecutor(t, 0)
	before := snapshot(ex.Env().Doc)
	if err := ex.Undo(); !errors.Is(err, ErrNothingToUndo) {
		t.Fatalf("err = %v, want ErrNothingToUndo", err)
	}
	if !reflect.DeepEqual(before, snapshot(ex.Env().Doc)) {
		t.Error("failed undo disturbed the tree")
	}
}

func TestRedoEmptyBuffer(t *testing.T) {
	ex, _ := newExecutor(t, 0)
	if err := ex.Redo(); !errors.Is(err, ErrNothingToRedo) {
		t.Fatalf("err = %v, want ErrNothingToRedo", err)
	}
}

func TestPerformUndoRedo(t *testing.T) {
	ex, cells := newExecutor(t, 0)
	doc := ex.Env().Doc
	before := snapshot(doc)

	a := action.NewInsertText(cells[1].ID(), 0, ">> ")
	if err := ex.Perform(a); err != nil {
		t.Fatal(err)
	}
	after := snapshot(doc)
	if !ex.CanUndo() {
		t.Fatal("expected undoable history")
	}

	if err := ex.Undo(); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(before, snapshot(doc)) {
		t.Error("undo did not restore the original tree")
	}
	if !ex.CanRedo() {
		t.Fatal("expected redoable entry")
	}

	if err := ex.Redo(); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(after, snapshot(doc)) {
		t.Error("redo did not reproduce the applied tree")
	}
}

func TestReverseOrderRevertRestoresTree(t *testing.T) {
	ex, cells := newExecutor(t, 0)
	doc := ex.Env().Doc
	before := snapshot(doc)

	actions := []*action.Action{
		action.NewInsertText(cells[1].ID(), 0, "abc"),
		action.NewAddCell(document.NewCell(document.CellInput, "y = 2"), cells[0].ID(), document.After),
		action.NewEraseText(cells[1].ID(), 1, 3),
		action.NewRemoveCell(cells[0].ID()),
	}
	for _, a := range actions {
		if err := ex.Perform(a); err != nil {
			t.Fatal(err)
		}
	}
	for range actions {
		if err := ex.Undo(); err != nil {
			t.Fatal(err)
		}
	}
	if !reflect.DeepEqual(before, snapshot(doc)) {
		t.Errorf("tree not restored:\nbefore: %v\nafter:  %v", before, snapshot(doc))
	}
}

func TestNonUndoableSkipsStack(t *testing.T) {
	ex, cells := newExecutor(t, 0)
	if err := ex.Perform(action.NewSetRunStatus(cells[0].ID(), true)); err != nil {
		t.Fatal(err)
	}
	if err := ex.Perform(action.NewSetVariableList(cells[0].ID(), []string{"x"})); err != nil {
		t.Fatal(err)
	}
	if ex.CanUndo() || ex.Depth() != 0 {
		t.Error("transient actions must never land on the undo stack")
	}
}

func TestFreshActionInvalidatesRedo(t *testing.T) {
	ex, cells := newExecutor(t, 0)
	if err := ex.Perform(action.NewInsertText(cells[1].ID(), 0, "a")); err != nil {
		t.Fatal(err)
	}
	if err := ex.Undo(); err != nil {
		t.Fatal(err)
	}
	if err := ex.Perform(action.NewInsertText(cells[1].ID(), 0, "b")); err != nil {
		t.Fatal(err)
	}
	if err := ex.Redo(); !errors.Is(err, ErrNothingToRedo) {
		t.Fatalf("err = %v, want ErrNothingToRedo after a fresh action", err)
	}
}

func TestHistoryEviction(t *testing.T) {
	ex, cells := newExecutor(t, 3)
	for i := 0; i < 5; i++ {
		if err := ex.Perform(action.NewInsertText(cells[1].ID(), 0, "x")); err != nil {
			t.Fatal(err)
		}
	}
	if ex.Depth() != 3 {
		t.Errorf("depth = %d, want bounded at 3", ex.Depth())
	}
	for i := 0; i < 3; i++ {
		if err := ex.Undo(); err != nil {
			t.Fatalf("undo %d: %v", i, err)
		}
	}
	if err := ex.Undo(); !errors.Is(err, ErrNothingToUndo) {
		t.Fatalf("err = %v, want ErrNothingToUndo past the bound", err)
	}
}

type historyLoader struct{ tree *document.Tree }

func (l historyLoader) Load(string) (*document.Tree, error) { return l.tree, nil }

func TestOpenClearsHistory(t *testing.T) {
	ex, cells := newExecutor(t, 0)
	if err := ex.Perform(action.NewInsertText(cells[1].ID(), 0, "a")); err != nil {
		t.Fatal(err)
	}

	loaded := document.NewTree()
	if err := loaded.AppendRoot(document.NewCell(document.CellText, "fresh")); err != nil {
		t.Fatal(err)
	}
	env := ex.Env()
	env.Loader = historyLoader{tree: loaded}
	ex.env = env

	if err := ex.Perform(action.NewOpen("any")); err != nil {
		t.Fatal(err)
	}
	if ex.CanUndo() || ex.CanRedo() {
		t.Error("history survived a document swap")
	}
}

func TestContinuationFiresExactlyOnce(t *testing.T) {
	ex, cells := newExecutor(t, 0)
	fired := 0
	a := action.NewInsertText(cells[1].ID(), 0, "a")
	a.Completion = ex.RegisterContinuation(func() { fired++ })

	if err := ex.Perform(a); err != nil {
		t.Fatal(err)
	}
	if fired != 1 {
		t.Fatalf("continuation fired %d times after perform, want 1", fired)
	}
	if err := ex.Undo(); err != nil {
		t.Fatal(err)
	}
	if err := ex.Redo(); err != nil {
		t.Fatal(err)
	}
	if fired != 1 {
		t.Errorf("continuation fired %d times after redo, want still 1", fired)
	}
}

func TestContinuationNotFiredOnFailure(t *testing.T) {
	ex, _ := newExecutor(t, 0)
	fired := 0
	a := action.NewInsertText(document.NewID(), 0, "a") // unknown cell
	a.Completion = ex.RegisterContinuation(func() { fired++ })
	if err := ex.Perform(a); err == nil {
		t.Fatal("expected reference error")
	}
	if fired != 0 {
		t.Error("continuation fired for a failed action")
	}
}

func TestDispatcherSerializesProducers(t *testing.T) {
	ex, cells := newExecutor(t, 1000)
	disp := NewDispatcher(ex, 8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		disp.Run(ctx)
	}()

	const producers = 4
	const perProducer = 25
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				if err := disp.Perform(ctx, action.NewInsertText(cells[1].ID(), 0, "x")); err != nil {
					t.Errorf("perform: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	var content string
	if err := disp.Inspect(ctx, func(doc *document.Tree) {
		c, err := doc.Cell(cells[1].ID())
		if err != nil {
			t.Errorf("lookup: %v", err)
			return
		}
		content = c.Content
	}); err != nil {
		t.Fatal(err)
	}
	want := producers * perProducer
	if len(content) != want+len("prose") {
		t.Errorf("content length = %d, want %d inserts applied", len(content), want)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop on cancel")
	}
}

func TestDispatcherReleasesProducersAfterStop(t *testing.T) {
	ex, cells := newExecutor(t, 0)
	disp := NewDispatcher(ex, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		disp.Run(ctx)
	}()
	cancel()
	<-done

	// Enqueue past the buffer from a producer that outlives the loop; it
	// must return instead of wedging on the queue.
	returned := make(chan struct{})
	go func() {
		defer close(returned)
		for i := 0; i < 8; i++ {
			disp.Enqueue(action.NewInsertText(cells[1].ID(), 0, "x"))
		}
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("producer blocked in Enqueue after the owner loop stopped")
	}

	if err := disp.Perform(context.Background(), action.NewInsertText(cells[1].ID(), 0, "x")); !errors.Is(err, ErrStopped) {
		t.Errorf("Perform after stop: err = %v, want ErrStopped", err)
	}
}

func TestDispatcherUndoRedo(t *testing.T) {
	ex, cells := newExecutor(t, 0)
	disp := NewDispatcher(ex, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go disp.Run(ctx)

	if err := disp.Perform(ctx, action.NewInsertText(cells[1].ID(), 0, "a")); err != nil {
		t.Fatal(err)
	}
	if err := disp.Undo(ctx); err != nil {
		t.Fatal(err)
	}
	if err := disp.Redo(ctx); err != nil {
		t.Fatal(err)
	}
	if err := disp.Undo(ctx); err != nil {
		t.Fatal(err)
	}
	if err := disp.Undo(ctx); !errors.Is(err, ErrNothingToUndo) {
		t.Fatalf("err = %v, want ErrNothingToUndo", err)
	}
}
