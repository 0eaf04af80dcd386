package notify

import (
	"sync"

	"github.com/quirelabs/quire/internal/document"
	"github.com/quirelabs/quire/internal/logger"
)

// Type identifies the kind of notification carried by the Bus.
type Type int

const (
	TypeUnknown Type = iota
	TypeCellAdded
	TypeCellRemoved
	TypeContentChanged
	TypeRunStatusChanged
	TypeCursorMoved
	TypeDocumentReset
)

// Event is the structure passed to subscribers.
type Event struct {
	Type Type
	Data interface{}
}

// CellData is the payload for cell-scoped events.
type CellData struct {
	ID document.ID
}

// RunStatusData is the payload for TypeRunStatusChanged.
type RunStatusData struct {
	ID      document.ID
	Running bool
}

// CursorData is the payload for TypeCursorMoved.
type CursorData struct {
	Cursor document.Cursor
}

// Handler is the subscriber signature. Returning true marks the event as
// consumed; the Bus currently ignores the value but keeps it for parity with
// future filtering.
type Handler func(e Event) bool

// Bus implements Sink by fanning each notification out to subscribers,
// synchronously and in subscription order. Hosts that want a single view can
// implement Sink directly; Bus suits hosts with several observers (status
// bars, autosave, plugins).
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[Type][]Handler)}
}

// Subscribe adds a handler for one notification type.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// Dispatch delivers an event to every handler registered for its type.
func (b *Bus) Dispatch(t Type, data interface{}) {
	b.mu.RLock()
	handlers := b.handlers[t]
	b.mu.RUnlock()
	if len(handlers) == 0 {
		return
	}
	// Copy so a handler subscribing during dispatch cannot shift the slice
	// under us.
	hs := make([]Handler, len(handlers))
	copy(hs, handlers)
	logger.Debugf("notify: dispatching %d to %d handler(s)", t, len(hs))
	for _, h := range hs {
		h(Event{Type: t, Data: data})
	}
}

var _ Sink = (*Bus)(nil)

func (b *Bus) CellAdded(id document.ID)   { b.Dispatch(TypeCellAdded, CellData{ID: id}) }
func (b *Bus) CellRemoved(id document.ID) { b.Dispatch(TypeCellRemoved, CellData{ID: id}) }
func (b *Bus) ContentChanged(id document.ID) {
	b.Dispatch(TypeContentChanged, CellData{ID: id})
}
func (b *Bus) RunStatusChanged(id document.ID, running bool) {
	b.Dispatch(TypeRunStatusChanged, RunStatusData{ID: id, Running: running})
}
func (b *Bus) CursorMoved(cur document.Cursor) {
	b.Dispatch(TypeCursorMoved, CursorData{Cursor: cur})
}
func (b *Bus) DocumentReset() { b.Dispatch(TypeDocumentReset, nil) }
