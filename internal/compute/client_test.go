package compute

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/quirelabs/quire/internal/action"
	"github.com/quirelabs/quire/internal/document"
	"github.com/quirelabs/quire/internal/executor"
	"github.com/quirelabs/quire/internal/notify"
)

// fakeKernel upgrades one connection and answers every execute request with
// a running status followed by a result.
func fakeKernel(t *testing.T, output string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req executeRequest
			if err := json.Unmarshal(data, &req); err != nil {
				t.Errorf("bad request frame: %v", err)
				return
			}
			replies := []kernelMessage{
				{MsgType: "status", CellID: req.CellID, Running: true},
				{MsgType: "result", CellID: req.CellID, Output: output},
			}
			for _, msg := range replies {
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClientRoundTrip(t *testing.T) {
	srv := fakeKernel(t, "42")
	defer srv.Close()

	tree := document.NewTree()
	input := document.NewCell(document.CellInput, "6 * 7")
	require.NoError(t, tree.AppendRoot(input))

	ex := executor.New(action.Env{Doc: tree, UI: notify.Discard}, 0)
	disp := executor.NewDispatcher(ex, 64)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := Dial(ctx, wsURL(srv), disp, nil)
	require.NoError(t, err)
	defer client.Close()
	ex.SetEngine(client)

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		disp.Run(ctx)
	}()

	require.NoError(t, disp.Perform(ctx, action.NewRunCell(input.ID())))

	// The kernel's replies land as actions on the owner queue; poll the
	// document until the output cell shows up.
	deadline := time.After(5 * time.Second)
	for {
		var output string
		var running bool
		require.NoError(t, disp.Inspect(ctx, func(doc *document.Tree) {
			cell, err := doc.Cell(input.ID())
			if err != nil {
				return
			}
			running = cell.Running
			children, err := doc.Children(input.ID())
			if err != nil || len(children) == 0 {
				return
			}
			output = children[0].Content
		}))
		if output == "42" && !running {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("kernel result never landed (output=%q running=%v)", output, running)
		case <-time.After(20 * time.Millisecond):
		}
	}

	// Server-driven output cells must not pollute the undo history.
	require.NoError(t, disp.Inspect(ctx, func(*document.Tree) {}))
	if ex.CanUndo() {
		t.Error("kernel replies landed on the undo stack")
	}

	cancel()
	<-loopDone
}

func TestClientErrorReply(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req executeRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return
			}
			conn.WriteJSON(kernelMessage{MsgType: "error", CellID: req.CellID, Output: "boom"})
		}
	}))
	defer srv.Close()

	tree := document.NewTree()
	input := document.NewCell(document.CellInput, "crash()")
	require.NoError(t, tree.AppendRoot(input))

	ex := executor.New(action.Env{Doc: tree, UI: notify.Discard}, 0)
	disp := executor.NewDispatcher(ex, 64)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := Dial(ctx, wsURL(srv), disp, nil)
	require.NoError(t, err)
	defer client.Close()
	ex.SetEngine(client)
	go disp.Run(ctx)

	require.NoError(t, disp.Perform(ctx, action.NewRunCell(input.ID())))

	deadline := time.After(5 * time.Second)
	for {
		var gotError bool
		require.NoError(t, disp.Inspect(ctx, func(doc *document.Tree) {
			children, err := doc.Children(input.ID())
			if err != nil {
				return
			}
			for _, c := range children {
				if c.Type == document.CellError && c.Content == "boom" {
					gotError = true
				}
			}
		}))
		if gotError {
			return
		}
		select {
		case <-deadline:
			t.Fatal("error cell never landed")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestDialFailure(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/nope", nil, &Settings{
		HandshakeTimeout: 200 * time.Millisecond,
	})
	require.Error(t, err)
}
