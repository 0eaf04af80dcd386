// Package compute talks to an external computation kernel over a websocket.
// It implements action.Engine: RunCell only submits work, and everything the
// kernel reports back re-enters the document as new actions on the owner
// queue, so no evaluation is ever awaited inside an action.
package compute

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/quirelabs/quire/internal/action"
	"github.com/quirelabs/quire/internal/document"
	"github.com/quirelabs/quire/internal/executor"
	"github.com/quirelabs/quire/internal/logger"
)

// Settings carries the connection tunables.
type Settings struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
}

// DefaultSettings returns the tunables used when the host does not override
// them.
func DefaultSettings() *Settings {
	return &Settings{
		HandshakeTimeout: 5 * time.Second,
		WriteTimeout:     5 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     15 * time.Second,
	}
}

// executeRequest is the frame sent for each submitted cell.
type executeRequest struct {
	MsgType string `json:"msg_type"`
	CellID  string `json:"cell_id"`
	Source  string `json:"source"`
}

// kernelMessage is any frame the kernel sends back.
type kernelMessage struct {
	MsgType string `json:"msg_type"` // status, result, error
	CellID  string `json:"cell_id"`
	Running bool   `json:"running,omitempty"`
	Output  string `json:"output,omitempty"`
}

// Client is a live kernel connection. It satisfies action.Engine.
type Client struct {
	ctx    context.Context
	cancel context.CancelFunc

	conn     *websocket.Conn
	writeMu  sync.Mutex
	dispatch *executor.Dispatcher
	settings *Settings

	done chan struct{}
}

var _ action.Engine = (*Client)(nil)

// Dial connects to the kernel at url and starts the read and ping loops.
// Kernel replies are enqueued on dispatch as actions.
func Dial(ctx context.Context, url string, dispatch *executor.Dispatcher, settings *Settings) (*Client, error) {
	if settings == nil {
		settings = DefaultSettings()
	}
	dialer := websocket.Dialer{HandshakeTimeout: settings.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial kernel %q: %w", url, err)
	}
	clientCtx, cancel := context.WithCancel(ctx)
	c := &Client{
		ctx:      clientCtx,
		cancel:   cancel,
		conn:     conn,
		dispatch: dispatch,
		settings: settings,
		done:     make(chan struct{}),
	}
	logger.Infof("compute: connected to %s", url)
	go c.readLoop()
	go c.pingLoop()
	return c, nil
}

// RunCell submits one cell's content for evaluation. It returns as soon as
// the frame is written; run-status changes and outputs arrive later through
// the dispatcher.
func (c *Client) RunCell(id document.ID, content string) error {
	req := executeRequest{
		MsgType: "execute_request",
		CellID:  id.String(),
		Source:  content,
	}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode execute request: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.settings.WriteTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("submit cell %s: %w", id, err)
	}
	logger.Debugf("compute: submitted cell %s (%d bytes)", id, len(content))
	return nil
}

// Close tears the connection down and stops both loops.
func (c *Client) Close() error {
	c.cancel()
	err := c.conn.Close()
	<-c.done
	return err
}

// Done is closed once the read loop has exited, normally or not.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) readLoop() {
	defer close(c.done)
	defer c.cancel()
	if c.settings.ReadTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.settings.ReadTimeout))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(c.settings.ReadTimeout))
		})
	}
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				logger.Warnf("compute: read loop ended: %v", err)
			}
			return
		}
		if c.settings.ReadTimeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.settings.ReadTimeout))
		}
		var msg kernelMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warnf("compute: dropping malformed frame: %v", err)
			continue
		}
		c.handle(msg)
	}
}

// handle turns one kernel frame into document actions. This runs on the read
// goroutine; Enqueue marshals the actions onto the single-owner queue.
func (c *Client) handle(msg kernelMessage) {
	id, err := ulid.Parse(msg.CellID)
	if err != nil {
		logger.Warnf("compute: frame with bad cell id %q: %v", msg.CellID, err)
		return
	}
	switch msg.MsgType {
	case "status":
		c.dispatch.Enqueue(action.NewSetRunStatus(id, msg.Running))
	case "result":
		out := action.NewAddCell(document.NewCell(document.CellOutput, msg.Output), id, document.Child)
		out.Replacement = true // outputs follow their input's lifetime
		c.dispatch.Enqueue(out)
		c.dispatch.Enqueue(action.NewSetRunStatus(id, false))
	case "error":
		out := action.NewAddCell(document.NewCell(document.CellError, msg.Output), id, document.Child)
		out.Replacement = true
		c.dispatch.Enqueue(out)
		c.dispatch.Enqueue(action.NewSetRunStatus(id, false))
	default:
		logger.Debugf("compute: ignoring frame type %q", msg.MsgType)
	}
}

func (c *Client) pingLoop() {
	if c.settings.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.settings.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			if c.settings.WriteTimeout > 0 {
				c.conn.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
			}
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				logger.Warnf("compute: ping failed: %v", err)
				c.cancel()
				return
			}
		}
	}
}
