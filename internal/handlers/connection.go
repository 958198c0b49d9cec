// internal/handlers/connection.go
package handlers

import (
	"context"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/palavras/internal/game"
	"github.com/sirupsen/logrus"
)

// outBufferSize is how many events may queue for a slow client before new
// ones are dropped.
const outBufferSize = 64

// Connection is one live websocket client. Events reach the socket through
// OutChan, drained by the write pump.
type Connection struct {
	ID         uuid.UUID
	RemoteAddr string
	OutChan    chan game.GameEvent
	Cancel     context.CancelFunc

	// CloseSocket, when set, closes the underlying websocket with a code.
	CloseSocket func(code websocket.StatusCode, reason string)

	logger    *logrus.Logger
	done      chan struct{}
	closeOnce sync.Once
}

func NewConnection(remoteAddr string, cancel context.CancelFunc, logger *logrus.Logger) *Connection {
	return &Connection{
		ID:         uuid.New(),
		RemoteAddr: remoteAddr,
		OutChan:    make(chan game.GameEvent, outBufferSize),
		Cancel:     cancel,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Write queues ev without blocking. Events for a closed or backed-up
// connection are dropped.
func (c *Connection) Write(ev game.GameEvent) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.OutChan <- ev:
	default:
		c.logger.WithFields(logrus.Fields{
			"conn": c.ID,
			"type": ev.Type,
		}).Warn("OutChan full, dropped event")
	}
}

// WriteError is a convenience to send an error event.
func (c *Connection) WriteError(msg string) {
	c.Write(game.GameEvent{Type: game.EventError, Payload: game.MessagePayload{Message: msg}})
}

// Close stops further writes and cancels the connection's context. Safe to
// call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.Cancel != nil {
			c.Cancel()
		}
	})
}

// Done is closed once Close has been called.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Terminate closes the socket with code if one is attached, and otherwise
// cancels the connection.
func (c *Connection) Terminate(code websocket.StatusCode, reason string) {
	if c.CloseSocket != nil {
		c.CloseSocket(code, reason)
		return
	}
	if c.Cancel != nil {
		c.Cancel()
	}
}
