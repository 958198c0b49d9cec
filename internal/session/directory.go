// internal/session/directory.go

// Package session maps live connections to the player and room they joined.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrAlreadyBound is returned when a connection already has a session.
var ErrAlreadyBound = errors.New("connection already bound to a room")

// Session is the player identity behind one connection.
type Session struct {
	ConnID     uuid.UUID
	PlayerName string
	RoomCode   string
	BoundAt    time.Time
}

// Directory holds one Session per connection.
type Directory struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]Session
	now      func() time.Time
}

func NewDirectory() *Directory {
	return &Directory{
		sessions: make(map[uuid.UUID]Session),
		now:      time.Now,
	}
}

// Bind records that connID joined roomCode as playerName.
func (d *Directory) Bind(connID uuid.UUID, playerName, roomCode string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.sessions[connID]; ok {
		return ErrAlreadyBound
	}
	d.sessions[connID] = Session{
		ConnID:     connID,
		PlayerName: playerName,
		RoomCode:   roomCode,
		BoundAt:    d.now(),
	}
	return nil
}

func (d *Directory) Lookup(connID uuid.UUID) (Session, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.sessions[connID]
	return s, ok
}

// Unbind removes and returns the session for connID, if any.
func (d *Directory) Unbind(connID uuid.UUID) (Session, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[connID]
	if ok {
		delete(d.sessions, connID)
	}
	return s, ok
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sessions)
}
