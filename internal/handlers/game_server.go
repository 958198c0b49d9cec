// internal/handlers/game_server.go
package handlers

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jason-s-yu/palavras/internal/game"
	"github.com/jason-s-yu/palavras/internal/session"
	"github.com/sirupsen/logrus"
)

// GameServer ties the room registry, the session directory and the live
// connections together. Handlers hold a pointer to it; there is no package
// level state.
type GameServer struct {
	Rooms    *game.RoomStore
	Sessions *session.Directory
	Logger   *logrus.Logger

	// ActionSink, when set, is attached to every new room.
	ActionSink game.ActionSink

	// OriginPatterns is passed to websocket.Accept.
	OriginPatterns []string

	connMu       sync.RWMutex
	conns        map[uuid.UUID]*Connection
	shuttingDown atomic.Bool
}

// NewGameServer wires rooms created by store to this server's connections.
// sink may be nil.
func NewGameServer(logger *logrus.Logger, store *game.RoomStore, sink game.ActionSink) *GameServer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if store == nil {
		store = game.NewRoomStore(game.WithLogger(logger))
	}
	gs := &GameServer{
		Rooms:          store,
		Sessions:       session.NewDirectory(),
		Logger:         logger,
		ActionSink:     sink,
		OriginPatterns: []string{"*"},
		conns:          make(map[uuid.UUID]*Connection),
	}
	store.OnCreate = gs.wireRoom
	store.OnReap = gs.evictRoom
	return gs
}

// wireRoom attaches delivery and action logging to a new room.
func (gs *GameServer) wireRoom(r *game.Room) {
	r.SendFn = gs.sendTo
	r.Logger = gs.Logger
	if gs.ActionSink != nil {
		r.ActionSink = gs.ActionSink
	}
}

// evictRoom runs with the room lock held when the reaper closes a room. Any
// remaining occupants lose their session and are told why.
func (gs *GameServer) evictRoom(r *game.Room) {
	for _, p := range r.Players {
		gs.Sessions.Unbind(p.ConnID)
		gs.sendTo(p.ConnID, game.GameEvent{
			Type:    game.EventRoomClosed,
			Payload: game.MessagePayload{Message: "A sala foi encerrada por inatividade"},
		})
	}
	r.Players = nil
}

func (gs *GameServer) register(c *Connection) {
	gs.connMu.Lock()
	defer gs.connMu.Unlock()
	gs.conns[c.ID] = c
}

func (gs *GameServer) unregister(id uuid.UUID) {
	gs.connMu.Lock()
	defer gs.connMu.Unlock()
	delete(gs.conns, id)
}

func (gs *GameServer) connection(id uuid.UUID) (*Connection, bool) {
	gs.connMu.RLock()
	defer gs.connMu.RUnlock()
	c, ok := gs.conns[id]
	return c, ok
}

// ConnectionCount is the number of open websocket clients.
func (gs *GameServer) ConnectionCount() int {
	gs.connMu.RLock()
	defer gs.connMu.RUnlock()
	return len(gs.conns)
}

// sendTo queues ev for a connection. Unknown connections are ignored.
func (gs *GameServer) sendTo(id uuid.UUID, ev game.GameEvent) {
	if c, ok := gs.connection(id); ok {
		c.Write(ev)
	}
}

// Shutdown closes every open socket with ServerShutdownCode. New connections
// are still accepted until the listener stops.
func (gs *GameServer) Shutdown() {
	gs.shuttingDown.Store(true)
	gs.connMu.RLock()
	conns := make([]*Connection, 0, len(gs.conns))
	for _, c := range gs.conns {
		conns = append(conns, c)
	}
	gs.connMu.RUnlock()

	for _, c := range conns {
		c.Terminate(ServerShutdownCode, "server shutting down")
	}
	gs.Logger.Infof("Closed %d websocket connections", len(conns))
}

// ShuttingDown reports whether Shutdown has been called.
func (gs *GameServer) ShuttingDown() bool { return gs.shuttingDown.Load() }
