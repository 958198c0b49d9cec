// internal/handlers/game.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/palavras/internal/game"
	"github.com/jason-s-yu/palavras/internal/session"
	"github.com/sirupsen/logrus"
)

// ClientMessage is the envelope every inbound websocket message uses.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type joinGamePayload struct {
	PlayerName string `json:"player_name"`
	RoomID     string `json:"room_id"`
}

type submitWordsPayload struct {
	Words []string `json:"words"`
}

type makeGuessPayload struct {
	Guess string `json:"guess"`
}

type chatMessagePayload struct {
	Message string `json:"message"`
}

// HandleMessage routes one inbound message. Failures are reported back to the
// sender as an error event; internal failures are also logged and announced
// to the room.
func (gs *GameServer) HandleMessage(conn *Connection, msg ClientMessage) {
	log := gs.Logger.WithFields(logrus.Fields{"conn": conn.ID, "type": msg.Type})
	defer func() {
		if rec := recover(); rec != nil {
			log.Errorf("Recovered from panic while handling message: %v", rec)
			conn.WriteError(game.ErrInternal.Message)
		}
	}()

	var err error
	switch msg.Type {
	case "join_game":
		var p joinGamePayload
		if err = decodePayload(msg.Payload, &p); err == nil {
			err = gs.joinGame(conn, p)
		}
	case "submit_words":
		var p submitWordsPayload
		if err = decodePayload(msg.Payload, &p); err == nil {
			err = gs.withRoom(conn, func(r *game.Room, _ session.Session) error {
				return r.SubmitWords(conn.ID, p.Words)
			})
		}
	case "make_guess":
		var p makeGuessPayload
		if err = decodePayload(msg.Payload, &p); err == nil {
			err = gs.withRoom(conn, func(r *game.Room, _ session.Session) error {
				_, gerr := r.Guess(conn.ID, p.Guess)
				return gerr
			})
		}
	case "chat_message":
		var p chatMessagePayload
		if err = decodePayload(msg.Payload, &p); err == nil {
			err = gs.withRoom(conn, func(r *game.Room, _ session.Session) error {
				_, cerr := r.Chat(conn.ID, p.Message)
				return cerr
			})
		}
	case "request_new_game":
		err = gs.withRoom(conn, func(r *game.Room, _ session.Session) error {
			return r.ResetRound()
		})
	case "request_state":
		err = gs.withRoom(conn, func(r *game.Room, _ session.Session) error {
			return r.Sync(conn.ID)
		})
	case "request_answer_key":
		err = gs.withRoom(conn, func(r *game.Room, _ session.Session) error {
			key, kerr := r.AnswerKey()
			if kerr == nil {
				conn.Write(game.GameEvent{Type: game.EventAnswerKey, Payload: key})
			}
			return kerr
		})
	case "player_initiated_leave":
		err = gs.leave(conn, true)
	case "ping":
		conn.Write(game.GameEvent{Type: game.EventPong})
	default:
		err = fmt.Errorf("%w: %s", game.ErrUnknownEvent, msg.Type)
	}

	if err != nil {
		gs.reportError(conn, log, err)
	}
}

// HandleDisconnect releases everything bound to conn. It is safe to call more
// than once.
func (gs *GameServer) HandleDisconnect(conn *Connection) {
	if err := gs.leave(conn, false); err != nil && !errors.Is(err, game.ErrNotInRoom) {
		gs.Logger.WithField("conn", conn.ID).Warnf("Error during disconnect cleanup: %v", err)
	}
	gs.unregister(conn.ID)
	conn.Close()
}

func (gs *GameServer) joinGame(conn *Connection, p joinGamePayload) error {
	if _, bound := gs.Sessions.Lookup(conn.ID); bound {
		return game.ErrAlreadyInRoom
	}

	room, created, err := gs.Rooms.Open(p.RoomID)
	if err != nil {
		return err
	}

	room.Mu.Lock()
	defer room.Mu.Unlock()

	if room.Closed() {
		return game.ErrRoomNotFound
	}
	player, err := room.AddPlayer(conn.ID, p.PlayerName)
	if err != nil {
		if created && len(room.Players) == 0 {
			gs.Rooms.Delete(room.Code)
		}
		return err
	}
	if err := gs.Sessions.Bind(conn.ID, player.Name, room.Code); err != nil {
		room.RemovePlayer(conn.ID)
		gs.Logger.WithField("conn", conn.ID).Warnf("Session bind failed after join: %v", err)
		return game.ErrAlreadyInRoom
	}

	gs.Logger.WithFields(logrus.Fields{
		"room":    room.Code,
		"player":  player.Name,
		"conn":    conn.ID,
		"created": created,
	}).Info("Player joined room")
	return nil
}

// leave unseats the connection's player and drops its session. notify sends a
// left_room confirmation to the connection.
func (gs *GameServer) leave(conn *Connection, notify bool) error {
	sess, ok := gs.Sessions.Lookup(conn.ID)
	if !ok {
		return game.ErrNotInRoom
	}
	room, found := gs.Rooms.Get(sess.RoomCode)
	if !found {
		gs.Sessions.Unbind(conn.ID)
		return nil
	}

	state := gs.unseat(room, conn.ID)

	gs.Logger.WithFields(logrus.Fields{
		"room":   sess.RoomCode,
		"player": sess.PlayerName,
		"state":  state,
		"notify": notify,
	}).Info("Player left room")

	if notify {
		conn.Write(game.GameEvent{Type: game.EventLeftRoom, Payload: game.MessagePayload{Message: "Você saiu da sala"}})
	}
	return nil
}

// unseat removes the player and its session under the room lock and returns
// the room state afterwards.
func (gs *GameServer) unseat(room *game.Room, connID uuid.UUID) game.RoomState {
	room.Mu.Lock()
	defer room.Mu.Unlock()
	room.RemovePlayer(connID)
	gs.Sessions.Unbind(connID)
	return room.State
}

// withRoom runs fn with the caller's room locked.
func (gs *GameServer) withRoom(conn *Connection, fn func(r *game.Room, s session.Session) error) error {
	sess, ok := gs.Sessions.Lookup(conn.ID)
	if !ok {
		return game.ErrNotInRoom
	}
	room, found := gs.Rooms.Get(sess.RoomCode)
	if !found {
		gs.Sessions.Unbind(conn.ID)
		return game.ErrRoomNotFound
	}

	room.Mu.Lock()
	defer room.Mu.Unlock()
	if room.Closed() || room.Player(conn.ID) == nil {
		gs.Sessions.Unbind(conn.ID)
		return game.ErrRoomNotFound
	}
	return fn(room, sess)
}

func (gs *GameServer) reportError(conn *Connection, log *logrus.Entry, err error) {
	kind := game.KindOf(err)
	if kind != game.KindInternal {
		log.WithField("kind", kind).Debugf("Rejected message: %v", err)
		conn.WriteError(userMessage(err))
		return
	}

	log.Errorf("Internal error handling message: %v", err)
	conn.WriteError(game.ErrInternal.Message)
	// The rest of the room hears about it too.
	sess, ok := gs.Sessions.Lookup(conn.ID)
	if !ok {
		return
	}
	room, found := gs.Rooms.Get(sess.RoomCode)
	if !found {
		return
	}
	room.Mu.Lock()
	defer room.Mu.Unlock()
	for _, p := range room.Players {
		if p.ConnID != conn.ID {
			gs.sendTo(p.ConnID, game.GameEvent{Type: game.EventError, Payload: game.MessagePayload{Message: game.ErrInternal.Message}})
		}
	}
}

// userMessage is the player-facing text of err. Detail added by wrapping stays
// in the logs.
func userMessage(err error) string {
	var ge *game.GameError
	if errors.As(err, &ge) {
		return ge.Message
	}
	return game.ErrInternal.Message
}

func decodePayload(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", game.ErrMalformedPayload, err)
	}
	return nil
}
