// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/palavras/internal/game"
	"github.com/jason-s-yu/palavras/internal/middleware"
	"github.com/sirupsen/logrus"
)

const (
	// Subprotocol is offered to clients but not required.
	Subprotocol = "palavras"

	readLimit    = 4096
	pingInterval = 30 * time.Second
	pingTimeout  = 15 * time.Second
	writeTimeout = 5 * time.Second
)

// GameWSHandler upgrades the request and serves one client until it goes away.
func GameWSHandler(gs *GameServer) http.HandlerFunc {
	logger := gs.Logger
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: gs.OriginPatterns,
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")
		c.SetReadLimit(readLimit)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		conn := NewConnection(r.RemoteAddr, cancel, logger)
		conn.CloseSocket = func(code websocket.StatusCode, reason string) {
			_ = c.Close(code, reason)
		}
		gs.register(conn)
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		go writePump(ctx, c, conn, logger)
		readErr := readPump(ctx, c, gs, conn)

		gs.HandleDisconnect(conn)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, readErr)
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// readPump decodes envelopes until the socket fails or ctx ends. A clean close
// returns nil.
func readPump(ctx context.Context, c *websocket.Conn, gs *GameServer, conn *Connection) error {
	log := gs.Logger.WithField("conn", conn.ID)
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
				status == ServerShutdownCode || errors.Is(err, context.Canceled) {
				return nil
			}
			if status == websocket.StatusMessageTooBig {
				log.Warn("Client sent an oversized message")
			}
			return err
		}

		if msgType != websocket.MessageText {
			log.Debugf("Ignoring non-text message type %d", msgType)
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			log.Debugf("Invalid envelope: %s", string(data))
			conn.WriteError(game.ErrMalformedPayload.Message)
			continue
		}
		gs.HandleMessage(conn, msg)

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// writePump drains conn.OutChan to the socket and keeps the peer alive with
// pings.
func writePump(ctx context.Context, c *websocket.Conn, conn *Connection, logger *logrus.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	log := logger.WithField("conn", conn.ID)

	for {
		select {
		case <-ctx.Done():
			return
		case <-conn.Done():
			return
		case ev := <-conn.OutChan:
			data := game.EncodeEvent(ev)
			if data == nil {
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				log.Warnf("Failed to write to websocket: %v", err)
				conn.Terminate(WriteFailedCode, "write failed")
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				log.Warnf("Failed to send ping: %v. Assuming disconnect.", err)
				conn.Terminate(websocket.StatusGoingAway, "ping failed")
				return
			}
		}
	}
}
