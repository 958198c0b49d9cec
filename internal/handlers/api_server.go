// internal/handlers/api_server.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jason-s-yu/palavras/internal/game"
	"github.com/jason-s-yu/palavras/internal/middleware"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "cinco-palavras"

// NewRouter mounts the websocket endpoint and the read-only HTTP routes.
func NewRouter(gs *GameServer) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.LogMiddleware(gs.Logger))

	router.HandleFunc("/ws", GameWSHandler(gs)).Methods(http.MethodGet)
	router.HandleFunc("/health", HealthHandler(gs)).Methods(http.MethodGet)
	router.HandleFunc("/rooms/{code}", RoomStatusHandler(gs)).Methods(http.MethodGet)
	return router
}

type healthResponse struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	Rooms       int    `json:"rooms"`
	Sessions    int    `json:"sessions"`
	Connections int    `json:"connections"`
}

// HealthHandler reports liveness plus a few gauges.
func HealthHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{
			Status:      "ok",
			Service:     ServiceName,
			Rooms:       gs.Rooms.Len(),
			Sessions:    gs.Sessions.Len(),
			Connections: gs.ConnectionCount(),
		})
	}
}

// RoomStatusHandler returns the public summary of one room.
func RoomStatusHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := mux.Vars(r)["code"]
		room, ok := gs.Rooms.Get(code)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": game.ErrRoomNotFound.Message})
			return
		}

		room.Mu.Lock()
		closed := room.Closed()
		summary := room.Summary()
		room.Mu.Unlock()

		if closed {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": game.ErrRoomNotFound.Message})
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
