// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Application close codes sent to clients. These give more specific reasons
// for closure than the standard codes.
const (
	ServerShutdownCode websocket.StatusCode = 4000 // Server is stopping; the client may reconnect later.
	WriteFailedCode    websocket.StatusCode = 4001 // Outbound events could not be delivered to the socket.
)
