// v0
// internal/httpapi/live.go
package httpapi

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// upgrader promotes an HTTP connection to a WebSocket, using
// github.com/gorilla/websocket — present as an indirect dependency
// across the pack's device/MQTT stacks and promoted here to a direct
// one for the dashboard's live feed. Origin checking is left to the
// CORS middleware already sitting in front of this handler.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleLive upgrades GET /live to a WebSocket and pumps
// broadcast.Event JSON frames to the client until it disconnects or a
// write fails. A client that falls behind loses the oldest events
// queued on its subscription; the Hub itself is never blocked.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("live_upgrade_failed", "err", err)
		return
	}
	defer conn.Close()

	sensorRef := r.URL.Query().Get("sensorRef")
	sub := s.hub.Subscribe()
	if sensorRef != "" {
		sub.Close()
		sub = s.hub.SubscribeSensor(sensorRef)
	}
	defer sub.Close()

	ctx := r.Context()
	for {
		event, ok := sub.Next(ctx)
		if !ok {
			return
		}
		if err := conn.WriteJSON(event); err != nil {
			s.log.Warn("live_write_failed", "err", err)
			return
		}
	}
}
