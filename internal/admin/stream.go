package admin

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/markb/logwatch/internal/watcher"
)

const (
	// Time allowed to write a message
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message
	pongWait = 30 * time.Second

	// Send pings with this period (must be less than pongWait)
	pingPeriod = 25 * time.Second

	// Clients only send control frames
	maxMessageSize = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins (CORS handled elsewhere)
	},
}

// Stream handles GET /admin/v1/logging/stream. Each captured event is sent
// to the client as one JSON document; a client that reads too slowly misses
// documents.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("admin: stream upgrade failed", "error", err.Error())
		return
	}

	id, docs := h.watcher.Stream().Subscribe()
	h.logger.Debug("admin: stream opened", "subscriber", id)

	done := make(chan struct{})
	go readPump(ws, done)
	writePump(ws, docs, done)

	h.watcher.Stream().Unsubscribe(id)
	ws.Close()
	h.logger.Debug("admin: stream closed", "subscriber", id)
}

// readPump drains client frames so pongs and close frames are processed.
func readPump(ws *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(ws *websocket.Conn, docs <-chan watcher.Document, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case doc, ok := <-docs:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteJSON(doc); err != nil {
				return
			}

		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}
