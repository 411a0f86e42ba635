package review

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The review page is opened by LAN address; any origin is accepted.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Message is a frame sent to /ws clients.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// PendingPayload carries the number of images waiting for review.
type PendingPayload struct {
	Count int `json:"count"`
}

const writeWait = 10 * time.Second

// pendingWebSocketHandler pushes the pending count on connect and whenever
// it changes. The client never sends data; reads only detect disconnects.
func (s *Server) pendingWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.cfg.WSInterval)
	defer ticker.Stop()

	last := -1
	for {
		if n := s.collector.PendingManualCount(); n != last {
			data, _ := json.Marshal(Message{Type: "pending", Payload: PendingPayload{Count: n}})
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
			last = n
		}
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
