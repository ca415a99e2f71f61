package statusapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lexiqai/session-recorder/internal/catalog"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	feedBuffer   = 64
)

var upgrader = websocket.Upgrader{
	// the feed is read-only and served on a local port
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Event is one message on the /events feed
type Event struct {
	Type    string           `json:"type"` // "snapshot" or "record"
	Records []catalog.Record `json:"records,omitempty"`
	Record  *catalog.Record  `json:"record,omitempty"`
}

// handleEvents streams record changes to a websocket client, starting with a
// snapshot of the whole catalog
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
		return
	}
	defer conn.Close()

	feed, unsubscribe := s.records.Subscribe(feedBuffer)
	defer unsubscribe()

	s.logger.Debug().Str("remote", r.RemoteAddr).Msg("Event subscriber connected")

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(Event{Type: "snapshot", Records: s.records.List()}); err != nil {
		return
	}

	// the client sends nothing; reading only processes control frames and
	// notices the close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Warn().Err(err).Msg("WebSocket read error")
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case rec, ok := <-feed:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(Event{Type: "record", Record: &rec}); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
