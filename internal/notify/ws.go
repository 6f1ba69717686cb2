package notify

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10
)

// ChangeNotice is the wire form of a notification: topic only, no payload.
type ChangeNotice struct {
	Topic string `json:"topic"`
}

// TopicsFunc resolves the topics a request may observe. Returning an error
// rejects the connection before the upgrade.
type TopicsFunc func(r *http.Request) ([]string, error)

// WSHandler streams broker notifications to websocket clients.
type WSHandler struct {
	broker   *Broker
	topics   TopicsFunc
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWSHandler creates a websocket handler over the broker. The topics
// function scopes each connection to what its caller is allowed to see.
func NewWSHandler(broker *Broker, topics TopicsFunc, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		broker: broker,
		topics: topics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Browser clients connect from a different origin in
				// development; origin checks belong to the proxy.
				return true
			},
		},
		logger: logger,
	}
}

// ServeHTTP upgrades the connection and streams change notices until the
// peer disconnects.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	topics, err := h.topics(r)
	if err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if len(topics) == 0 {
		http.Error(w, "no observable topics", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	notices, cancel := h.broker.Subscribe(topics...)
	done := make(chan struct{})

	// Read pump: we expect no client messages, but reading is what
	// detects the peer going away and answers pings.
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		conn.Close()
	}()

	for {
		select {
		case topic, ok := <-notices:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ChangeNotice{Topic: topic}); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
