package infra

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rogerbap/gaminglibrary/internal/domain"
	"github.com/rogerbap/gaminglibrary/internal/metrics"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 512
	wsSendBuffer     = 32
)

// WSHub manages WebSocket connections and room-based message delivery.
// Rooms are player-scoped ("player:{id}"). It doubles as the outbox sink for
// the live feed.
type WSHub struct {
	mu       sync.RWMutex
	rooms    map[string]map[string]*WSConn // room -> connID -> conn
	closed   bool
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// WSConn is one client connection's outbound queue.
type WSConn struct {
	ID       string
	PlayerID string
	Send     chan []byte
}

// WSMessage is the payload sent over WebSocket.
type WSMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// NewWSHub creates a new WebSocket hub accepting upgrades from the given
// origins. "*" or an empty list accepts any origin.
func NewWSHub(allowedOrigins []string, logger *slog.Logger) *WSHub {
	h := &WSHub{
		rooms:  make(map[string]map[string]*WSConn),
		logger: logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*") {
				return true
			}
			return slices.Contains(allowedOrigins, origin)
		},
	}
	return h
}

func playerRoom(playerID string) string { return "player:" + playerID }

// Join adds a connection to a room. After Shutdown the connection is closed
// immediately instead.
func (h *WSHub) Join(room string, conn *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(conn.Send)
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*WSConn)
	}
	h.rooms[room][conn.ID] = conn
}

// Leave removes a connection from a room and closes its queue. It reports
// false if the connection was already gone.
func (h *WSHub) Leave(room string, connID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.rooms[room]
	if !ok {
		return false
	}
	conn, ok := conns[connID]
	if !ok {
		return false
	}
	delete(conns, connID)
	close(conn.Send)
	if len(conns) == 0 {
		delete(h.rooms, room)
	}
	return true
}

// Publish sends a message to all connections in a room.
func (h *WSHub) Publish(room string, event string, data interface{}) {
	msg := WSMessage{Event: event, Data: data}
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("ws marshal error", "error", err, "room", room, "event", event)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	conns, ok := h.rooms[room]
	if !ok {
		return
	}

	for _, conn := range conns {
		select {
		case conn.Send <- payload:
		default:
			h.logger.Warn("ws send buffer full", "connID", conn.ID, "room", room)
		}
	}
}

// PublishToPlayer is a convenience method to publish to a player-scoped room.
func (h *WSHub) PublishToPlayer(playerID string, event string, data interface{}) {
	h.Publish(playerRoom(playerID), event, data)
}

func (h *WSHub) Name() string { return "websocket" }

// Deliver forwards an outbox event to its player's live feed.
func (h *WSHub) Deliver(_ context.Context, event domain.OutboxDraft) error {
	h.PublishToPlayer(event.PartitionKey, string(event.EventType), event.Payload)
	return nil
}

// ConnectionCount returns the total number of active connections.
func (h *WSHub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, conns := range h.rooms {
		count += len(conns)
	}
	return count
}

// RoomCount returns the number of active rooms.
func (h *WSHub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Shutdown closes all connections gracefully.
func (h *WSHub) Shutdown(_ context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for room, conns := range h.rooms {
		for _, conn := range conns {
			close(conn.Send)
		}
		delete(h.rooms, room)
	}
}

// ServeWS upgrades the request and streams playerID's room until the client
// disconnects or the hub shuts down. On upgrade failure the upgrader has
// already written an HTTP error.
func (h *WSHub) ServeWS(w http.ResponseWriter, r *http.Request, playerID string) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	conn := &WSConn{ID: uuid.NewString(), PlayerID: playerID, Send: make(chan []byte, wsSendBuffer)}
	room := playerRoom(playerID)
	h.Join(room, conn)
	metrics.LiveConnectionOpened()
	defer metrics.LiveConnectionClosed()
	h.logger.Debug("ws connected", "connID", conn.ID, "player_id", playerID)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writePump(ws, conn)
	}()

	h.readPump(ws)
	h.Leave(room, conn.ID)
	<-writerDone
	h.logger.Debug("ws disconnected", "connID", conn.ID, "player_id", playerID)
	return nil
}

// readPump discards client frames; it exists to process pongs and notice
// the client going away.
func (h *WSHub) readPump(ws *websocket.Conn) {
	defer ws.Close()
	ws.SetReadLimit(wsMaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WSHub) writePump(ws *websocket.Conn, conn *WSConn) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case msg, ok := <-conn.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
