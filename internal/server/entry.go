// Package server manages individual connection entries, handling read/write
// pumps, rate limiting, and the once-only username and admin transitions.
package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = 54 * time.Second
)

// Entry is one active connection registered in a room. The room never
// changes after creation; username is set at most once; isAdmin only
// transitions false to true.
type Entry struct {
	id   string
	room string
	conn *websocket.Conn
	send chan []byte

	// closed is owned by the registry and guarded by its mutex. Once set,
	// no send reaches the channel and the channel may safely be closed.
	closed bool

	mu       sync.Mutex
	username string
	isAdmin  bool

	limiter        *rateLimiter
	maxMessageSize int64
}

// NewEntry wraps an accepted connection as an anonymous, non-admin entry
// bound to room for its whole lifetime.
func NewEntry(conn *websocket.Conn, room string) *Entry {
	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Entry{
		id:             uuid.NewString(),
		room:           room,
		conn:           conn,
		send:           make(chan []byte, 256),
		limiter:        newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		maxMessageSize: cfg.MaxMessageSize,
	}
}

// ID returns the entry's unique identifier, used for log correlation.
func (e *Entry) ID() string { return e.id }

// Room returns the room this entry belongs to.
func (e *Entry) Room() string { return e.room }

// Username returns the entry's username, or "" while anonymous. The stored
// value preserves the case supplied at join time.
func (e *Entry) Username() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.username
}

// setUsername records the username. It is called exactly once, from
// Registry.ClaimUsername, under the registry lock.
func (e *Entry) setUsername(name string) {
	e.mu.Lock()
	e.username = name
	e.mu.Unlock()
}

// IsAdmin reports whether the entry has authenticated as an administrator.
func (e *Entry) IsAdmin() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isAdmin
}

// grantAdmin flips the admin flag. The transition is one-way for the life
// of the connection.
func (e *Entry) grantAdmin() {
	e.mu.Lock()
	e.isAdmin = true
	e.mu.Unlock()
}

// displayName is the attribution used for this entry's chat envelopes:
// the claimed username, else the per-message name, else the placeholder.
func (e *Entry) displayName(supplied string) string {
	if name := e.Username(); name != "" {
		return name
	}
	if supplied != "" {
		return supplied
	}
	return AnonUser
}

// readPump reads frames from the connection and hands each one to the hub,
// strictly in arrival order: a frame is processed to completion before the
// next read. It exits on any read error and drops the entry on the way out.
func (e *Entry) readPump(h *Hub) {
	defer func() {
		h.drop(e)
		_ = e.conn.Close()
	}()

	_ = e.conn.SetReadDeadline(time.Now().Add(pongWait))
	e.conn.SetPongHandler(func(string) error {
		return e.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := e.conn.ReadMessage()
		if err != nil {
			e.logReadError(h.log, err)
			return
		}
		if !e.limiter.allow() {
			h.log.Debug("rate limit exceeded, discarding frame", "id", e.id, "room", e.room)
			continue
		}
		h.handleFrame(e, raw)
	}
}

// logReadError classifies the read failure: a normal disconnect is debug
// noise, anything else is worth a warning.
func (e *Entry) logReadError(log *slog.Logger, err error) {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		log.Debug("connection closed by peer", "id", e.id, "room", e.room)
		return
	}
	if websocket.IsUnexpectedCloseError(err) {
		log.Warn("unexpected close", "id", e.id, "room", e.room, "err", err)
		return
	}
	log.Debug("read failed", "id", e.id, "room", e.room, "err", err)
}

// writePump delivers queued payloads to the peer, one envelope per text
// frame, and keeps the connection alive with periodic pings. When the send
// channel is closed it drains the remaining payloads, writes a close frame,
// and closes the connection, so a kicked or conflicted entry still receives
// its final notice.
func (e *Entry) writePump(h *Hub) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.drop(e)
		_ = e.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-e.send:
			_ = e.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = e.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := e.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.log.Debug("write failed", "id", e.id, "room", e.room, "err", err)
				return
			}
		case <-ticker.C:
			_ = e.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := e.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
