// Package server coordinates connection arrival, message routing, fan-out,
// and cleanup through the Hub type.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"relaychat/internal/directory"
)

// RoomDirectory is the durable set of valid room names the hub consults on
// connection arrival and on the create command.
type RoomDirectory interface {
	Exists(name string) bool
	Create(name string) (bool, error)
	List() []string
}

// Hub owns the lifecycle of every connection entry: it checks the room
// directory on arrival, registers entries, routes their envelopes, fans
// broadcasts out to room members, and removes entries on disconnect, kick,
// or send failure.
type Hub struct {
	log      *slog.Logger
	rooms    RoomDirectory
	registry *Registry
	upgrader websocket.Upgrader

	wg sync.WaitGroup
}

// NewHub creates a hub backed by the given room directory.
func NewHub(log *slog.Logger, rooms RoomDirectory) *Hub {
	h := &Hub{
		log:      log,
		rooms:    rooms,
		registry: NewRegistry(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Registry exposes the hub's connection registry.
func (h *Hub) Registry() *Registry { return h.registry }

func (h *Hub) checkOrigin(r *http.Request) bool {
	if isOriginAllowed(r) {
		return true
	}
	h.log.Warn("blocked connection from disallowed origin", "origin", r.Header.Get("Origin"))
	return false
}

// ServeWS upgrades the request and runs the connection against the room
// named in the path. A room absent from the directory is a terminal outcome:
// the connection is accepted, told so, and closed without being registered.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	room := directory.Normalize(r.PathValue("room"))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "err", err)
		return
	}

	if room == "" || !h.rooms.Exists(room) {
		h.log.Info("rejected connection to unknown room", "room", room, "remote", conn.RemoteAddr())
		roomsRejected.Inc()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(websocket.TextMessage, systemPayload("Room \""+room+"\" does not exist"))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown room"))
		_ = conn.Close()
		return
	}

	e := NewEntry(conn, room)
	h.registry.Add(e)
	connectionsOpened.Inc()
	connectionsActive.Inc()
	h.log.Info("connection registered", "id", e.ID(), "room", room, "remote", conn.RemoteAddr())

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		e.writePump(h)
	}()
	func() {
		defer h.wg.Done()
		e.readPump(h)
	}()
}

// drop removes the entry from the registry and, when this call was the one
// that removed it, closes its send channel. The write pump drains whatever
// is still queued, writes a close frame, and closes the connection, so the
// peer always sees its final notices. Safe to call any number of times.
func (h *Hub) drop(e *Entry) {
	if !h.registry.Remove(e) {
		return
	}
	close(e.send)
	connectionsActive.Dec()
	h.log.Info("connection removed", "id", e.ID(), "room", e.Room(), "user", e.Username())
}

// broadcast fans payload out to a point-in-time snapshot of the room's
// members. A failed recipient never aborts delivery to the rest; failing
// entries are dropped after the iteration so a dead connection does not
// keep receiving attempted sends.
func (h *Hub) broadcast(room string, payload []byte) {
	broadcastsTotal.Inc()

	var failed []*Entry
	for _, member := range h.registry.Snapshot(room) {
		if !h.registry.Send(member, payload) {
			failed = append(failed, member)
		}
	}
	for _, member := range failed {
		h.log.Debug("dropping unreachable recipient", "id", member.ID(), "room", room)
		h.drop(member)
	}
}

// reply sends payload to the issuing entry only, bypassing fan-out, with the
// same single-recipient failure tolerance.
func (h *Hub) reply(e *Entry, payload []byte) {
	if !h.registry.Send(e, payload) {
		h.drop(e)
	}
}

// announcePresence broadcasts the room's current presence list: every named
// member with their admin flag.
func (h *Hub) announcePresence(room string) {
	h.broadcast(room, presencePayload(h.registry.Presence(room)))
}

// Shutdown drops every registered entry and waits for their pump goroutines
// to finish, or gives up after timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("closing all client connections")

	for _, e := range h.registry.AllEntries() {
		h.drop(e)
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn("hub shutdown timeout reached")
		return context.DeadlineExceeded
	}
}
