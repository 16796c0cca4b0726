// Package server drives the per-connection session: each inbound frame moves
// the entry through anonymous, named, and admin states, or is relayed to the
// entry's room.
package server

import "strings"

// handleFrame decodes one frame and processes it to completion before the
// read loop fetches the next. Malformed frames are dropped silently and the
// connection stays open.
func (h *Hub) handleFrame(e *Entry, raw []byte) {
	env, ok := parseEnvelope(raw)
	if !ok {
		h.log.Debug("ignoring malformed frame", "id", e.ID(), "room", e.Room())
		return
	}
	envelopesRouted.Inc()

	switch env := env.(type) {
	case joinEnvelope:
		h.handleJoin(e, env.User)
	case chatEnvelope:
		h.handleChat(e, env)
	}
}

// handleJoin processes a username claim. An empty candidate is ignored, a
// repeat join on a named entry is ignored, and a name held by any active
// entry in any room is a terminal conflict: the entry is told, removed, and
// closed.
func (h *Hub) handleJoin(e *Entry, candidate string) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return
	}
	if e.Username() != "" {
		return
	}

	if !h.registry.ClaimUsername(e, candidate) {
		h.log.Info("username conflict", "id", e.ID(), "room", e.Room(), "candidate", candidate)
		h.reply(e, systemPayload("Username \""+candidate+"\" is already taken"))
		h.drop(e)
		return
	}

	h.log.Info("username claimed", "id", e.ID(), "room", e.Room(), "user", candidate)
	h.reply(e, systemPayload("Welcome, "+candidate+"!"))
	h.broadcast(e.Room(), systemPayload(candidate+" joined "+e.Room()))
	h.announcePresence(e.Room())
}

// handleChat relays a chat line to the room, or routes it to the command
// dispatcher when it starts with the command marker. Unnamed connections may
// chat; attribution falls back to the per-message name or the placeholder.
func (h *Hub) handleChat(e *Entry, env chatEnvelope) {
	text := strings.TrimSpace(env.Text)
	if text == "" {
		return
	}
	if strings.HasPrefix(text, CommandMarker) {
		h.dispatchCommand(e, text)
		return
	}

	h.broadcast(e.Room(), chatPayload(e.displayName(strings.TrimSpace(env.User)), text))
}
