// Package server interprets command envelopes: login, room creation, and the
// room-scoped moderation commands.
package server

import (
	"fmt"
	"strings"
)

// dispatchCommand routes a ">"-prefixed chat line. The first token selects
// the handler case-insensitively; everything after it is handed over as one
// argument string for the handler to parse.
func (h *Hub) dispatchCommand(e *Entry, text string) {
	body := strings.TrimSpace(strings.TrimPrefix(text, CommandMarker))
	if body == "" {
		h.reply(e, systemPayload("Empty command"))
		return
	}

	cmd, args := splitCommand(body)
	switch strings.ToLower(cmd) {
	case "login":
		h.cmdLogin(e, args)
	case "create":
		if h.requireAdmin(e) {
			h.cmdCreate(e, args)
		}
	case "warn":
		if h.requireAdmin(e) {
			h.cmdWarn(e, args)
		}
	case "kick":
		if h.requireAdmin(e) {
			h.cmdKick(e, args)
		}
	default:
		h.reply(e, systemPayload("Unknown command"))
	}
}

// requireAdmin rejects admin-only commands from non-admin entries. The
// rejection is the only effect.
func (h *Hub) requireAdmin(e *Entry) bool {
	if e.IsAdmin() {
		return true
	}
	h.reply(e, systemPayload("Unauthorized"))
	return false
}

// cmdLogin grants admin rights when the two tokens match the configured
// credential pair exactly. With no credentials configured, login always
// fails.
func (h *Hub) cmdLogin(e *Entry, args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		h.reply(e, systemPayload("Usage: >login <user> <pass>"))
		return
	}

	user, pass, configured := adminCredentials()
	if !configured || fields[0] != user || fields[1] != pass {
		h.log.Info("failed login attempt", "id", e.ID(), "room", e.Room())
		h.reply(e, systemPayload("Login failed"))
		return
	}

	e.grantAdmin()
	h.log.Info("admin login", "id", e.ID(), "room", e.Room(), "user", e.Username())
	h.reply(e, systemPayload("Login successful, admin rights granted"))
}

// cmdCreate registers a new room in the directory. Both "created" and
// "already exists" are success outcomes; the room-wide announcement is
// attributed to the issuer's username, else the configured admin display
// name, else the system user.
func (h *Hub) cmdCreate(e *Entry, args string) {
	name, _, _ := strings.Cut(args, " ")
	if name == "" {
		h.reply(e, systemPayload("Usage: >create <room>"))
		return
	}

	created, err := h.rooms.Create(name)
	if err != nil {
		h.log.Error("room creation failed", "room", name, "err", err)
		h.reply(e, systemPayload("Could not create room \""+name+"\""))
		return
	}

	var outcome string
	if created {
		outcome = "Room \"" + name + "\" created"
	} else {
		outcome = "Room \"" + name + "\" already exists"
	}
	h.reply(e, systemPayload(outcome))

	actor := e.Username()
	if actor == "" {
		actor = currentConfig().AdminUser
	}
	if actor == "" {
		actor = SystemUser
	}
	h.broadcast(e.Room(), chatPayload(actor, outcome))
}

// cmdWarn sends a private WARNING to every entry in the issuer's room whose
// username matches the target. A recipient that cannot be reached is closed
// and removed. The announcement goes out only when someone matched.
func (h *Hub) cmdWarn(e *Entry, args string) {
	target, message, _ := strings.Cut(args, " ")
	message = strings.TrimSpace(message)
	if target == "" || message == "" {
		h.reply(e, systemPayload("Usage: >warn <user> <message>"))
		return
	}

	matches := h.registry.MatchInRoom(e.Room(), target)
	for _, m := range matches {
		if !h.registry.Send(m, systemPayload("WARNING: "+message)) {
			h.drop(m)
		}
	}

	h.reply(e, systemPayload(fmt.Sprintf("Warned %d user(s)", len(matches))))
	if len(matches) > 0 {
		h.log.Info("user warned", "room", e.Room(), "target", target, "by", e.Username())
		h.broadcast(e.Room(), systemPayload(target+" has been warned"))
	}
}

// cmdKick removes every matching entry from the issuer's room: each one gets
// a KICK notice, is closed, and is removed. A successful kick is announced
// and followed by a presence rebroadcast.
func (h *Hub) cmdKick(e *Entry, args string) {
	target, reason, _ := strings.Cut(args, " ")
	reason = strings.TrimSpace(reason)
	if target == "" {
		h.reply(e, systemPayload("Usage: >kick <user> [reason]"))
		return
	}

	notice := "KICK: you have been kicked"
	if reason != "" {
		notice += " (" + reason + ")"
	}

	matches := h.registry.MatchInRoom(e.Room(), target)
	for _, m := range matches {
		h.registry.Send(m, systemPayload(notice))
		h.drop(m)
	}

	h.reply(e, systemPayload(fmt.Sprintf("Kicked %d user(s)", len(matches))))
	if len(matches) > 0 {
		kicksTotal.Inc()
		h.log.Info("user kicked", "room", e.Room(), "target", target, "reason", reason, "by", e.Username())
		announcement := target + " has been kicked"
		if reason != "" {
			announcement += ": " + reason
		}
		h.broadcast(e.Room(), systemPayload(announcement))
		h.announcePresence(e.Room())
	}
}
