// Package server defines the envelope formats exchanged with clients and the
// discriminated parse step that turns raw frames into a closed set of inbound
// variants.
package server

import (
	"encoding/json"
	"strings"
)

// CommandMarker prefixes chat text that is interpreted as a command.
const CommandMarker = ">"

// SystemUser names the sender of server-authored envelopes.
const SystemUser = "system"

// AnonUser is the display name used when an unnamed connection chats without
// supplying a per-message username.
const AnonUser = "anon"

// joinEnvelope is a request to take a username, valid once per connection.
type joinEnvelope struct {
	User string
}

// chatEnvelope carries a chat line or, when Text starts with CommandMarker,
// a command. User is an optional per-message display name used only while
// the connection is unnamed.
type chatEnvelope struct {
	User string
	Text string
}

// rawEnvelope mirrors the wire shape of every inbound frame. The "type" tag
// discriminates join requests from chat lines; absent means chat.
type rawEnvelope struct {
	Type string `json:"type"`
	User string `json:"user"`
	Text string `json:"text"`
}

// parseEnvelope decodes one inbound frame into a joinEnvelope or chatEnvelope.
// Frames that are not JSON objects, or that carry an unknown type tag, yield
// ok == false: the frame is dropped and the connection stays open.
func parseEnvelope(raw []byte) (env any, ok bool) {
	var decoded rawEnvelope
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, false
	}

	switch decoded.Type {
	case "join":
		return joinEnvelope{User: decoded.User}, true
	case "":
		return chatEnvelope{User: decoded.User, Text: decoded.Text}, true
	default:
		return nil, false
	}
}

// UserStatus is one element of a presence list: a named room member and
// whether they hold admin rights.
type UserStatus struct {
	Name    string `json:"name"`
	IsAdmin bool   `json:"is_admin"`
}

type outboundEnvelope struct {
	User string `json:"user"`
	Text string `json:"text"`
}

type presenceEnvelope struct {
	Type  string       `json:"type"`
	Users []UserStatus `json:"users"`
}

// chatPayload encodes a chat envelope attributed to user.
func chatPayload(user, text string) []byte {
	payload, _ := json.Marshal(outboundEnvelope{User: user, Text: text})
	return payload
}

// systemPayload encodes a server-authored notice.
func systemPayload(text string) []byte {
	return chatPayload(SystemUser, text)
}

// presencePayload encodes the presence list of a room.
func presencePayload(users []UserStatus) []byte {
	if users == nil {
		users = []UserStatus{}
	}
	payload, _ := json.Marshal(presenceEnvelope{Type: "users", Users: users})
	return payload
}

// splitCommand separates the command token from its trailing argument string.
// The argument is not tokenized further; each handler parses its own.
func splitCommand(body string) (cmd, args string) {
	cmd, args, _ = strings.Cut(body, " ")
	return cmd, strings.TrimSpace(args)
}
