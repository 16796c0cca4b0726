package server

import "testing"

// TestParseEnvelopeJoin verifies the tagged decode of join frames.
func TestParseEnvelopeJoin(t *testing.T) {
	env, ok := parseEnvelope([]byte(`{"type":"join","user":"alice"}`))
	if !ok {
		t.Fatal("parseEnvelope rejected a valid join frame")
	}
	join, isJoin := env.(joinEnvelope)
	if !isJoin {
		t.Fatalf("parseEnvelope returned %T, want joinEnvelope", env)
	}
	if join.User != "alice" {
		t.Errorf("User = %q, want %q", join.User, "alice")
	}
}

// TestParseEnvelopeChat verifies the default chat decode, with and without
// the optional per-message username.
func TestParseEnvelopeChat(t *testing.T) {
	env, ok := parseEnvelope([]byte(`{"user":"bob","text":"hello"}`))
	if !ok {
		t.Fatal("parseEnvelope rejected a valid chat frame")
	}
	chat, isChat := env.(chatEnvelope)
	if !isChat {
		t.Fatalf("parseEnvelope returned %T, want chatEnvelope", env)
	}
	if chat.User != "bob" || chat.Text != "hello" {
		t.Errorf("chat = %+v, want user bob text hello", chat)
	}

	env, ok = parseEnvelope([]byte(`{"text":">login a b"}`))
	if !ok {
		t.Fatal("parseEnvelope rejected a chat frame without user")
	}
	if chat := env.(chatEnvelope); chat.Text != ">login a b" {
		t.Errorf("Text = %q", chat.Text)
	}
}

// TestParseEnvelopeMalformed verifies that non-JSON, non-object, and
// unknown-type frames are rejected without panicking.
func TestParseEnvelopeMalformed(t *testing.T) {
	cases := []string{
		"not json",
		`"just a string"`,
		`[1,2,3]`,
		`42`,
		`{"type":"mystery"}`,
	}
	for _, raw := range cases {
		if _, ok := parseEnvelope([]byte(raw)); ok {
			t.Errorf("parseEnvelope(%q) accepted a malformed frame", raw)
		}
	}
}

// TestSplitCommand verifies the command-token/argument split.
func TestSplitCommand(t *testing.T) {
	cases := []struct {
		body, cmd, args string
	}{
		{"login admin secret", "login", "admin secret"},
		{"kick bob  too loud", "kick", "bob  too loud"},
		{"create", "create", ""},
		{"warn bob   ", "warn", "bob"},
	}
	for _, c := range cases {
		cmd, args := splitCommand(c.body)
		if cmd != c.cmd || args != c.args {
			t.Errorf("splitCommand(%q) = (%q, %q), want (%q, %q)", c.body, cmd, args, c.cmd, c.args)
		}
	}
}
