package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"relaychat/internal/directory"
)

// newTestServer stands up the full HTTP surface over a temporary room
// directory, with the admin credential pair configured unless withAdmin is
// false. The global config is restored to defaults on cleanup.
func newTestServer(t *testing.T, withAdmin bool, rooms ...string) (*Hub, *directory.Directory, *httptest.Server) {
	t.Helper()

	cfg := NewConfig()
	cfg.AllowedOrigins = []string{"*"}
	if withAdmin {
		cfg.AdminUser = "admin"
		cfg.AdminPass = "secret"
	}
	SetConfig(cfg)
	t.Cleanup(func() { SetConfig(nil) })

	dir, err := directory.Open(filepath.Join(t.TempDir(), "rooms.json"))
	if err != nil {
		t.Fatalf("failed to open room directory: %v", err)
	}
	for _, room := range rooms {
		if _, err := dir.Create(room); err != nil {
			t.Fatalf("failed to create room %q: %v", room, err)
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(logger, dir)
	ts := httptest.NewServer(SetupRoutes(logger, hub, NewRoomsAPI(logger, dir)))
	t.Cleanup(ts.Close)

	return hub, dir, ts
}

func dialRoom(t *testing.T, ts *httptest.Server, room string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/" + room
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(wsURL, nil)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("failed to dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendJoin(t *testing.T, conn *websocket.Conn, user string) {
	t.Helper()
	if err := conn.WriteJSON(map[string]string{"type": "join", "user": user}); err != nil {
		t.Fatalf("failed to send join: %v", err)
	}
}

func sendText(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()
	if err := conn.WriteJSON(map[string]string{"text": text}); err != nil {
		t.Fatalf("failed to send text: %v", err)
	}
}

func readEnvelope(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env map[string]any
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("failed to read envelope: %v", err)
	}
	return env
}

// readUntilText reads envelopes until one carries text containing substr.
func readUntilText(t *testing.T, conn *websocket.Conn, substr string) map[string]any {
	t.Helper()

	for i := 0; i < 20; i++ {
		env := readEnvelope(t, conn)
		if text, _ := env["text"].(string); strings.Contains(text, substr) {
			return env
		}
	}
	t.Fatalf("never received an envelope containing %q", substr)
	return nil
}

// readUntilPresence reads envelopes until a presence list arrives.
func readUntilPresence(t *testing.T, conn *websocket.Conn) []any {
	t.Helper()

	for i := 0; i < 20; i++ {
		env := readEnvelope(t, conn)
		if env["type"] == "users" {
			users, _ := env["users"].([]any)
			return users
		}
	}
	t.Fatal("never received a presence list")
	return nil
}

// expectClosed verifies the server closed the connection.
func expectClosed(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < 20; i++ {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
	t.Fatal("connection was not closed")
}

// expectSilence verifies no further envelope arrives within the window.
func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, raw, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected silence, received %s", raw)
	}
}

// TestConnectUnknownRoom verifies the terminal accept-then-close outcome:
// one system envelope, a closed connection, and no registry entry.
func TestConnectUnknownRoom(t *testing.T) {
	hub, _, ts := newTestServer(t, true, "lobby")

	conn := dialRoom(t, ts, "nowhere")
	env := readEnvelope(t, conn)
	if env["user"] != SystemUser {
		t.Errorf("sender = %v, want system", env["user"])
	}
	if text, _ := env["text"].(string); !strings.Contains(text, "does not exist") {
		t.Errorf("text = %q, want a does-not-exist notice", text)
	}
	expectClosed(t, conn)

	if got := hub.Registry().RoomCount(); got != 0 {
		t.Errorf("RoomCount = %d, want 0", got)
	}
}

// TestJoinWelcomeAndPresence verifies the named transition: private welcome,
// join announcement, and a presence broadcast.
func TestJoinWelcomeAndPresence(t *testing.T) {
	_, _, ts := newTestServer(t, true, "lobby")

	conn := dialRoom(t, ts, "lobby")
	sendJoin(t, conn, "alice")

	readUntilText(t, conn, "Welcome, alice")
	readUntilText(t, conn, "alice joined lobby")
	users := readUntilPresence(t, conn)
	if len(users) != 1 {
		t.Fatalf("presence size = %d, want 1", len(users))
	}
	first, _ := users[0].(map[string]any)
	if first["name"] != "alice" || first["is_admin"] != false {
		t.Errorf("presence[0] = %v, want alice without admin", first)
	}
}

// TestDuplicateUsernameConflict verifies the global uniqueness invariant:
// the second claimant is notified, closed, and removed, in any case folding.
func TestDuplicateUsernameConflict(t *testing.T) {
	hub, _, ts := newTestServer(t, true, "lobby", "annex")

	first := dialRoom(t, ts, "lobby")
	sendJoin(t, first, "alice")
	readUntilText(t, first, "Welcome, alice")

	// The conflict is cross-room: the same name in another room also loses.
	second := dialRoom(t, ts, "annex")
	sendJoin(t, second, "ALICE")
	readUntilText(t, second, "already taken")
	expectClosed(t, second)

	if got := len(hub.Registry().Snapshot("lobby")); got != 1 {
		t.Errorf("lobby size = %d, want 1", got)
	}
	if got := len(hub.Registry().Snapshot("annex")); got != 0 {
		t.Errorf("annex size = %d, want 0", got)
	}
}

// TestChatBroadcast verifies room fan-out and the attribution fallbacks for
// unnamed senders.
func TestChatBroadcast(t *testing.T) {
	_, _, ts := newTestServer(t, true, "lobby")

	named := dialRoom(t, ts, "lobby")
	sendJoin(t, named, "alice")
	readUntilText(t, named, "Welcome, alice")

	anon := dialRoom(t, ts, "lobby")

	sendText(t, anon, "hello there")
	env := readUntilText(t, named, "hello there")
	if env["user"] != AnonUser {
		t.Errorf("sender = %v, want %q", env["user"], AnonUser)
	}
	readUntilText(t, anon, "hello there")

	// A per-message username is honored while the connection is unnamed.
	if err := anon.WriteJSON(map[string]string{"user": "bob", "text": "hi again"}); err != nil {
		t.Fatalf("failed to send: %v", err)
	}
	env = readUntilText(t, named, "hi again")
	if env["user"] != "bob" {
		t.Errorf("sender = %v, want bob", env["user"])
	}

	sendText(t, named, "greetings")
	env = readUntilText(t, anon, "greetings")
	if env["user"] != "alice" {
		t.Errorf("sender = %v, want alice", env["user"])
	}
}

// TestEmptyAndMalformedFramesIgnored verifies that blank text and non-JSON
// frames neither break the connection nor produce output. Envelopes are
// processed in arrival order, so the first thing the client hears back must
// be the broadcast of the final, valid frame.
func TestEmptyAndMalformedFramesIgnored(t *testing.T) {
	_, _, ts := newTestServer(t, true, "lobby")

	conn := dialRoom(t, ts, "lobby")
	sendText(t, conn, "   ")
	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("failed to send: %v", err)
	}
	sendText(t, conn, "still here")

	env := readEnvelope(t, conn)
	if text, _ := env["text"].(string); text != "still here" {
		t.Errorf("first reply = %v, want the valid frame's broadcast", env)
	}
}

// TestLoginAndCreate verifies the admin path end to end: login with the
// configured pair, create a room, and get the already-exists outcome on the
// second attempt.
func TestLoginAndCreate(t *testing.T) {
	_, dir, ts := newTestServer(t, true, "lobby")

	conn := dialRoom(t, ts, "lobby")
	sendText(t, conn, ">login admin secret")
	readUntilText(t, conn, "Login successful")

	sendText(t, conn, ">create newroom")
	readUntilText(t, conn, "\"newroom\" created")
	if !dir.Exists("newroom") {
		t.Error("directory does not contain newroom")
	}

	sendText(t, conn, ">create newroom")
	readUntilText(t, conn, "already exists")
}

// TestCommandRejections verifies the reply-only failure modes: bad
// credentials, unauthorized, unknown, and empty commands.
func TestCommandRejections(t *testing.T) {
	_, _, ts := newTestServer(t, true, "lobby")

	conn := dialRoom(t, ts, "lobby")

	sendText(t, conn, ">login admin wrong")
	readUntilText(t, conn, "Login failed")

	sendText(t, conn, ">create sneaky")
	readUntilText(t, conn, "Unauthorized")

	sendText(t, conn, ">frobnicate now")
	readUntilText(t, conn, "Unknown command")

	sendText(t, conn, ">")
	readUntilText(t, conn, "Empty command")

	sendText(t, conn, ">login justone")
	readUntilText(t, conn, "Usage: >login")
}

// TestLoginDisabledWithoutCredentials verifies that login always fails when
// the credential pair is not configured.
func TestLoginDisabledWithoutCredentials(t *testing.T) {
	_, _, ts := newTestServer(t, false, "lobby")

	conn := dialRoom(t, ts, "lobby")
	sendText(t, conn, ">login admin secret")
	readUntilText(t, conn, "Login failed")
}

// TestWarn verifies room-scoped warning delivery, the count confirmation,
// and that zero matches produce no announcement.
func TestWarn(t *testing.T) {
	_, _, ts := newTestServer(t, true, "lobby")

	moderator := dialRoom(t, ts, "lobby")
	sendText(t, moderator, ">login admin secret")
	readUntilText(t, moderator, "Login successful")

	target := dialRoom(t, ts, "lobby")
	sendJoin(t, target, "bob")
	readUntilText(t, target, "Welcome, bob")

	sendText(t, moderator, ">warn bob settle down")
	readUntilText(t, target, "WARNING: settle down")
	readUntilText(t, moderator, "Warned 1 user(s)")
	readUntilText(t, moderator, "bob has been warned")

	sendText(t, moderator, ">warn ghost anyone home")
	readUntilText(t, moderator, "Warned 0 user(s)")
	expectSilence(t, moderator)
}

// TestKick verifies that a kick notifies and closes the target, removes its
// entry, announces the removal, and rebroadcasts presence.
func TestKick(t *testing.T) {
	hub, _, ts := newTestServer(t, true, "lobby")

	moderator := dialRoom(t, ts, "lobby")
	sendText(t, moderator, ">login admin secret")
	readUntilText(t, moderator, "Login successful")

	target := dialRoom(t, ts, "lobby")
	sendJoin(t, target, "bob")
	readUntilText(t, target, "Welcome, bob")

	sendText(t, moderator, ">kick bob spamming")
	readUntilText(t, target, "KICK")
	expectClosed(t, target)

	readUntilText(t, moderator, "Kicked 1 user(s)")
	readUntilText(t, moderator, "bob has been kicked: spamming")
	users := readUntilPresence(t, moderator)
	for _, u := range users {
		if m, _ := u.(map[string]any); m["name"] == "bob" {
			t.Error("presence still lists the kicked user")
		}
	}

	if got := len(hub.Registry().Snapshot("lobby")); got != 1 {
		t.Errorf("lobby size = %d, want 1", got)
	}

	sendText(t, moderator, ">kick bob again")
	readUntilText(t, moderator, "Kicked 0 user(s)")
	expectSilence(t, moderator)
}

// TestRoomsAPI verifies listing, credentialed creation, duplicate outcome,
// and credential rejection.
func TestRoomsAPI(t *testing.T) {
	_, dir, ts := newTestServer(t, true, "lobby")

	resp, err := http.Get(ts.URL + "/api/rooms")
	if err != nil {
		t.Fatalf("GET /api/rooms failed: %v", err)
	}
	var listing map[string][]string
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		t.Fatalf("failed to decode listing: %v", err)
	}
	_ = resp.Body.Close()
	if len(listing["rooms"]) != 1 || listing["rooms"][0] != "lobby" {
		t.Errorf("rooms = %v, want [lobby]", listing["rooms"])
	}

	create := func(body string) *http.Response {
		t.Helper()
		resp, err := http.Post(ts.URL+"/api/rooms", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("POST /api/rooms failed: %v", err)
		}
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	resp = create(`{"name":"den","user":"admin","pass":"secret"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create status = %d, want 200", resp.StatusCode)
	}
	var out createRoomResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode create response: %v", err)
	}
	if !out.Created || !dir.Exists("den") {
		t.Errorf("create response = %+v, directory has den = %v", out, dir.Exists("den"))
	}

	resp = create(`{"name":"den","user":"admin","pass":"secret"}`)
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode duplicate response: %v", err)
	}
	if out.Created {
		t.Error("duplicate create reported created=true")
	}

	resp = create(`{"name":"vault","user":"admin","pass":"nope"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad-credential status = %d, want 401", resp.StatusCode)
	}
}

// TestRoomsAPIDisabled verifies that room creation is off entirely when the
// credential pair is absent.
func TestRoomsAPIDisabled(t *testing.T) {
	_, _, ts := newTestServer(t, false, "lobby")

	resp, err := http.Post(ts.URL+"/api/rooms", "application/json",
		strings.NewReader(`{"name":"den","user":"x","pass":"y"}`))
	if err != nil {
		t.Fatalf("POST /api/rooms failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

// TestHealthEndpoint verifies the health check responds.
func TestHealthEndpoint(t *testing.T) {
	_, _, ts := newTestServer(t, true)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
