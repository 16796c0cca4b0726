// Package server exposes the rooms HTTP API: listing the room directory and
// admin-credentialed room creation.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// RoomsAPI serves /api/rooms on top of the room directory. Creation requires
// the configured admin credential pair and is disabled entirely when the pair
// is absent.
type RoomsAPI struct {
	log   *slog.Logger
	rooms RoomDirectory
}

// NewRoomsAPI creates the rooms API handler set.
func NewRoomsAPI(log *slog.Logger, rooms RoomDirectory) *RoomsAPI {
	return &RoomsAPI{log: log, rooms: rooms}
}

type createRoomRequest struct {
	Name string `json:"name"`
	User string `json:"user"`
	Pass string `json:"pass"`
}

type createRoomResponse struct {
	Name    string `json:"name"`
	Created bool   `json:"created"`
}

// List returns the sorted room names.
func (a *RoomsAPI) List(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string][]string{"rooms": a.rooms.List()})
}

// Create registers a new room. "Already exists" is reported as created=false
// with status 200, matching the create command's semantics.
func (a *RoomsAPI) Create(w http.ResponseWriter, r *http.Request) {
	adminUser, adminPass, configured := adminCredentials()
	if !configured {
		http.Error(w, "room creation is disabled", http.StatusServiceUnavailable)
		return
	}

	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if req.User != adminUser || req.Pass != adminPass {
		a.log.Warn("rejected room creation with bad credentials", "remote", r.RemoteAddr)
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if req.Name == "" {
		http.Error(w, "room name required", http.StatusBadRequest)
		return
	}

	created, err := a.rooms.Create(req.Name)
	if err != nil {
		a.log.Error("room creation failed", "room", req.Name, "err", err)
		http.Error(w, "could not create room", http.StatusInternalServerError)
		return
	}

	a.log.Info("room created via api", "room", req.Name, "created", created)
	writeJSON(w, createRoomResponse{Name: req.Name, Created: created})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
