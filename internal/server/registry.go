// Package server coordinates room membership through the connection
// registry: the in-memory table of active connections bucketed by room.
package server

import (
	"strings"
	"sync"
)

// Registry maps room names to their active connection entries. One mutex
// serializes bucket membership, the global username-uniqueness claim, and
// the open/closed state of each entry's send channel; every check-then-act
// sequence the protocol depends on runs under it.
//
// Buckets preserve insertion order, which only matters as the fan-out
// iteration order. A room key exists if and only if its bucket holds at
// least one entry.
type Registry struct {
	mu    sync.Mutex
	rooms map[string][]*Entry
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string][]*Entry)}
}

// Add appends the entry to its room bucket, creating the bucket on first use.
func (r *Registry) Add(e *Entry) {
	r.mu.Lock()
	r.rooms[e.room] = append(r.rooms[e.room], e)
	r.mu.Unlock()
}

// Remove deletes the entry from its room bucket and reaps the bucket when it
// empties. It marks the entry closed so no further send can reach its channel
// and reports whether the entry was still registered; the caller that gets
// true owns closing the send channel, so the close happens exactly once.
func (r *Registry) Remove(e *Entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.rooms[e.room]
	if !ok {
		return false
	}
	for i, cur := range bucket {
		if cur != e {
			continue
		}
		bucket = append(bucket[:i], bucket[i+1:]...)
		if len(bucket) == 0 {
			delete(r.rooms, e.room)
		} else {
			r.rooms[e.room] = bucket
		}
		e.closed = true
		return true
	}
	return false
}

// Snapshot returns a copy of a room's bucket so callers can iterate it
// outside the lock while removals proceed concurrently.
func (r *Registry) Snapshot(room string) []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket := r.rooms[room]
	out := make([]*Entry, len(bucket))
	copy(out, bucket)
	return out
}

// AllEntries returns a copy of every registered entry across all rooms.
func (r *Registry) AllEntries() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Entry
	for _, bucket := range r.rooms {
		out = append(out, bucket...)
	}
	return out
}

// RoomCount returns the number of rooms with at least one active entry.
func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// ClaimUsername atomically verifies that no active entry in any room holds
// name under case-insensitive comparison and assigns it to e. The check and
// the assignment share the registry lock, so two concurrent claims for the
// same name cannot both succeed. Claiming fails as well when e is already
// named or no longer registered.
func (r *Registry) ClaimUsername(e *Entry, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.closed || e.Username() != "" {
		return false
	}
	for _, bucket := range r.rooms {
		for _, cur := range bucket {
			if other := cur.Username(); other != "" && strings.EqualFold(other, name) {
				return false
			}
		}
	}
	e.setUsername(name)
	return true
}

// MatchInRoom returns the entries in room whose username matches name
// case-insensitively. Moderation commands are room-scoped on purpose, even
// though username uniqueness is global.
func (r *Registry) MatchInRoom(room, name string) []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Entry
	for _, cur := range r.rooms[room] {
		if user := cur.Username(); user != "" && strings.EqualFold(user, name) {
			out = append(out, cur)
		}
	}
	return out
}

// Presence returns the named members of room with their admin flags, in
// bucket order.
func (r *Registry) Presence(room string) []UserStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []UserStatus
	for _, cur := range r.rooms[room] {
		if user := cur.Username(); user != "" {
			out = append(out, UserStatus{Name: user, IsAdmin: cur.IsAdmin()})
		}
	}
	return out
}

// Send enqueues payload on the entry's send channel without blocking. It
// returns false when the entry has been removed, its channel was closed, or
// its buffer is full; the caller treats false as a transport failure scoped
// to this recipient.
func (r *Registry) Send(e *Entry, payload []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.closed {
		return false
	}
	select {
	case e.send <- payload:
		return true
	default:
		return false
	}
}
