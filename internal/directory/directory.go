// Package directory implements the durable room directory: the set of room
// names that connections are allowed to join. The set is backed by a JSON
// file on disk so that created rooms survive restarts. Names are normalized
// (trimmed, lowercased) before every lookup and insertion, and the store
// supports no deletion or rename.
package directory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrEmptyName is returned by Create when a room name normalizes to the
// empty string.
var ErrEmptyName = errors.New("room name is empty")

// Directory is a mutex-guarded set of room names persisted to a JSON file.
// It is safe for concurrent use.
type Directory struct {
	mu    sync.Mutex
	path  string
	rooms map[string]struct{}
}

// Normalize trims surrounding whitespace and lowercases a room name. Every
// public operation normalizes its input, so "Lobby " and "lobby" refer to
// the same room.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Open loads the directory from path. A missing file is not an error: the
// directory starts empty and the file is created on the first Create call.
func Open(path string) (*Directory, error) {
	d := &Directory{
		path:  path,
		rooms: make(map[string]struct{}),
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create rooms directory: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return d, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rooms file: %w", err)
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rooms file: %w", err)
	}
	for _, name := range names {
		if name = Normalize(name); name != "" {
			d.rooms[name] = struct{}{}
		}
	}
	return d, nil
}

// Exists reports whether a room with the given name has been created.
func (d *Directory) Exists(name string) bool {
	name = Normalize(name)

	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.rooms[name]
	return ok
}

// Create inserts the room if it is absent and persists the updated set. It
// returns false without an error when the room already exists; both outcomes
// are successes from the caller's perspective. A persistence failure rolls
// the insertion back.
func (d *Directory) Create(name string) (bool, error) {
	name = Normalize(name)
	if name == "" {
		return false, ErrEmptyName
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.rooms[name]; ok {
		return false, nil
	}
	d.rooms[name] = struct{}{}
	if err := d.persistLocked(); err != nil {
		delete(d.rooms, name)
		return false, err
	}
	return true, nil
}

// List returns the room names in lexicographic order.
func (d *Directory) List() []string {
	d.mu.Lock()
	names := d.namesLocked()
	d.mu.Unlock()
	return names
}

func (d *Directory) namesLocked() []string {
	names := make([]string, 0, len(d.rooms))
	for name := range d.rooms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d *Directory) persistLocked() error {
	data, err := json.MarshalIndent(d.namesLocked(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal rooms: %w", err)
	}
	if err := os.WriteFile(d.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write rooms file: %w", err)
	}
	return nil
}
