// Package server implements the connection hub and message-routing core of
// the chat relay.
//
// The implementation is organized into specialized files: the connection
// registry and entries, the hub that orchestrates connect/message/disconnect,
// session and command handling, envelope encoding, configuration, and the
// HTTP surface (websocket upgrades, the chat page, and the rooms API).
package server
