// Package model defines the wire-level data model shared between the
// room/server coordination layer and the websocket transport: emoji
// avatars, room codes, users, opaque SDP sessions, and the tagged
// union of signaling envelopes exchanged over the socket.
package model

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// Emoji identifies a single avatar by its hex codepoint id, e.g. "1F600".
type Emoji struct {
	ID string `json:"id"`
}

// CodeEntry wraps one Emoji as an element of a room Code.
type CodeEntry struct {
	Emoji Emoji `json:"emoji"`
}

// Code is the ordered, public identifier of a room. Two codes are
// equal iff their entry sequences are equal element-wise in order.
type Code struct {
	Entries []CodeEntry `json:"entries"`
}

// CanonicalCode is the hashable, comparable form of a Code used to key
// the Server's room registry. Built from the ordered entry ids so two
// Code values backed by different slice allocations but an equal
// sequence of ids canonicalize to the same value.
type CanonicalCode string

// Canonical returns the registry key for c.
func (c Code) Canonical() CanonicalCode {
	ids := make([]string, len(c.Entries))
	for i, e := range c.Entries {
		ids[i] = e.Emoji.ID
	}
	// \x1f (unit separator) can't appear in a hex codepoint id, so this
	// join can't collide between two differently-shaped entry lists.
	return CanonicalCode(strings.Join(ids, "\x1f"))
}

// Avatar is the single emoji assigned to a User, unique within a room.
type Avatar struct {
	Emoji Emoji `json:"emoji"`
}

// User is a room member: an opaque, collision-resistant id and its avatar.
type User struct {
	ID     string `json:"id"`
	Avatar Avatar `json:"avatar"`
}

// NewUserID returns a fresh, collision-resistant 128-bit id, hex-encoded.
// Backed by a random (v4) UUID's 16 raw bytes rather than its
// canonical dashed string form, to match the "32-hex" shape callers
// of connect() observe.
func NewUserID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// Session is an opaque WebRTC SDP blob. The server never inspects or
// mutates its contents.
type Session struct {
	Description string `json:"description"`
}
