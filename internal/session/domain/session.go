package domain

import (
	"time"

	"commauth/internal/token"
)

// Session tracks one guest's in-flight authentication within a room.
// It belongs to exactly one room; many sessions may share a room.
type Session struct {
	// GuestToken is the verified identity assertion this session was
	// started with.
	GuestToken token.GuestToken
	// AuthResult is the opaque signed+encrypted attribute bundle; empty
	// until the broker core's callback registers one. It transitions
	// empty -> non-empty at most once, never back.
	AuthResult string
	// AttrID is the globally unique attribute-correlation id and the
	// sole mutation key.
	AttrID string
	// Purpose is the session purpose.
	Purpose string
	// LastActivity is refreshed on write and on room reads; rows older
	// than the retention window are eligible for deletion at any time.
	LastActivity time.Time
}

// New returns a session for the given guest with no auth result yet.
func New(guestToken token.GuestToken, attrID, purpose string) *Session {
	return &Session{
		GuestToken: guestToken,
		AttrID:     attrID,
		Purpose:    purpose,
	}
}
