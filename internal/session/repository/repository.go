package repository

import (
	"context"
	"time"

	"commauth/internal/session/domain"
)

// Repository defines persistence for sessions. Every operation is a
// single atomic statement; the database row is the only concurrency
// primitive, so no caller-side locking is needed.
type Repository interface {
	// Create inserts a new session. Returns apperror.ErrSessionExists on
	// an attr_id collision; the existing row is left unmodified.
	Create(ctx context.Context, s *domain.Session) error
	// RegisterAuthResult sets the auth result where it is still unset.
	// Returns apperror.ErrNotFound when no row matched, which covers both
	// "unknown attr_id" and "already registered".
	RegisterAuthResult(ctx context.Context, attrID, authResult string) error
	// FindByRoomID returns every session in the room and refreshes each
	// one's last_activity in the same statement. Returns
	// apperror.ErrNotFound when the room has no sessions.
	FindByRoomID(ctx context.Context, roomID string) ([]domain.Session, error)
	// DeleteInactive removes sessions whose last_activity predates the
	// window. Idempotent and safe to run concurrently with anything.
	DeleteInactive(ctx context.Context, window time.Duration) (int64, error)
}
