// Package service implements the session lifecycle: creation,
// single-shot auth-result registration, room-scoped retrieval with
// keepalive, and the periodic expiry sweep.
package service

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"commauth/internal/apperror"
	"commauth/internal/audit"
	"commauth/internal/session/domain"
	"commauth/internal/session/repository"
	"commauth/internal/token"
)

// RetentionWindow is how long an idle session survives before the sweep
// may delete it.
const RetentionWindow = time.Hour

// Service coordinates session persistence and audit. It holds no state
// of its own: the database row is the concurrency primitive.
type Service struct {
	repo    repository.Repository
	auditor audit.Logger
}

// New returns a Service using the given repository and audit logger.
func New(repo repository.Repository, auditor audit.Logger) *Service {
	return &Service{repo: repo, auditor: auditor}
}

// Create mints a fresh attribute-correlation id, persists a session
// with no auth result, and returns it. A colliding attr_id surfaces as
// apperror.ErrSessionExists.
func (s *Service) Create(ctx context.Context, guest token.GuestToken, purpose string) (*domain.Session, error) {
	sess := domain.New(guest, uuid.New().String(), purpose)
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	s.auditor.Record(ctx, audit.ActionSessionCreated, guest.RoomID, sess.AttrID, "")
	return sess, nil
}

// RegisterAuthResult stores the opaque attribute bundle on the session
// with the given attr_id, once. apperror.ErrNotFound covers both an
// unknown attr_id and an already-registered session; callers must treat
// them identically.
func (s *Service) RegisterAuthResult(ctx context.Context, attrID, authResult string) error {
	if authResult == "" {
		return apperror.BadRequest("empty auth result")
	}
	if err := s.repo.RegisterAuthResult(ctx, attrID, authResult); err != nil {
		return err
	}
	s.auditor.Record(ctx, audit.ActionAuthResultRegistered, "", attrID, "")
	return nil
}

// FindByRoomID returns every session in the room; the read refreshes
// each session's last_activity as a keepalive.
func (s *Service) FindByRoomID(ctx context.Context, roomID string) ([]domain.Session, error) {
	sessions, err := s.repo.FindByRoomID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	s.auditor.Record(ctx, audit.ActionRoomPolled, roomID, "", strconv.Itoa(len(sessions))+" sessions")
	return sessions, nil
}

// DeleteInactive removes sessions idle beyond the retention window and
// returns how many were deleted.
func (s *Service) DeleteInactive(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteInactive(ctx, RetentionWindow)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.auditor.Record(ctx, audit.ActionSessionsSwept, "", "", strconv.FormatInt(n, 10)+" sessions")
	}
	return n, nil
}

// RunSweeper deletes stale sessions every interval until ctx is
// cancelled. Safe to run concurrently with any other operation.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.DeleteInactive(ctx)
			if err != nil {
				log.Printf("session sweep: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("session sweep: removed %d stale sessions", n)
			}
		}
	}
}
