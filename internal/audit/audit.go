// Package audit records session lifecycle events. Recording is
// best-effort: failures are logged and never affect the caller.
package audit

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/google/uuid"
)

// Actions recorded by the session lifecycle.
const (
	ActionSessionCreated       = "session_created"
	ActionAuthResultRegistered = "auth_result_registered"
	ActionRoomPolled           = "room_polled"
	ActionSessionsSwept        = "sessions_swept"
)

// Logger writes a single audit event, correlated by room and attr id
// where applicable.
type Logger interface {
	Record(ctx context.Context, action, roomID, attrID, detail string)
}

// DBLogger persists events to the audit_log table.
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger returns a Logger backed by the given database.
func NewDBLogger(db *sql.DB) *DBLogger {
	return &DBLogger{db: db}
}

// Record writes one audit log entry. Errors are logged and not returned.
func (l *DBLogger) Record(ctx context.Context, action, roomID, attrID, detail string) {
	if l.db == nil {
		return
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, action, room_id, attr_id, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), action, roomID, attrID, detail, time.Now().UTC(),
	)
	if err != nil {
		log.Printf("audit: failed to record %s: %v", action, err)
	}
}

// Nop discards all events. Used when auditing is disabled and in tests.
type Nop struct{}

// Record discards the event.
func (Nop) Record(context.Context, string, string, string, string) {}
