package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"commauth/internal/apperror"
	"commauth/internal/session/domain"
	"commauth/internal/token"
)

// pgUniqueViolation is the Postgres SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the session. Insert-only: a duplicate attr_id fails
// closed with apperror.ErrSessionExists and never touches the original row.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO session (
			session_id, room_id, domain, redirect_url, purpose, name, instance, attr_id, auth_result, last_activity
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())`,
		s.GuestToken.ID,
		s.GuestToken.RoomID,
		string(s.GuestToken.Domain),
		s.GuestToken.RedirectURL,
		s.Purpose,
		s.GuestToken.Name,
		s.GuestToken.Instance,
		s.AttrID,
		nullString(s.AuthResult),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return apperror.ErrSessionExists
		}
		return fmt.Errorf("session create: %w", err)
	}
	return nil
}

// RegisterAuthResult performs the single conditional update that is the
// system's entire concurrency control: concurrent callbacks for the
// same attr_id race on this statement and the row-level atomicity of
// the engine guarantees exactly one winner. Losers observe ErrNotFound,
// indistinguishable from an unknown attr_id.
func (r *PostgresRepository) RegisterAuthResult(ctx context.Context, attrID, authResult string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE session
		 SET auth_result = $1, last_activity = now()
		 WHERE auth_result IS NULL AND attr_id = $2`,
		authResult, attrID,
	)
	if err != nil {
		return fmt.Errorf("session register auth result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("session register auth result: %w", err)
	}
	if n == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

// FindByRoomID returns every session in the room. The read doubles as a
// keepalive: last_activity is refreshed in the same atomic statement.
func (r *PostgresRepository) FindByRoomID(ctx context.Context, roomID string) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`UPDATE session
		 SET last_activity = now()
		 WHERE room_id = $1
		 RETURNING session_id, room_id, domain, redirect_url, purpose, name, instance, attr_id, auth_result, last_activity`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("session find by room: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var (
			s          domain.Session
			rawDomain  string
			authResult sql.NullString
		)
		if err := rows.Scan(
			&s.GuestToken.ID,
			&s.GuestToken.RoomID,
			&rawDomain,
			&s.GuestToken.RedirectURL,
			&s.Purpose,
			&s.GuestToken.Name,
			&s.GuestToken.Instance,
			&s.AttrID,
			&authResult,
			&s.LastActivity,
		); err != nil {
			return nil, fmt.Errorf("session scan: %w", err)
		}
		d, err := token.ParseDomain(rawDomain)
		if err != nil {
			return nil, fmt.Errorf("session scan: %w", err)
		}
		s.GuestToken.Domain = d
		s.AuthResult = authResult.String
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session find by room: %w", err)
	}
	if len(sessions) == 0 {
		return nil, apperror.ErrNotFound
	}
	return sessions, nil
}

// DeleteInactive removes sessions idle longer than window. The
// predicate is monotonic in time, so it needs no coordination with
// in-flight registrations.
func (r *PostgresRepository) DeleteInactive(ctx context.Context, window time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM session WHERE last_activity < now() - make_interval(secs => $1)`,
		window.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("session delete inactive: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("session delete inactive: %w", err)
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
