package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"

	"commauth/internal/apperror"
	"commauth/internal/db"
	"commauth/internal/db/migrate"
	"commauth/internal/session/domain"
	"commauth/internal/token"
)

var testDB *sql.DB

func TestMain(m *testing.M) {
	const (
		port     = 5433
		user     = "commauth"
		password = "commauth_test"
		database = "commauth_test"
	)

	runtimeDir, err := os.MkdirTemp("", "commauth-pg-*")
	if err != nil {
		log.Printf("temp dir: %v", err)
		os.Exit(1)
	}
	defer os.RemoveAll(runtimeDir)

	pg := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			RuntimePath(filepath.Join(runtimeDir, "runtime")).
			DataPath(filepath.Join(runtimeDir, "data")),
	)
	if err := pg.Start(); err != nil {
		log.Printf("skipping repository tests, embedded postgres unavailable: %v", err)
		os.Exit(0)
	}

	dsn := fmt.Sprintf("postgres://%s:%s@localhost:%d/%s?sslmode=disable", user, password, port, database)
	if err := migrate.Run(dsn, "up"); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Printf("migrate: %v", err)
		pg.Stop()
		os.Exit(1)
	}

	testDB, err = db.Open(dsn)
	if err != nil {
		log.Printf("open: %v", err)
		pg.Stop()
		os.Exit(1)
	}

	code := m.Run()

	testDB.Close()
	if err := pg.Stop(); err != nil {
		log.Printf("embedded postgres stop: %v", err)
	}
	os.RemoveAll(runtimeDir)
	os.Exit(code)
}

func newGuestToken(roomID string) token.GuestToken {
	return token.GuestToken{
		ID:          "guest-id",
		Domain:      token.DomainGuest,
		RedirectURL: "https://widget.example.com",
		Name:        "Guest",
		RoomID:      roomID,
		Instance:    "https://platform.example.com",
	}
}

func mustCreate(t *testing.T, repo *PostgresRepository, roomID, attrID string) *domain.Session {
	t.Helper()
	sess := domain.New(newGuestToken(roomID), attrID, "meeting")
	if err := repo.Create(context.Background(), sess); err != nil {
		t.Fatalf("Create(%s) error = %v", attrID, err)
	}
	return sess
}

func TestCreateAndFindByRoomID(t *testing.T) {
	repo := NewPostgresRepository(testDB)
	room := "room-create-" + t.Name()

	created := mustCreate(t, repo, room, "attr-create-1")
	mustCreate(t, repo, room, "attr-create-2")

	sessions, err := repo.FindByRoomID(context.Background(), room)
	if err != nil {
		t.Fatalf("FindByRoomID() error = %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}
	for _, got := range sessions {
		if got.AttrID != created.AttrID {
			continue
		}
		if got.GuestToken.Name != "Guest" || got.GuestToken.Domain != token.DomainGuest {
			t.Fatalf("round-tripped guest token = %+v", got.GuestToken)
		}
		if got.AuthResult != "" {
			t.Fatalf("fresh session auth result = %q, want empty", got.AuthResult)
		}
		if got.Purpose != "meeting" {
			t.Fatalf("purpose = %q, want meeting", got.Purpose)
		}
	}
}

func TestCreateDuplicateAttrIDKeepsOriginal(t *testing.T) {
	repo := NewPostgresRepository(testDB)
	room := "room-dup"

	mustCreate(t, repo, room, "attr-dup")

	dup := domain.New(newGuestToken("room-dup-other"), "attr-dup", "other")
	err := repo.Create(context.Background(), dup)
	if !errors.Is(err, apperror.ErrSessionExists) {
		t.Fatalf("Create() duplicate error = %v, want ErrSessionExists", err)
	}

	sessions, err := repo.FindByRoomID(context.Background(), room)
	if err != nil {
		t.Fatalf("FindByRoomID() error = %v", err)
	}
	if len(sessions) != 1 || sessions[0].Purpose != "meeting" {
		t.Fatal("original session must survive a duplicate create")
	}
}

func TestRegisterAuthResultExactlyOnce(t *testing.T) {
	repo := NewPostgresRepository(testDB)
	mustCreate(t, repo, "room-once", "attr-once")

	if err := repo.RegisterAuthResult(context.Background(), "attr-once", "first-blob"); err != nil {
		t.Fatalf("first RegisterAuthResult() error = %v", err)
	}

	err := repo.RegisterAuthResult(context.Background(), "attr-once", "second-blob")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("second RegisterAuthResult() error = %v, want ErrNotFound", err)
	}

	sessions, err := repo.FindByRoomID(context.Background(), "room-once")
	if err != nil {
		t.Fatalf("FindByRoomID() error = %v", err)
	}
	if len(sessions) != 1 || sessions[0].AuthResult != "first-blob" {
		t.Fatalf("auth result = %q, want first-blob", sessions[0].AuthResult)
	}
}

func TestRegisterAuthResultUnknownAttrID(t *testing.T) {
	repo := NewPostgresRepository(testDB)

	err := repo.RegisterAuthResult(context.Background(), "attr-never-created", "blob")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("RegisterAuthResult() error = %v, want ErrNotFound", err)
	}
}

func TestRegisterAuthResultSingleWinnerUnderContention(t *testing.T) {
	repo := NewPostgresRepository(testDB)
	mustCreate(t, repo, "room-race", "attr-race")

	const writers = 8
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.RegisterAuthResult(context.Background(), "attr-race", fmt.Sprintf("blob-%d", i))
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, apperror.ErrNotFound):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
}

func TestFindByRoomIDRefreshesLastActivity(t *testing.T) {
	repo := NewPostgresRepository(testDB)
	sess := mustCreate(t, repo, "room-keepalive", "attr-keepalive")

	// Backdate the session, then confirm a room poll brings it forward.
	if _, err := testDB.Exec(
		`UPDATE session SET last_activity = now() - interval '2 hours' WHERE attr_id = $1`, sess.AttrID,
	); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	if _, err := repo.FindByRoomID(context.Background(), "room-keepalive"); err != nil {
		t.Fatalf("FindByRoomID() error = %v", err)
	}

	var age time.Duration
	var seconds float64
	if err := testDB.QueryRow(
		`SELECT extract(epoch FROM now() - last_activity) FROM session WHERE attr_id = $1`, sess.AttrID,
	).Scan(&seconds); err != nil {
		t.Fatalf("read last_activity: %v", err)
	}
	age = time.Duration(seconds * float64(time.Second))
	if age > time.Minute {
		t.Fatalf("last_activity age = %v, want refreshed", age)
	}
}

func TestFindByRoomIDEmptyRoom(t *testing.T) {
	repo := NewPostgresRepository(testDB)

	_, err := repo.FindByRoomID(context.Background(), "room-that-never-was")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("FindByRoomID() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteInactiveOnlyRemovesStaleSessions(t *testing.T) {
	repo := NewPostgresRepository(testDB)
	stale := mustCreate(t, repo, "room-sweep", "attr-sweep-stale")
	mustCreate(t, repo, "room-sweep", "attr-sweep-fresh")

	if _, err := testDB.Exec(
		`UPDATE session SET last_activity = now() - interval '3 hours' WHERE attr_id = $1`, stale.AttrID,
	); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	n, err := repo.DeleteInactive(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("DeleteInactive() error = %v", err)
	}
	if n < 1 {
		t.Fatalf("deleted = %d, want at least 1", n)
	}

	sessions, err := repo.FindByRoomID(context.Background(), "room-sweep")
	if err != nil {
		t.Fatalf("FindByRoomID() error = %v", err)
	}
	if len(sessions) != 1 || sessions[0].AttrID != "attr-sweep-fresh" {
		t.Fatal("fresh session must survive the sweep")
	}
}
