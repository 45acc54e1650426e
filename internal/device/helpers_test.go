package device

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/nerrad567/rfcontrol-core/internal/infrastructure/database"
	_ "github.com/nerrad567/rfcontrol-core/migrations" // registers the schema
)

// setupTestDB opens a migrated SQLite database in a temp directory.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "devices.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // Test cleanup
	})

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db.DB
}

// setupRegistry returns a registry over a fresh database with the default
// types plus a stub type registered as TypeID 99.
func setupRegistry(t *testing.T, stub *stubProfileType) (*Registry, *sql.DB) {
	t.Helper()

	db := setupTestDB(t)
	types := DefaultTypeRegistry()
	if stub != nil {
		types.MustRegister(stubTypeID, stub)
	}
	return NewRegistry(NewSQLiteRepository(db, types), types), db
}

func countRows(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()

	var n int
	if err := db.QueryRowContext(context.Background(), query, args...).Scan(&n); err != nil {
		t.Fatalf("count query %q error = %v", query, err)
	}
	return n
}

const stubTypeID TypeID = 99

var errStub = errors.New("stub failure")

// stubProfile is a second profile variant used to exercise the extension point.
type stubProfile struct {
	deviceID string
	channel  int
}

func (s *stubProfile) Variant() Variant { return "stub" }
func (s *stubProfile) DeviceID() string { return s.deviceID }
func (s *stubProfile) Fields() []Field  { return []Field{{Name: "radio_channel", Value: s.channel}} }
func (s *stubProfile) Command(action string) any {
	return map[string]any{"channel": s.channel, "action": action}
}

// stubProfileType stores nothing; its failure hooks drive rollback tests.
type stubProfileType struct {
	insertErr error
	deleteErr error
}

func (stubProfileType) Variant() Variant { return "stub" }

func (stubProfileType) Decode(deviceID string, _ []byte) (Profile, error) {
	return &stubProfile{deviceID: deviceID, channel: 7}, nil
}

func (stubProfileType) Load(context.Context, Querier, string) (Profile, error) {
	return nil, ErrProfileNotFound
}

func (s stubProfileType) Insert(context.Context, Querier, Profile) error { return s.insertErr }

func (s stubProfileType) DeleteByDevice(context.Context, Querier, string) error { return s.deleteErr }
