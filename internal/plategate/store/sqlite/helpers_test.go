package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/BrandonDHaskell/plategate/internal/db"
	"github.com/BrandonDHaskell/plategate/internal/plategate/domain"
	"github.com/BrandonDHaskell/plategate/internal/plategate/store"
	sqlitestore "github.com/BrandonDHaskell/plategate/internal/plategate/store/sqlite"
)

// openTestDB returns an in-memory SQLite connection with the production
// PRAGMAs and schema. Closed automatically when the test finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf(
		"file:test_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		name,
	)

	conn, err := sql.Open("sqlite", dsn)
	require.NoError(t, err, "sql.Open")

	// Single connection, as in production.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: ping: %v", err)
	}
	if err := db.Migrate(context.Background(), conn); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: migrate: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestWriter returns a db.Worker backed by conn, closed when the test
// finishes (before the connection, cleanups run LIFO).
func newTestWriter(t *testing.T, conn *sql.DB) *db.Worker {
	t.Helper()

	w := db.NewWorker(conn)
	t.Cleanup(func() { w.Close() })
	return w
}

type testStores struct {
	conn       *sql.DB
	identities *sqlitestore.IdentityStore
	events     *sqlitestore.AccessEventStore
	alerts     *sqlitestore.AlertStore
}

func newStores(t *testing.T) testStores {
	t.Helper()
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	return testStores{
		conn:       conn,
		identities: sqlitestore.NewIdentityStore(conn, w),
		events:     sqlitestore.NewAccessEventStore(conn, w),
		alerts:     sqlitestore.NewAlertStore(conn, w),
	}
}

var baseTime = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func seedIdentity(t *testing.T, s testStores, id string, plates ...string) {
	t.Helper()
	err := s.identities.CreateIdentity(context.Background(), store.Identity{
		ID:          id,
		DisplayName: "Name " + id,
		Occupation:  "resident",
		Role:        domain.RoleStandard,
		CreatedAt:   baseTime,
	}, plates)
	require.NoError(t, err, "seed identity %s", id)
}

func appendEvent(t *testing.T, s testStores, plate string, identityID *string, at time.Time, authorized bool) store.AccessEvent {
	t.Helper()
	ev, err := s.events.Append(context.Background(), store.AccessEvent{
		Plate:      plate,
		IdentityID: identityID,
		OccurredAt: at,
		Authorized: authorized,
		Confidence: 1,
		Source:     domain.SourceManual,
	})
	require.NoError(t, err, "append event")
	return ev
}

func ptr[T any](v T) *T { return &v }
