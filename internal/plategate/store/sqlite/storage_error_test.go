package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/plategate/internal/db"
	"github.com/BrandonDHaskell/plategate/internal/plategate/domain"
	"github.com/BrandonDHaskell/plategate/internal/plategate/store"
	sqlitestore "github.com/BrandonDHaskell/plategate/internal/plategate/store/sqlite"
)

// Driver failures surface as StorageError, never as a silent empty result.

func TestStorageError_ReadPath(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	w := db.NewWorker(conn)
	defer w.Close()

	mock.ExpectQuery(`SELECT i.identity_id`).WillReturnError(errors.New("disk I/O error"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM access_events`).WillReturnError(errors.New("disk I/O error"))

	ids := sqlitestore.NewIdentityStore(conn, w)
	_, found, err := ids.FindByPlate(context.Background(), "ABC123")
	assert.False(t, found)
	assert.Equal(t, domain.KindStorage, domain.KindOf(err))

	evs := sqlitestore.NewAccessEventStore(conn, w)
	_, _, err = evs.Query(context.Background(), store.EventFilter{}, 10, 0)
	assert.Equal(t, domain.KindStorage, domain.KindOf(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorageError_WritePathRollsBack(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	w := db.NewWorker(conn)
	defer w.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(occurred_at_ms\), 0\)`).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(int64(0)))
	mock.ExpectExec(`INSERT INTO access_events`).WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()

	evs := sqlitestore.NewAccessEventStore(conn, w)
	_, err = evs.Append(context.Background(), store.AccessEvent{
		Plate:  "ABC123",
		Source: domain.SourceManual,
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindStorage, domain.KindOf(err))
	assert.Contains(t, err.Error(), "database is locked")

	assert.NoError(t, mock.ExpectationsWereMet())
}
