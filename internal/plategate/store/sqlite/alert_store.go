package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/plategate/internal/db"
	"github.com/BrandonDHaskell/plategate/internal/plategate/domain"
	"github.com/BrandonDHaskell/plategate/internal/plategate/store"
)

type AlertStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

var _ store.AlertStore = (*AlertStore)(nil)

func NewAlertStore(db *sql.DB, writer *dbpkg.Worker) *AlertStore {
	return &AlertStore{db: db, writer: writer}
}

const alertSelect = `
SELECT alert_id, access_event_id, alert_type, message, created_at_ms,
       acknowledged, acknowledged_by, acknowledged_at_ms
FROM alerts`

func scanAlert(row rowScanner) (store.Alert, error) {
	var (
		a         store.Alert
		createdMs int64
		acked     int
		by        sql.NullString
		atMs      sql.NullInt64
	)
	if err := row.Scan(&a.ID, &a.AccessEventID, &a.Type, &a.Message, &createdMs, &acked, &by, &atMs); err != nil {
		return store.Alert{}, err
	}
	a.CreatedAt = fromMs(createdMs)
	a.Acknowledged = acked == 1
	a.AcknowledgedBy = ptrFromNull(by)
	if atMs.Valid {
		t := fromMs(atMs.Int64)
		a.AcknowledgedAt = &t
	}
	return a, nil
}

func (s *AlertStore) CreateAlert(ctx context.Context, a store.Alert) (store.Alert, error) {
	createdMs := toMs(a.CreatedAt)

	var out store.Alert
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM access_events WHERE event_id = ?;`, a.AccessEventID,
		).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound.WithMessagef("access event %d not found", a.AccessEventID)
		}
		if err != nil {
			return fmt.Errorf("CreateAlert event lookup: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
INSERT INTO alerts(access_event_id, alert_type, message, created_at_ms)
VALUES (?, ?, ?, ?);`, a.AccessEventID, a.Type, a.Message, createdMs)
		if err != nil {
			return fmt.Errorf("CreateAlert insert: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("CreateAlert last id: %w", err)
		}

		out = store.Alert{
			ID:            id,
			AccessEventID: a.AccessEventID,
			Type:          a.Type,
			Message:       a.Message,
			CreatedAt:     fromMs(createdMs),
		}
		return nil
	})
	if err != nil {
		return store.Alert{}, storageErr("CreateAlert", err)
	}
	return out, nil
}

func (s *AlertStore) AcknowledgeAlert(ctx context.Context, alertID int64, by string, at time.Time) (store.Alert, error) {
	atMs := toMs(at)

	var out store.Alert
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		a, err := scanAlert(tx.QueryRowContext(ctx, alertSelect+` WHERE alert_id = ?;`, alertID))
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound.WithMessagef("alert %d not found", alertID)
		}
		if err != nil {
			return fmt.Errorf("AcknowledgeAlert lookup: %w", err)
		}
		if a.Acknowledged {
			return domain.ErrConflict.WithMessagef("alert %d is already acknowledged", alertID)
		}

		// acknowledged_by is a foreign key; unknown callers are stored as NULL.
		if _, err := tx.ExecContext(ctx, `
UPDATE alerts
SET acknowledged = 1,
    acknowledged_by = (SELECT identity_id FROM identities WHERE identity_id = ?),
    acknowledged_at_ms = ?
WHERE alert_id = ?;`, by, atMs, alertID); err != nil {
			return fmt.Errorf("AcknowledgeAlert update: %w", err)
		}

		out, err = scanAlert(tx.QueryRowContext(ctx, alertSelect+` WHERE alert_id = ?;`, alertID))
		if err != nil {
			return fmt.Errorf("AcknowledgeAlert read back: %w", err)
		}
		return nil
	})
	if err != nil {
		return store.Alert{}, storageErr("AcknowledgeAlert", err)
	}
	return out, nil
}

func (s *AlertStore) ListAlerts(ctx context.Context, onlyOpen bool, limit int) ([]store.Alert, error) {
	q := alertSelect
	var args []any
	if onlyOpen {
		q += ` WHERE acknowledged = 0`
	}
	q += ` ORDER BY alert_id DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q+";", args...)
	if err != nil {
		return nil, storageErr("ListAlerts", err)
	}
	defer rows.Close()

	out := make([]store.Alert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, storageErr("ListAlerts scan", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("ListAlerts rows", err)
	}
	return out, nil
}

func (s *AlertStore) HasAlert(ctx context.Context, eventID int64, alertType string) (bool, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, `
SELECT EXISTS(SELECT 1 FROM alerts WHERE access_event_id = ? AND alert_type = ?);`,
		eventID, alertType,
	).Scan(&exists); err != nil {
		return false, storageErr("HasAlert", err)
	}
	return exists == 1, nil
}
