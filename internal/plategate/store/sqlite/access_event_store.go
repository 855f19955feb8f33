package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/BrandonDHaskell/plategate/internal/db"
	"github.com/BrandonDHaskell/plategate/internal/plategate/domain"
	"github.com/BrandonDHaskell/plategate/internal/plategate/store"
)

type AccessEventStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

var _ store.AccessEventStore = (*AccessEventStore)(nil)

func NewAccessEventStore(db *sql.DB, writer *dbpkg.Worker) *AccessEventStore {
	return &AccessEventStore{db: db, writer: writer}
}

const eventSelect = `
SELECT e.event_id, e.plate, e.identity_id, e.occurred_at_ms, e.authorized,
       e.confidence, e.source, e.image_ref, e.note, e.recorded_by,
       i.display_name, i.occupation
FROM access_events e
LEFT JOIN identities i ON i.identity_id = e.identity_id`

func scanEvent(row rowScanner) (store.AccessEvent, error) {
	var (
		ev                          store.AccessEvent
		identityID                  sql.NullString
		occurredMs                  int64
		authorized                  int
		source                      string
		imageRef, note, recordedBy  sql.NullString
		displayName, occupationName sql.NullString
	)
	if err := row.Scan(
		&ev.ID, &ev.Plate, &identityID, &occurredMs, &authorized,
		&ev.Confidence, &source, &imageRef, &note, &recordedBy,
		&displayName, &occupationName,
	); err != nil {
		return store.AccessEvent{}, err
	}

	ev.IdentityID = ptrFromNull(identityID)
	ev.OccurredAt = fromMs(occurredMs)
	ev.Authorized = authorized == 1
	ev.Source = domain.Source(source)
	ev.ImageRef = ptrFromNull(imageRef)
	ev.Note = ptrFromNull(note)
	ev.RecordedBy = ptrFromNull(recordedBy)
	if identityID.Valid && displayName.Valid {
		ev.Identity = &store.IdentitySummary{
			ID:          identityID.String,
			DisplayName: displayName.String,
			Occupation:  occupationName.String,
		}
	}
	return ev, nil
}

// Append writes ev and returns it with its assigned ID. The clamp against the
// newest stored timestamp happens inside the same transaction, so ordering by
// time and ordering by ID never disagree.
func (s *AccessEventStore) Append(ctx context.Context, ev store.AccessEvent) (store.AccessEvent, error) {
	if ev.Plate == "" {
		return store.AccessEvent{}, domain.ErrInvalidInput.WithMessage("plate is required")
	}
	occurredMs := toMs(ev.OccurredAt)

	var out store.AccessEvent
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if ev.IdentityID != nil {
			ok, err := identityExists(ctx, tx, *ev.IdentityID)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrNotFound.WithMessagef("identity %s not found", *ev.IdentityID)
			}
		}

		var latest int64
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(occurred_at_ms), 0) FROM access_events;`,
		).Scan(&latest); err != nil {
			return fmt.Errorf("Append latest timestamp: %w", err)
		}
		ms := max(occurredMs, latest)

		res, err := tx.ExecContext(ctx, `
INSERT INTO access_events(
  plate, identity_id, occurred_at_ms, authorized, confidence, source,
  image_ref, note, recorded_by
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`,
			ev.Plate, nullString(ev.IdentityID), ms, boolInt(ev.Authorized), ev.Confidence,
			string(ev.Source), nullString(ev.ImageRef), nullString(ev.Note), nullString(ev.RecordedBy),
		)
		if err != nil {
			return fmt.Errorf("Append insert: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("Append last id: %w", err)
		}

		out, err = scanEvent(tx.QueryRowContext(ctx, eventSelect+` WHERE e.event_id = ?;`, id))
		if err != nil {
			return fmt.Errorf("Append read back: %w", err)
		}
		return nil
	})
	if err != nil {
		return store.AccessEvent{}, storageErr("Append", err)
	}
	return out, nil
}

func (s *AccessEventStore) Get(ctx context.Context, id int64) (store.AccessEvent, error) {
	ev, err := scanEvent(s.db.QueryRowContext(ctx, eventSelect+` WHERE e.event_id = ?;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return store.AccessEvent{}, domain.ErrNotFound.WithMessagef("access event %d not found", id)
	}
	if err != nil {
		return store.AccessEvent{}, storageErr("Get", err)
	}
	return ev, nil
}

func whereClause(f store.EventFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Plate != "" {
		conds = append(conds, "e.plate = ?")
		args = append(args, f.Plate)
	}
	if f.From != nil {
		conds = append(conds, "e.occurred_at_ms >= ?")
		args = append(args, f.From.UTC().UnixMilli())
	}
	if f.To != nil {
		conds = append(conds, "e.occurred_at_ms <= ?")
		args = append(args, f.To.UTC().UnixMilli())
	}
	if f.Before != nil {
		conds = append(conds, "e.occurred_at_ms < ?")
		args = append(args, f.Before.UTC().UnixMilli())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

const eventOrder = ` ORDER BY e.occurred_at_ms DESC, e.event_id DESC`

func (s *AccessEventStore) Query(ctx context.Context, f store.EventFilter, limit, offset int) ([]store.AccessEvent, int, error) {
	where, args := whereClause(f)

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM access_events e`+where+`;`, args...,
	).Scan(&total); err != nil {
		return nil, 0, storageErr("Query count", err)
	}
	if total == 0 || offset >= total {
		return []store.AccessEvent{}, total, nil
	}

	q := eventSelect + where + eventOrder
	if limit > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	} else if offset > 0 {
		q += ` LIMIT -1 OFFSET ?`
		args = append(args, offset)
	}

	evs, err := s.queryEvents(ctx, "Query", q+";", args...)
	if err != nil {
		return nil, 0, err
	}
	return evs, total, nil
}

func (s *AccessEventStore) List(ctx context.Context, f store.EventFilter) ([]store.AccessEvent, error) {
	where, args := whereClause(f)
	return s.queryEvents(ctx, "List", eventSelect+where+eventOrder+";", args...)
}

func (s *AccessEventStore) queryEvents(ctx context.Context, op, q string, args ...any) ([]store.AccessEvent, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	out := make([]store.AccessEvent, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, storageErr(op+" scan", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op+" rows", err)
	}
	return out, nil
}

func (s *AccessEventStore) DeniedPlates(ctx context.Context, since time.Time, minDenials int) ([]store.PlateDenials, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT plate, COUNT(*), MAX(event_id)
FROM access_events
WHERE authorized = 0 AND occurred_at_ms >= ?
GROUP BY plate
HAVING COUNT(*) >= ?
ORDER BY plate;
`, since.UTC().UnixMilli(), minDenials)
	if err != nil {
		return nil, storageErr("DeniedPlates", err)
	}
	defer rows.Close()

	var out []store.PlateDenials
	for rows.Next() {
		var d store.PlateDenials
		if err := rows.Scan(&d.Plate, &d.Denials, &d.LatestEventID); err != nil {
			return nil, storageErr("DeniedPlates scan", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("DeniedPlates rows", err)
	}
	return out, nil
}
