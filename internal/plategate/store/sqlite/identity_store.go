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

type IdentityStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

var _ store.IdentityStore = (*IdentityStore)(nil)

func NewIdentityStore(db *sql.DB, writer *dbpkg.Worker) *IdentityStore {
	return &IdentityStore{db: db, writer: writer}
}

const identityColumns = `identity_id, display_name, occupation, role, username, credential_hash, created_at_ms, updated_at_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (store.Identity, error) {
	var (
		id                 store.Identity
		role               string
		username           sql.NullString
		hash               []byte
		createdMs, updated int64
	)
	if err := row.Scan(&id.ID, &id.DisplayName, &id.Occupation, &role, &username, &hash, &createdMs, &updated); err != nil {
		return store.Identity{}, err
	}
	id.Role = domain.ParseRole(role)
	id.Username = username.String
	id.CredentialHash = hash
	id.CreatedAt = fromMs(createdMs)
	id.UpdatedAt = fromMs(updated)
	return id, nil
}

func (s *IdentityStore) CreateIdentity(ctx context.Context, id store.Identity, plates []string) error {
	created := toMs(id.CreatedAt)
	updated := created
	if !id.UpdatedAt.IsZero() {
		updated = toMs(id.UpdatedAt)
	}

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO identities(`+identityColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`, id.ID, id.DisplayName, id.Occupation, string(id.Role), nullableText(id.Username), id.CredentialHash, created, updated); err != nil {
			return fmt.Errorf("CreateIdentity insert identity: %w", err)
		}

		for _, p := range plates {
			if err := insertVehicle(ctx, tx, id.ID, p, created); err != nil {
				return err
			}
		}
		return nil
	})
	return storageErr("CreateIdentity", err)
}

func insertVehicle(ctx context.Context, tx *sql.Tx, identityID, plate string, atMs int64) error {
	if plate == "" {
		return domain.ErrInvalidInput.WithMessage("plate is required")
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO vehicles(plate, identity_id, active, created_at_ms, updated_at_ms)
VALUES (?, ?, 1, ?, ?);
`, plate, identityID, atMs, atMs); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict.WithMessagef("plate %q is already registered to another identity", plate).WithError(err)
		}
		return fmt.Errorf("insert vehicle %s: %w", plate, err)
	}
	return nil
}

func identityExists(ctx context.Context, tx *sql.Tx, identityID string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM identities WHERE identity_id = ?;`, identityID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("identity lookup: %w", err)
	}
	return true, nil
}

func (s *IdentityStore) UpdateIdentity(ctx context.Context, identityID string, upd store.IdentityUpdate) error {
	atMs := toMs(upd.UpdatedAt)

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		ok, err := identityExists(ctx, tx, identityID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNotFound.WithMessagef("identity %s not found", identityID)
		}

		sets := []string{"updated_at_ms = ?"}
		args := []any{atMs}
		if upd.DisplayName != nil {
			sets = append(sets, "display_name = ?")
			args = append(args, *upd.DisplayName)
		}
		if upd.Occupation != nil {
			sets = append(sets, "occupation = ?")
			args = append(args, *upd.Occupation)
		}
		if upd.Role != nil {
			sets = append(sets, "role = ?")
			args = append(args, string(*upd.Role))
		}
		if upd.Username != nil {
			sets = append(sets, "username = ?")
			args = append(args, nullableText(*upd.Username))
		}
		if upd.CredentialHash != nil {
			sets = append(sets, "credential_hash = ?")
			args = append(args, upd.CredentialHash)
		}
		args = append(args, identityID)

		if _, err := tx.ExecContext(ctx,
			`UPDATE identities SET `+strings.Join(sets, ", ")+` WHERE identity_id = ?;`, args...,
		); err != nil {
			return fmt.Errorf("UpdateIdentity update identity: %w", err)
		}

		if upd.Plates == nil {
			return nil
		}
		return replacePlates(ctx, tx, identityID, *upd.Plates, atMs)
	})
	return storageErr("UpdateIdentity", err)
}

// replacePlates makes identityID own exactly plates. Must run inside the
// caller's transaction.
func replacePlates(ctx context.Context, tx *sql.Tx, identityID string, plates []string, atMs int64) error {
	rows, err := tx.QueryContext(ctx, `SELECT plate FROM vehicles WHERE identity_id = ?;`, identityID)
	if err != nil {
		return fmt.Errorf("replacePlates list: %w", err)
	}
	current := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return fmt.Errorf("replacePlates scan: %w", err)
		}
		current[p] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("replacePlates rows: %w", err)
	}
	rows.Close()

	want := make(map[string]struct{}, len(plates))
	for _, p := range plates {
		if _, dup := want[p]; dup {
			return domain.ErrConflict.WithMessagef("plate %q listed twice", p)
		}
		want[p] = struct{}{}
		if _, owned := current[p]; owned {
			continue
		}
		if err := insertVehicle(ctx, tx, identityID, p, atMs); err != nil {
			return err
		}
	}

	for p := range current {
		if _, keep := want[p]; keep {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM vehicles WHERE plate = ?;`, p); err != nil {
			return fmt.Errorf("replacePlates delete %s: %w", p, err)
		}
	}
	return nil
}

// DeleteIdentity removes the identity; its vehicles cascade and its access
// events keep their plate with identity_id set to NULL.
func (s *IdentityStore) DeleteIdentity(ctx context.Context, identityID string) error {
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM identities WHERE identity_id = ?;`, identityID)
		if err != nil {
			return fmt.Errorf("DeleteIdentity delete: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrNotFound.WithMessagef("identity %s not found", identityID)
		}
		return nil
	})
	return storageErr("DeleteIdentity", err)
}

func (s *IdentityStore) GetIdentity(ctx context.Context, identityID string) (store.Identity, error) {
	id, err := scanIdentity(s.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE identity_id = ?;`, identityID))
	if errors.Is(err, sql.ErrNoRows) {
		return store.Identity{}, domain.ErrNotFound.WithMessagef("identity %s not found", identityID)
	}
	if err != nil {
		return store.Identity{}, storageErr("GetIdentity", err)
	}
	if id.Vehicles, err = s.vehiclesOf(ctx, id.ID); err != nil {
		return store.Identity{}, err
	}
	return id, nil
}

func (s *IdentityStore) FindByUsername(ctx context.Context, username string) (store.Identity, error) {
	id, err := scanIdentity(s.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE username = ?;`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return store.Identity{}, domain.ErrNotFound.WithMessagef("username %q not found", username)
	}
	if err != nil {
		return store.Identity{}, storageErr("FindByUsername", err)
	}
	if id.Vehicles, err = s.vehiclesOf(ctx, id.ID); err != nil {
		return store.Identity{}, err
	}
	return id, nil
}

func (s *IdentityStore) ListIdentities(ctx context.Context) ([]store.Identity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+identityColumns+` FROM identities ORDER BY created_at_ms, identity_id;`)
	if err != nil {
		return nil, storageErr("ListIdentities", err)
	}
	defer rows.Close()

	var out []store.Identity
	index := make(map[string]int)
	for rows.Next() {
		id, err := scanIdentity(rows)
		if err != nil {
			return nil, storageErr("ListIdentities scan", err)
		}
		index[id.ID] = len(out)
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("ListIdentities rows", err)
	}
	rows.Close()

	vrows, err := s.db.QueryContext(ctx,
		`SELECT plate, identity_id, active, created_at_ms, updated_at_ms FROM vehicles ORDER BY plate;`)
	if err != nil {
		return nil, storageErr("ListIdentities vehicles", err)
	}
	defer vrows.Close()
	for vrows.Next() {
		v, err := scanVehicle(vrows)
		if err != nil {
			return nil, storageErr("ListIdentities vehicle scan", err)
		}
		if i, ok := index[v.IdentityID]; ok {
			out[i].Vehicles = append(out[i].Vehicles, v)
		}
	}
	if err := vrows.Err(); err != nil {
		return nil, storageErr("ListIdentities vehicle rows", err)
	}
	return out, nil
}

func scanVehicle(row rowScanner) (store.Vehicle, error) {
	var (
		v                  store.Vehicle
		active             int
		createdMs, updated int64
	)
	if err := row.Scan(&v.Plate, &v.IdentityID, &active, &createdMs, &updated); err != nil {
		return store.Vehicle{}, err
	}
	v.Active = active == 1
	v.CreatedAt = fromMs(createdMs)
	v.UpdatedAt = fromMs(updated)
	return v, nil
}

func (s *IdentityStore) vehiclesOf(ctx context.Context, identityID string) ([]store.Vehicle, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT plate, identity_id, active, created_at_ms, updated_at_ms
FROM vehicles WHERE identity_id = ? ORDER BY plate;`, identityID)
	if err != nil {
		return nil, storageErr("vehiclesOf", err)
	}
	defer rows.Close()

	var out []store.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, storageErr("vehiclesOf scan", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("vehiclesOf rows", err)
	}
	return out, nil
}

func (s *IdentityStore) AddVehicle(ctx context.Context, identityID, plate string, at time.Time) error {
	atMs := toMs(at)
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		ok, err := identityExists(ctx, tx, identityID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNotFound.WithMessagef("identity %s not found", identityID)
		}
		return insertVehicle(ctx, tx, identityID, plate, atMs)
	})
	return storageErr("AddVehicle", err)
}

func (s *IdentityStore) ReassignVehicle(ctx context.Context, plate, identityID string, at time.Time) error {
	atMs := toMs(at)
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		ok, err := identityExists(ctx, tx, identityID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNotFound.WithMessagef("identity %s not found", identityID)
		}

		res, err := tx.ExecContext(ctx, `
UPDATE vehicles SET identity_id = ?, updated_at_ms = ? WHERE plate = ?;`, identityID, atMs, plate)
		if err != nil {
			return fmt.Errorf("ReassignVehicle update: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrNotFound.WithMessagef("plate %q is not registered", plate)
		}
		return nil
	})
	return storageErr("ReassignVehicle", err)
}

func (s *IdentityStore) SetVehicleActive(ctx context.Context, plate string, active bool, at time.Time) error {
	atMs := toMs(at)
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE vehicles SET active = ?, updated_at_ms = ? WHERE plate = ?;`, boolInt(active), atMs, plate)
		if err != nil {
			return fmt.Errorf("SetVehicleActive update: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrNotFound.WithMessagef("plate %q is not registered", plate)
		}
		return nil
	})
	return storageErr("SetVehicleActive", err)
}

func (s *IdentityStore) RemoveVehicle(ctx context.Context, plate string) error {
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM vehicles WHERE plate = ?;`, plate)
		if err != nil {
			return fmt.Errorf("RemoveVehicle delete: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrNotFound.WithMessagef("plate %q is not registered", plate)
		}
		return nil
	})
	return storageErr("RemoveVehicle", err)
}

func (s *IdentityStore) FindByPlate(ctx context.Context, plate string) (store.IdentitySummary, bool, error) {
	var sum store.IdentitySummary
	err := s.db.QueryRowContext(ctx, `
SELECT i.identity_id, i.display_name, i.occupation
FROM vehicles v
JOIN identities i ON i.identity_id = v.identity_id
WHERE v.plate = ? AND v.active = 1;
`, plate).Scan(&sum.ID, &sum.DisplayName, &sum.Occupation)

	if errors.Is(err, sql.ErrNoRows) {
		return store.IdentitySummary{}, false, nil
	}
	if err != nil {
		return store.IdentitySummary{}, false, storageErr("FindByPlate", err)
	}
	return sum, true, nil
}
