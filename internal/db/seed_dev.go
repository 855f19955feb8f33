package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/BrandonDHaskell/plategate/internal/plategate/plate"
)

type SeedOptions struct {
	AdminUsername string // default "admin"
	AdminPassword string // required; an empty password skips the admin seed

	// Dev only: a sample registered identity with these plates.
	SamplePlates []string
}

// SeedAdmin creates the bootstrap administrator if no identity with that
// username exists yet. Existing rows are never modified.
func SeedAdmin(ctx context.Context, db *sql.DB, opt SeedOptions) (bool, error) {
	if opt.AdminPassword == "" {
		return false, nil
	}
	username := strings.TrimSpace(opt.AdminUsername)
	if username == "" {
		username = "admin"
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(opt.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("hash admin password: %w", err)
	}

	now := time.Now().UTC().UnixMilli()
	res, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO identities(
  identity_id, display_name, occupation, role, username, credential_hash,
  created_at_ms, updated_at_ms
) VALUES (?, 'Administrator', 'admin', 'admin', ?, ?, ?, ?);`,
		uuid.NewString(), username, hash, now, now)
	if err != nil {
		return false, fmt.Errorf("seed admin: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SeedDev inserts a sample identity owning opt.SamplePlates. Plates that are
// already registered are left alone.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedOptions) error {
	if len(opt.SamplePlates) == 0 {
		return nil
	}
	now := time.Now().UTC().UnixMilli()
	const sampleID = "dev-resident"

	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO identities(
  identity_id, display_name, occupation, role, created_at_ms, updated_at_ms
) VALUES (?, 'Dev Resident', 'resident', 'standard', ?, ?);`, sampleID, now, now); err != nil {
		return fmt.Errorf("seed dev identity: %w", err)
	}

	for _, raw := range opt.SamplePlates {
		p := plate.Normalize(raw)
		if p == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO vehicles(plate, identity_id, active, created_at_ms, updated_at_ms)
VALUES (?, ?, 1, ?, ?);`, p, sampleID, now, now); err != nil {
			return fmt.Errorf("seed dev vehicle %s: %w", p, err)
		}
	}
	return nil
}
