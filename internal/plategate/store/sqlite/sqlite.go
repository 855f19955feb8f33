// Package sqlite implements the store contracts on SQLite. Reads go through
// *sql.DB directly; every write runs as one transaction on the db.Worker.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/BrandonDHaskell/plategate/internal/plategate/domain"
)

func toMs(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().UnixMilli()
}

func fromMs(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func ptrFromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// constraintCode returns the extended SQLite result code when err is a
// constraint violation, 0 otherwise.
func constraintCode(err error) int {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return 0
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE,
		sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY,
		sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY,
		sqlite3.SQLITE_CONSTRAINT_CHECK,
		sqlite3.SQLITE_CONSTRAINT_TRIGGER:
		return se.Code()
	}
	return 0
}

func isUniqueViolation(err error) bool {
	c := constraintCode(err)
	return c == sqlite3.SQLITE_CONSTRAINT_UNIQUE || c == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// storageErr classifies err for callers. Typed domain errors pass through;
// unique violations become conflicts; everything else is a storage error
// with op prepended for diagnosis.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	if isUniqueViolation(err) {
		msg := "duplicate value"
		switch {
		case strings.Contains(err.Error(), "vehicles.plate"):
			msg = "plate is already registered to another identity"
		case strings.Contains(err.Error(), "identities.username"):
			msg = "username is already taken"
		}
		return domain.ErrConflict.WithMessage(msg).WithError(fmt.Errorf("%s: %w", op, err))
	}
	return domain.ErrStorage.WithError(fmt.Errorf("%s: %w", op, err))
}
