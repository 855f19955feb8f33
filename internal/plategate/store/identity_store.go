package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/plategate/internal/plategate/domain"
)

// Identity is a registered person together with the vehicles it owns.
type Identity struct {
	ID             string
	DisplayName    string
	Occupation     string
	Role           domain.Role
	Username       string // empty when the identity cannot log in
	CredentialHash []byte // bcrypt; nil when Username is empty
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Vehicles       []Vehicle
}

// IdentitySummary is the slice of an Identity that verdicts, event
// listings and reports carry around.
type IdentitySummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
	Occupation  string `json:"occupation"`
}

func (i Identity) Summary() IdentitySummary {
	return IdentitySummary{ID: i.ID, DisplayName: i.DisplayName, Occupation: i.Occupation}
}

type Vehicle struct {
	Plate      string
	IdentityID string
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IdentityUpdate carries a partial edit. Nil fields are left untouched.
// A non-nil Plates replaces the identity's whole plate set; plates it no
// longer lists are unlinked.
type IdentityUpdate struct {
	DisplayName    *string
	Occupation     *string
	Role           *domain.Role
	Username       *string
	CredentialHash []byte
	Plates         *[]string
	UpdatedAt      time.Time
}

// IdentityStore owns identities and their vehicles. Every mutating method
// is all-or-nothing; a duplicate plate fails with domain.ErrConflict and
// leaves the registry unchanged. Plates are expected to be normalized.
type IdentityStore interface {
	CreateIdentity(ctx context.Context, id Identity, plates []string) error
	UpdateIdentity(ctx context.Context, identityID string, upd IdentityUpdate) error
	DeleteIdentity(ctx context.Context, identityID string) error
	GetIdentity(ctx context.Context, identityID string) (Identity, error)
	FindByUsername(ctx context.Context, username string) (Identity, error)
	ListIdentities(ctx context.Context) ([]Identity, error)

	AddVehicle(ctx context.Context, identityID, plate string, at time.Time) error
	ReassignVehicle(ctx context.Context, plate, identityID string, at time.Time) error
	SetVehicleActive(ctx context.Context, plate string, active bool, at time.Time) error
	RemoveVehicle(ctx context.Context, plate string) error

	// FindByPlate is a point lookup on the unique plate index. It reports
	// found=false when no active vehicle carries plate.
	FindByPlate(ctx context.Context, plate string) (IdentitySummary, bool, error)
}
