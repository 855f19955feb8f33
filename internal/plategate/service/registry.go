package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/BrandonDHaskell/plategate/internal/plategate/domain"
	"github.com/BrandonDHaskell/plategate/internal/plategate/plate"
	"github.com/BrandonDHaskell/plategate/internal/plategate/store"
)

// NewIdentity is the input to RegisterIdentity. Username and Password are
// optional, but one without the other is rejected.
type NewIdentity struct {
	DisplayName string
	Occupation  string
	Role        domain.Role
	Username    string
	Password    string
	Plates      []string
}

// IdentityChanges is a partial edit; nil fields are left untouched. A
// non-nil Plates replaces the whole plate set.
type IdentityChanges struct {
	DisplayName *string
	Occupation  *string
	Role        *domain.Role
	Username    *string
	Password    *string
	Plates      *[]string
}

// VehicleRegistry answers "who owns this plate" and owns every registry
// mutation. Plates are normalized here before they reach the store.
type VehicleRegistry struct {
	store  store.IdentityStore
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

type RegistryOption func(*VehicleRegistry)

func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *VehicleRegistry) { r.now = now }
}

func WithIDGenerator(fn func() string) RegistryOption {
	return func(r *VehicleRegistry) { r.newID = fn }
}

func NewVehicleRegistry(st store.IdentityStore, logger *slog.Logger, opts ...RegistryOption) *VehicleRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &VehicleRegistry{
		store:  st,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// FindByPlate reports the owner of an active vehicle with the given plate.
// An empty plate is simply not found.
func (r *VehicleRegistry) FindByPlate(ctx context.Context, raw string) (store.IdentitySummary, bool, error) {
	p := plate.Normalize(raw)
	if p == "" {
		return store.IdentitySummary{}, false, nil
	}
	return r.store.FindByPlate(ctx, p)
}

func normalizePlates(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, s := range raw {
		p := plate.Normalize(s)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			return nil, domain.ErrConflict.WithMessagef("plate %q listed twice", p)
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

func hashPassword(pw string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.ErrInvalidInput.WithMessage("password cannot be used").WithError(err)
	}
	return hash, nil
}

func (r *VehicleRegistry) RegisterIdentity(ctx context.Context, caller domain.Caller, n NewIdentity) (store.Identity, error) {
	name := strings.TrimSpace(n.DisplayName)
	occupation := strings.TrimSpace(n.Occupation)
	username := strings.TrimSpace(n.Username)

	if name == "" {
		return store.Identity{}, domain.ErrInvalidInput.WithMessage("name is required")
	}
	if occupation == "" {
		return store.Identity{}, domain.ErrInvalidInput.WithMessage("occupation is required")
	}
	role := n.Role
	if role == "" {
		role = domain.RoleStandard
	}
	if !role.Valid() {
		return store.Identity{}, domain.ErrInvalidInput.WithMessagef("unknown role %q", n.Role)
	}
	if (username == "") != (n.Password == "") {
		return store.Identity{}, domain.ErrInvalidInput.WithMessage("username and password must be set together")
	}

	plates, err := normalizePlates(n.Plates)
	if err != nil {
		return store.Identity{}, err
	}

	now := r.now()
	id := store.Identity{
		ID:          r.newID(),
		DisplayName: name,
		Occupation:  occupation,
		Role:        role,
		Username:    username,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if n.Password != "" {
		if id.CredentialHash, err = hashPassword(n.Password); err != nil {
			return store.Identity{}, err
		}
	}

	if err := r.store.CreateIdentity(ctx, id, plates); err != nil {
		return store.Identity{}, err
	}
	r.logger.InfoContext(ctx, "identity registered",
		"identity_id", id.ID, "plates", len(plates), "by", caller.IdentityID)

	return r.store.GetIdentity(ctx, id.ID)
}

func (r *VehicleRegistry) UpdateIdentity(ctx context.Context, caller domain.Caller, identityID string, ch IdentityChanges) (store.Identity, error) {
	upd := store.IdentityUpdate{UpdatedAt: r.now()}

	if ch.DisplayName != nil {
		name := strings.TrimSpace(*ch.DisplayName)
		if name == "" {
			return store.Identity{}, domain.ErrInvalidInput.WithMessage("name cannot be empty")
		}
		upd.DisplayName = &name
	}
	if ch.Occupation != nil {
		occ := strings.TrimSpace(*ch.Occupation)
		if occ == "" {
			return store.Identity{}, domain.ErrInvalidInput.WithMessage("occupation cannot be empty")
		}
		upd.Occupation = &occ
	}
	if ch.Role != nil {
		if !ch.Role.Valid() {
			return store.Identity{}, domain.ErrInvalidInput.WithMessagef("unknown role %q", *ch.Role)
		}
		role := *ch.Role
		upd.Role = &role
	}
	if ch.Username != nil {
		u := strings.TrimSpace(*ch.Username)
		upd.Username = &u
	}
	if ch.Password != nil && *ch.Password != "" {
		hash, err := hashPassword(*ch.Password)
		if err != nil {
			return store.Identity{}, err
		}
		upd.CredentialHash = hash
	}
	if ch.Plates != nil {
		plates, err := normalizePlates(*ch.Plates)
		if err != nil {
			return store.Identity{}, err
		}
		upd.Plates = &plates
	}

	if err := r.store.UpdateIdentity(ctx, identityID, upd); err != nil {
		return store.Identity{}, err
	}
	r.logger.InfoContext(ctx, "identity updated", "identity_id", identityID, "by", caller.IdentityID)

	return r.store.GetIdentity(ctx, identityID)
}

// DeleteIdentity removes an identity and its vehicles. Past access events
// keep their plate but lose the identity link.
func (r *VehicleRegistry) DeleteIdentity(ctx context.Context, caller domain.Caller, identityID string) error {
	if identityID == "" {
		return domain.ErrInvalidInput.WithMessage("identity id is required")
	}
	if caller.IdentityID != "" && caller.IdentityID == identityID {
		return domain.ErrInvalidInput.WithMessage("an identity cannot delete itself")
	}
	if err := r.store.DeleteIdentity(ctx, identityID); err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "identity deleted", "identity_id", identityID, "by", caller.IdentityID)
	return nil
}

func (r *VehicleRegistry) GetIdentity(ctx context.Context, identityID string) (store.Identity, error) {
	return r.store.GetIdentity(ctx, identityID)
}

func (r *VehicleRegistry) ListIdentities(ctx context.Context) ([]store.Identity, error) {
	return r.store.ListIdentities(ctx)
}

func requirePlate(raw string) (string, error) {
	p := plate.Normalize(raw)
	if p == "" {
		return "", domain.ErrInvalidInput.WithMessage("plate is required")
	}
	return p, nil
}

func (r *VehicleRegistry) AddVehicle(ctx context.Context, caller domain.Caller, identityID, rawPlate string) error {
	p, err := requirePlate(rawPlate)
	if err != nil {
		return err
	}
	if err := r.store.AddVehicle(ctx, identityID, p, r.now()); err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "vehicle added", "plate", p, "identity_id", identityID, "by", caller.IdentityID)
	return nil
}

// ReassignVehicle moves a registered plate to another identity.
func (r *VehicleRegistry) ReassignVehicle(ctx context.Context, caller domain.Caller, rawPlate, toIdentityID string) error {
	p, err := requirePlate(rawPlate)
	if err != nil {
		return err
	}
	if err := r.store.ReassignVehicle(ctx, p, toIdentityID, r.now()); err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "vehicle reassigned", "plate", p, "identity_id", toIdentityID, "by", caller.IdentityID)
	return nil
}

func (r *VehicleRegistry) SetVehicleActive(ctx context.Context, caller domain.Caller, rawPlate string, active bool) error {
	p, err := requirePlate(rawPlate)
	if err != nil {
		return err
	}
	if err := r.store.SetVehicleActive(ctx, p, active, r.now()); err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "vehicle status changed", "plate", p, "active", active, "by", caller.IdentityID)
	return nil
}

func (r *VehicleRegistry) RemoveVehicle(ctx context.Context, caller domain.Caller, rawPlate string) error {
	p, err := requirePlate(rawPlate)
	if err != nil {
		return err
	}
	if err := r.store.RemoveVehicle(ctx, p); err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "vehicle removed", "plate", p, "by", caller.IdentityID)
	return nil
}

var errBadCredentials = domain.ErrInvalidInput.WithMessage("invalid username or password")

// Authenticate checks a username/password pair and returns the caller it
// identifies. Unknown users and wrong passwords fail the same way.
func (r *VehicleRegistry) Authenticate(ctx context.Context, username, password string) (domain.Caller, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.Caller{}, errBadCredentials
	}

	id, err := r.store.FindByUsername(ctx, username)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Caller{}, errBadCredentials
	}
	if err != nil {
		return domain.Caller{}, err
	}
	if len(id.CredentialHash) == 0 {
		return domain.Caller{}, errBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(id.CredentialHash, []byte(password)); err != nil {
		return domain.Caller{}, errBadCredentials
	}
	return domain.Caller{IdentityID: id.ID, Role: id.Role}, nil
}
