package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/BrandonDHaskell/plategate/internal/plategate/domain"
	"github.com/BrandonDHaskell/plategate/internal/plategate/store"
)

func (s *Store) CreateIdentity(_ context.Context, id store.Identity, plates []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.identities[id.ID]; ok {
		return domain.ErrConflict.WithMessagef("identity %s already exists", id.ID)
	}
	if id.Username != "" {
		if _, ok := s.byUsername[id.Username]; ok {
			return domain.ErrConflict.WithMessagef("username %q is already taken", id.Username)
		}
	}
	if err := s.checkPlatesFree(plates, ""); err != nil {
		return err
	}

	id.CreatedAt = nowIfZero(id.CreatedAt)
	if id.UpdatedAt.IsZero() {
		id.UpdatedAt = id.CreatedAt
	}
	id.Vehicles = nil
	s.identities[id.ID] = &id
	if id.Username != "" {
		s.byUsername[id.Username] = id.ID
	}
	for _, p := range plates {
		s.vehicles[p] = &store.Vehicle{
			Plate:      p,
			IdentityID: id.ID,
			Active:     true,
			CreatedAt:  id.CreatedAt,
			UpdatedAt:  id.CreatedAt,
		}
	}
	return nil
}

// checkPlatesFree validates a plate set before any mutation. Plates already
// owned by owner are allowed.
func (s *Store) checkPlatesFree(plates []string, owner string) error {
	seen := make(map[string]struct{}, len(plates))
	for _, p := range plates {
		if p == "" {
			return domain.ErrInvalidInput.WithMessage("plate is required")
		}
		if _, dup := seen[p]; dup {
			return domain.ErrConflict.WithMessagef("plate %q listed twice", p)
		}
		seen[p] = struct{}{}
		if v, ok := s.vehicles[p]; ok && v.IdentityID != owner {
			return domain.ErrConflict.WithMessagef("plate %q is already registered to another identity", p)
		}
	}
	return nil
}

func (s *Store) UpdateIdentity(_ context.Context, identityID string, upd store.IdentityUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.identities[identityID]
	if !ok {
		return domain.ErrNotFound.WithMessagef("identity %s not found", identityID)
	}
	if upd.Username != nil && *upd.Username != "" && *upd.Username != cur.Username {
		if _, taken := s.byUsername[*upd.Username]; taken {
			return domain.ErrConflict.WithMessagef("username %q is already taken", *upd.Username)
		}
	}
	if upd.Plates != nil {
		if err := s.checkPlatesFree(*upd.Plates, identityID); err != nil {
			return err
		}
	}

	at := nowIfZero(upd.UpdatedAt)
	if upd.DisplayName != nil {
		cur.DisplayName = *upd.DisplayName
	}
	if upd.Occupation != nil {
		cur.Occupation = *upd.Occupation
	}
	if upd.Role != nil {
		cur.Role = *upd.Role
	}
	if upd.Username != nil && *upd.Username != cur.Username {
		delete(s.byUsername, cur.Username)
		cur.Username = *upd.Username
		if cur.Username != "" {
			s.byUsername[cur.Username] = identityID
		}
	}
	if upd.CredentialHash != nil {
		cur.CredentialHash = upd.CredentialHash
	}
	cur.UpdatedAt = at

	if upd.Plates != nil {
		keep := make(map[string]struct{}, len(*upd.Plates))
		for _, p := range *upd.Plates {
			keep[p] = struct{}{}
			if _, exists := s.vehicles[p]; !exists {
				s.vehicles[p] = &store.Vehicle{Plate: p, IdentityID: identityID, Active: true, CreatedAt: at, UpdatedAt: at}
			}
		}
		for p, v := range s.vehicles {
			if v.IdentityID != identityID {
				continue
			}
			if _, ok := keep[p]; !ok {
				delete(s.vehicles, p)
			}
		}
	}
	return nil
}

func (s *Store) DeleteIdentity(_ context.Context, identityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.identities[identityID]
	if !ok {
		return domain.ErrNotFound.WithMessagef("identity %s not found", identityID)
	}
	for p, v := range s.vehicles {
		if v.IdentityID == identityID {
			delete(s.vehicles, p)
		}
	}
	// Events survive as audit artifacts; only the reference is cleared.
	for i := range s.events {
		if s.events[i].IdentityID != nil && *s.events[i].IdentityID == identityID {
			s.events[i].IdentityID = nil
		}
	}
	for i := range s.alerts {
		if s.alerts[i].AcknowledgedBy != nil && *s.alerts[i].AcknowledgedBy == identityID {
			s.alerts[i].AcknowledgedBy = nil
		}
	}
	if cur.Username != "" {
		delete(s.byUsername, cur.Username)
	}
	delete(s.identities, identityID)
	return nil
}

func (s *Store) GetIdentity(_ context.Context, identityID string) (store.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cur, ok := s.identities[identityID]
	if !ok {
		return store.Identity{}, domain.ErrNotFound.WithMessagef("identity %s not found", identityID)
	}
	return s.withVehicles(*cur), nil
}

func (s *Store) FindByUsername(_ context.Context, username string) (store.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return store.Identity{}, domain.ErrNotFound.WithMessagef("username %q not found", username)
	}
	return s.withVehicles(*s.identities[id]), nil
}

func (s *Store) ListIdentities(_ context.Context) ([]store.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Identity, 0, len(s.identities))
	for _, cur := range s.identities {
		out = append(out, s.withVehicles(*cur))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// withVehicles must be called with s.mu held.
func (s *Store) withVehicles(id store.Identity) store.Identity {
	id.Vehicles = nil
	for _, v := range s.vehicles {
		if v.IdentityID == id.ID {
			id.Vehicles = append(id.Vehicles, *v)
		}
	}
	sort.Slice(id.Vehicles, func(i, j int) bool { return id.Vehicles[i].Plate < id.Vehicles[j].Plate })
	id.CredentialHash = append([]byte(nil), id.CredentialHash...)
	return id
}

func (s *Store) AddVehicle(_ context.Context, identityID, plate string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.identities[identityID]; !ok {
		return domain.ErrNotFound.WithMessagef("identity %s not found", identityID)
	}
	if _, ok := s.vehicles[plate]; ok {
		return domain.ErrConflict.WithMessagef("plate %q is already registered", plate)
	}
	at = nowIfZero(at)
	s.vehicles[plate] = &store.Vehicle{Plate: plate, IdentityID: identityID, Active: true, CreatedAt: at, UpdatedAt: at}
	return nil
}

func (s *Store) ReassignVehicle(_ context.Context, plate, identityID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vehicles[plate]
	if !ok {
		return domain.ErrNotFound.WithMessagef("plate %q is not registered", plate)
	}
	if _, ok := s.identities[identityID]; !ok {
		return domain.ErrNotFound.WithMessagef("identity %s not found", identityID)
	}
	v.IdentityID = identityID
	v.UpdatedAt = nowIfZero(at)
	return nil
}

func (s *Store) SetVehicleActive(_ context.Context, plate string, active bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vehicles[plate]
	if !ok {
		return domain.ErrNotFound.WithMessagef("plate %q is not registered", plate)
	}
	v.Active = active
	v.UpdatedAt = nowIfZero(at)
	return nil
}

func (s *Store) RemoveVehicle(_ context.Context, plate string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vehicles[plate]; !ok {
		return domain.ErrNotFound.WithMessagef("plate %q is not registered", plate)
	}
	delete(s.vehicles, plate)
	return nil
}

func (s *Store) FindByPlate(_ context.Context, plate string) (store.IdentitySummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vehicles[strings.TrimSpace(plate)]
	if !ok || !v.Active {
		return store.IdentitySummary{}, false, nil
	}
	owner, ok := s.identities[v.IdentityID]
	if !ok {
		return store.IdentitySummary{}, false, nil
	}
	return owner.Summary(), true, nil
}
