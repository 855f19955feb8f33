package httpapi

import (
	"net/http"
	"strings"

	"github.com/BrandonDHaskell/plategate/internal/plategate/domain"
	"github.com/BrandonDHaskell/plategate/internal/plategate/service"
	"github.com/BrandonDHaskell/plategate/internal/plategate/store"
	"github.com/BrandonDHaskell/plategate/internal/plategate/types"
)

func newIdentityView(id store.Identity) types.IdentityView {
	v := types.IdentityView{
		ID:          id.ID,
		DisplayName: id.DisplayName,
		Occupation:  id.Occupation,
		Role:        string(id.Role),
		Username:    id.Username,
		Vehicles:    make([]types.VehicleView, 0, len(id.Vehicles)),
		CreatedAt:   id.CreatedAt,
		UpdatedAt:   id.UpdatedAt,
	}
	for _, veh := range id.Vehicles {
		v.Vehicles = append(v.Vehicles, types.VehicleView{Plate: veh.Plate, Active: veh.Active})
	}
	return v
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func roleFrom(p *string) *domain.Role {
	if p == nil {
		return nil
	}
	r := domain.Role(strings.ToLower(strings.TrimSpace(*p)))
	return &r
}

// ── Identities ───────────────────────────────────────────────────────────────

func (s *Server) handleListIdentities(w http.ResponseWriter, r *http.Request, _ domain.Caller) {
	ids, err := s.registry.ListIdentities(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	out := make([]types.IdentityView, 0, len(ids))
	for _, id := range ids {
		out = append(out, newIdentityView(id))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateIdentity(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	var req types.IdentityRequest
	if err := decodeJSON(r, maxJSONBody, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	n := service.NewIdentity{
		DisplayName: deref(req.DisplayName),
		Occupation:  deref(req.Occupation),
		Username:    deref(req.Username),
		Password:    deref(req.Password),
	}
	if role := roleFrom(req.Role); role != nil {
		n.Role = *role
	}
	if req.Plates != nil {
		n.Plates = *req.Plates
	}

	id, err := s.registry.RegisterIdentity(r.Context(), caller, n)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newIdentityView(id))
}

func (s *Server) handleGetIdentity(w http.ResponseWriter, r *http.Request, _ domain.Caller) {
	id, err := s.registry.GetIdentity(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newIdentityView(id))
}

func (s *Server) handleUpdateIdentity(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	var req types.IdentityRequest
	if err := decodeJSON(r, maxJSONBody, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	id, err := s.registry.UpdateIdentity(r.Context(), caller, r.PathValue("id"), service.IdentityChanges{
		DisplayName: req.DisplayName,
		Occupation:  req.Occupation,
		Role:        roleFrom(req.Role),
		Username:    req.Username,
		Password:    req.Password,
		Plates:      req.Plates,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newIdentityView(id))
}

func (s *Server) handleDeleteIdentity(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	if err := s.registry.DeleteIdentity(r.Context(), caller, r.PathValue("id")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Vehicles ─────────────────────────────────────────────────────────────────

type vehicleRequest struct {
	Plate      string `json:"plate,omitempty"`
	IdentityID string `json:"identity_id,omitempty"`
	Active     *bool  `json:"active,omitempty"`
}

func (s *Server) handleAddVehicle(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	var req vehicleRequest
	if err := decodeJSON(r, maxJSONBody, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	identityID := r.PathValue("id")
	if err := s.registry.AddVehicle(r.Context(), caller, identityID, req.Plate); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeIdentity(w, r, http.StatusCreated, identityID)
}

func (s *Server) handleReassignVehicle(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	var req vehicleRequest
	if err := decodeJSON(r, maxJSONBody, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if req.IdentityID == "" {
		s.writeDomainError(w, r, domain.ErrInvalidInput.WithMessage("identity_id is required"))
		return
	}
	if err := s.registry.ReassignVehicle(r.Context(), caller, r.PathValue("plate"), req.IdentityID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeIdentity(w, r, http.StatusOK, req.IdentityID)
}

func (s *Server) handleSetVehicleActive(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	var req vehicleRequest
	if err := decodeJSON(r, maxJSONBody, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if req.Active == nil {
		s.writeDomainError(w, r, domain.ErrInvalidInput.WithMessage("active is required"))
		return
	}
	if err := s.registry.SetVehicleActive(r.Context(), caller, r.PathValue("plate"), *req.Active); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveVehicle(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	if err := s.registry.RemoveVehicle(r.Context(), caller, r.PathValue("plate")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeIdentity(w http.ResponseWriter, r *http.Request, status int, identityID string) {
	id, err := s.registry.GetIdentity(r.Context(), identityID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, status, newIdentityView(id))
}

// ── Credentials ──────────────────────────────────────────────────────────────

type authenticateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authenticateResponse struct {
	IdentityID string `json:"identity_id"`
	Role       string `json:"role"`
}

// handleAuthenticate lets the fronting login layer verify a credential and
// learn the caller identity it should attribute subsequent requests to.
func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req authenticateRequest
	if err := decodeJSON(r, maxJSONBody, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	caller, err := s.registry.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if domain.KindOf(err) == domain.KindInvalidInput {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid username or password")
			return
		}
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authenticateResponse{IdentityID: caller.IdentityID, Role: string(caller.Role)})
}
