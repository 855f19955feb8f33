package memory

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/plategate/internal/plategate/domain"
	"github.com/BrandonDHaskell/plategate/internal/plategate/store"
)

func (s *Store) CreateAlert(_ context.Context, a store.Alert) (store.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for _, ev := range s.events {
		if ev.ID == a.AccessEventID {
			found = true
			break
		}
	}
	if !found {
		return store.Alert{}, domain.ErrNotFound.WithMessagef("access event %d not found", a.AccessEventID)
	}

	a.ID = s.nextAlertID
	s.nextAlertID++
	a.CreatedAt = nowIfZero(a.CreatedAt)
	a.Acknowledged = false
	a.AcknowledgedBy = nil
	a.AcknowledgedAt = nil
	s.alerts = append(s.alerts, a)
	return a, nil
}

func (s *Store) AcknowledgeAlert(_ context.Context, alertID int64, by string, at time.Time) (store.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		a := &s.alerts[i]
		if a.ID != alertID {
			continue
		}
		if a.Acknowledged {
			return store.Alert{}, domain.ErrConflict.WithMessagef("alert %d is already acknowledged", alertID)
		}
		at = nowIfZero(at)
		a.Acknowledged = true
		a.AcknowledgedAt = &at
		// Unknown identities are not recorded, matching the SQL foreign key.
		if _, ok := s.identities[by]; ok {
			a.AcknowledgedBy = strPtr(by)
		}
		return *a, nil
	}
	return store.Alert{}, domain.ErrNotFound.WithMessagef("alert %d not found", alertID)
}

func (s *Store) ListAlerts(_ context.Context, onlyOpen bool, limit int) ([]store.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Alert, 0)
	for i := len(s.alerts) - 1; i >= 0; i-- {
		if onlyOpen && s.alerts[i].Acknowledged {
			continue
		}
		out = append(out, s.alerts[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) HasAlert(_ context.Context, eventID int64, alertType string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.alerts {
		if a.AccessEventID == eventID && a.Type == alertType {
			return true, nil
		}
	}
	return false, nil
}
