package memory

import (
	"context"
	"sort"
	"time"

	"github.com/BrandonDHaskell/plategate/internal/plategate/domain"
	"github.com/BrandonDHaskell/plategate/internal/plategate/store"
)

func (s *Store) Append(_ context.Context, ev store.AccessEvent) (store.AccessEvent, error) {
	if ev.Plate == "" {
		return store.AccessEvent{}, domain.ErrInvalidInput.WithMessage("plate is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.IdentityID != nil {
		if _, ok := s.identities[*ev.IdentityID]; !ok {
			return store.AccessEvent{}, domain.ErrNotFound.WithMessagef("identity %s not found", *ev.IdentityID)
		}
	}

	ev.OccurredAt = nowIfZero(ev.OccurredAt)
	if n := len(s.events); n > 0 && ev.OccurredAt.Before(s.events[n-1].OccurredAt) {
		ev.OccurredAt = s.events[n-1].OccurredAt
	}
	ev.ID = s.nextEventID
	s.nextEventID++
	ev.Identity = nil
	s.events = append(s.events, ev)

	return s.resolve(ev), nil
}

func (s *Store) Get(_ context.Context, id int64) (store.AccessEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ev := range s.events {
		if ev.ID == id {
			return s.resolve(ev), nil
		}
	}
	return store.AccessEvent{}, domain.ErrNotFound.WithMessagef("access event %d not found", id)
}

func (s *Store) Query(_ context.Context, f store.EventFilter, limit, offset int) ([]store.AccessEvent, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.filter(f)
	total := len(matched)
	if offset >= total {
		return []store.AccessEvent{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (s *Store) List(_ context.Context, f store.EventFilter) ([]store.AccessEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(f), nil
}

func (s *Store) DeniedPlates(_ context.Context, since time.Time, minDenials int) ([]store.PlateDenials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agg := make(map[string]*store.PlateDenials)
	for _, ev := range s.events {
		if ev.Authorized || ev.OccurredAt.Before(since) {
			continue
		}
		pd, ok := agg[ev.Plate]
		if !ok {
			pd = &store.PlateDenials{Plate: ev.Plate}
			agg[ev.Plate] = pd
		}
		pd.Denials++
		if ev.ID > pd.LatestEventID {
			pd.LatestEventID = ev.ID
		}
	}

	out := make([]store.PlateDenials, 0, len(agg))
	for _, pd := range agg {
		if pd.Denials >= minDenials {
			out = append(out, *pd)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Plate < out[j].Plate })
	return out, nil
}

// filter must be called with s.mu held. Result is newest first.
func (s *Store) filter(f store.EventFilter) []store.AccessEvent {
	out := make([]store.AccessEvent, 0)
	for i := len(s.events) - 1; i >= 0; i-- {
		ev := s.events[i]
		if f.Plate != "" && ev.Plate != f.Plate {
			continue
		}
		if f.From != nil && ev.OccurredAt.Before(*f.From) {
			continue
		}
		if f.To != nil && ev.OccurredAt.After(*f.To) {
			continue
		}
		if f.Before != nil && !ev.OccurredAt.Before(*f.Before) {
			continue
		}
		out = append(out, s.resolve(ev))
	}
	// Insertion order already implies non-decreasing time; the stable sort
	// keeps ID-descending ties intact.
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	return out
}

// resolve must be called with s.mu held.
func (s *Store) resolve(ev store.AccessEvent) store.AccessEvent {
	ev.Identity = nil
	if ev.IdentityID != nil {
		if owner, ok := s.identities[*ev.IdentityID]; ok {
			sum := owner.Summary()
			ev.Identity = &sum
		}
	}
	return ev
}

// Events returns a copy of all recorded events in insertion order.
// Test-only helper.
func (s *Store) Events() []store.AccessEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.AccessEvent, len(s.events))
	for i, ev := range s.events {
		out[i] = s.resolve(ev)
	}
	return out
}
