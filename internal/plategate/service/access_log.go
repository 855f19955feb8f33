package service

import (
	"context"

	"github.com/BrandonDHaskell/plategate/internal/plategate/domain"
	"github.com/BrandonDHaskell/plategate/internal/plategate/plate"
	"github.com/BrandonDHaskell/plategate/internal/plategate/store"
	"github.com/BrandonDHaskell/plategate/internal/plategate/types"
)

const DefaultMaxPageSize = 100

// AccessLog is the read side of the audit trail.
type AccessLog struct {
	events      store.AccessEventStore
	maxPageSize int
}

func NewAccessLog(events store.AccessEventStore, maxPageSize int) *AccessLog {
	if maxPageSize <= 0 {
		maxPageSize = DefaultMaxPageSize
	}
	return &AccessLog{events: events, maxPageSize: maxPageSize}
}

// List returns one page of events, newest first. page and pageSize are
// 1-based and must be positive; pageSize is clamped to the configured
// maximum.
func (l *AccessLog) List(ctx context.Context, _ domain.Caller, f store.EventFilter, page, pageSize int) (types.EventPage, error) {
	if page < 1 {
		return types.EventPage{}, domain.ErrInvalidInput.WithMessage("page must be a positive integer")
	}
	if pageSize < 1 {
		return types.EventPage{}, domain.ErrInvalidInput.WithMessage("page_size must be a positive integer")
	}
	pageSize = min(pageSize, l.maxPageSize)

	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return types.EventPage{}, domain.ErrInvalidInput.WithMessage("start is after end")
	}
	if f.From != nil && f.Before != nil && !f.From.Before(*f.Before) {
		return types.EventPage{}, domain.ErrInvalidInput.WithMessage("start is after end")
	}
	f.Plate = plate.Normalize(f.Plate)

	evs, total, err := l.events.Query(ctx, f, pageSize, (page-1)*pageSize)
	if err != nil {
		return types.EventPage{}, err
	}

	out := types.EventPage{
		Events:   make([]types.EventView, 0, len(evs)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Pages:    (total + pageSize - 1) / pageSize,
	}
	for _, ev := range evs {
		out.Events = append(out.Events, types.NewEventView(ev))
	}
	return out, nil
}

// Get returns a single event by ID.
func (l *AccessLog) Get(ctx context.Context, _ domain.Caller, id int64) (types.EventView, error) {
	ev, err := l.events.Get(ctx, id)
	if err != nil {
		return types.EventView{}, err
	}
	return types.NewEventView(ev), nil
}
