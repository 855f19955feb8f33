package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/plategate/internal/plategate/domain"
)

// AccessEvent is one immutable audit record of an access attempt.
// Identity is populated on reads when IdentityID still resolves.
type AccessEvent struct {
	ID         int64
	Plate      string
	IdentityID *string
	Identity   *IdentitySummary
	OccurredAt time.Time
	Authorized bool
	Confidence float64
	Source     domain.Source
	ImageRef   *string
	Note       *string
	RecordedBy *string
}

// EventFilter selects events by exact plate and/or a time range. From and To
// are inclusive; Before is exclusive and is how whole days are bounded.
// Zero values mean "no constraint".
type EventFilter struct {
	Plate  string
	From   *time.Time
	To     *time.Time
	Before *time.Time
}

// AccessEventStore persists access decisions as an append-only audit log.
//
// Append assigns the event ID and may raise OccurredAt to the latest stored
// timestamp so that timestamps never decrease in insertion order.
// Query and List order by OccurredAt descending, ties by ID descending.
type AccessEventStore interface {
	Append(ctx context.Context, ev AccessEvent) (AccessEvent, error)
	Get(ctx context.Context, id int64) (AccessEvent, error)
	Query(ctx context.Context, f EventFilter, limit, offset int) ([]AccessEvent, int, error)
	List(ctx context.Context, f EventFilter) ([]AccessEvent, error)
	// DeniedPlates counts denials per plate since the given time, keeping
	// plates with at least minDenials.
	DeniedPlates(ctx context.Context, since time.Time, minDenials int) ([]PlateDenials, error)
}

// PlateDenials is the per-plate denial count used by the alert monitor.
type PlateDenials struct {
	Plate         string
	Denials       int
	LatestEventID int64
}
