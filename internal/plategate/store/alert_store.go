package store

import (
	"context"
	"time"
)

const AlertRepeatedDenial = "repeated_denial"

// Alert annotates an AccessEvent. Only acknowledgment mutates it.
type Alert struct {
	ID             int64
	AccessEventID  int64
	Type           string
	Message        string
	CreatedAt      time.Time
	Acknowledged   bool
	AcknowledgedBy *string
	AcknowledgedAt *time.Time
}

type AlertStore interface {
	// CreateAlert fails with domain.ErrNotFound when the event is absent.
	CreateAlert(ctx context.Context, a Alert) (Alert, error)
	// AcknowledgeAlert fails with domain.ErrNotFound for an unknown alert and
	// domain.ErrConflict when it was already acknowledged.
	AcknowledgeAlert(ctx context.Context, alertID int64, by string, at time.Time) (Alert, error)
	ListAlerts(ctx context.Context, onlyOpen bool, limit int) ([]Alert, error)
	HasAlert(ctx context.Context, eventID int64, alertType string) (bool, error)
}
