package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/BrandonDHaskell/plategate/internal/plategate/domain"
	"github.com/BrandonDHaskell/plategate/internal/plategate/store"
	"github.com/BrandonDHaskell/plategate/internal/plategate/types"
)

const defaultAlertLimit = 50

type AlertService struct {
	alerts store.AlertStore
	logger *slog.Logger
	now    func() time.Time
}

func NewAlertService(alerts store.AlertStore, logger *slog.Logger) *AlertService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertService{
		alerts: alerts,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func NewAlertView(a store.Alert) types.AlertView {
	v := types.AlertView{
		ID:             a.ID,
		AccessEventID:  a.AccessEventID,
		Type:           a.Type,
		Message:        a.Message,
		CreatedAt:      a.CreatedAt,
		Acknowledged:   a.Acknowledged,
		AcknowledgedAt: a.AcknowledgedAt,
	}
	if a.AcknowledgedBy != nil {
		v.AcknowledgedBy = *a.AcknowledgedBy
	}
	return v
}

// ListOpen returns unacknowledged alerts, newest first.
func (s *AlertService) ListOpen(ctx context.Context, _ domain.Caller, limit int) ([]types.AlertView, error) {
	return s.list(ctx, true, limit)
}

func (s *AlertService) ListAll(ctx context.Context, _ domain.Caller, limit int) ([]types.AlertView, error) {
	return s.list(ctx, false, limit)
}

func (s *AlertService) list(ctx context.Context, onlyOpen bool, limit int) ([]types.AlertView, error) {
	if limit <= 0 {
		limit = defaultAlertLimit
	}
	as, err := s.alerts.ListAlerts(ctx, onlyOpen, limit)
	if err != nil {
		return nil, err
	}
	out := make([]types.AlertView, 0, len(as))
	for _, a := range as {
		out = append(out, NewAlertView(a))
	}
	return out, nil
}

// Acknowledge marks an alert as handled by caller. Acknowledging twice is a
// conflict.
func (s *AlertService) Acknowledge(ctx context.Context, caller domain.Caller, alertID int64) (types.AlertView, error) {
	if alertID <= 0 {
		return types.AlertView{}, domain.ErrInvalidInput.WithMessage("alert id must be positive")
	}
	a, err := s.alerts.AcknowledgeAlert(ctx, alertID, caller.IdentityID, s.now())
	if err != nil {
		return types.AlertView{}, err
	}
	s.logger.InfoContext(ctx, "alert acknowledged", "alert_id", alertID, "by", caller.IdentityID)
	return NewAlertView(a), nil
}
