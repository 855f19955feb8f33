package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BrandonDHaskell/plategate/internal/plategate/store"
	"github.com/BrandonDHaskell/plategate/internal/telemetry"
)

// DenialMonitor periodically looks for plates that were denied repeatedly
// within a sliding window and raises one alert on the latest denied event.
// It runs as a background goroutine and is stopped via its context or Stop.
//
// A threshold of 0 disables the monitor.
type DenialMonitor struct {
	events    store.AccessEventStore
	alerts    store.AlertStore
	threshold int
	window    time.Duration
	interval  time.Duration
	now       func() time.Time
	logger    *slog.Logger

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

type MonitorConfig struct {
	// Denials is how many denials inside Window trigger an alert. 0 disables.
	Denials int
	// Window defaults to 10 minutes.
	Window time.Duration
	// Interval defaults to 1 minute.
	Interval time.Duration
	Clock    func() time.Time
}

// NewDenialMonitor creates a monitor but does not start it.
func NewDenialMonitor(events store.AccessEventStore, alerts store.AlertStore, cfg MonitorConfig, logger *slog.Logger) *DenialMonitor {
	if cfg.Window <= 0 {
		cfg.Window = 10 * time.Minute
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &DenialMonitor{
		events:    events,
		alerts:    alerts,
		threshold: cfg.Denials,
		window:    cfg.Window,
		interval:  cfg.Interval,
		now:       cfg.Clock,
		logger:    logger,
		done:      make(chan struct{}),
	}
	if m.threshold <= 0 {
		// disabled: there is no loop to wait for
		close(m.done)
	}
	return m
}

// Start runs one scan immediately, then one per interval, until ctx is
// cancelled or Stop is called.
func (m *DenialMonitor) Start(ctx context.Context) {
	if m.threshold <= 0 {
		m.logger.Info("denial monitor disabled (threshold=0)")
		return
	}

	ctx, m.cancel = context.WithCancel(ctx)
	go m.loop(ctx)

	m.logger.Info("denial monitor started",
		"threshold", m.threshold, "window", m.window.String(), "interval", m.interval.String())
}

// Stop signals the monitor to exit and waits for it. Safe to call more than
// once.
func (m *DenialMonitor) Stop() {
	m.stopOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
	})
	if m.cancel == nil && m.threshold > 0 {
		// never started
		return
	}
	<-m.done
}

func (m *DenialMonitor) loop(ctx context.Context) {
	defer close(m.done)

	if _, err := m.Scan(ctx); err != nil {
		m.logger.Error("denial scan failed", "error", err)
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Scan(ctx); err != nil && ctx.Err() == nil {
				m.logger.Error("denial scan failed", "error", err)
			}
		}
	}
}

// Scan raises alerts for the current window and returns how many were
// created. Events that already carry a repeated-denial alert are skipped.
func (m *DenialMonitor) Scan(ctx context.Context) (int, error) {
	if m.threshold <= 0 {
		return 0, nil
	}
	since := m.now().Add(-m.window)
	offenders, err := m.events.DeniedPlates(ctx, since, m.threshold)
	if err != nil {
		return 0, err
	}

	raised := 0
	for _, o := range offenders {
		has, err := m.alerts.HasAlert(ctx, o.LatestEventID, store.AlertRepeatedDenial)
		if err != nil {
			return raised, err
		}
		if has {
			continue
		}
		_, err = m.alerts.CreateAlert(ctx, store.Alert{
			AccessEventID: o.LatestEventID,
			Type:          store.AlertRepeatedDenial,
			Message:       fmt.Sprintf("plate %s denied %d times in the last %s", o.Plate, o.Denials, m.window),
			CreatedAt:     m.now(),
		})
		if err != nil {
			return raised, err
		}
		raised++
		telemetry.AlertsRaisedTotal.WithLabelValues(store.AlertRepeatedDenial).Inc()
		m.logger.Warn("repeated denials", "plate", o.Plate, "denials", o.Denials, "event_id", o.LatestEventID)
	}
	return raised, nil
}
