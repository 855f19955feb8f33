package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/BrandonDHaskell/plategate/internal/plategate/domain"
	"github.com/BrandonDHaskell/plategate/internal/plategate/store"
	"github.com/BrandonDHaskell/plategate/internal/plategate/types"
	"github.com/BrandonDHaskell/plategate/internal/telemetry"
)

const (
	DateLayout        = "2006-01-02"
	DefaultTopHours   = 5
	exportSheet       = "Accesos"
	exportNamePattern = "reporte_accesos_%s_%s.xlsx"
)

var exportHeader = []any{"Plate", "Date", "Time", "Result", "User", "Occupation"}

type ReportConfig struct {
	// TopHours is how many peak hours a report lists. Defaults to 5.
	TopHours int
	// Location defines day boundaries and hours of day. Defaults to UTC.
	Location *time.Location
	Clock    func() time.Time
}

// ReportService aggregates the access log over windows of civil dates.
type ReportService struct {
	events store.AccessEventStore
	cfg    ReportConfig
	logger *slog.Logger
}

func NewReportService(events store.AccessEventStore, cfg ReportConfig, logger *slog.Logger) *ReportService {
	if cfg.TopHours <= 0 {
		cfg.TopHours = DefaultTopHours
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportService{events: events, cfg: cfg, logger: logger}
}

// ParseDate reads a YYYY-MM-DD date in the report location.
func (s *ReportService) ParseDate(v string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, v, s.cfg.Location)
	if err != nil {
		return time.Time{}, domain.ErrInvalidInput.WithMessagef("invalid date %q, expected YYYY-MM-DD", v)
	}
	return t, nil
}

// window turns two civil dates into a filter covering every moment of both
// days: from the first midnight up to, not including, the midnight after end.
func (s *ReportService) window(start, end time.Time) (store.EventFilter, time.Time, time.Time, error) {
	loc := s.cfg.Location
	sy, sm, sd := start.In(loc).Date()
	ey, em, ed := end.In(loc).Date()
	from := time.Date(sy, sm, sd, 0, 0, 0, 0, loc)
	day := time.Date(ey, em, ed, 0, 0, 0, 0, loc)
	if from.After(day) {
		return store.EventFilter{}, time.Time{}, time.Time{}, domain.ErrInvalidInput.WithMessage("start date is after end date")
	}
	next := day.AddDate(0, 0, 1)
	return store.EventFilter{From: &from, Before: &next}, from, day, nil
}

// Summarize counts authorized and denied events in [start, end], the
// authorized events per occupation, and the busiest hours of day.
func (s *ReportService) Summarize(ctx context.Context, _ domain.Caller, start, end time.Time) (types.Report, error) {
	f, from, to, err := s.window(start, end)
	if err != nil {
		return types.Report{}, err
	}
	evs, err := s.events.List(ctx, f)
	if err != nil {
		return types.Report{}, err
	}

	r := types.Report{
		Start:      from.Format(DateLayout),
		End:        to.Format(DateLayout),
		Categories: make(map[string]int),
		PeakHours:  []types.HourCount{},
	}
	var hours [24]int
	for _, ev := range evs {
		if ev.Authorized {
			r.Authorized++
			if ev.Identity != nil {
				r.Categories[ev.Identity.Occupation]++
			}
		} else {
			r.Denied++
		}
		hours[ev.OccurredAt.In(s.cfg.Location).Hour()]++
	}
	r.PeakHours = topHours(hours, s.cfg.TopHours)
	return r, nil
}

// Weekly summarizes the seven days ending today.
func (s *ReportService) Weekly(ctx context.Context, caller domain.Caller) (types.Report, error) {
	today := s.cfg.Clock().In(s.cfg.Location)
	return s.Summarize(ctx, caller, today.AddDate(0, 0, -6), today)
}

// topHours ranks hours by count descending, ties by hour ascending, and
// keeps at most n hours that saw any traffic.
func topHours(hours [24]int, n int) []types.HourCount {
	out := make([]types.HourCount, 0, 24)
	for h, c := range hours {
		if c > 0 {
			out = append(out, types.HourCount{Hour: h, Count: c})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Hour < out[j].Hour
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Export renders every event in [start, end], newest first, as a
// single-sheet workbook.
func (s *ReportService) Export(ctx context.Context, caller domain.Caller, start, end time.Time) (types.Export, error) {
	f, from, to, err := s.window(start, end)
	if err != nil {
		return types.Export{}, err
	}
	evs, err := s.events.List(ctx, f)
	if err != nil {
		return types.Export{}, err
	}
	if len(evs) == 0 {
		return types.Export{}, domain.ErrEmptyRange
	}

	data, err := s.renderWorkbook(evs)
	if err != nil {
		return types.Export{}, err
	}

	telemetry.ReportExportsTotal.Inc()
	s.logger.InfoContext(ctx, "report exported",
		"start", from.Format(DateLayout), "end", to.Format(DateLayout),
		"rows", len(evs), "by", caller.IdentityID)

	return types.Export{
		Filename:    fmt.Sprintf(exportNamePattern, from.Format("20060102"), to.Format("20060102")),
		ContentType: types.XLSXContentType,
		Data:        data,
	}, nil
}

func exportRow(ev store.AccessEvent, loc *time.Location) []any {
	at := ev.OccurredAt.In(loc)
	result, user, occupation := "Denied", "Unknown", "N/A"
	if ev.Authorized {
		result = "Authorized"
	}
	if ev.Identity != nil {
		user = ev.Identity.DisplayName
		occupation = ev.Identity.Occupation
	}
	return []any{ev.Plate, at.Format(DateLayout), at.Format("15:04:05"), result, user, occupation}
}

func (s *ReportService) renderWorkbook(evs []store.AccessEvent) ([]byte, error) {
	x := excelize.NewFile()
	defer func() { _ = x.Close() }()

	if err := x.SetSheetName(x.GetSheetName(0), exportSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := x.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if bold, err := x.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = x.SetCellStyle(exportSheet, "A1", "F1", bold)
	}

	for i, ev := range evs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := exportRow(ev, s.cfg.Location)
		if err := x.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf, err := x.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}
