package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/BrandonDHaskell/plategate/internal/plategate/domain"
)

// ── Reports ──────────────────────────────────────────────────────────────────

func (s *Server) reportWindow(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	if q.Get("start") == "" || q.Get("end") == "" {
		return time.Time{}, time.Time{}, domain.ErrInvalidInput.WithMessage("start and end dates are required")
	}
	start, err := s.reports.ParseDate(q.Get("start"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := s.reports.ParseDate(q.Get("end"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	start, end, err := s.reportWindow(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	rep, err := s.reports.Summarize(r.Context(), caller, start, end)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleWeekly(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	rep, err := s.reports.Weekly(r.Context(), caller)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	start, end, err := s.reportWindow(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	exp, err := s.reports.Export(r.Context(), caller, start, end)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", exp.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exp.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(exp.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(exp.Data)
}

// ── Alerts ───────────────────────────────────────────────────────────────────

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"), 0)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	list := s.alerts.ListOpen
	if all, _ := strconv.ParseBool(q.Get("all")); all {
		list = s.alerts.ListAll
	}
	as, err := list(r.Context(), caller, limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, as)
}

func (s *Server) handleAckAlert(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	a, err := s.alerts.Acknowledge(r.Context(), caller, id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
