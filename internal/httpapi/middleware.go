package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/BrandonDHaskell/plategate/internal/plategate/domain"
	"github.com/BrandonDHaskell/plategate/internal/telemetry"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		dur := time.Since(start)

		// The mux records the matched pattern on r; raw paths would blow up
		// label cardinality.
		pattern := r.Pattern
		if pattern == "" {
			pattern = "unmatched"
		}
		telemetry.HTTPRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(rec.status)).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(r.Method, pattern).Observe(dur.Seconds())

		logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"from", r.RemoteAddr,
			"dur", dur,
		)
	})
}

const (
	headerCallerID   = "X-Caller-ID"
	headerCallerRole = "X-Caller-Role"
)

// callerFrom reads the attribution headers set by the authenticating proxy.
func callerFrom(r *http.Request) (domain.Caller, bool) {
	id := r.Header.Get(headerCallerID)
	if id == "" {
		return domain.Caller{}, false
	}
	return domain.Caller{IdentityID: id, Role: domain.ParseRole(r.Header.Get(headerCallerRole))}, true
}

type callerHandler func(w http.ResponseWriter, r *http.Request, caller domain.Caller)

// requireRole rejects requests without a caller (401) or whose role is not
// listed (403) before the handler runs.
func requireRole(h callerHandler, roles ...domain.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFrom(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing caller attribution")
			return
		}
		for _, role := range roles {
			if caller.Role == role {
				h(w, r, caller)
				return
			}
		}
		writeError(w, http.StatusForbidden, "forbidden", "insufficient permissions")
	}
}
