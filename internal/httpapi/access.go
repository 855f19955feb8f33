package httpapi

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/BrandonDHaskell/plategate/internal/plategate/domain"
	"github.com/BrandonDHaskell/plategate/internal/plategate/store"
	"github.com/BrandonDHaskell/plategate/internal/plategate/types"
)

const defaultPageSize = 10

// ── Decisions ────────────────────────────────────────────────────────────────

func (s *Server) handleManualEntry(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	var req types.ManualEntryRequest
	if isProtobuf(r) {
		msg := &structpb.Struct{}
		if err := readProto(r, maxJSONBody, msg); err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		req = manualEntryFromProto(msg)
	} else if err := decodeJSON(r, maxJSONBody, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	v, err := s.access.ManualEntry(r.Context(), caller, req.Plate, req.Note)
	s.writeVerdict(w, r, v, err)
}

// handleCapture accepts the image as a protobuf BytesValue, a raw image/*
// body, or JSON carrying base64 or a data URL.
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	var (
		image []byte
		ref   = r.URL.Query().Get("image_ref")
	)

	switch ct := mediaType(r.Header.Get("Content-Type")); {
	case isProtobuf(r):
		msg := &wrapperspb.BytesValue{}
		if err := readProto(r, maxImageBody, msg); err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		image = msg.GetValue()
	case strings.HasPrefix(ct, "image/"):
		body, err := readBody(r, maxImageBody)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		image = body
	default:
		var req types.CaptureRequest
		// base64 inflates by 4/3; leave room for the envelope.
		if err := decodeJSON(r, maxImageBody*4/3+maxJSONBody, &req); err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		decoded, err := decodeImage(req.Image)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		image = decoded
		if req.ImageRef != "" {
			ref = req.ImageRef
		}
	}

	v, err := s.access.Capture(r.Context(), caller, image, ref)
	s.writeVerdict(w, r, v, err)
}

// decodeImage accepts plain base64 or a "data:<type>;base64,<payload>" URL.
func decodeImage(v string) ([]byte, error) {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "data:") {
		i := strings.Index(v, ",")
		if i < 0 || !strings.HasSuffix(v[:i], ";base64") {
			return nil, domain.ErrInvalidInput.WithMessage("image data URL must be base64 encoded")
		}
		v = v[i+1:]
	}
	if v == "" {
		return nil, domain.ErrInvalidInput.WithMessage("image is required")
	}
	data, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(v); err != nil {
			return nil, domain.ErrInvalidInput.WithMessage("image is not valid base64").WithError(err)
		}
	}
	return data, nil
}

// writeVerdict always sends the verdict; the status reflects err's kind.
func (s *Server) writeVerdict(w http.ResponseWriter, r *http.Request, v types.AccessVerdict, err error) {
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
		if status == http.StatusInternalServerError {
			s.logger.ErrorContext(r.Context(), "access decision failed", "path", r.URL.Path, "error", err)
		}
	}

	if wantsProtobuf(r) {
		msg, perr := verdictToProto(v)
		if perr != nil {
			s.writeDomainError(w, r, perr)
			return
		}
		writeProto(w, status, msg)
		return
	}
	writeJSON(w, status, v)
}

// ── Access log ───────────────────────────────────────────────────────────────

func (s *Server) handleAccessLogs(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	q := r.URL.Query()

	page, err := queryInt(q.Get("page"), 1)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	sizeParam := q.Get("page_size")
	if sizeParam == "" {
		sizeParam = q.Get("per_page")
	}
	pageSize, err := queryInt(sizeParam, defaultPageSize)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	f := store.EventFilter{Plate: q.Get("plate")}
	if f.From, _, err = queryTime(q.Get("from")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	to, wholeDay, err := queryTime(q.Get("to"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if wholeDay {
		next := to.AddDate(0, 0, 1)
		f.Before = &next
	} else {
		f.To = to
	}

	res, err := s.log.List(r.Context(), caller, f, page, pageSize)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAccessLog(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	ev, err := s.log.Get(r.Context(), caller, id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func queryInt(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, domain.ErrInvalidInput.WithMessagef("%q is not an integer", v)
	}
	return n, nil
}

// queryTime parses RFC 3339 or a YYYY-MM-DD date in UTC. wholeDay reports a
// bare date, which as an upper bound must include the entire day.
func queryTime(v string) (t *time.Time, wholeDay bool, err error) {
	if v == "" {
		return nil, false, nil
	}
	if at, err := time.Parse(time.RFC3339, v); err == nil {
		return &at, false, nil
	}
	day, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, false, domain.ErrInvalidInput.WithMessagef("invalid time %q, expected RFC 3339 or YYYY-MM-DD", v)
	}
	return &day, true, nil
}

func pathID(r *http.Request, name string) (int64, error) {
	v := r.PathValue(name)
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidInput.WithMessagef("invalid %s %q", name, v)
	}
	return id, nil
}
