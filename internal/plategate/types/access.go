package types

import (
	"time"

	"github.com/BrandonDHaskell/plategate/internal/plategate/domain"
	"github.com/BrandonDHaskell/plategate/internal/plategate/store"
)

// DecideRequest is a candidate plate that is already known (typed by a
// guard or produced by a recognizer).
type DecideRequest struct {
	Plate      string        `json:"plate"`
	Confidence float64       `json:"confidence,omitempty"`
	ImageRef   string        `json:"image_ref,omitempty"`
	Note       string        `json:"note,omitempty"`
	Source     domain.Source `json:"source"`
}

type ManualEntryRequest struct {
	Plate string `json:"plate"`
	Note  string `json:"note,omitempty"`
}

// CaptureRequest carries an image as base64 or a data URL.
type CaptureRequest struct {
	Image    string `json:"image"`
	ImageRef string `json:"image_ref,omitempty"`
}

type Outcome string

const (
	OutcomeAuthorized        Outcome = "authorized"
	OutcomeDenied            Outcome = "denied"
	OutcomeRecognitionFailed Outcome = "recognition_failed"
	OutcomeInvalidInput      Outcome = "invalid_input"
	OutcomeStorageError      Outcome = "storage_error"
)

// AccessVerdict is returned for every decision attempt, including the ones
// that fail before an event is written (EventID 0).
type AccessVerdict struct {
	Outcome       Outcome                `json:"outcome"`
	Authorized    bool                   `json:"authorized"`
	Identity      *store.IdentitySummary `json:"identity,omitempty"`
	Plate         string                 `json:"plate,omitempty"`
	Confidence    float64                `json:"confidence"`
	Message       string                 `json:"message"`
	LowConfidence bool                   `json:"low_confidence,omitempty"`
	FormatValid   bool                   `json:"format_valid"`
	EventID       int64                  `json:"event_id,omitempty"`
	ErrorKind     domain.Kind            `json:"error_kind,omitempty"`
	ServerTime    string                 `json:"server_time"`
}

// EventView is the listing shape of a stored access event.
type EventView struct {
	ID         int64                  `json:"id"`
	Plate      string                 `json:"plate"`
	OccurredAt time.Time              `json:"occurred_at"`
	Authorized bool                   `json:"authorized"`
	Confidence float64                `json:"confidence"`
	Source     domain.Source          `json:"source"`
	Identity   *store.IdentitySummary `json:"identity,omitempty"`
	ImageRef   string                 `json:"image_ref,omitempty"`
	Note       string                 `json:"note,omitempty"`
	RecordedBy string                 `json:"recorded_by,omitempty"`
}

func NewEventView(ev store.AccessEvent) EventView {
	v := EventView{
		ID:         ev.ID,
		Plate:      ev.Plate,
		OccurredAt: ev.OccurredAt,
		Authorized: ev.Authorized,
		Confidence: ev.Confidence,
		Source:     ev.Source,
		Identity:   ev.Identity,
	}
	if ev.ImageRef != nil {
		v.ImageRef = *ev.ImageRef
	}
	if ev.Note != nil {
		v.Note = *ev.Note
	}
	if ev.RecordedBy != nil {
		v.RecordedBy = *ev.RecordedBy
	}
	return v
}

type EventPage struct {
	Events   []EventView `json:"events"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Pages    int         `json:"pages"`
}
