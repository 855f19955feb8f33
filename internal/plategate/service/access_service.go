package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BrandonDHaskell/plategate/internal/plategate/domain"
	"github.com/BrandonDHaskell/plategate/internal/plategate/plate"
	"github.com/BrandonDHaskell/plategate/internal/plategate/recognizer"
	"github.com/BrandonDHaskell/plategate/internal/plategate/store"
	"github.com/BrandonDHaskell/plategate/internal/plategate/types"
	"github.com/BrandonDHaskell/plategate/internal/telemetry"
)

const (
	msgAuthorizedManual   = "access authorized (manual entry)"
	msgUnregisteredManual = "plate not registered (manual entry)"
	msgAuthorized         = "access authorized"
	msgUnregistered       = "plate not registered - registration required"
	msgNotRecognized      = "plate could not be recognized"
	msgLowConfidence      = " (low confidence)"
	msgNotRecorded        = "access attempt could not be recorded"
)

type AccessConfig struct {
	// RecognitionTimeout bounds a single recognizer call. Defaults to 20s.
	RecognitionTimeout time.Duration
	// ConfidenceThreshold flags reads below it as low confidence. It never
	// changes the authorization outcome. Defaults to 0.9.
	ConfidenceThreshold float64
	// Clock stamps events; defaults to time.Now in UTC.
	Clock func() time.Time
}

// AccessService is the decision engine: it turns a candidate plate into
// exactly one stored AccessEvent and a verdict.
type AccessService struct {
	registry   *VehicleRegistry
	events     store.AccessEventStore
	recognizer recognizer.PlateRecognizer
	validator  *plate.Validator
	cfg        AccessConfig
	logger     *slog.Logger
}

func NewAccessService(
	reg *VehicleRegistry,
	events store.AccessEventStore,
	rec recognizer.PlateRecognizer,
	validator *plate.Validator,
	cfg AccessConfig,
	logger *slog.Logger,
) *AccessService {
	if cfg.RecognitionTimeout <= 0 {
		cfg.RecognitionTimeout = 20 * time.Second
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.9
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}
	if validator == nil {
		validator = plate.MustValidator(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AccessService{
		registry:   reg,
		events:     events,
		recognizer: rec,
		validator:  validator,
		cfg:        cfg,
		logger:     logger,
	}
}

// ManualEntry decides on a plate typed by an operator.
func (s *AccessService) ManualEntry(ctx context.Context, caller domain.Caller, rawPlate, note string) (types.AccessVerdict, error) {
	return s.Decide(ctx, caller, types.DecideRequest{
		Plate:  rawPlate,
		Note:   note,
		Source: domain.SourceManual,
	})
}

// Decide runs lookup, decision and persistence for one candidate plate.
// A verdict is always returned; err is non-nil when no decision was made
// or the event could not be stored.
func (s *AccessService) Decide(ctx context.Context, caller domain.Caller, req types.DecideRequest) (types.AccessVerdict, error) {
	now := s.cfg.Clock()

	source := req.Source
	if source == "" {
		source = domain.SourceManual
	}
	if !source.Valid() {
		return s.reject(source, now, domain.ErrInvalidInput.WithMessagef("unknown source %q", req.Source))
	}

	p := plate.Normalize(req.Plate)
	if p == "" {
		return s.reject(source, now, domain.ErrInvalidInput.WithMessage("plate is required"))
	}

	confidence := req.Confidence
	if source == domain.SourceManual {
		confidence = 1.0
	} else if confidence < 0 || confidence > 1 {
		return s.reject(source, now, domain.ErrInvalidInput.WithMessagef("confidence %v outside [0, 1]", req.Confidence))
	}

	var (
		owner  store.IdentitySummary
		found  bool
		stored store.AccessEvent
		err    error
	)
	// The owner can be deleted between the lookup and the append; the store
	// then rejects the stale reference. Resolve again so the attempt is still
	// recorded, denied and unresolved if the plate no longer has an owner.
	for attempt := 0; ; attempt++ {
		owner, found, err = s.registry.FindByPlate(ctx, p)
		if err != nil {
			return s.storageFailure(ctx, source, p, confidence, now, err)
		}

		ev := store.AccessEvent{
			Plate:      p,
			OccurredAt: now,
			Authorized: found,
			Confidence: confidence,
			Source:     source,
			ImageRef:   optional(req.ImageRef),
			Note:       optional(req.Note),
			RecordedBy: optional(caller.IdentityID),
		}
		if found {
			ev.IdentityID = &owner.ID
		}

		stored, err = s.events.Append(ctx, ev)
		if err == nil {
			break
		}
		if found && attempt == 0 && errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "plate owner vanished before append, resolving again",
				"plate", p, "identity_id", owner.ID)
			continue
		}
		return s.storageFailure(ctx, source, p, confidence, now, err)
	}
	authorized := found

	v := types.AccessVerdict{
		Outcome:     types.OutcomeDenied,
		Authorized:  authorized,
		Plate:       p,
		Confidence:  confidence,
		FormatValid: s.validator.Validate(p),
		EventID:     stored.ID,
		ServerTime:  stored.OccurredAt.Format(time.RFC3339Nano),
	}
	if authorized {
		v.Outcome = types.OutcomeAuthorized
		v.Identity = &owner
	}
	v.Message = decisionMessage(source, authorized)
	if confidence < s.cfg.ConfidenceThreshold {
		v.LowConfidence = true
		v.Message += msgLowConfidence
		telemetry.LowConfidenceReadsTotal.Inc()
	}

	telemetry.AccessDecisionsTotal.WithLabelValues(string(source), string(v.Outcome)).Inc()
	s.logger.InfoContext(ctx, "access decision",
		"plate", p,
		"source", source,
		"authorized", authorized,
		"confidence", confidence,
		"event_id", stored.ID,
		"by", caller.IdentityID,
	)
	return v, nil
}

// Capture recognizes a plate in image under the configured timeout and
// decides on it. A failed recognition writes no event.
func (s *AccessService) Capture(ctx context.Context, caller domain.Caller, image []byte, imageRef string) (types.AccessVerdict, error) {
	now := s.cfg.Clock()
	if len(image) == 0 {
		return s.reject(domain.SourceCapture, now, domain.ErrInvalidInput.WithMessage("image is required"))
	}

	rctx, cancel := context.WithTimeout(ctx, s.cfg.RecognitionTimeout)
	start := time.Now()
	res, err := s.recognizer.Recognize(rctx, image)
	timedOut := errors.Is(rctx.Err(), context.DeadlineExceeded)
	cancel()

	if err == nil && plate.Normalize(res.Plate) == "" {
		err = recognizer.ErrNoPlate
	}
	if err != nil {
		var derr *domain.Error
		if timedOut || errors.Is(err, recognizer.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			derr = domain.ErrBackendTimeout.WithError(err)
			telemetry.RecognitionDuration.WithLabelValues("timeout").Observe(time.Since(start).Seconds())
		} else {
			derr = domain.ErrRecognitionFailed.WithError(err)
			telemetry.RecognitionDuration.WithLabelValues("failed").Observe(time.Since(start).Seconds())
		}
		telemetry.AccessDecisionsTotal.WithLabelValues(string(domain.SourceCapture), string(types.OutcomeRecognitionFailed)).Inc()
		s.logger.WarnContext(ctx, "plate recognition failed",
			"error", err, "kind", derr.Kind, "by", caller.IdentityID)

		return types.AccessVerdict{
			Outcome:    types.OutcomeRecognitionFailed,
			Message:    msgNotRecognized,
			ErrorKind:  derr.Kind,
			ServerTime: now.Format(time.RFC3339Nano),
		}, derr
	}
	telemetry.RecognitionDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())

	return s.Decide(ctx, caller, types.DecideRequest{
		Plate:      res.Plate,
		Confidence: recognizer.ClampConfidence(res.Confidence),
		ImageRef:   imageRef,
		Source:     domain.SourceCapture,
	})
}

func decisionMessage(source domain.Source, authorized bool) string {
	switch {
	case source == domain.SourceManual && authorized:
		return msgAuthorizedManual
	case source == domain.SourceManual:
		return msgUnregisteredManual
	case authorized:
		return msgAuthorized
	default:
		return msgUnregistered
	}
}

func (s *AccessService) reject(source domain.Source, now time.Time, err *domain.Error) (types.AccessVerdict, error) {
	telemetry.AccessDecisionsTotal.WithLabelValues(string(source), string(types.OutcomeInvalidInput)).Inc()
	return types.AccessVerdict{
		Outcome:    types.OutcomeInvalidInput,
		Message:    err.Message,
		ErrorKind:  err.Kind,
		ServerTime: now.Format(time.RFC3339Nano),
	}, err
}

// storageFailure reports a lookup or append error. The verdict carries a
// generic message; the returned error keeps the cause.
func (s *AccessService) storageFailure(ctx context.Context, source domain.Source, p string, confidence float64, now time.Time, err error) (types.AccessVerdict, error) {
	var derr *domain.Error
	if !errors.As(err, &derr) || derr.Kind != domain.KindStorage {
		derr = domain.ErrStorage.WithError(err)
	}
	telemetry.AccessDecisionsTotal.WithLabelValues(string(source), string(types.OutcomeStorageError)).Inc()
	s.logger.ErrorContext(ctx, "access decision not recorded", "plate", p, "error", err)

	return types.AccessVerdict{
		Outcome:     types.OutcomeStorageError,
		Plate:       p,
		Confidence:  confidence,
		FormatValid: s.validator.Validate(p),
		Message:     msgNotRecorded,
		ErrorKind:   domain.KindStorage,
		ServerTime:  now.Format(time.RFC3339Nano),
	}, derr
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
