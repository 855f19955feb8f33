// Package recognizer defines the plate-recognition capability the access
// engine calls for camera captures. Backends live in subpackages.
package recognizer

import (
	"context"
	"errors"
)

var (
	// ErrNoPlate means the backend answered but found no plate that passes
	// the configured grammar.
	ErrNoPlate = errors.New("no valid plate detected")
	// ErrTimeout means the backend did not answer within its deadline.
	ErrTimeout = errors.New("recognition backend timed out")
	// ErrUnavailable means the backend failed after all retries.
	ErrUnavailable = errors.New("recognition backend unavailable")
	// ErrNotImplemented is returned by backends that cannot recognize anything.
	ErrNotImplemented = errors.New("local plate recognition is not implemented")
)

// Result is a successful read. Confidence is in [0, 1].
type Result struct {
	Plate      string
	Confidence float64
}

// PlateRecognizer extracts a plate number from an encoded image. A nil
// error always comes with a non-empty, normalized Plate.
type PlateRecognizer interface {
	Recognize(ctx context.Context, image []byte) (Result, error)
}

// Func adapts a plain function to PlateRecognizer.
type Func func(ctx context.Context, image []byte) (Result, error)

func (f Func) Recognize(ctx context.Context, image []byte) (Result, error) {
	return f(ctx, image)
}

// ClampConfidence bounds c to [0, 1].
func ClampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
