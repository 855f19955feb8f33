// Package stub is the offline recognition backend. It never recognizes a
// plate, so captures fail cleanly when no remote backend is configured.
package stub

import (
	"context"

	"github.com/BrandonDHaskell/plategate/internal/plategate/recognizer"
)

type Recognizer struct{}

var _ recognizer.PlateRecognizer = Recognizer{}

func (Recognizer) Recognize(ctx context.Context, _ []byte) (recognizer.Result, error) {
	if err := ctx.Err(); err != nil {
		return recognizer.Result{}, err
	}
	return recognizer.Result{}, recognizer.ErrNotImplemented
}
