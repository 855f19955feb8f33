// Package rekognition reads plates with AWS Rekognition DetectText,
// keeping the most confident line or word that passes the plate grammar.
package rekognition

import (
	"context"
	"errors"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/aws/smithy-go"

	"github.com/BrandonDHaskell/plategate/internal/plategate/plate"
	"github.com/BrandonDHaskell/plategate/internal/plategate/recognizer"
)

// maxImageSize is the DetectText limit for inline image bytes (5MB).
const maxImageSize = 5 * 1024 * 1024

const (
	errCodeAccessDenied       = "AccessDeniedException"
	errCodeInvalidImage       = "InvalidImageFormatException"
	errCodeImageTooLarge      = "ImageTooLargeException"
	errCodeThrottling         = "ThrottlingException"
	errCodeThroughputExceeded = "ProvisionedThroughputExceededException"
)

var (
	ErrInvalidCredentials = errors.New("invalid or missing AWS credentials")
	ErrInvalidImage       = errors.New("image rejected by rekognition")
)

// DetectTextAPI is the subset of *rekognition.Client used here.
type DetectTextAPI interface {
	DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

type Config struct {
	Region string
}

type Recognizer struct {
	api       DetectTextAPI
	validator *plate.Validator
}

var _ recognizer.PlateRecognizer = (*Recognizer)(nil)

func New(api DetectTextAPI, validator *plate.Validator) *Recognizer {
	if validator == nil {
		validator = plate.MustValidator(nil)
	}
	return &Recognizer{api: api, validator: validator}
}

// NewFromConfig builds a Recognizer on the AWS default credential chain.
func NewFromConfig(ctx context.Context, cfg Config, validator *plate.Validator) (*Recognizer, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return New(rekognition.NewFromConfig(awsCfg), validator), nil
}

func (r *Recognizer) Recognize(ctx context.Context, image []byte) (recognizer.Result, error) {
	if len(image) == 0 {
		return recognizer.Result{}, fmt.Errorf("%w: empty image", recognizer.ErrNoPlate)
	}
	if len(image) > maxImageSize {
		return recognizer.Result{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidImage, len(image), maxImageSize)
	}

	out, err := r.api.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &types.Image{Bytes: image},
	})
	if err != nil {
		return recognizer.Result{}, mapError(ctx, err)
	}

	var (
		best     string
		bestConf float32
	)
	for _, td := range out.TextDetections {
		if td.Type != types.TextTypesLine && td.Type != types.TextTypesWord {
			continue
		}
		if td.DetectedText == nil || td.Confidence == nil {
			continue
		}
		p := plate.Normalize(*td.DetectedText)
		if !r.validator.Validate(p) {
			continue
		}
		if best == "" || *td.Confidence > bestConf {
			best, bestConf = p, *td.Confidence
		}
	}

	if best == "" {
		return recognizer.Result{}, recognizer.ErrNoPlate
	}
	return recognizer.Result{
		Plate:      best,
		Confidence: recognizer.ClampConfidence(float64(bestConf) / 100),
	}, nil
}

func mapError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", recognizer.ErrTimeout, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case errCodeAccessDenied:
			return fmt.Errorf("detect text: %w", ErrInvalidCredentials)
		case errCodeInvalidImage, errCodeImageTooLarge:
			return fmt.Errorf("detect text: %w: %s", ErrInvalidImage, apiErr.ErrorMessage())
		case errCodeThrottling, errCodeThroughputExceeded:
			return fmt.Errorf("%w: %s", recognizer.ErrUnavailable, apiErr.ErrorCode())
		}
	}
	return fmt.Errorf("detect text: %w", err)
}
