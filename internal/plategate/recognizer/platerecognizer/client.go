// Package platerecognizer calls the Plate Recognizer cloud API
// (multipart upload, token auth) and validates its best read locally.
package platerecognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/BrandonDHaskell/plategate/internal/plategate/plate"
	"github.com/BrandonDHaskell/plategate/internal/plategate/recognizer"
)

const DefaultBaseURL = "https://api.platerecognizer.com/v1/plate-reader/"

type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	RetryCount int
	// Backoff is the first retry delay; it doubles per attempt up to maxBackoff.
	Backoff time.Duration
	// Regions is forwarded as the API's "regions" hint when set.
	Regions []string
}

func DefaultConfig() Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		Timeout:    20 * time.Second,
		RetryCount: 2,
		Backoff:    500 * time.Millisecond,
	}
}

type Client struct {
	httpClient *http.Client
	config     Config
	validator  *plate.Validator
}

var _ recognizer.PlateRecognizer = (*Client)(nil)

func NewClient(cfg Config, validator *plate.Validator) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if validator == nil {
		validator = plate.MustValidator(nil)
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		validator:  validator,
	}
}

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("plate recognizer returned status %d: %s", e.Code, e.Body)
}

type readerResponse struct {
	Results []struct {
		Plate string  `json:"plate"`
		Score float64 `json:"score"`
	} `json:"results"`
}

// Recognize uploads image and returns the first result when it passes the
// plate grammar.
func (c *Client) Recognize(ctx context.Context, image []byte) (recognizer.Result, error) {
	if len(image) == 0 {
		return recognizer.Result{}, fmt.Errorf("%w: empty image", recognizer.ErrNoPlate)
	}

	var resp readerResponse
	if err := c.doRequestWithRetry(ctx, image, &resp); err != nil {
		return recognizer.Result{}, err
	}
	if len(resp.Results) == 0 {
		return recognizer.Result{}, recognizer.ErrNoPlate
	}

	best := resp.Results[0]
	p := plate.Normalize(best.Plate)
	if p == "" || !c.validator.Validate(p) {
		return recognizer.Result{}, fmt.Errorf("%w: %q does not match any plate format", recognizer.ErrNoPlate, best.Plate)
	}
	return recognizer.Result{Plate: p, Confidence: recognizer.ClampConfidence(best.Score)}, nil
}

const maxBackoff = 5 * time.Second

func (c *Client) backoff(attempt int) time.Duration {
	d := c.config.Backoff
	if d <= 0 {
		d = 500 * time.Millisecond
	}
	for i := 1; i < attempt && d < maxBackoff; i++ {
		d *= 2
	}
	return min(d, maxBackoff)
}

// doRequestWithRetry retries transport failures and 5xx answers. 4xx and
// context errors are returned immediately.
func (c *Client) doRequestWithRetry(ctx context.Context, image []byte, result any) error {
	var lastErr error

	for attempt := 0; attempt <= c.config.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return classifyCtx(ctx.Err())
			case <-time.After(c.backoff(attempt)):
			}
		}

		lastErr = c.doRequest(ctx, image, result)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return classifyCtx(ctx.Err())
		}
		if errors.Is(lastErr, recognizer.ErrTimeout) || errors.Is(lastErr, recognizer.ErrNoPlate) {
			return lastErr
		}

		var se *StatusError
		if errors.As(lastErr, &se) && se.Code < 500 {
			return lastErr
		}
	}

	return fmt.Errorf("%w: %v", recognizer.ErrUnavailable, lastErr)
}

func classifyCtx(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", recognizer.ErrTimeout, err)
	}
	return err
}

func (c *Client) doRequest(ctx context.Context, image []byte, result any) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("upload", "capture.jpg")
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	if len(c.config.Regions) > 0 {
		if err := mw.WriteField("regions", strings.Join(c.config.Regions, ",")); err != nil {
			return fmt.Errorf("write regions: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL, &body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Token "+c.config.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return fmt.Errorf("%w: %v", recognizer.ErrTimeout, err)
		}
		return fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("%w: invalid response: %v", recognizer.ErrNoPlate, err)
	}
	return nil
}
