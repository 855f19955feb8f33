package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every variable name, e.g. PLATEGATE_HTTP_ADDR.
const Prefix = "PLATEGATE"

const (
	BackendStub            = "stub"
	BackendPlateRecognizer = "platerecognizer"
	BackendRekognition     = "rekognition"
)

// PlateFormats is a ';'-separated list of regular expressions. Commas are
// legal inside a pattern, so the default comma splitting cannot be used.
type PlateFormats []string

func (p *PlateFormats) Decode(value string) error {
	var out []string
	for _, part := range strings.Split(value, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*p = out
	return nil
}

type Config struct {
	// Server
	HTTPAddr  string `envconfig:"HTTP_ADDR" default:":8080"`
	GRPCAddr  string `envconfig:"GRPC_ADDR"` // empty disables the health endpoint
	Env       string `envconfig:"ENV" default:"dev"`
	LogFormat string `envconfig:"LOG_FORMAT"` // "json" | "text"; empty follows Env

	// DB
	DBPath string `envconfig:"DB_PATH" default:"./data/plategate.db"`

	// Plates
	PlateFormats PlateFormats `envconfig:"PLATE_FORMATS"`

	// Recognition
	RecognitionBackend     string        `envconfig:"RECOGNITION_BACKEND" default:"stub"`
	RecognitionTimeout     time.Duration `envconfig:"RECOGNITION_TIMEOUT" default:"20s"`
	ConfidenceThreshold    float64       `envconfig:"CONFIDENCE_THRESHOLD" default:"0.9"`
	PlateRecognizerURL     string        `envconfig:"PLATERECOGNIZER_URL" default:"https://api.platerecognizer.com/v1/plate-reader/"`
	PlateRecognizerToken   string        `envconfig:"PLATERECOGNIZER_TOKEN"`
	PlateRecognizerRegions []string      `envconfig:"PLATERECOGNIZER_REGIONS"`
	AWSRegion              string        `envconfig:"AWS_REGION" default:"us-east-1"`

	// Access log and reports
	MaxPageSize    int    `envconfig:"MAX_PAGE_SIZE" default:"100"`
	ReportTopHours int    `envconfig:"REPORT_TOP_HOURS" default:"5"`
	ReportTZ       string `envconfig:"REPORT_TZ" default:"UTC"`

	// Repeated-denial alerts
	AlertDenials  int           `envconfig:"ALERT_DENIALS" default:"3"` // 0 = disabled
	AlertWindow   time.Duration `envconfig:"ALERT_WINDOW" default:"10m"`
	AlertInterval time.Duration `envconfig:"ALERT_INTERVAL" default:"1m"`

	// Seeding
	AdminUsername string   `envconfig:"ADMIN_USERNAME" default:"admin"`
	AdminPassword string   `envconfig:"ADMIN_PASSWORD"` // empty skips the admin seed
	SamplePlates  []string `envconfig:"SAMPLE_PLATES"`  // dev only

	location *time.Location
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	if c.Env != "dev" && c.Env != "prod" {
		// fail-soft: treat unknown as dev
		c.Env = "dev"
	}

	c.RecognitionBackend = strings.ToLower(strings.TrimSpace(c.RecognitionBackend))
	switch c.RecognitionBackend {
	case BackendStub, BackendRekognition:
	case BackendPlateRecognizer:
		if c.PlateRecognizerToken == "" {
			return fmt.Errorf("%s_PLATERECOGNIZER_TOKEN is required for backend %q", Prefix, c.RecognitionBackend)
		}
	default:
		return fmt.Errorf("unknown recognition backend %q", c.RecognitionBackend)
	}

	if c.RecognitionTimeout <= 0 {
		return fmt.Errorf("recognition timeout must be positive, got %s", c.RecognitionTimeout)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold %v outside [0, 1]", c.ConfidenceThreshold)
	}
	if c.MaxPageSize <= 0 {
		return fmt.Errorf("max page size must be positive, got %d", c.MaxPageSize)
	}
	if c.AlertDenials < 0 {
		return fmt.Errorf("alert denials must not be negative, got %d", c.AlertDenials)
	}

	loc, err := time.LoadLocation(c.ReportTZ)
	if err != nil {
		return fmt.Errorf("report timezone: %w", err)
	}
	c.location = loc
	return nil
}

// ReportLocation is the zone report windows and hours of day are computed in.
func (c *Config) ReportLocation() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}
