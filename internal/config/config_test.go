package config

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(t *testing.T, c *Config)
	}{
		{
			name: "defaults",
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, ":8080", c.HTTPAddr)
				assert.Equal(t, "dev", c.Env)
				assert.Equal(t, "./data/plategate.db", c.DBPath)
				assert.Equal(t, BackendStub, c.RecognitionBackend)
				assert.Equal(t, 20*time.Second, c.RecognitionTimeout)
				assert.InDelta(t, 0.9, c.ConfidenceThreshold, 1e-9)
				assert.Equal(t, 100, c.MaxPageSize)
				assert.Equal(t, 5, c.ReportTopHours)
				assert.Equal(t, 3, c.AlertDenials)
				assert.Equal(t, 10*time.Minute, c.AlertWindow)
				assert.Equal(t, time.UTC, c.ReportLocation())
				assert.Empty(t, c.PlateFormats)
				assert.Empty(t, c.GRPCAddr)
			},
		},
		{
			name: "overrides",
			envVars: map[string]string{
				"PLATEGATE_ENV":                   "PROD",
				"PLATEGATE_RECOGNITION_BACKEND":   "platerecognizer",
				"PLATEGATE_PLATERECOGNIZER_TOKEN": "tok",
				"PLATEGATE_RECOGNITION_TIMEOUT":   "5s",
				"PLATEGATE_PLATE_FORMATS":         `^[A-Z]{3}\d{4}$; ^\d{1,3}[A-Z]{2}$`,
				"PLATEGATE_SAMPLE_PLATES":         "ABC1234,XYZ9876",
				"PLATEGATE_ALERT_DENIALS":         "0",
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "prod", c.Env)
				assert.False(t, c.IsDev())
				assert.Equal(t, BackendPlateRecognizer, c.RecognitionBackend)
				assert.Equal(t, 5*time.Second, c.RecognitionTimeout)
				assert.Equal(t, PlateFormats{`^[A-Z]{3}\d{4}$`, `^\d{1,3}[A-Z]{2}$`}, c.PlateFormats)
				assert.Equal(t, []string{"ABC1234", "XYZ9876"}, c.SamplePlates)
				assert.Zero(t, c.AlertDenials)
			},
		},
		{
			name:    "platerecognizer needs a token",
			envVars: map[string]string{"PLATEGATE_RECOGNITION_BACKEND": "platerecognizer"},
			wantErr: true,
		},
		{
			name:    "unknown backend",
			envVars: map[string]string{"PLATEGATE_RECOGNITION_BACKEND": "tesseract"},
			wantErr: true,
		},
		{
			name:    "threshold out of range",
			envVars: map[string]string{"PLATEGATE_CONFIDENCE_THRESHOLD": "1.5"},
			wantErr: true,
		},
		{
			name:    "bad timezone",
			envVars: map[string]string{"PLATEGATE_REPORT_TZ": "Mars/Olympus"},
			wantErr: true,
		},
		{
			name:    "bad duration",
			envVars: map[string]string{"PLATEGATE_ALERT_WINDOW": "soon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "prod", "").Info("hello", "plate", "ABC1234")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "ABC1234", rec["plate"])

	buf.Reset()
	l := newLogger(&buf, "prod", "text")
	l.Debug("hidden")
	l.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.True(t, strings.Contains(buf.String(), "msg=shown"))
}
