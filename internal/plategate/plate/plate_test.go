package plate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/plategate/internal/plategate/plate"
)

// ── Normalize ────────────────────────────────────────────────────────────────

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"abc1234", "ABC1234"},
		{"  abc-123-d\t", "ABC-123-D"},
		{"Abc 12 34", "ABC1234"},
		{"\n123-abc-4 ", "123-ABC-4"},
		{"   ", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, plate.Normalize(tt.raw))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{"abc1234", " xYz-99-01 ", "mixed Case\tPlate", "ñandú 1", ""}
	for _, in := range inputs {
		once := plate.Normalize(in)
		assert.Equal(t, once, plate.Normalize(once), "input %q", in)
	}
}

// ── Validate ─────────────────────────────────────────────────────────────────

func TestValidator_DefaultFormats(t *testing.T) {
	v, err := plate.NewValidator(nil)
	require.NoError(t, err)

	valid := []string{"ABC-12-34", "ABC1234", "abc-123-d", "ABC123D", "123-ABC-4", "123abc4", " abc 12 34 "}
	for _, p := range valid {
		assert.True(t, v.Validate(p), "expected %q to validate", p)
	}

	invalid := []string{"", "AB-12-34", "ABC-12-3!", "ABC_1234", "12345678", "ABCDEFG"}
	for _, p := range invalid {
		assert.False(t, v.Validate(p), "expected %q to be rejected", p)
	}
}

func TestValidator_CustomFormats(t *testing.T) {
	v, err := plate.NewValidator([]string{`^[0-9]{2}[A-Z]{1,2}-?[0-9]{3,5}$`})
	require.NoError(t, err)

	assert.True(t, v.Validate("29A-12345"))
	assert.False(t, v.Validate("ABC1234"))
	assert.Equal(t, []string{`^[0-9]{2}[A-Z]{1,2}-?[0-9]{3,5}$`}, v.Formats())
}

func TestNewValidator_BadPattern(t *testing.T) {
	_, err := plate.NewValidator([]string{`^[A-Z`})
	assert.Error(t, err)
}

func TestNewValidator_OnlyBlankPatterns(t *testing.T) {
	_, err := plate.NewValidator([]string{" ", ""})
	assert.Error(t, err)
}
