package httpapi

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/plategate/internal/plategate/domain"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrRecognitionFailed.WithError(errors.New("blurry")), http.StatusUnprocessableEntity},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrConflict, http.StatusConflict},
		{domain.ErrEmptyRange, http.StatusNotFound},
		{domain.ErrStorage, http.StatusInternalServerError},
		{domain.ErrBackendTimeout, http.StatusGatewayTimeout},
		{fmt.Errorf("wrapped: %w", domain.ErrConflict), http.StatusConflict},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, statusFor(c.err), "%v", c.err)
	}
}

func TestDecodeImage(t *testing.T) {
	raw := []byte{0xff, 0xd8, 0xff, 0xe0}
	std := base64.StdEncoding.EncodeToString(raw)

	got, err := decodeImage(std)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	got, err = decodeImage("data:image/jpeg;base64," + std)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	got, err = decodeImage(base64.RawStdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	for _, bad := range []string{"", "data:image/jpeg,abc", "data:image/jpeg;base64,", "%%%"} {
		_, err := decodeImage(bad)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput), bad)
	}
}

func TestQueryTime(t *testing.T) {
	day, wholeDay, err := queryTime("2026-03-02")
	require.NoError(t, err)
	assert.True(t, wholeDay)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), *day)

	at, wholeDay, err := queryTime("2026-03-02T10:00:00-06:00")
	require.NoError(t, err)
	assert.False(t, wholeDay)
	assert.True(t, at.Equal(time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC)))

	none, _, err := queryTime("")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, _, err = queryTime("03/02/2026")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}
