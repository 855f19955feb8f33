package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/plategate/internal/plategate/domain"
	"github.com/BrandonDHaskell/plategate/internal/plategate/store"
)

func TestAlertStore_CreateAndAcknowledge(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	seedIdentity(t, s, "guard-1")
	ev := appendEvent(t, s, "AAA111", nil, baseTime, false)

	a, err := s.alerts.CreateAlert(ctx, store.Alert{
		AccessEventID: ev.ID,
		Type:          store.AlertRepeatedDenial,
		Message:       "plate AAA111 denied 3 times",
		CreatedAt:     baseTime,
	})
	require.NoError(t, err)
	assert.Positive(t, a.ID)
	assert.False(t, a.Acknowledged)

	has, err := s.alerts.HasAlert(ctx, ev.ID, store.AlertRepeatedDenial)
	require.NoError(t, err)
	assert.True(t, has)

	ackAt := baseTime.Add(time.Minute)
	acked, err := s.alerts.AcknowledgeAlert(ctx, a.ID, "guard-1", ackAt)
	require.NoError(t, err)
	assert.True(t, acked.Acknowledged)
	require.NotNil(t, acked.AcknowledgedBy)
	assert.Equal(t, "guard-1", *acked.AcknowledgedBy)
	require.NotNil(t, acked.AcknowledgedAt)
	assert.Equal(t, ackAt, *acked.AcknowledgedAt)

	_, err = s.alerts.AcknowledgeAlert(ctx, a.ID, "guard-1", ackAt)
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestAlertStore_AcknowledgeByUnknownCaller(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	ev := appendEvent(t, s, "AAA111", nil, baseTime, false)
	a, err := s.alerts.CreateAlert(ctx, store.Alert{AccessEventID: ev.ID, Type: store.AlertRepeatedDenial, Message: "m"})
	require.NoError(t, err)

	acked, err := s.alerts.AcknowledgeAlert(ctx, a.ID, "not-an-identity", baseTime)
	require.NoError(t, err)
	assert.True(t, acked.Acknowledged)
	assert.Nil(t, acked.AcknowledgedBy)
}

func TestAlertStore_Errors(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()

	_, err := s.alerts.CreateAlert(ctx, store.Alert{AccessEventID: 99, Type: store.AlertRepeatedDenial, Message: "m"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = s.alerts.AcknowledgeAlert(ctx, 99, "", baseTime)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestAlertStore_ListAlerts(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	ev := appendEvent(t, s, "AAA111", nil, baseTime, false)

	var ids []int64
	for range 3 {
		a, err := s.alerts.CreateAlert(ctx, store.Alert{AccessEventID: ev.ID, Type: store.AlertRepeatedDenial, Message: "m"})
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}
	_, err := s.alerts.AcknowledgeAlert(ctx, ids[1], "", baseTime)
	require.NoError(t, err)

	open, err := s.alerts.ListAlerts(ctx, true, 0)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, ids[2], open[0].ID)
	assert.Equal(t, ids[0], open[1].ID)

	all, err := s.alerts.ListAlerts(ctx, false, 2)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
