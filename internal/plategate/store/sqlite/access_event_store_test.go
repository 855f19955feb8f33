package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/plategate/internal/plategate/domain"
	"github.com/BrandonDHaskell/plategate/internal/plategate/store"
)

// ── Append ──────────────────────────────────────────────────────────────────

func TestAccessEventStore_Append_ColumnsCorrect(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	seedIdentity(t, s, "id-1", "ABC123")

	ev, err := s.events.Append(ctx, store.AccessEvent{
		Plate:      "ABC123",
		IdentityID: ptr("id-1"),
		OccurredAt: baseTime,
		Authorized: true,
		Confidence: 0.95,
		Source:     domain.SourceCapture,
		ImageRef:   ptr("capture/1.jpg"),
		RecordedBy: ptr("guard-1"),
	})
	require.NoError(t, err)
	assert.Positive(t, ev.ID)
	require.NotNil(t, ev.Identity)
	assert.Equal(t, "Name id-1", ev.Identity.DisplayName)

	var (
		plate      string
		authorized int
		occurredMs int64
		confidence float64
		source     string
		imageRef   sql.NullString
		note       sql.NullString
	)
	err = s.conn.QueryRowContext(ctx, `
SELECT plate, authorized, occurred_at_ms, confidence, source, image_ref, note
FROM access_events WHERE event_id = ?`, ev.ID,
	).Scan(&plate, &authorized, &occurredMs, &confidence, &source, &imageRef, &note)
	require.NoError(t, err)

	assert.Equal(t, "ABC123", plate)
	assert.Equal(t, 1, authorized)
	assert.Equal(t, baseTime.UnixMilli(), occurredMs)
	assert.InDelta(t, 0.95, confidence, 1e-9)
	assert.Equal(t, "capture", source)
	assert.Equal(t, "capture/1.jpg", imageRef.String)
	assert.False(t, note.Valid)
}

func TestAccessEventStore_Append_UnknownIdentity(t *testing.T) {
	s := newStores(t)
	_, err := s.events.Append(context.Background(), store.AccessEvent{
		Plate: "ABC123", IdentityID: ptr("ghost"), Authorized: true, Source: domain.SourceManual,
	})
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)
}

func TestAccessEventStore_Append_ClampsTimestamp(t *testing.T) {
	s := newStores(t)
	first := appendEvent(t, s, "AAA111", nil, baseTime, false)
	second := appendEvent(t, s, "BBB222", nil, baseTime.Add(-time.Minute), false)

	assert.Greater(t, second.ID, first.ID)
	assert.Equal(t, first.OccurredAt, second.OccurredAt)
}

func TestAccessEventStore_Append_Concurrent(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	const n = 20

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Timestamps arrive out of order across goroutines.
			_, errs[i] = s.events.Append(ctx, store.AccessEvent{
				Plate:      "ABC1234",
				OccurredAt: baseTime.Add(time.Duration(n-i) * time.Second),
				Confidence: 1,
				Source:     domain.SourceManual,
			})
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	evs, err := s.events.List(ctx, store.EventFilter{})
	require.NoError(t, err)
	require.Len(t, evs, n)

	sort.Slice(evs, func(i, j int) bool { return evs[i].ID < evs[j].ID })
	seen := make(map[int64]bool, n)
	for i, ev := range evs {
		assert.False(t, seen[ev.ID], "duplicate id %d", ev.ID)
		seen[ev.ID] = true
		if i > 0 {
			assert.False(t, ev.OccurredAt.Before(evs[i-1].OccurredAt),
				"event %d at %s precedes event %d at %s", ev.ID, ev.OccurredAt, evs[i-1].ID, evs[i-1].OccurredAt)
		}
	}
}

// ── Append-only enforcement ─────────────────────────────────────────────────

func TestAccessEvents_UpdateAndDeleteRejected(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	ev := appendEvent(t, s, "AAA111", nil, baseTime, false)

	_, err := s.conn.ExecContext(ctx, `UPDATE access_events SET authorized = 1 WHERE event_id = ?`, ev.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append-only")

	_, err = s.conn.ExecContext(ctx, `DELETE FROM access_events WHERE event_id = ?`, ev.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append-only")
}

// ── Query ───────────────────────────────────────────────────────────────────

func TestAccessEventStore_Query_Pagination(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()

	var ids []int64
	for i := range 25 {
		ev := appendEvent(t, s, "AAA111", nil, baseTime.Add(time.Duration(i)*time.Minute), false)
		ids = append(ids, ev.ID)
	}

	page, total, err := s.events.Query(ctx, store.EventFilter{}, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	require.Len(t, page, 10)

	// Newest first: the second page holds the 11th..20th most recent.
	for i, ev := range page {
		assert.Equal(t, ids[24-10-i], ev.ID)
	}

	page, total, err = s.events.Query(ctx, store.EventFilter{}, 10, 30)
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	assert.Empty(t, page)
}

func TestAccessEventStore_Query_TiesOrderedByIDDesc(t *testing.T) {
	s := newStores(t)
	a := appendEvent(t, s, "AAA111", nil, baseTime, false)
	b := appendEvent(t, s, "BBB222", nil, baseTime, false)

	got, _, err := s.events.Query(context.Background(), store.EventFilter{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, b.ID, got[0].ID)
	assert.Equal(t, a.ID, got[1].ID)
}

func TestAccessEventStore_Query_Filters(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	appendEvent(t, s, "AAA111", nil, baseTime, false)
	appendEvent(t, s, "BBB222", nil, baseTime.Add(time.Hour), false)
	appendEvent(t, s, "AAA111", nil, baseTime.Add(2*time.Hour), false)

	got, total, err := s.events.Query(ctx, store.EventFilter{Plate: "AAA111"}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, got, 2)

	from := baseTime.Add(30 * time.Minute)
	to := baseTime.Add(2 * time.Hour)
	got, total, err = s.events.Query(ctx, store.EventFilter{From: &from, To: &to}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "AAA111", got[0].Plate)
	assert.Equal(t, "BBB222", got[1].Plate)

	all, err := s.events.List(ctx, store.EventFilter{Plate: "BBB222"})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// Before is exclusive, so an event exactly at the bound is left out.
	before := baseTime.Add(time.Hour)
	got, total, err = s.events.Query(ctx, store.EventFilter{Before: &before}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "AAA111", got[0].Plate)

	end := baseTime.Add(2 * time.Hour)
	all, err = s.events.List(ctx, store.EventFilter{From: &before, Before: &end})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "BBB222", all[0].Plate)
}

func TestAccessEventStore_Get_NotFound(t *testing.T) {
	s := newStores(t)
	_, err := s.events.Get(context.Background(), 42)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

// ── DeniedPlates ────────────────────────────────────────────────────────────

func TestAccessEventStore_DeniedPlates(t *testing.T) {
	s := newStores(t)
	appendEvent(t, s, "OLD0001", nil, baseTime.Add(-2*time.Hour), false)
	appendEvent(t, s, "AAA111", nil, baseTime, false)
	appendEvent(t, s, "AAA111", nil, baseTime.Add(time.Minute), true)
	last := appendEvent(t, s, "AAA111", nil, baseTime.Add(2*time.Minute), false)
	appendEvent(t, s, "BBB222", nil, baseTime.Add(3*time.Minute), false)

	got, err := s.events.DeniedPlates(context.Background(), baseTime.Add(-time.Hour), 2)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, store.PlateDenials{Plate: "AAA111", Denials: 2, LatestEventID: last.ID}, got[0])
}
