package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/plategate/internal/plategate/domain"
	"github.com/BrandonDHaskell/plategate/internal/plategate/store"
)

// ── CreateIdentity / FindByPlate ────────────────────────────────────────────

func TestIdentityStore_CreateAndFindByPlate(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	seedIdentity(t, s, "id-1", "ABC123", "XYZ789")

	sum, found, err := s.identities.FindByPlate(ctx, "XYZ789")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, store.IdentitySummary{ID: "id-1", DisplayName: "Name id-1", Occupation: "resident"}, sum)

	_, found, err = s.identities.FindByPlate(ctx, "NOPE000")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIdentityStore_Create_DuplicatePlateRollsBack(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	seedIdentity(t, s, "id-1", "ABC123")

	err := s.identities.CreateIdentity(ctx, store.Identity{
		ID: "id-2", DisplayName: "Second", Occupation: "visitor", Role: domain.RoleStandard,
	}, []string{"NEW001", "ABC123"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict), "got %v", err)

	// Neither the identity nor its first plate survived.
	_, err = s.identities.GetIdentity(ctx, "id-2")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, found, err := s.identities.FindByPlate(ctx, "NEW001")
	require.NoError(t, err)
	assert.False(t, found)

	sum, found, err := s.identities.FindByPlate(ctx, "ABC123")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "id-1", sum.ID)
}

func TestIdentityStore_Create_ConcurrentDuplicatePlate(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	const n = 8

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.identities.CreateIdentity(ctx, store.Identity{
				ID:          fmt.Sprintf("id-%d", i),
				DisplayName: fmt.Sprintf("Driver %d", i),
				Occupation:  "resident",
				Role:        domain.RoleStandard,
				CreatedAt:   baseTime,
			}, []string{"ABC1234"})
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, domain.ErrConflict), "got %v", err)
	}
	assert.Equal(t, 1, succeeded)

	ids, err := s.identities.ListIdentities(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestIdentityStore_Create_DuplicateUsername(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()

	first := store.Identity{ID: "id-1", DisplayName: "A", Occupation: "guard", Role: domain.RoleSecurity, Username: "guard"}
	require.NoError(t, s.identities.CreateIdentity(ctx, first, nil))

	second := store.Identity{ID: "id-2", DisplayName: "B", Occupation: "guard", Role: domain.RoleSecurity, Username: "guard"}
	err := s.identities.CreateIdentity(ctx, second, nil)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
}

// ── GetIdentity / FindByUsername / ListIdentities ───────────────────────────

func TestIdentityStore_GetIdentity_IncludesVehicles(t *testing.T) {
	s := newStores(t)
	seedIdentity(t, s, "id-1", "BBB222", "AAA111")

	got, err := s.identities.GetIdentity(context.Background(), "id-1")
	require.NoError(t, err)
	require.Len(t, got.Vehicles, 2)
	assert.Equal(t, "AAA111", got.Vehicles[0].Plate)
	assert.Equal(t, "BBB222", got.Vehicles[1].Plate)
	assert.True(t, got.Vehicles[0].Active)
	assert.Equal(t, baseTime, got.CreatedAt)
}

func TestIdentityStore_FindByUsername(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()

	require.NoError(t, s.identities.CreateIdentity(ctx, store.Identity{
		ID: "id-1", DisplayName: "Admin", Occupation: "admin", Role: domain.RoleAdmin,
		Username: "root", CredentialHash: []byte("hash"),
	}, nil))

	got, err := s.identities.FindByUsername(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.ID)
	assert.Equal(t, domain.RoleAdmin, got.Role)
	assert.Equal(t, []byte("hash"), got.CredentialHash)

	_, err = s.identities.FindByUsername(ctx, "nobody")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestIdentityStore_ListIdentities(t *testing.T) {
	s := newStores(t)
	seedIdentity(t, s, "id-1", "AAA111")
	seedIdentity(t, s, "id-2")

	got, err := s.identities.ListIdentities(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "id-1", got[0].ID)
	assert.Len(t, got[0].Vehicles, 1)
	assert.Empty(t, got[1].Vehicles)
}

// ── UpdateIdentity ──────────────────────────────────────────────────────────

func TestIdentityStore_Update_ReplacesPlates(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	seedIdentity(t, s, "id-1", "AAA111", "BBB222")

	plates := []string{"BBB222", "CCC333"}
	require.NoError(t, s.identities.UpdateIdentity(ctx, "id-1", store.IdentityUpdate{
		DisplayName: ptr("Renamed"),
		Plates:      &plates,
		UpdatedAt:   baseTime.Add(time.Hour),
	}))

	got, err := s.identities.GetIdentity(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.DisplayName)
	require.Len(t, got.Vehicles, 2)
	assert.Equal(t, "BBB222", got.Vehicles[0].Plate)
	assert.Equal(t, "CCC333", got.Vehicles[1].Plate)

	_, found, err := s.identities.FindByPlate(ctx, "AAA111")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIdentityStore_Update_ConflictLeavesRowUntouched(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	seedIdentity(t, s, "id-1", "AAA111")
	seedIdentity(t, s, "id-2", "BBB222")

	plates := []string{"BBB222"}
	err := s.identities.UpdateIdentity(ctx, "id-1", store.IdentityUpdate{
		DisplayName: ptr("Changed"),
		Plates:      &plates,
	})
	assert.True(t, errors.Is(err, domain.ErrConflict), "got %v", err)

	got, err := s.identities.GetIdentity(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "Name id-1", got.DisplayName)
	require.Len(t, got.Vehicles, 1)
	assert.Equal(t, "AAA111", got.Vehicles[0].Plate)
}

func TestIdentityStore_Update_UnknownIdentity(t *testing.T) {
	s := newStores(t)
	err := s.identities.UpdateIdentity(context.Background(), "missing", store.IdentityUpdate{DisplayName: ptr("x")})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

// ── Vehicle operations ──────────────────────────────────────────────────────

func TestIdentityStore_ReassignVehicle(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	seedIdentity(t, s, "id-1", "ABC123")
	seedIdentity(t, s, "id-2")

	require.NoError(t, s.identities.ReassignVehicle(ctx, "ABC123", "id-2", baseTime))

	sum, found, err := s.identities.FindByPlate(ctx, "ABC123")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "id-2", sum.ID)

	err = s.identities.ReassignVehicle(ctx, "NOPE000", "id-2", baseTime)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	err = s.identities.ReassignVehicle(ctx, "ABC123", "missing", baseTime)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestIdentityStore_AddVehicle_Conflict(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	seedIdentity(t, s, "id-1", "ABC123")
	seedIdentity(t, s, "id-2")

	err := s.identities.AddVehicle(ctx, "id-2", "ABC123", baseTime)
	assert.True(t, errors.Is(err, domain.ErrConflict))

	require.NoError(t, s.identities.AddVehicle(ctx, "id-2", "NEW001", baseTime))
	sum, found, err := s.identities.FindByPlate(ctx, "NEW001")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "id-2", sum.ID)
}

func TestIdentityStore_InactiveVehicleIsNotFound(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	seedIdentity(t, s, "id-1", "ABC123")

	require.NoError(t, s.identities.SetVehicleActive(ctx, "ABC123", false, baseTime))
	_, found, err := s.identities.FindByPlate(ctx, "ABC123")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.identities.SetVehicleActive(ctx, "ABC123", true, baseTime))
	_, found, err = s.identities.FindByPlate(ctx, "ABC123")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestIdentityStore_RemoveVehicle(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	seedIdentity(t, s, "id-1", "ABC123")

	require.NoError(t, s.identities.RemoveVehicle(ctx, "ABC123"))
	err := s.identities.RemoveVehicle(ctx, "ABC123")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

// ── DeleteIdentity ──────────────────────────────────────────────────────────

func TestIdentityStore_Delete_CascadesVehiclesKeepsEvents(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	seedIdentity(t, s, "id-1", "ABC123")
	ev := appendEvent(t, s, "ABC123", ptr("id-1"), baseTime, true)

	require.NoError(t, s.identities.DeleteIdentity(ctx, "id-1"))

	_, found, err := s.identities.FindByPlate(ctx, "ABC123")
	require.NoError(t, err)
	assert.False(t, found)

	got, err := s.events.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "ABC123", got.Plate)
	assert.Nil(t, got.IdentityID)
	assert.Nil(t, got.Identity)
	assert.True(t, got.Authorized)

	err = s.identities.DeleteIdentity(ctx, "id-1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
