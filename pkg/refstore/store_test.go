package refstore

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/elettra-ics/inau/pkg/storage"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store := NewStore(db)
	require.NoError(t, store.AutoMigrate())
	return store
}

// seedFleet inserts a minimal facility/server/host chain.
func seedFleet(t *testing.T, store *Store) *Host {
	t.Helper()
	ctx := context.Background()

	arch := &Architecture{Name: "x86_64"}
	require.NoError(t, store.Create(ctx, arch))
	dist := &Distribution{Name: "el", Version: "9"}
	require.NoError(t, store.Create(ctx, dist))
	platform := &Platform{DistributionID: dist.ID, ArchitectureID: arch.ID}
	require.NoError(t, store.Create(ctx, platform))
	facility := &Facility{Name: "linac"}
	require.NoError(t, store.Create(ctx, facility))
	server := &Server{PlatformID: platform.ID, Name: "srv-linac", Prefix: "/runtime"}
	require.NoError(t, store.Create(ctx, server))
	host := &Host{FacilityID: facility.ID, ServerID: server.ID, PlatformID: platform.ID, Name: "lin-cs-01"}
	require.NoError(t, store.Create(ctx, host))
	return host
}

func TestHostResolution(t *testing.T) {
	store := setupStore(t)
	host := seedFleet(t, store)
	ctx := context.Background()

	byID, err := store.HostByID(ctx, host.ID)
	require.NoError(t, err)
	assert.Equal(t, "lin-cs-01", byID.Name)

	byName, err := store.HostByName(ctx, "lin-cs-01")
	require.NoError(t, err)
	assert.Equal(t, host.ID, byName.ID)
}

func TestResolutionNotFound(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	_, err := store.HostByID(ctx, 12345)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.UserByName(ctx, "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.RepositoryByName(ctx, "ghost")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestHostsByFacility(t *testing.T) {
	store := setupStore(t)
	host := seedFleet(t, store)
	ctx := context.Background()

	second := &Host{FacilityID: host.FacilityID, ServerID: host.ServerID, PlatformID: host.PlatformID, Name: "lin-cs-02"}
	require.NoError(t, store.Create(ctx, second))

	hosts, err := store.HostsByFacility(ctx, "linac")
	require.NoError(t, err)
	require.Len(t, hosts, 2)
	assert.Equal(t, "lin-cs-01", hosts[0].Name)

	_, err = store.HostsByFacility(ctx, "booster")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDuplicateNameIsIntegrityError(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &Facility{Name: "linac"}))
	err := store.Create(ctx, &Facility{Name: "linac"})
	assert.ErrorIs(t, err, storage.ErrIntegrity)
}

func TestAdmins(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &User{Name: "alice", Admin: true}))
	require.NoError(t, store.Create(ctx, &User{Name: "bob"}))

	admins, err := store.Admins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "alice", admins[0].Name)
}
