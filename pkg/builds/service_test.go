package builds

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/elettra-ics/inau/pkg/refstore"
	"github.com/elettra-ics/inau/pkg/segment"
	"github.com/elettra-ics/inau/pkg/storage"
)

type fixture struct {
	db      *gorm.DB
	service *Service
	refs    *refstore.Store
	repo    *refstore.Repository
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	refs := refstore.NewStore(db)
	require.NoError(t, refs.AutoMigrate())

	router := segment.NewRouter(db, storage.NewSchemaLock(db))
	require.NoError(t, router.AutoMigrate())

	service := NewService(db, router, segment.NewStore(db), refs)
	require.NoError(t, service.AutoMigrate())

	ctx := context.Background()
	arch := &refstore.Architecture{Name: "x86_64"}
	require.NoError(t, refs.Create(ctx, arch))
	dist := &refstore.Distribution{Name: "el", Version: "9"}
	require.NoError(t, refs.Create(ctx, dist))
	platform := &refstore.Platform{DistributionID: dist.ID, ArchitectureID: arch.ID}
	require.NoError(t, refs.Create(ctx, platform))
	provider := &refstore.Provider{URL: "https://gitlab.example.eu"}
	require.NoError(t, refs.Create(ctx, provider))
	repo := &refstore.Repository{
		ProviderID:  provider.ID,
		PlatformID:  platform.ID,
		Type:        refstore.RepositoryCPlusPlus,
		Name:        "cs/ds/power-supply",
		Destination: "/bin/",
		Enabled:     true,
	}
	require.NoError(t, refs.Create(ctx, repo))

	return &fixture{db: db, service: service, refs: refs, repo: repo}
}

func strptr(s string) *string { return &s }

func TestRecordBuildCreatesMonthlySegment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.service.now = func() time.Time { return time.Date(2026, 8, 17, 10, 0, 0, 0, time.UTC) }

	ref, err := f.service.RecordBuild(ctx, f.repo.ID, 0, "v1.4.2")
	require.NoError(t, err)
	assert.NotZero(t, ref.ID)

	assert.True(t, f.db.Migrator().HasTable("builds_2026_08"))

	rec, err := f.service.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "v1.4.2", rec.Tag)
	assert.Equal(t, StatusScheduled, rec.Status)
	assert.Equal(t, f.repo.PlatformID, rec.PlatformID)
}

func TestRecordBuildUnknownRepository(t *testing.T) {
	f := setup(t)

	_, err := f.service.RecordBuild(context.Background(), 999, 0, "v1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecordBuildEmptyTag(t *testing.T) {
	f := setup(t)

	_, err := f.service.RecordBuild(context.Background(), f.repo.ID, 0, "")
	assert.ErrorIs(t, err, storage.ErrIntegrity)
}

func TestBuildIDsAreUniqueAcrossSegments(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.service.now = func() time.Time { return time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC) }
	first, err := f.service.RecordBuild(ctx, f.repo.ID, 0, "v1")
	require.NoError(t, err)

	f.service.now = func() time.Time { return time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC) }
	second, err := f.service.RecordBuild(ctx, f.repo.ID, 0, "v2")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, f.db.Migrator().HasTable("builds_2026_01"))
	assert.True(t, f.db.Migrator().HasTable("builds_2026_02"))
}

func TestStatusMachine(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ref, err := f.service.RecordBuild(ctx, f.repo.ID, 0, "v1")
	require.NoError(t, err)

	// scheduled -> success skips running.
	err = f.service.SetStatus(ctx, ref, StatusSuccess, "")
	assert.ErrorIs(t, err, storage.ErrIntegrity)

	require.NoError(t, f.service.SetStatus(ctx, ref, StatusRunning, ""))
	require.NoError(t, f.service.SetStatus(ctx, ref, StatusSuccess, "build ok\n"))

	rec, err := f.service.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, rec.Status)
	assert.Equal(t, "build ok\n", rec.Output)

	// Terminal states are never revisited.
	err = f.service.SetStatus(ctx, ref, StatusRunning, "")
	assert.ErrorIs(t, err, storage.ErrIntegrity)
}

func TestSetStatusConflictOnRace(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ref, err := f.service.RecordBuild(ctx, f.repo.ID, 0, "v1")
	require.NoError(t, err)
	require.NoError(t, f.service.SetStatus(ctx, ref, StatusRunning, ""))

	// Simulate a racer committing between our read and update.
	seg := segment.ID{Category: "builds", Label: segment.MonthlyBucket(ref.Date).Label}
	rec, err := f.service.Get(ctx, ref)
	require.NoError(t, err)
	_, err = segment.UpdateScoped(f.db, seg,
		map[string]any{"id": rec.ID, "status": rec.Status},
		map[string]any{"status": StatusFailed})
	require.NoError(t, err)

	err = f.service.SetStatus(ctx, ref, StatusSuccess, "")
	assert.ErrorIs(t, err, storage.ErrIntegrity) // failed -> success is no longer allowed
}

func TestRecordArtifact(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ref, err := f.service.RecordBuild(ctx, f.repo.ID, 0, "v1")
	require.NoError(t, err)

	id, err := f.service.RecordArtifact(ctx, ref, "power-supply", strptr("ab12cd"), nil)
	require.NoError(t, err)
	assert.NotZero(t, id)

	_, err = f.service.RecordArtifact(ctx, ref, "power-supply-latest", nil, strptr("power-supply"))
	require.NoError(t, err)

	arts, err := f.service.Artifacts(ctx, ref)
	require.NoError(t, err)
	require.Len(t, arts, 2)
	assert.Equal(t, "ab12cd", *arts[0].Hash)
	assert.Nil(t, arts[0].SymlinkTarget)
	assert.Equal(t, "power-supply", *arts[1].SymlinkTarget)
}

func TestRecordArtifactShapeViolations(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ref, err := f.service.RecordBuild(ctx, f.repo.ID, 0, "v1")
	require.NoError(t, err)

	_, err = f.service.RecordArtifact(ctx, ref, "f", nil, nil)
	assert.ErrorIs(t, err, storage.ErrIntegrity)

	_, err = f.service.RecordArtifact(ctx, ref, "f", strptr("aa"), strptr("b"))
	assert.ErrorIs(t, err, storage.ErrIntegrity)

	_, err = f.service.RecordArtifact(ctx, Ref{ID: 999, Date: ref.Date}, "f", strptr("aa"), nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLatestSuccessful(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.service.now = func() time.Time { return time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC) }
	old, err := f.service.RecordBuild(ctx, f.repo.ID, 0, "v1")
	require.NoError(t, err)
	require.NoError(t, f.service.SetStatus(ctx, old, StatusRunning, ""))
	require.NoError(t, f.service.SetStatus(ctx, old, StatusSuccess, ""))

	f.service.now = func() time.Time { return time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC) }
	newer, err := f.service.RecordBuild(ctx, f.repo.ID, 0, "v2")
	require.NoError(t, err)
	require.NoError(t, f.service.SetStatus(ctx, newer, StatusRunning, ""))
	require.NoError(t, f.service.SetStatus(ctx, newer, StatusSuccess, ""))

	// A later failed build must not shadow the successful one.
	f.service.now = func() time.Time { return time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC) }
	failed, err := f.service.RecordBuild(ctx, f.repo.ID, 0, "v3")
	require.NoError(t, err)
	require.NoError(t, f.service.SetStatus(ctx, failed, StatusRunning, ""))
	require.NoError(t, f.service.SetStatus(ctx, failed, StatusFailed, "link error"))

	latest, err := f.service.LatestSuccessful(ctx, f.repo.ID)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, latest.ID)
	assert.Equal(t, "v2", latest.Tag)
}

func TestLatestSuccessfulNotFound(t *testing.T) {
	f := setup(t)

	_, err := f.service.LatestSuccessful(context.Background(), f.repo.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
