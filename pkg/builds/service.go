package builds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/elettra-ics/inau/pkg/refstore"
	"github.com/elettra-ics/inau/pkg/segment"
	"github.com/elettra-ics/inau/pkg/storage"
)

// Service records builds and artifacts on behalf of the external build
// pipeline.
type Service struct {
	db     *gorm.DB
	router *segment.Router
	store  *segment.Store
	refs   *refstore.Store

	// now is swappable in tests.
	now func() time.Time
}

// NewService creates a Service.
func NewService(db *gorm.DB, router *segment.Router, store *segment.Store, refs *refstore.Store) *Service {
	return &Service{
		db:     db,
		router: router,
		store:  store,
		refs:   refs,
		now:    time.Now,
	}
}

// AutoMigrate creates or updates the build id sequence table.
func (s *Service) AutoMigrate() error {
	if err := s.db.AutoMigrate(&idCounter{}); err != nil {
		return fmt.Errorf("auto-migrate build_id_seq: %w", err)
	}
	return nil
}

func (s *Service) allocateID(ctx context.Context) (int64, error) {
	counter := idCounter{}
	if err := s.db.WithContext(ctx).Create(&counter).Error; err != nil {
		return 0, storage.Storagef("allocate build id: %v", err)
	}
	return counter.ID, nil
}

// RecordBuild registers a scheduled build for a repository and returns its
// cross-segment reference. When platformID is zero the repository's platform
// is used. The monthly segment for the build timestamp is created on demand.
func (s *Service) RecordBuild(ctx context.Context, repositoryID, platformID int64, tag string) (Ref, error) {
	if tag == "" {
		return Ref{}, storage.Integrityf("record build: empty tag")
	}

	repo, err := s.refs.RepositoryByID(ctx, repositoryID)
	if err != nil {
		return Ref{}, fmt.Errorf("record build: %w", err)
	}
	if platformID == 0 {
		platformID = repo.PlatformID
	} else if _, err := s.refs.PlatformByID(ctx, platformID); err != nil {
		return Ref{}, fmt.Errorf("record build: %w", err)
	}

	id, err := s.allocateID(ctx)
	if err != nil {
		return Ref{}, err
	}

	now := s.now().UTC()
	seg, err := s.router.ResolveAndEnsure(ctx, BuildCategory, segment.MonthlyBucket(now))
	if err != nil {
		return Ref{}, err
	}

	rec := &Record{
		ID:           id,
		RepositoryID: repo.ID,
		PlatformID:   platformID,
		Tag:          tag,
		Date:         now,
		Status:       StatusScheduled,
	}
	if _, err := s.store.Append(ctx, seg, rec); err != nil {
		return Ref{}, err
	}
	return rec.Ref(), nil
}

// Get returns the build identified by ref, or NotFound.
func (s *Service) Get(ctx context.Context, ref Ref) (*Record, error) {
	seg := segment.ID{Category: BuildCategory.Name, Label: segment.MonthlyBucket(ref.Date).Label}
	if _, err := s.router.Lookup(ctx, seg); err != nil {
		return nil, fmt.Errorf("build %d: %w", ref.ID, err)
	}

	var rec Record
	err := s.db.WithContext(ctx).Table(seg.Table()).Where("id = ?", ref.ID).First(&rec).Error
	if err != nil {
		return nil, storage.ClassifyRead(fmt.Sprintf("build %d", ref.ID), err)
	}
	return &rec, nil
}

// SetStatus advances the build state machine. Invalid transitions are
// integrity errors; losing a concurrent transition race is a conflict.
func (s *Service) SetStatus(ctx context.Context, ref Ref, to Status, output string) error {
	rec, err := s.Get(ctx, ref)
	if err != nil {
		return err
	}

	if !transitionAllowed(rec.Status, to) {
		return storage.Integrityf("build %d: transition %s -> %s not allowed", ref.ID, rec.Status, to)
	}

	seg := segment.ID{Category: BuildCategory.Name, Label: segment.MonthlyBucket(ref.Date).Label}
	patch := map[string]any{"status": to}
	if output != "" {
		patch["output"] = output
	}

	// The status predicate is the optimistic token: a concurrent transition
	// that commits first leaves zero rows to update here.
	n, err := segment.UpdateScoped(s.db.WithContext(ctx), seg,
		map[string]any{"id": ref.ID, "status": rec.Status}, patch)
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.Conflictf("build %d: concurrent status transition", ref.ID)
	}
	return nil
}

// RecordArtifact registers an artifact for a build. Exactly one of hash and
// symlinkTarget must be set. The numeric segment for the build id is created
// on demand.
func (s *Service) RecordArtifact(ctx context.Context, build Ref, filename string, hash, symlinkTarget *string) (int64, error) {
	if filename == "" {
		return 0, storage.Integrityf("record artifact: empty filename")
	}
	if (hash == nil) == (symlinkTarget == nil) {
		return 0, storage.Integrityf("record artifact %q: exactly one of hash and symlink target required", filename)
	}
	if _, err := s.Get(ctx, build); err != nil {
		return 0, fmt.Errorf("record artifact %q: %w", filename, err)
	}

	seg, err := s.router.ResolveAndEnsure(ctx, ArtifactCategory, segment.NumericBucket(build.ID))
	if err != nil {
		return 0, err
	}

	art := &Artifact{
		BuildID:       build.ID,
		BuildDate:     build.Date,
		Filename:      filename,
		Hash:          hash,
		SymlinkTarget: symlinkTarget,
	}
	return s.store.Append(ctx, seg, art)
}

// Artifacts returns every artifact of a build.
func (s *Service) Artifacts(ctx context.Context, build Ref) ([]Artifact, error) {
	seg := segment.ID{Category: ArtifactCategory.Name, Label: segment.NumericBucket(build.ID).Label}
	if _, err := s.router.Lookup(ctx, seg); err != nil {
		// A build without artifacts may predate its bucket.
		return nil, nil
	}

	var out []Artifact
	filter := segment.Filter{}.Where("build_id", "=", build.ID)
	err := segment.Scan(ctx, s.db, []segment.ID{seg}, filter, func(_ segment.ID, a *Artifact) error {
		out = append(out, *a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LatestSuccessful returns the most recent successful build of a repository,
// or NotFound when it never built successfully.
func (s *Service) LatestSuccessful(ctx context.Context, repositoryID int64) (*Record, error) {
	regs, err := s.router.List(ctx, BuildCategory.Name)
	if err != nil {
		return nil, err
	}

	// Newest segments first; the first hit wins.
	for i := len(regs) - 1; i >= 0; i-- {
		seg := regs[i].SegmentID()
		var rec Record
		err := s.db.WithContext(ctx).Table(seg.Table()).
			Where("repository_id = ? AND status = ?", repositoryID, StatusSuccess).
			Order("date DESC").
			Limit(1).
			First(&rec).Error
		if err == nil {
			return &rec, nil
		}
		if classified := storage.ClassifyRead("latest successful build", err); !errors.Is(classified, storage.ErrNotFound) {
			return nil, classified
		}
	}
	return nil, storage.NotFoundf("no successful build for repository %d", repositoryID)
}
