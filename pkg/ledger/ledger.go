package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/elettra-ics/inau/pkg/builds"
	"github.com/elettra-ics/inau/pkg/refstore"
	"github.com/elettra-ics/inau/pkg/segment"
	"github.com/elettra-ics/inau/pkg/storage"
)

// Ledger owns the installation version lifecycle. All writes go through Put;
// the close/insert transition is atomic, so no reader ever observes an
// entity with zero or two active versions.
type Ledger struct {
	db     *gorm.DB
	router *segment.Router
	store  *segment.Store
	refs   *refstore.Store
	builds *builds.Service

	// now is swappable in tests.
	now func() time.Time
}

// New creates a Ledger.
func New(db *gorm.DB, router *segment.Router, store *segment.Store, refs *refstore.Store, buildSvc *builds.Service) *Ledger {
	return &Ledger{
		db:     db,
		router: router,
		store:  store,
		refs:   refs,
		builds: buildSvc,
		now:    time.Now,
	}
}

// AutoMigrate creates or updates the current-state projection table.
func (l *Ledger) AutoMigrate() error {
	if err := l.db.AutoMigrate(&head{}); err != nil {
		return fmt.Errorf("auto-migrate ledger_heads: %w", err)
	}
	return nil
}

// PutRequest is a new or changed installation fact.
type PutRequest struct {
	HostID int64
	UserID int64
	Build  builds.Ref
	Kind   InstallKind
	// InstalledAt defaults to the transition time when zero.
	InstalledAt time.Time
}

// Put records an installation fact. For a new entity it inserts the first
// version; for an existing one it closes the active version and inserts the
// replacement in one atomic transition. A put carrying the same facts as the
// active version is a no-op returning that version. Losing a concurrent
// transition is a conflict: the caller re-reads and decides whether its
// write is still needed.
func (l *Ledger) Put(ctx context.Context, req PutRequest) (*VersionRecord, error) {
	host, err := l.refs.HostByID(ctx, req.HostID)
	if err != nil {
		return nil, fmt.Errorf("put: %w", err)
	}
	if _, err := l.refs.UserByID(ctx, req.UserID); err != nil {
		return nil, fmt.Errorf("put: %w", err)
	}
	build, err := l.builds.Get(ctx, req.Build)
	if err != nil {
		return nil, fmt.Errorf("put: %w", err)
	}

	entityID := EntityID(host.ID, build.RepositoryID)
	now := l.now().UTC()
	installedAt := req.InstalledAt
	if installedAt.IsZero() {
		installedAt = now
	}

	// Segment creation is DDL and must happen outside the transition
	// transaction. Idempotent, so a later rollback leaves nothing to undo.
	targetSeg, err := l.router.ResolveAndEnsure(ctx, Category, segment.YearlyBucket(now))
	if err != nil {
		return nil, err
	}

	next := &VersionRecord{
		EntityID:    entityID,
		HostID:      host.ID,
		UserID:      req.UserID,
		BuildID:     build.ID,
		BuildDate:   build.Date,
		Kind:        req.Kind,
		InstalledAt: installedAt,
		ValidFrom:   now,
	}

	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var h head
		err := tx.Where("entity_id = ?", entityID).First(&h).Error
		switch {
		case err == gorm.ErrRecordNotFound:
			return l.insertFirst(tx, targetSeg, next, build.RepositoryID)
		case err != nil:
			return storage.Storagef("put %s: read head: %v", entityID, err)
		default:
			return l.transition(tx, &h, targetSeg, next, now)
		}
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// insertFirst creates the first version of a new entity. The head's primary
// key resolves the race between two first-writers: the loser's insert fails
// and surfaces as a conflict.
func (l *Ledger) insertFirst(tx *gorm.DB, seg segment.ID, next *VersionRecord, repositoryID int64) error {
	if _, err := segment.AppendTx(tx, seg, next); err != nil {
		return err
	}
	h := head{
		EntityID:     next.EntityID,
		SegmentLabel: seg.Label,
		RecordID:     next.ID,
		HostID:       next.HostID,
		RepositoryID: repositoryID,
		ValidFrom:    next.ValidFrom,
	}
	if err := tx.Create(&h).Error; err != nil {
		if storage.IsDuplicateKey(err) {
			return storage.Conflictf("put %s: concurrent first write", next.EntityID)
		}
		return storage.Storagef("put %s: create head: %v", next.EntityID, err)
	}
	return nil
}

// transition performs the close/insert pair. The valid_to IS NULL predicate
// on the close and the record-id predicate on the head update are the
// optimistic tokens: a racer that commits first leaves zero rows for us.
func (l *Ledger) transition(tx *gorm.DB, h *head, seg segment.ID, next *VersionRecord, now time.Time) error {
	activeSeg := segment.ID{Category: Category.Name, Label: h.SegmentLabel}

	var active VersionRecord
	err := tx.Table(activeSeg.Table()).Where("id = ?", h.RecordID).First(&active).Error
	if err != nil {
		return storage.Storagef("put %s: read active version: %v", next.EntityID, err)
	}

	if active.sameFields(next.HostID, next.UserID, next.BuildID, next.BuildDate, next.Kind) {
		// Unchanged facts: no redundant version, no history noise.
		*next = active
		return nil
	}

	n, err := segment.UpdateScoped(tx, activeSeg,
		map[string]any{"id": active.ID, "valid_to": nil},
		map[string]any{"valid_to": now})
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.Conflictf("put %s: active version already superseded", next.EntityID)
	}

	if _, err := segment.AppendTx(tx, seg, next); err != nil {
		return err
	}

	res := tx.Model(&head{}).
		Where("entity_id = ? AND record_id = ?", next.EntityID, active.ID).
		Updates(map[string]any{
			"segment_label": seg.Label,
			"record_id":     next.ID,
			"valid_from":    next.ValidFrom,
		})
	if res.Error != nil {
		return storage.Storagef("put %s: advance head: %v", next.EntityID, res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.Conflictf("put %s: head advanced concurrently", next.EntityID)
	}
	return nil
}

// AsOf returns the version of entityID whose validity interval contains ts,
// or nil when the entity did not exist yet or has no version covering that
// instant.
func (l *Ledger) AsOf(ctx context.Context, entityID string, ts time.Time) (*VersionRecord, error) {
	regs, err := l.router.List(ctx, Category.Name)
	if err != nil {
		return nil, err
	}

	for _, reg := range regs {
		// Versions in a segment have valid_from within its bucket; segments
		// that start after ts cannot contain a covering version.
		if lower, err := time.Parse(time.RFC3339, reg.LowerBound); err == nil && lower.After(ts) {
			continue
		}

		var rec VersionRecord
		err := l.db.WithContext(ctx).Table(reg.SegmentID().Table()).
			Where("entity_id = ? AND valid_from <= ? AND (valid_to IS NULL OR valid_to > ?)", entityID, ts, ts).
			First(&rec).Error
		if err == gorm.ErrRecordNotFound {
			continue
		}
		if err != nil {
			return nil, storage.Storagef("as-of %s: %v", entityID, err)
		}
		return &rec, nil
	}
	return nil, nil
}

// History returns the versions of entityID ordered by valid_from descending,
// each annotated with its computed duration. A limit of zero returns the
// full chain.
func (l *Ledger) History(ctx context.Context, entityID string, limit int) ([]Version, error) {
	regs, err := l.router.List(ctx, Category.Name)
	if err != nil {
		return nil, err
	}

	segs := make([]segment.ID, len(regs))
	for i := range regs {
		segs[i] = regs[i].SegmentID()
	}

	var versions []Version
	filter := segment.Filter{}.Where("entity_id", "=", entityID)
	err = segment.Scan(ctx, l.db, segs, filter, func(seg segment.ID, rec *VersionRecord) error {
		versions = append(versions, Version{VersionRecord: *rec, Segment: seg})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].ValidFrom.After(versions[j].ValidFrom)
	})
	if limit > 0 && len(versions) > limit {
		versions = versions[:limit]
	}

	now := l.now().UTC()
	for i := range versions {
		end := now
		if versions[i].ValidTo != nil {
			end = *versions[i].ValidTo
		}
		versions[i].Duration = end.Sub(versions[i].ValidFrom)
	}
	return versions, nil
}

// Current returns the active version of entityID, or nil when the entity is
// unknown. It reads through the current-state projection instead of scanning
// the version chain.
func (l *Ledger) Current(ctx context.Context, entityID string) (*VersionRecord, error) {
	var h head
	err := l.db.WithContext(ctx).Where("entity_id = ?", entityID).First(&h).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, storage.Storagef("current %s: read head: %v", entityID, err)
	}

	seg := segment.ID{Category: Category.Name, Label: h.SegmentLabel}
	var rec VersionRecord
	if err := l.db.WithContext(ctx).Table(seg.Table()).Where("id = ?", h.RecordID).First(&rec).Error; err != nil {
		return nil, storage.Storagef("current %s: read version: %v", entityID, err)
	}
	return &rec, nil
}
