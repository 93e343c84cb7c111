package segment

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/elettra-ics/inau/pkg/storage"
)

// Router resolves partition keys to segments and is the only component
// permitted to create new segments. Resolution is a pure function of the key;
// creation is idempotent and race-safe: of two concurrent first-writers to a
// new bucket exactly one creates it and the other observes "already exists"
// and proceeds normally.
type Router struct {
	db   *gorm.DB
	lock storage.SchemaLock

	group singleflight.Group

	mu    sync.RWMutex
	known map[ID]struct{}
}

// NewRouter creates a Router. The schema lock serializes DDL across replicas;
// the in-process singleflight group collapses concurrent creations of the
// same bucket into one.
func NewRouter(db *gorm.DB, lock storage.SchemaLock) *Router {
	return &Router{
		db:    db,
		lock:  lock,
		known: make(map[ID]struct{}),
	}
}

// AutoMigrate creates or updates the segment registry table.
func (r *Router) AutoMigrate() error {
	if err := r.db.AutoMigrate(&Registration{}); err != nil {
		return fmt.Errorf("auto-migrate segments: %w", err)
	}
	return nil
}

// ResolveAndEnsure returns the segment that must contain a record whose
// partition key falls into bucket, guaranteeing the segment exists by the
// time the call returns. Creation failure other than "already exists" is
// surfaced to the caller; the router does not retry internally.
func (r *Router) ResolveAndEnsure(ctx context.Context, cat Category, bucket Bucket) (ID, error) {
	id := ID{Category: cat.Name, Label: bucket.Label}

	r.mu.RLock()
	_, ok := r.known[id]
	r.mu.RUnlock()
	if ok {
		return id, nil
	}

	// Collapse concurrent in-process resolvers of the same bucket.
	_, err, _ := r.group.Do(id.Table(), func() (any, error) {
		return nil, r.ensure(ctx, cat, bucket, id)
	})
	if err != nil {
		return ID{}, err
	}

	r.mu.Lock()
	r.known[id] = struct{}{}
	r.mu.Unlock()

	return id, nil
}

func (r *Router) ensure(ctx context.Context, cat Category, bucket Bucket, id ID) error {
	// Fast path: already registered by this or another process.
	var count int64
	err := r.db.WithContext(ctx).Model(&Registration{}).
		Where("category = ? AND label = ?", id.Category, id.Label).
		Count(&count).Error
	if err != nil {
		return storage.Storagef("check segment %s: %v", id.Table(), err)
	}
	if count > 0 {
		return nil
	}

	// Cross-process guard around the DDL. The registry's unique index is the
	// backstop for anything that slips past the lock.
	return r.lock.WithLock(ctx, "segment:"+id.Table(), func() error {
		if err := r.db.WithContext(ctx).Table(id.Table()).AutoMigrate(cat.Prototype); err != nil {
			return storage.Storagef("create segment table %s: %v", id.Table(), err)
		}

		reg := Registration{
			Category:   id.Category,
			Label:      id.Label,
			LowerBound: bucket.Lower,
			UpperBound: bucket.Upper,
			Table_:     id.Table(),
		}
		if err := r.db.WithContext(ctx).Create(&reg).Error; err != nil {
			// The loser of a creation race lands here and wins anyway.
			if storage.IsDuplicateKey(err) {
				return nil
			}
			return storage.Storagef("register segment %s: %v", id.Table(), err)
		}
		return nil
	})
}

// List returns all registered segments of a category, oldest first.
func (r *Router) List(ctx context.Context, category string) ([]Registration, error) {
	var regs []Registration
	err := r.db.WithContext(ctx).
		Where("category = ?", category).
		Order("lower_bound ASC").
		Find(&regs).Error
	if err != nil {
		return nil, storage.Storagef("list segments for %s: %v", category, err)
	}
	return regs, nil
}

// Lookup returns the registered segment containing label, or NotFound.
func (r *Router) Lookup(ctx context.Context, id ID) (*Registration, error) {
	var reg Registration
	err := r.db.WithContext(ctx).
		Where("category = ? AND label = ?", id.Category, id.Label).
		First(&reg).Error
	if err != nil {
		return nil, storage.ClassifyRead(fmt.Sprintf("lookup segment %s", id.Table()), err)
	}
	return &reg, nil
}
