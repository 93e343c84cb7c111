package storage

import (
	"context"
	"fmt"
	"hash/crc32"
	"os"
	"time"

	"gorm.io/gorm"
)

// SchemaLock serializes DDL across replicas: startup migrations and lazy
// segment-table creation both run under it.
type SchemaLock interface {
	// WithLock executes fn while holding the named lock. It blocks until the
	// lock is acquired, then releases it after fn returns.
	WithLock(ctx context.Context, name string, fn func() error) error
}

// NewSchemaLock returns a SchemaLock appropriate for the database dialect.
// PostgreSQL uses advisory locks; other databases use a table-based fallback.
// The lock table is created immediately for the fallback strategy.
func NewSchemaLock(db *gorm.DB) SchemaLock {
	if db == nil {
		return &noopSchemaLock{}
	}
	if db.Dialector.Name() == "postgres" {
		return &pgAdvisorySchemaLock{db: db}
	}
	lock := &fallbackSchemaLock{db: db}
	// Create the lock table immediately so that concurrent callers never hit
	// "no such table" errors on their first WithLock call.
	_ = db.AutoMigrate(&schemaLockRecord{})
	return lock
}

type noopSchemaLock struct{}

func (n *noopSchemaLock) WithLock(_ context.Context, _ string, fn func() error) error {
	return fn()
}

// pgAdvisorySchemaLock uses PostgreSQL advisory locks keyed by the CRC of the
// lock name.
type pgAdvisorySchemaLock struct {
	db *gorm.DB
}

func (l *pgAdvisorySchemaLock) WithLock(ctx context.Context, name string, fn func() error) error {
	lockID := int64(crc32.ChecksumIEEE([]byte("inau:" + name)))

	if err := l.db.WithContext(ctx).Exec("SELECT pg_advisory_lock(?)", lockID).Error; err != nil {
		return fmt.Errorf("failed to acquire advisory lock %q: %w", name, err)
	}

	// Always release the lock.
	defer func() {
		_ = l.db.Exec("SELECT pg_advisory_unlock(?)", lockID).Error
	}()

	return fn()
}

// schemaLockRecord is the table-based lock row for non-PostgreSQL databases.
type schemaLockRecord struct {
	ID       string    `gorm:"primaryKey;column:id"`
	LockedAt time.Time `gorm:"column:locked_at"`
	LockedBy string    `gorm:"column:locked_by"`
}

func (schemaLockRecord) TableName() string { return "schema_lock" }

// fallbackSchemaLock uses a database table for locking on non-PostgreSQL
// databases (SQLite, MySQL). It uses INSERT-or-fail semantics so only one
// holder exists at a time, with stale lock cleanup for crash recovery.
type fallbackSchemaLock struct {
	db *gorm.DB
}

func (l *fallbackSchemaLock) WithLock(ctx context.Context, name string, fn func() error) error {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	lockRow := schemaLockRecord{
		ID:       name,
		LockedBy: hostname,
	}

	const maxRetries = 30
	const retryInterval = 1 * time.Second
	const staleLockAge = 5 * time.Minute

	acquired := false
	for i := 0; i < maxRetries; i++ {
		// Delete stale locks to handle crash recovery.
		l.db.WithContext(ctx).Where("id = ? AND locked_at < ?", name, time.Now().Add(-staleLockAge)).Delete(&schemaLockRecord{})

		lockRow.LockedAt = time.Now()

		// Try to insert (fails if the row already exists).
		result := l.db.WithContext(ctx).Create(&lockRow)
		if result.Error == nil {
			acquired = true
			break
		}

		if i == maxRetries-1 {
			return fmt.Errorf("failed to acquire schema lock %q after %d retries: %w", name, maxRetries, result.Error)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}

	if !acquired {
		return fmt.Errorf("failed to acquire schema lock %q", name)
	}

	defer func() {
		l.db.Where("id = ?", name).Delete(&schemaLockRecord{})
	}()

	return fn()
}
