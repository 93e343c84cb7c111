// Package audit keeps a trail of mutating API calls: who changed the
// reference catalog, recorded a build or touched the ledger, and whether the
// call succeeded. The trail is separate from the ledger itself, which only
// records installation facts.
package audit

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/elettra-ics/inau/pkg/storage"
)

// Event is one recorded mutation attempt.
type Event struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Actor      string    `gorm:"size:255;not null;index" json:"actor"`
	Method     string    `gorm:"size:16;not null" json:"method"`
	Path       string    `gorm:"size:512;not null" json:"path"`
	Resource   string    `gorm:"size:64;not null;index" json:"resource"`
	Outcome    string    `gorm:"size:16;not null" json:"outcome"`
	StatusCode int       `gorm:"not null" json:"statusCode"`
	RequestID  string    `gorm:"size:64" json:"requestId"`
	CreatedAt  time.Time `gorm:"not null;index" json:"createdAt"`
}

func (Event) TableName() string { return "audit_events" }

// Store persists audit events.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&Event{})
}

// Append writes one event. Callers treat failures as non-fatal; a lost audit
// line must never fail the request it describes.
func (s *Store) Append(ctx context.Context, event *Event) error {
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return storage.ClassifyWrite("audit event", err)
	}
	return nil
}

// Recent returns the newest events, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	var events []Event
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&events).Error
	if err != nil {
		return nil, storage.Storagef("list audit events: %v", err)
	}
	return events, nil
}

// DeleteOlderThan removes events created before cutoff and reports how many
// were removed.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&Event{})
	if res.Error != nil {
		return 0, storage.Storagef("delete audit events: %v", res.Error)
	}
	return res.RowsAffected, nil
}
