// Package ledger implements the temporal installation ledger: every change to
// an installation closes the previous version and appends a new one, so the
// full history of what ran where stays queryable. Versions live in yearly
// segments keyed by valid_from.
package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/elettra-ics/inau/pkg/segment"
)

// InstallKind classifies an installation.
type InstallKind int

const (
	KindProduction InstallKind = iota
	KindStaging
	KindDevelopment
)

func (k InstallKind) String() string {
	switch k {
	case KindProduction:
		return "production"
	case KindStaging:
		return "staging"
	case KindDevelopment:
		return "development"
	default:
		return "unknown"
	}
}

// ParseInstallKind maps the wire name back to the enum.
func ParseInstallKind(s string) (InstallKind, error) {
	switch s {
	case "production":
		return KindProduction, nil
	case "staging":
		return KindStaging, nil
	case "development":
		return KindDevelopment, nil
	default:
		return 0, fmt.Errorf("unknown install kind %q", s)
	}
}

// MarshalJSON serializes the kind by name.
func (k InstallKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *InstallKind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseInstallKind(name)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// VersionRecord is one version of an installation. Its validity interval is
// half-open [valid_from, valid_to); a nil valid_to means the version is
// currently active. A closed version is immutable.
type VersionRecord struct {
	ID        int64       `gorm:"primaryKey;autoIncrement" json:"-"`
	EntityID  string      `gorm:"size:255;not null;index" json:"entityId"`
	HostID    int64       `gorm:"not null;index" json:"hostId"`
	UserID    int64       `gorm:"not null" json:"userId"`
	BuildID   int64       `gorm:"not null;index" json:"buildId"`
	BuildDate time.Time   `gorm:"not null" json:"buildDate"`
	Kind      InstallKind `gorm:"not null" json:"kind"`
	// InstalledAt is when the install action physically happened on the
	// host, as opposed to when this version became valid.
	InstalledAt time.Time  `gorm:"not null" json:"installedAt"`
	ValidFrom   time.Time  `gorm:"not null;index" json:"validFrom"`
	ValidTo     *time.Time `gorm:"index" json:"validTo,omitempty"`
}

// RecordID implements segment.Record.
func (v *VersionRecord) RecordID() int64 { return v.ID }

// Active reports whether the version is not yet superseded.
func (v *VersionRecord) Active() bool { return v.ValidTo == nil }

// sameFields reports whether a proposed write carries the same facts as v.
// The validity interval and the physical install time are lifecycle data,
// not facts, and are excluded from the comparison.
func (v *VersionRecord) sameFields(hostID, userID, buildID int64, buildDate time.Time, kind InstallKind) bool {
	return v.HostID == hostID &&
		v.UserID == userID &&
		v.BuildID == buildID &&
		v.BuildDate.Equal(buildDate) &&
		v.Kind == kind
}

// Category declaration for the partition router.
var Category = segment.Category{Name: "installations", Prototype: &VersionRecord{}}

// EntityID derives the stable logical identity of an installation: one
// repository deployed on one host.
func EntityID(hostID, repositoryID int64) string {
	return fmt.Sprintf("host/%d:repo/%d", hostID, repositoryID)
}

// head is the current-state projection row of one live entity. It is
// maintained inside the same transaction as every version transition, so it
// never needs independent reconciliation, and its primary key doubles as the
// first-writer guard for new entities.
type head struct {
	EntityID     string    `gorm:"primaryKey;size:255"`
	SegmentLabel string    `gorm:"size:64;not null"`
	RecordID     int64     `gorm:"not null"`
	HostID       int64     `gorm:"not null;index"`
	RepositoryID int64     `gorm:"not null;index"`
	ValidFrom    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (head) TableName() string { return "ledger_heads" }

// Version is a history entry: the record plus its segment handle and its
// computed duration (valid_to, or now for the active version, minus
// valid_from).
type Version struct {
	VersionRecord
	Segment  segment.ID    `json:"-"`
	Duration time.Duration `json:"duration"`
}
