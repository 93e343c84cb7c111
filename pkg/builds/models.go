// Package builds ingests build and artifact records from the external build
// pipeline. Builds live in monthly segments keyed by their timestamp,
// artifacts in fixed-width numeric segments keyed by the owning build id, so
// every reference to a build or artifact carries the partition key alongside
// the id.
package builds

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/elettra-ics/inau/pkg/segment"
)

// Status is the build state machine. Transitions are monotonic; no state is
// revisited.
type Status int

const (
	StatusScheduled Status = iota
	StatusRunning
	StatusSuccess
	StatusFailed
	StatusCanceled
)

func (s Status) String() string {
	switch s {
	case StatusScheduled:
		return "scheduled"
	case StatusRunning:
		return "running"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// ParseStatus maps a wire name back onto a Status.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "scheduled":
		return StatusScheduled, nil
	case "running":
		return StatusRunning, nil
	case "success":
		return StatusSuccess, nil
	case "failed":
		return StatusFailed, nil
	case "canceled":
		return StatusCanceled, nil
	}
	return 0, fmt.Errorf("unknown build status %q", s)
}

// MarshalJSON serializes the status by name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCanceled
}

// allowedTransitions encodes the scheduled -> running -> {success, failed}
// machine, with canceled reachable from any non-terminal state.
var allowedTransitions = map[Status][]Status{
	StatusScheduled: {StatusRunning, StatusCanceled},
	StatusRunning:   {StatusSuccess, StatusFailed, StatusCanceled},
}

func transitionAllowed(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Record is one build row inside a monthly segment. The id is allocated from
// a global sequence so it stays unique across segments.
type Record struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	RepositoryID int64     `gorm:"not null;index" json:"repositoryId"`
	PlatformID   int64     `gorm:"not null;index" json:"platformId"`
	Tag          string    `gorm:"size:255;not null" json:"tag"`
	Date         time.Time `gorm:"not null;index" json:"date"`
	Status       Status    `gorm:"not null;index" json:"status"`
	Output       string    `gorm:"type:text" json:"output,omitempty"`
}

// RecordID implements segment.Record.
func (r *Record) RecordID() int64 { return r.ID }

// Ref identifies a build across segments: the id alone does not locate the
// monthly segment, so the timestamp travels with it.
type Ref struct {
	ID   int64     `json:"id"`
	Date time.Time `json:"date"`
}

// Ref returns the cross-segment reference of the record.
func (r *Record) Ref() Ref { return Ref{ID: r.ID, Date: r.Date} }

// Artifact is one artifact row inside a numeric segment. Exactly one of Hash
// and SymlinkTarget is set: a hash for a regular file, a symlink target for a
// link to another artifact's filename. The pair (id, build id) identifies an
// artifact across segments.
type Artifact struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	BuildID       int64     `gorm:"not null;index" json:"buildId"`
	BuildDate     time.Time `gorm:"not null" json:"buildDate"`
	Filename      string    `gorm:"size:255;not null;index" json:"filename"`
	Hash          *string   `gorm:"size:255;index" json:"hash,omitempty"`
	SymlinkTarget *string   `gorm:"size:255" json:"symlinkTarget,omitempty"`
}

// RecordID implements segment.Record.
func (a *Artifact) RecordID() int64 { return a.ID }

// Category declarations for the partition router.
var (
	BuildCategory    = segment.Category{Name: "builds", Prototype: &Record{}}
	ArtifactCategory = segment.Category{Name: "artifacts", Prototype: &Artifact{}}
)

// idCounter backs the global build id sequence. Inserting a row and reading
// back its autoincrement id is the portable equivalent of a database
// sequence.
type idCounter struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (idCounter) TableName() string { return "build_id_seq" }
