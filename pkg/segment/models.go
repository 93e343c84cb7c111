package segment

import "time"

// Category pairs a table-name prefix with the GORM model that every segment
// table of that category is migrated from. The domain packages declare their
// categories; the router is the only component that creates segments for
// them.
type Category struct {
	// Name is the table prefix, e.g. "builds" yields tables builds_2026_08.
	Name string
	// Prototype is the row model migrated into each new segment table.
	Prototype any
}

// ID addresses one segment of one category. Together with a record id it is
// the only stable handle exposed to callers; bucket boundaries are not part
// of the public contract.
type ID struct {
	Category string
	Label    string
}

// Table returns the physical table name backing the segment.
func (id ID) Table() string { return id.Category + "_" + id.Label }

// Record is implemented by every row model stored in segment tables.
type Record interface {
	RecordID() int64
}

// Registration is one row of the segment registry. The unique index on
// (category, label) is the compare-and-create primitive that makes concurrent
// segment creation race-safe.
type Registration struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	Category   string    `gorm:"size:64;not null;uniqueIndex:idx_segments_category_label"`
	Label      string    `gorm:"size:64;not null;uniqueIndex:idx_segments_category_label"`
	LowerBound string    `gorm:"size:64;not null"`
	UpperBound string    `gorm:"size:64;not null"`
	Table_     string    `gorm:"size:128;not null;column:table_name"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

// TableName maps the registry to the segments table.
func (Registration) TableName() string { return "segments" }

// SegmentID returns the addressable id for the registered segment.
func (r *Registration) SegmentID() ID {
	return ID{Category: r.Category, Label: r.Label}
}
