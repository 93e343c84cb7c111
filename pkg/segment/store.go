package segment

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/elettra-ics/inau/pkg/storage"
)

// Store provides the physical read/write primitives over segment tables.
// It owns nothing about record semantics: validation and lifecycle rules live
// in the domain stores above it.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for callers that need to open a
// transaction spanning a close/insert pair.
func (s *Store) DB() *gorm.DB { return s.db }

// Append durably inserts rec into seg and returns its record id. Constraint
// violations surface as integrity errors, backend failures as storage
// errors; retrying is the caller's decision.
func (s *Store) Append(ctx context.Context, seg ID, rec Record) (int64, error) {
	return AppendTx(s.db.WithContext(ctx), seg, rec)
}

// AppendTx is Append running on an existing transaction handle.
func AppendTx(tx *gorm.DB, seg ID, rec Record) (int64, error) {
	if err := tx.Table(seg.Table()).Create(rec).Error; err != nil {
		return 0, storage.ClassifyWrite(fmt.Sprintf("append to %s", seg.Table()), err)
	}
	return rec.RecordID(), nil
}

// UpdateScoped applies patch to the rows of seg matched by conds and returns
// the number of rows changed. It runs on the handle it is given so the
// temporal ledger can make it atomic with the paired append.
func UpdateScoped(tx *gorm.DB, seg ID, conds map[string]any, patch map[string]any) (int64, error) {
	q := tx.Table(seg.Table())
	for col, val := range conds {
		if val == nil {
			q = q.Where(col + " IS NULL")
		} else {
			q = q.Where(col+" = ?", val)
		}
	}
	res := q.Updates(patch)
	if res.Error != nil {
		return 0, storage.ClassifyWrite(fmt.Sprintf("update %s", seg.Table()), res.Error)
	}
	return res.RowsAffected, nil
}

// Cond is one scan predicate. Op is a SQL comparison operator; a nil Value
// with Op "IS NULL" / "IS NOT NULL" matches on nullity.
type Cond struct {
	Column string
	Op     string
	Value  any
}

// Filter narrows a scan. An empty filter matches everything.
type Filter struct {
	Conds []Cond
}

// Where appends an equality or comparison condition.
func (f Filter) Where(column, op string, value any) Filter {
	f.Conds = append(f.Conds, Cond{Column: column, Op: op, Value: value})
	return f
}

// scanBatchSize bounds how many rows are held in memory per fetch.
const scanBatchSize = 500

// Scan streams the records of segs matching filter through fn, in
// unspecified physical order; callers sort when order matters. The scan is
// lazy (rows are fetched in batches) and restartable (calling it again
// re-reads from the start). fn returning an error stops the scan.
func Scan[T any](ctx context.Context, db *gorm.DB, segs []ID, filter Filter, fn func(seg ID, rec *T) error) error {
	for _, seg := range segs {
		var lastID int64
		for {
			q := db.WithContext(ctx).Table(seg.Table()).Where("id > ?", lastID)
			for _, c := range filter.Conds {
				switch c.Op {
				case "IS NULL":
					q = q.Where(c.Column + " IS NULL")
				case "IS NOT NULL":
					q = q.Where(c.Column + " IS NOT NULL")
				default:
					q = q.Where(fmt.Sprintf("%s %s ?", c.Column, c.Op), c.Value)
				}
			}

			var batch []T
			if err := q.Order("id ASC").Limit(scanBatchSize).Find(&batch).Error; err != nil {
				return storage.Storagef("scan %s: %v", seg.Table(), err)
			}
			for i := range batch {
				rec, ok := any(&batch[i]).(Record)
				if !ok {
					return fmt.Errorf("scan %s: %T does not implement segment.Record", seg.Table(), &batch[i])
				}
				if err := fn(seg, &batch[i]); err != nil {
					return err
				}
				lastID = rec.RecordID()
			}
			if len(batch) < scanBatchSize {
				break
			}
		}
	}
	return nil
}
