// Package segment implements the partitioned storage layer: a registry of
// lazily created segment tables, the router that resolves a partition key to
// its segment and guarantees the segment exists, and the append/update/scan
// primitives the domain stores are built on.
package segment

import (
	"fmt"
	"strconv"
	"time"
)

// Bucket is the deterministic output of a partitioning policy: a stable label
// (part of the segment table name) plus the half-open [Lower, Upper) key range
// the segment covers. Bounds are stored as strings in the segment registry;
// time bounds use RFC 3339, numeric bounds decimal.
type Bucket struct {
	Label string
	Lower string
	Upper string
}

// MonthlyBucket truncates ts to the first day of its month. Used for build
// records.
func MonthlyBucket(ts time.Time) Bucket {
	t := ts.UTC()
	lower := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	upper := lower.AddDate(0, 1, 0)
	return Bucket{
		Label: fmt.Sprintf("%04d_%02d", lower.Year(), int(lower.Month())),
		Lower: lower.Format(time.RFC3339),
		Upper: upper.Format(time.RFC3339),
	}
}

// YearlyBucket truncates ts to January 1 of its year. Used for installation
// version records, keyed by valid_from.
func YearlyBucket(ts time.Time) Bucket {
	t := ts.UTC()
	lower := time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	upper := lower.AddDate(1, 0, 0)
	return Bucket{
		Label: fmt.Sprintf("%04d", lower.Year()),
		Lower: lower.Format(time.RFC3339),
		Upper: upper.Format(time.RFC3339),
	}
}

// NumericBucketWidth is the fixed width of artifact buckets keyed by build id.
const NumericBucketWidth = 100000

// NumericBucket buckets id into fixed-width ranges of NumericBucketWidth.
// Used for artifact records, keyed by the owning build id.
func NumericBucket(id int64) Bucket {
	if id < 0 {
		id = 0
	}
	lower := (id / NumericBucketWidth) * NumericBucketWidth
	upper := lower + NumericBucketWidth
	return Bucket{
		Label: strconv.FormatInt(lower, 10),
		Lower: strconv.FormatInt(lower, 10),
		Upper: strconv.FormatInt(upper, 10),
	}
}
