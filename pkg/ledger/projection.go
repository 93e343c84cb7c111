package ledger

import (
	"context"

	"github.com/elettra-ics/inau/pkg/segment"
	"github.com/elettra-ics/inau/pkg/storage"
)

// The bulk read paths of the current-state projection: every live version,
// optionally narrowed by host or facility, plus the reporting aggregation.
// Exactly one row per live entity by the ledger invariant.

// Active streams every active version. The scan is restartable and in
// unspecified order.
func (l *Ledger) Active(ctx context.Context) ([]VersionRecord, error) {
	return l.activeWhere(ctx, segment.Filter{})
}

// ActiveByHost returns the active versions installed on one host.
func (l *Ledger) ActiveByHost(ctx context.Context, hostID int64) ([]VersionRecord, error) {
	return l.activeWhere(ctx, segment.Filter{}.Where("host_id", "=", hostID))
}

func (l *Ledger) activeWhere(ctx context.Context, filter segment.Filter) ([]VersionRecord, error) {
	regs, err := l.router.List(ctx, Category.Name)
	if err != nil {
		return nil, err
	}
	segs := make([]segment.ID, len(regs))
	for i := range regs {
		segs[i] = regs[i].SegmentID()
	}

	filter.Conds = append(filter.Conds, segment.Cond{Column: "valid_to", Op: "IS NULL"})

	var out []VersionRecord
	err = segment.Scan(ctx, l.db, segs, filter, func(_ segment.ID, rec *VersionRecord) error {
		out = append(out, *rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FacilityCount is one row of the active-installations-per-facility report.
type FacilityCount struct {
	Facility string `json:"facility"`
	Active   int64  `json:"active"`
}

// ActiveCountByFacility reports how many installations are live per
// facility. Expressed over the projection joined against the reference
// catalog; the version chain is never scanned.
func (l *Ledger) ActiveCountByFacility(ctx context.Context) ([]FacilityCount, error) {
	var rows []FacilityCount
	err := l.db.WithContext(ctx).Raw(`
		SELECT f.name AS facility, COUNT(*) AS active
		FROM ledger_heads lh
		JOIN hosts h ON h.id = lh.host_id
		JOIN facilities f ON f.id = h.facility_id
		GROUP BY f.name
		ORDER BY f.name
	`).Scan(&rows).Error
	if err != nil {
		return nil, storage.Storagef("facility report: %v", err)
	}
	return rows, nil
}
