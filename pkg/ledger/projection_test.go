package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elettra-ics/inau/pkg/refstore"
)

// addHost registers another host in the fixture's facility, or a new one.
func (f *fixture) addHost(t *testing.T, name, facilityName string) *refstore.Host {
	t.Helper()
	ctx := context.Background()

	facility, err := f.refs.HostsByFacility(ctx, facilityName)
	var facilityID int64
	if err == nil && len(facility) > 0 {
		facilityID = facility[0].FacilityID
	} else {
		fac := &refstore.Facility{Name: facilityName}
		require.NoError(t, f.refs.Create(ctx, fac))
		facilityID = fac.ID
	}

	host := &refstore.Host{
		FacilityID: facilityID,
		ServerID:   f.host.ServerID,
		PlatformID: f.host.PlatformID,
		Name:       name,
	}
	require.NoError(t, f.refs.Create(ctx, host))
	return host
}

func TestActiveReturnsOnlyLiveVersions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	b1 := f.newBuild(t, "v1")
	f.put(t, b1)
	f.clock = f.clock.Add(time.Hour)
	b2 := f.newBuild(t, "v2")
	f.put(t, b2)

	active, err := f.ledger.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, b2.ID, active[0].BuildID)
	assert.Nil(t, active[0].ValidTo)
}

func TestActiveByHost(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	b1 := f.newBuild(t, "v1")
	f.put(t, b1)

	other := f.addHost(t, "lin-cs-02", "linac")
	_, err := f.ledger.Put(ctx, PutRequest{HostID: other.ID, UserID: f.user.ID, Build: b1, Kind: KindProduction})
	require.NoError(t, err)

	mine, err := f.ledger.ActiveByHost(ctx, f.host.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, f.host.ID, mine[0].HostID)
}

func TestActiveCountByFacility(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	b1 := f.newBuild(t, "v1")
	f.put(t, b1)

	linac2 := f.addHost(t, "lin-cs-02", "linac")
	_, err := f.ledger.Put(ctx, PutRequest{HostID: linac2.ID, UserID: f.user.ID, Build: b1, Kind: KindProduction})
	require.NoError(t, err)

	booster := f.addHost(t, "boo-cs-01", "booster")
	_, err = f.ledger.Put(ctx, PutRequest{HostID: booster.ID, UserID: f.user.ID, Build: b1, Kind: KindStaging})
	require.NoError(t, err)

	// Supersede one of the linac installations; counts track live entities,
	// not writes.
	f.clock = f.clock.Add(time.Hour)
	b2 := f.newBuild(t, "v2")
	f.put(t, b2)

	counts, err := f.ledger.ActiveCountByFacility(ctx)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, "booster", counts[0].Facility)
	assert.Equal(t, int64(1), counts[0].Active)
	assert.Equal(t, "linac", counts[1].Facility)
	assert.Equal(t, int64(2), counts[1].Active)
}

func TestActiveEmptyLedger(t *testing.T) {
	f := setup(t)

	active, err := f.ledger.Active(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)

	counts, err := f.ledger.ActiveCountByFacility(context.Background())
	require.NoError(t, err)
	assert.Empty(t, counts)
}
