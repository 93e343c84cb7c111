package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestArchiveBeforeRemovesOnlyClosedVersions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	b1 := f.newBuild(t, "v1")
	rec := f.put(t, b1)
	f.clock = f.clock.Add(time.Hour)
	b2 := f.newBuild(t, "v2")
	f.put(t, b2)

	// Cutoff after the close instant removes the closed version only.
	removed, err := f.ledger.ArchiveBefore(ctx, f.clock.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	history, err := f.ledger.History(ctx, rec.EntityID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Active())

	// Idempotent: nothing left to remove.
	removed, err = f.ledger.ArchiveBefore(ctx, f.clock.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestArchiveBeforeKeepsRecentClosed(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	b1 := f.newBuild(t, "v1")
	rec := f.put(t, b1)
	f.clock = f.clock.Add(time.Hour)
	b2 := f.newBuild(t, "v2")
	f.put(t, b2)

	removed, err := f.ledger.ArchiveBefore(ctx, f.clock.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, removed)

	history, err := f.ledger.History(ctx, rec.EntityID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestRetentionSweeperStopsCleanly(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	f := setup(t)
	cfg := &RetentionConfig{
		Enabled:       true,
		MaxAge:        time.Hour,
		SweepInterval: 10 * time.Millisecond,
	}
	sweeper := NewRetentionSweeper(f.ledger, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	// Let at least one sweep happen.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestRetentionSweeperDisabled(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	f := setup(t)
	sweeper := NewRetentionSweeper(f.ledger, DefaultRetentionConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sweeper.Run(ctx) // returns immediately when disabled
}

func TestRetentionConfigFromEnv(t *testing.T) {
	t.Setenv("INAU_RETENTION_ENABLED", "true")
	t.Setenv("INAU_RETENTION_MAX_AGE_DAYS", "30")
	t.Setenv("INAU_RETENTION_SWEEP_HOURS", "6")

	cfg := RetentionConfigFromEnv()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 30*24*time.Hour, cfg.MaxAge)
	assert.Equal(t, 6*time.Hour, cfg.SweepInterval)
}
