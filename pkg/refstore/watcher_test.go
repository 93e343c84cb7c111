package refstore

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchSeedReloadsOnChange(t *testing.T) {
	store := setupStore(t)
	path := writeSeed(t, seedYAML)
	seed, err := LoadSeed(path)
	require.NoError(t, err)
	require.NoError(t, store.ApplySeed(context.Background(), seed))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, WatchSeed(ctx, store, path, slog.Default()))

	updated := seedYAML + `
  - name: carol
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	require.Eventually(t, func() bool {
		_, err := store.UserByName(context.Background(), "carol")
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)
}

func TestWatchSeedIgnoresUnrelatedFiles(t *testing.T) {
	store := setupStore(t)
	path := writeSeed(t, seedYAML)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, WatchSeed(ctx, store, path, slog.Default()))

	sibling := path + ".tmp"
	require.NoError(t, os.WriteFile(sibling, []byte("architectures: [riscv]"), 0o600))

	time.Sleep(200 * time.Millisecond)
	archs, err := store.Architectures(context.Background())
	require.NoError(t, err)
	for _, a := range archs {
		assert.NotEqual(t, "riscv", a.Name)
	}
}
