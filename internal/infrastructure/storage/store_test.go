package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"RSSDigest/internal/domain"
	"RSSDigest/internal/ports"
)

func sampleItems() []domain.Item {
	return []domain.Item{
		{
			Title:     "First",
			Link:      "http://x/1",
			Content:   "body one",
			Published: domain.NewDate(time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)),
			Topic:     "A",
		},
		{
			Title:     "Second <b>",
			Link:      "http://x/2",
			Content:   "body two",
			Published: domain.NewDate(time.Date(2025, time.March, 4, 0, 0, 0, 0, time.UTC)),
		},
	}
}

func stores(t *testing.T) map[string]ports.CheckpointStore {
	t.Helper()

	dir := t.TempDir()
	fileStore, err := NewFileStore(filepath.Join(dir, "state"), "digest")
	require.NoError(t, err)

	sqlStore, err := OpenSQLStore(context.Background(), "sqlite", filepath.Join(dir, "state.db"), "digest")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlStore.Close() })

	return map[string]ports.CheckpointStore{
		"file":   fileStore,
		"sqlite": sqlStore,
	}
}

func TestStoreContract(t *testing.T) {
	for backend, store := range stores(t) {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()

			ok, err := store.Exists(ctx, ports.CheckpointFetched)
			require.NoError(t, err)
			require.False(t, ok)

			items, ok, err := store.Load(ctx, ports.CheckpointFetched)
			require.NoError(t, err)
			require.False(t, ok)
			require.Nil(t, items)

			require.NoError(t, store.Save(ctx, ports.CheckpointFetched, sampleItems()))

			ok, err = store.Exists(ctx, ports.CheckpointFetched)
			require.NoError(t, err)
			require.True(t, ok)

			items, ok, err = store.Load(ctx, ports.CheckpointFetched)
			require.NoError(t, err)
			require.True(t, ok)
			if diff := cmp.Diff(sampleItems(), items); diff != "" {
				t.Fatalf("loaded items mismatch (-want +got):\n%s", diff)
			}

			// Overwrite keeps a single snapshot.
			require.NoError(t, store.Save(ctx, ports.CheckpointFetched, sampleItems()[:1]))
			items, _, err = store.Load(ctx, ports.CheckpointFetched)
			require.NoError(t, err)
			require.Len(t, items, 1)

			require.NoError(t, store.Delete(ctx, ports.CheckpointFetched))
			require.NoError(t, store.Delete(ctx, ports.CheckpointFetched))
			ok, err = store.Exists(ctx, ports.CheckpointFetched)
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestStoreEmptySnapshotIsPresent(t *testing.T) {
	for backend, store := range stores(t) {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Save(ctx, ports.CheckpointClassified, nil))

			items, ok, err := store.Load(ctx, ports.CheckpointClassified)
			require.NoError(t, err)
			require.True(t, ok)
			require.Empty(t, items)
		})
	}
}

func TestStoreRenameReplacesTarget(t *testing.T) {
	for backend, store := range stores(t) {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			all := sampleItems()

			require.NoError(t, store.Save(ctx, ports.CheckpointSeenLinks, all[1:]))
			require.NoError(t, store.Save(ctx, ports.CheckpointClassified, all[:1]))

			require.NoError(t, store.Rename(ctx, ports.CheckpointClassified, ports.CheckpointSeenLinks))

			ok, err := store.Exists(ctx, ports.CheckpointClassified)
			require.NoError(t, err)
			require.False(t, ok)

			items, ok, err := store.Load(ctx, ports.CheckpointSeenLinks)
			require.NoError(t, err)
			require.True(t, ok)
			require.Len(t, items, 1)
			require.Equal(t, "http://x/1", items[0].Link)
		})
	}
}

func TestStoreRenameMissingSource(t *testing.T) {
	for backend, store := range stores(t) {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Save(ctx, ports.CheckpointSeenLinks, sampleItems()))

			err := store.Rename(ctx, ports.CheckpointClassified, ports.CheckpointSeenLinks)
			require.ErrorIs(t, err, ErrNotFound)

			// The target survives a failed rename.
			items, ok, err := store.Load(ctx, ports.CheckpointSeenLinks)
			require.NoError(t, err)
			require.True(t, ok)
			require.Len(t, items, 2)
		})
	}
}

func TestFileStoreCorruptCheckpoint(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "digest")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(store.Path(ports.CheckpointFetched), []byte("[{not json"), 0o644))

	_, _, err = store.Load(context.Background(), ports.CheckpointFetched)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestFileStoreNaming(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "rss_cache")
	require.NoError(t, err)

	require.Equal(t, filepath.Join(dir, "rss_cache_fetched.json"), store.Path(ports.CheckpointFetched))
	require.Equal(t, filepath.Join(dir, "rss_cache_classified.json"), store.Path(ports.CheckpointClassified))
	require.Equal(t, filepath.Join(dir, "rss_cache_last_week.json"), store.Path(ports.CheckpointSeenLinks))
}

func TestOpenSQLStoreUnknownBackend(t *testing.T) {
	_, err := OpenSQLStore(context.Background(), "mysql", "", "digest")
	require.Error(t, err)
}
