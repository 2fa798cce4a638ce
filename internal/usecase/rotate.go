package usecase

import (
	"context"
	"log/slog"

	"RSSDigest/internal/ports"
)

// RotateState makes this run's classified items the next run's seen-links
// snapshot. The fetched checkpoint goes first so an interruption can never
// leave a stale fetched set paired with an already rotated snapshot; the
// snapshot is then replaced by one atomic rename, so a valid snapshot exists
// at every instant. Failures are logged, never returned.
func RotateState(ctx context.Context, store ports.CheckpointStore, log *slog.Logger) {
	if err := store.Delete(ctx, ports.CheckpointFetched); err != nil {
		log.Warn("delete fetched checkpoint failed", "error", err)
	}

	if err := store.Rename(ctx, ports.CheckpointClassified, ports.CheckpointSeenLinks); err != nil {
		log.Warn("rotate seen-links snapshot failed", "error", err)
		return
	}
	log.Info("seen-links snapshot rotated")
}
