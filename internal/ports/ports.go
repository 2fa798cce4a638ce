package ports

import (
	"context"

	"RSSDigest/internal/domain"
)

// Checkpoint names one stage snapshot held by a CheckpointStore.
type Checkpoint string

const (
	CheckpointFetched    Checkpoint = "fetched"
	CheckpointClassified Checkpoint = "classified"
	CheckpointSeenLinks  Checkpoint = "last_week"
)

// AllCheckpoints lists every stage snapshot in pipeline order.
var AllCheckpoints = []Checkpoint{CheckpointSeenLinks, CheckpointFetched, CheckpointClassified}

// CheckpointStore persists all-or-nothing stage snapshots.
// Load reports ok=false when the checkpoint is absent.
type CheckpointStore interface {
	Exists(ctx context.Context, name Checkpoint) (bool, error)
	Load(ctx context.Context, name Checkpoint) (items []domain.Item, ok bool, err error)
	Save(ctx context.Context, name Checkpoint, items []domain.Item) error
	Delete(ctx context.Context, name Checkpoint) error
	Rename(ctx context.Context, from, to Checkpoint) error
}

// FeedReader yields raw entries of one syndication feed in feed-native order.
type FeedReader interface {
	Read(ctx context.Context, url string) ([]domain.Entry, error)
}

// Extractor returns best-effort main text for a link; ok=false when nothing usable was found.
type Extractor interface {
	Extract(ctx context.Context, url string) (text string, ok bool)
}

// Completer sends a single-turn prompt to one text-generation endpoint.
type Completer interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// Assigner maps an item index to a slot in the classifier pool.
type Assigner interface {
	Assign(index int) int
}

// ReportWriter persists a rendered report and returns where it went.
type ReportWriter interface {
	Write(ctx context.Context, name string, document []byte) (string, error)
}

// Notifier announces a finished digest to an outbound channel and owns its formatting.
type Notifier interface {
	PublishDigest(ctx context.Context, digest domain.Digest) error
}

// Renderer turns grouped items and per-topic summaries into a document.
type Renderer interface {
	Render(date domain.Date, itemsByTopic map[string][]domain.Item, summaries map[string]string) ([]byte, error)
}
