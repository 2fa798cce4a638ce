package usecase

import (
	"context"
	"log/slog"
	"time"

	"RSSDigest/internal/domain"
	"RSSDigest/internal/ports"
)

// LookbackDays picks the ingestion window. The first run, with no seen-links
// snapshot, looks back twice as far to bootstrap coverage; later runs add only
// the overlap margin to absorb scheduling jitter.
func LookbackDays(base, overlap int, firstRun bool) int {
	if firstRun {
		return 2*base + overlap
	}
	return base + overlap
}

// Ingester turns feed entries into candidate items.
type Ingester struct {
	reader    ports.FeedReader
	extractor ports.Extractor
	location  *time.Location
	now       func() time.Time
	logger    *slog.Logger
}

// NewIngester wires the feed reader and article extractor collaborators.
func NewIngester(reader ports.FeedReader, extractor ports.Extractor, loc *time.Location, log *slog.Logger) *Ingester {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	return &Ingester{
		reader:    reader,
		extractor: extractor,
		location:  loc,
		now:       time.Now,
		logger:    log,
	}
}

// Ingest returns new items from sources published within lookbackDays whose
// links are neither in exclude nor already emitted this run. Items keep source
// order, then feed order. A feed that cannot be read is skipped; the only
// error returned is context cancellation.
func (i *Ingester) Ingest(ctx context.Context, sources []string, lookbackDays int, exclude map[string]struct{}) ([]domain.Item, error) {
	cutoff := i.now().AddDate(0, 0, -lookbackDays)
	emitted := make(map[string]struct{})
	items := make([]domain.Item, 0)

	i.logger.Info("ingest started", "sources", len(sources), "lookback_days", lookbackDays, "excluded_links", len(exclude))

	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entries, err := i.reader.Read(ctx, source)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			i.logger.Warn("feed skipped", "source", source, "error", err)
			continue
		}

		var kept int
		for _, entry := range entries {
			if entry.Published == nil || entry.Link == "" {
				continue
			}
			if entry.Published.Before(cutoff) {
				continue
			}
			if _, seen := exclude[entry.Link]; seen {
				continue
			}
			if _, dup := emitted[entry.Link]; dup {
				continue
			}
			emitted[entry.Link] = struct{}{}

			content := entry.Summary
			if i.extractor != nil {
				if text, ok := i.extractor.Extract(ctx, entry.Link); ok {
					content = text
				}
			}

			items = append(items, domain.Item{
				Title:     entry.Title,
				Link:      entry.Link,
				Content:   content,
				Published: domain.NewDate(entry.Published.In(i.location)),
			})
			kept++
		}
		i.logger.Debug("feed processed", "source", source, "entries", len(entries), "new", kept)
	}

	i.logger.Info("ingest finished", "items", len(items))
	return items, nil
}
