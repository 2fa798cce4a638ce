package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"RSSDigest/internal/domain"
	"RSSDigest/internal/ports"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Store      ports.CheckpointStore
	Ingester   *Ingester
	Classifier *Classifier
	Summarizer *Summarizer
	Renderer   ports.Renderer
	Writer     ports.ReportWriter
	Notifier   ports.Notifier
	Logger     *slog.Logger
}

// PipelineSettings carries the run parameters taken from configuration.
type PipelineSettings struct {
	Feeds        []string
	LookbackDays int
	OverlapDays  int
	Vocabulary   domain.Vocabulary
	Location     *time.Location
}

// Result describes one completed run.
type Result struct {
	ReportPath string
	Fetched    int
	Classified int
	Summaries  int
	Resumed    []ports.Checkpoint
}

// Pipeline implements the fetch, classify, summarize, render, rotate workflow.
// Each stage whose checkpoint exists is skipped and its snapshot reused.
type Pipeline struct {
	store      ports.CheckpointStore
	ingester   *Ingester
	classifier *Classifier
	summarizer *Summarizer
	renderer   ports.Renderer
	writer     ports.ReportWriter
	notifier   ports.Notifier
	logger     *slog.Logger
	settings   PipelineSettings
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps, settings PipelineSettings) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	return &Pipeline{
		store:      deps.Store,
		ingester:   deps.Ingester,
		classifier: deps.Classifier,
		summarizer: deps.Summarizer,
		renderer:   deps.Renderer,
		writer:     deps.Writer,
		notifier:   deps.Notifier,
		logger:     logger,
		settings:   settings,
	}
}

// Run executes one pass. Corrupt checkpoints, checkpoint write failures and
// report write failures abort; per-item and per-topic failures only degrade
// the output.
func (p *Pipeline) Run(ctx context.Context, now time.Time) (Result, error) {
	var res Result

	fetched, resumed, err := p.fetchStage(ctx)
	if err != nil {
		return res, err
	}
	res.Fetched = len(fetched)
	if resumed {
		res.Resumed = append(res.Resumed, ports.CheckpointFetched)
	}

	classified, resumed, err := p.classifyStage(ctx, fetched)
	if err != nil {
		return res, err
	}
	res.Classified = len(classified)
	if resumed {
		res.Resumed = append(res.Resumed, ports.CheckpointClassified)
	}

	grouped := p.settings.Vocabulary.Group(classified)
	summaries := p.summarizer.Summarize(ctx, grouped)
	res.Summaries = len(summaries)

	date := domain.NewDate(now.In(p.settings.Location))
	document, err := p.renderer.Render(date, grouped, summaries)
	if err != nil {
		return res, fmt.Errorf("render report: %w", err)
	}
	res.ReportPath, err = p.writer.Write(ctx, date.String()+".html", document)
	if err != nil {
		return res, fmt.Errorf("write report: %w", err)
	}
	p.logger.Info("report written", "path", res.ReportPath)

	p.notify(ctx, date, grouped, res.ReportPath)

	RotateState(ctx, p.store, p.logger)
	return res, nil
}

func (p *Pipeline) fetchStage(ctx context.Context) ([]domain.Item, bool, error) {
	items, ok, err := p.store.Load(ctx, ports.CheckpointFetched)
	if err != nil {
		return nil, false, fmt.Errorf("load fetched checkpoint: %w", err)
	}
	if ok {
		p.logger.Info("fetched checkpoint found, skipping ingestion", "items", len(items))
		return items, true, nil
	}

	if err := p.finishRotation(ctx); err != nil {
		return nil, false, err
	}

	seen, hasSnapshot, err := p.store.Load(ctx, ports.CheckpointSeenLinks)
	if err != nil {
		return nil, false, fmt.Errorf("load seen-links snapshot: %w", err)
	}
	days := LookbackDays(p.settings.LookbackDays, p.settings.OverlapDays, !hasSnapshot)
	if hasSnapshot {
		p.logger.Info("seen-links snapshot found", "links", len(seen), "lookback_days", days)
	} else {
		p.logger.Info("no seen-links snapshot, first run", "lookback_days", days)
	}

	items, err = p.ingester.Ingest(ctx, p.settings.Feeds, days, domain.Links(seen))
	if err != nil {
		return nil, false, fmt.Errorf("ingest: %w", err)
	}
	if err := p.store.Save(ctx, ports.CheckpointFetched, items); err != nil {
		return nil, false, fmt.Errorf("save fetched checkpoint: %w", err)
	}
	return items, false, nil
}

// finishRotation completes a rotation left half done by the previous run.
// A classified checkpoint without a fetched one belongs to that run, so it
// becomes the seen-links snapshot before anything new is ingested.
func (p *Pipeline) finishRotation(ctx context.Context) error {
	stale, err := p.store.Exists(ctx, ports.CheckpointClassified)
	if err != nil {
		return fmt.Errorf("check classified checkpoint: %w", err)
	}
	if !stale {
		return nil
	}
	p.logger.Warn("classified checkpoint without fetched checkpoint, finishing previous rotation")
	if err := p.store.Rename(ctx, ports.CheckpointClassified, ports.CheckpointSeenLinks); err != nil {
		return fmt.Errorf("finish previous rotation: %w", err)
	}
	return nil
}

func (p *Pipeline) classifyStage(ctx context.Context, fetched []domain.Item) ([]domain.Item, bool, error) {
	items, ok, err := p.store.Load(ctx, ports.CheckpointClassified)
	if err != nil {
		return nil, false, fmt.Errorf("load classified checkpoint: %w", err)
	}
	if ok {
		p.logger.Info("classified checkpoint found, skipping classification", "items", len(items))
		return items, true, nil
	}

	labelled, err := p.classifier.Classify(ctx, fetched)
	if err != nil {
		return nil, false, fmt.Errorf("classify: %w", err)
	}
	items = KeepClassified(labelled, p.settings.Vocabulary)
	p.logger.Info("classification finished", "candidates", len(fetched), "classified", len(items))

	if err := p.store.Save(ctx, ports.CheckpointClassified, items); err != nil {
		return nil, false, fmt.Errorf("save classified checkpoint: %w", err)
	}
	return items, false, nil
}

func (p *Pipeline) notify(ctx context.Context, date domain.Date, grouped map[string][]domain.Item, path string) {
	if p.notifier == nil {
		return
	}
	digest := newDigest(date, p.settings.Vocabulary.Topics, grouped, path)
	if err := p.notifier.PublishDigest(ctx, digest); err != nil {
		p.logger.Warn("notification failed", "error", err)
	}
}

func newDigest(date domain.Date, topics []string, grouped map[string][]domain.Item, path string) domain.Digest {
	counts := make([]domain.TopicCount, 0, len(topics))
	for _, topic := range topics {
		counts = append(counts, domain.TopicCount{Topic: topic, Items: len(grouped[topic])})
	}
	return domain.Digest{Date: date, Topics: counts, ReportPath: path}
}
