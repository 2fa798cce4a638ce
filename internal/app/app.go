package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"RSSDigest/internal/config"
	"RSSDigest/internal/domain"
	"RSSDigest/internal/infrastructure/llm"
	"RSSDigest/internal/infrastructure/lock"
	"RSSDigest/internal/infrastructure/parser"
	"RSSDigest/internal/infrastructure/storage"
	"RSSDigest/internal/infrastructure/telegram"
	"RSSDigest/internal/logging"
	"RSSDigest/internal/ports"
	"RSSDigest/internal/report"
	"RSSDigest/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	store    ports.CheckpointStore
	closer   func() error
	pipeline *usecase.Pipeline
	lockPath string
	now      func() time.Time
}

// CheckpointStatus describes one stored stage snapshot.
type CheckpointStatus struct {
	Name    ports.Checkpoint
	Present bool
	Items   int
}

// New builds the application from a validated configuration.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	baseLogger = baseLogger.With("run_id", uuid.NewString())

	store, closer, err := openStore(ctx, cfg.State)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.Fetch.Timeout}
	reader := parser.NewFeedReader(httpClient, cfg.Fetch.Timeout, cfg.Fetch.UserAgent)
	extractor := parser.NewArticleExtractor(httpClient, cfg.Fetch.Timeout, cfg.Fetch.UserAgent,
		baseLogger.With("component", "extractor"))

	pool := cfg.Pool()
	newClient := func(e domain.Endpoint) *llm.Client {
		return llm.NewClient(e,
			llm.WithRetryDelay(cfg.Classification.RetryDelay),
			llm.WithLogger(baseLogger.With("component", "llm")),
		)
	}
	classifiers := make([]ports.Completer, 0, len(pool))
	for _, e := range pool.Classifiers() {
		classifiers = append(classifiers, newClient(e))
	}

	vocab := cfg.Vocabulary()
	deps := usecase.PipelineDeps{
		Store:    store,
		Ingester: usecase.NewIngester(reader, extractor, cfg.Location(), baseLogger.With("component", "ingest")),
		Classifier: usecase.NewClassifier(classifiers, vocab,
			usecase.WithStrictLabels(cfg.Classification.StrictLabels),
			usecase.WithClassifierLogger(baseLogger.With("component", "classify")),
		),
		Summarizer: usecase.NewSummarizer(newClient(pool.Summarizer()), vocab.Topics, baseLogger.With("component", "summarize")),
		Renderer:   report.NewRenderer(cfg.Output.Title, vocab.Topics),
		Writer:     report.NewFileWriter(cfg.Output.Dir),
		Logger:     baseLogger.With("component", "pipeline"),
	}
	if cfg.Notifications.Telegram.Enabled() {
		deps.Notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	pipeline := usecase.NewPipeline(deps, usecase.PipelineSettings{
		Feeds:        cfg.Feeds,
		LookbackDays: cfg.LookbackDays,
		OverlapDays:  cfg.Overlap(),
		Vocabulary:   vocab,
		Location:     cfg.Location(),
	})

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		store:    store,
		closer:   closer,
		pipeline: pipeline,
		lockPath: filepath.Join(cfg.State.Dir, cfg.State.Prefix+".lock"),
		now:      time.Now,
	}, nil
}

func openStore(ctx context.Context, cfg config.StateConfig) (ports.CheckpointStore, func() error, error) {
	switch cfg.Backend {
	case "sqlite", "postgres":
		store, err := storage.OpenSQLStore(ctx, cfg.Backend, cfg.DSN, cfg.Prefix)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		store, err := storage.NewFileStore(cfg.Dir, cfg.Prefix)
		if err != nil {
			return nil, nil, err
		}
		return store, func() error { return nil }, nil
	}
}

// Run performs one pipeline pass while holding the run lock.
func (a *Application) Run(ctx context.Context) (usecase.Result, error) {
	runLock, err := lock.Acquire(a.lockPath)
	if err != nil {
		return usecase.Result{}, err
	}
	defer a.release(runLock)

	started := a.now()
	a.logger.Info("run started", "feeds", len(a.cfg.Feeds), "topics", len(a.cfg.Topics), "endpoints", len(a.cfg.Endpoints))

	res, err := a.pipeline.Run(ctx, started)
	if err != nil {
		a.logger.Error("run failed", "error", err)
		return res, err
	}
	a.logger.Info("run finished",
		"report", res.ReportPath,
		"fetched", res.Fetched,
		"classified", res.Classified,
		"summaries", res.Summaries,
		"duration", time.Since(started).Round(time.Millisecond),
	)
	return res, nil
}

func (a *Application) release(runLock *lock.RunLock) {
	if err := runLock.Release(); err != nil {
		a.logger.Warn("release run lock", "error", err)
	}
}

// Status reports which checkpoints exist and how many items each holds.
func (a *Application) Status(ctx context.Context) ([]CheckpointStatus, error) {
	out := make([]CheckpointStatus, 0, len(ports.AllCheckpoints))
	for _, name := range ports.AllCheckpoints {
		items, ok, err := a.store.Load(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("status %s: %w", name, err)
		}
		out = append(out, CheckpointStatus{Name: name, Present: ok, Items: len(items)})
	}
	return out, nil
}

// Reset drops the resumable stage checkpoints. With all set the seen-links
// snapshot goes too, so the next run behaves like a first run.
func (a *Application) Reset(ctx context.Context, all bool) error {
	runLock, err := lock.Acquire(a.lockPath)
	if err != nil {
		return err
	}
	defer a.release(runLock)

	names := []ports.Checkpoint{ports.CheckpointFetched, ports.CheckpointClassified}
	if all {
		names = append(names, ports.CheckpointSeenLinks)
	}
	for _, name := range names {
		if err := a.store.Delete(ctx, name); err != nil {
			return fmt.Errorf("reset %s: %w", name, err)
		}
		a.logger.Info("checkpoint removed", "checkpoint", name)
	}
	return nil
}

// Close releases the checkpoint backend.
func (a *Application) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer()
}
