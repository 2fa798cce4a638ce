package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"RSSDigest/internal/domain"
)

var errFeedDown = errors.New("feed down")

type fakeReader struct {
	mu     sync.Mutex
	feeds  map[string][]domain.Entry
	errs   map[string]error
	called []string
}

func (f *fakeReader) Read(_ context.Context, url string) ([]domain.Entry, error) {
	f.mu.Lock()
	f.called = append(f.called, url)
	f.mu.Unlock()
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	return f.feeds[url], nil
}

func (f *fakeReader) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.called)
}

type fakeExtractor struct {
	pages map[string]string
}

func (f fakeExtractor) Extract(_ context.Context, url string) (string, bool) {
	text, ok := f.pages[url]
	return text, ok
}

type fakeCompleter struct {
	name    string
	delay   time.Duration
	respond func(prompt string) (string, error)

	mu          sync.Mutex
	prompts     []string
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeCompleter) Name() string { return f.name }

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(f.delay):
		}
	}

	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.respond(prompt)
}

func (f *fakeCompleter) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

func always(label string) func(string) (string, error) {
	return func(string) (string, error) { return label, nil }
}

// byTitle answers with the label mapped to the first title found in the prompt.
func byTitle(labels map[string]string) func(string) (string, error) {
	return func(prompt string) (string, error) {
		for title, label := range labels {
			if strings.Contains(prompt, title) {
				return label, nil
			}
		}
		return "", errors.New("unknown prompt")
	}
}

type fakeNotifier struct {
	digests []domain.Digest
	err     error
}

func (f *fakeNotifier) PublishDigest(_ context.Context, digest domain.Digest) error {
	f.digests = append(f.digests, digest)
	return f.err
}

func at(day int) *time.Time {
	t := time.Date(2025, time.March, day, 12, 0, 0, 0, time.UTC)
	return &t
}

var fixedNow = time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC)
