package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"RSSDigest/internal/domain"
	"RSSDigest/internal/ports"
)

const classifyContentPrefix = 500

// RoundRobin spreads items over the pool by index alone.
type RoundRobin struct {
	Size int
}

var _ ports.Assigner = RoundRobin{}

// Assign returns index mod Size.
func (r RoundRobin) Assign(index int) int {
	return index % r.Size
}

// Classifier assigns each item at most one topic using a pool of endpoints.
// Each endpoint has one worker, so it serves at most one call at a time and
// its remaining items queue behind it.
type Classifier struct {
	pool     []ports.Completer
	assigner ports.Assigner
	vocab    domain.Vocabulary
	strict   bool
	logger   *slog.Logger
}

// ClassifierOption customizes a Classifier.
type ClassifierOption func(*Classifier)

// WithAssigner replaces the round-robin assignment strategy.
func WithAssigner(a ports.Assigner) ClassifierOption {
	return func(c *Classifier) {
		if a != nil {
			c.assigner = a
		}
	}
}

// WithStrictLabels coerces labels outside the vocabulary to the unmatched sentinel.
func WithStrictLabels(strict bool) ClassifierOption {
	return func(c *Classifier) {
		c.strict = strict
	}
}

// WithClassifierLogger attaches a logger.
func WithClassifierLogger(l *slog.Logger) ClassifierOption {
	return func(c *Classifier) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClassifier builds a dispatcher over pool, which must not be empty.
func NewClassifier(pool []ports.Completer, vocab domain.Vocabulary, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		pool:     pool,
		assigner: RoundRobin{Size: len(pool)},
		vocab:    vocab,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns a copy of items, same length and order, with Topic set
// from each endpoint's answer. Failed calls leave Topic empty. Results are
// written back by input index, so completion order never matters.
func (c *Classifier) Classify(ctx context.Context, items []domain.Item) ([]domain.Item, error) {
	if len(c.pool) == 0 {
		return nil, fmt.Errorf("classifier pool is empty")
	}

	queues := make([][]int, len(c.pool))
	for idx := range items {
		slot := c.assigner.Assign(idx)
		if slot < 0 || slot >= len(c.pool) {
			return nil, fmt.Errorf("assigner returned slot %d for item %d, pool size %d", slot, idx, len(c.pool))
		}
		queues[slot] = append(queues[slot], idx)
	}

	labels := make([]string, len(items))
	g, gctx := errgroup.WithContext(ctx)
	for slot, queue := range queues {
		if len(queue) == 0 {
			continue
		}
		completer := c.pool[slot]
		queue := queue
		g.Go(func() error {
			for _, idx := range queue {
				if err := gctx.Err(); err != nil {
					return err
				}
				labels[idx] = c.classifyOne(gctx, completer, items[idx])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.Item, len(items))
	for idx, it := range items {
		it.Topic = labels[idx]
		out[idx] = it
	}
	return out, nil
}

func (c *Classifier) classifyOne(ctx context.Context, completer ports.Completer, item domain.Item) string {
	log := c.logger.With("endpoint", completer.Name(), "link", item.Link)
	log.Debug("classifying", "title", prefix(item.Title, 30))

	answer, err := completer.Complete(ctx, ClassificationPrompt(item, c.vocab))
	if err != nil {
		log.Warn("classification failed", "error", err)
		return ""
	}

	label := normalizeLabel(answer)
	if label == "" {
		log.Warn("classification returned empty label")
		return ""
	}
	if c.strict && label != c.vocab.Unmatched && !c.vocab.Contains(label) {
		log.Info("label outside vocabulary coerced to unmatched", "label", label)
		return c.vocab.Unmatched
	}
	if label != c.vocab.Unmatched && !c.vocab.Contains(label) {
		log.Info("label outside vocabulary accepted", "label", label)
	}
	return label
}

// KeepClassified drops items that are unset or carry the unmatched sentinel.
func KeepClassified(items []domain.Item, vocab domain.Vocabulary) []domain.Item {
	kept := make([]domain.Item, 0, len(items))
	for _, it := range items {
		if !it.Classified() || it.Topic == vocab.Unmatched {
			continue
		}
		kept = append(kept, it)
	}
	return kept
}

// ClassificationPrompt embeds the title, a content prefix and the topic list.
func ClassificationPrompt(item domain.Item, vocab domain.Vocabulary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Decide which of the following topics the article below is most related to.\n")
	fmt.Fprintf(&b, "Topics: %s\n", strings.Join(vocab.Topics, ", "))
	fmt.Fprintf(&b, "If several topics apply, choose the most specific, narrowest one.\n")
	fmt.Fprintf(&b, "If none of the topics applies, answer exactly %q.\n", vocab.Unmatched)
	fmt.Fprintf(&b, "If you reason step by step, keep it short.\n")
	fmt.Fprintf(&b, "Answer with the topic name only, without any explanation.\n\n")
	fmt.Fprintf(&b, "Article:\n---\n%s\n%s\n---\n", item.Title, prefix(item.Content, classifyContentPrefix))
	fmt.Fprintf(&b, "Most related topic:")
	return b.String()
}

func normalizeLabel(answer string) string {
	return strings.Trim(strings.TrimSpace(answer), " \t\r\n\"'`“”‘’")
}

// prefix returns at most n runes of s.
func prefix(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
