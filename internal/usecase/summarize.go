package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"RSSDigest/internal/domain"
	"RSSDigest/internal/ports"
)

const (
	summaryContentPrefix = 1000
	summaryDelimiter     = "\n\n---\n\n"
)

// Summarizer writes one narrative per non-empty topic through a single endpoint.
type Summarizer struct {
	completer ports.Completer
	topics    []string
	logger    *slog.Logger
}

// NewSummarizer visits topics in the given order.
func NewSummarizer(completer ports.Completer, topics []string, log *slog.Logger) *Summarizer {
	if log == nil {
		log = slog.Default()
	}
	return &Summarizer{completer: completer, topics: topics, logger: log}
}

// Summarize calls the endpoint sequentially, one prompt per topic with items.
// A failed or empty answer omits that topic and the rest carry on.
func (s *Summarizer) Summarize(ctx context.Context, itemsByTopic map[string][]domain.Item) map[string]string {
	summaries := make(map[string]string)
	for _, topic := range s.topics {
		items := itemsByTopic[topic]
		if len(items) == 0 {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		log := s.logger.With("topic", topic, "items", len(items))
		log.Info("summarizing topic")

		summary, err := s.completer.Complete(ctx, SummaryPrompt(items))
		if err != nil {
			log.Warn("summary failed", "error", err)
			continue
		}
		if strings.TrimSpace(summary) == "" {
			log.Warn("summary empty")
			continue
		}
		summaries[topic] = summary
	}
	return summaries
}

// SummaryPrompt joins each item's title and content prefix with explicit delimiters.
func SummaryPrompt(items []domain.Item) string {
	blocks := make([]string, 0, len(items))
	for _, it := range items {
		blocks = append(blocks, fmt.Sprintf("Title: %s\nContent excerpt: %s", it.Title, prefix(it.Content, summaryContentPrefix)))
	}

	var b strings.Builder
	b.WriteString("Write a rich, well-organized digest of the articles below for this topic.\n")
	b.WriteString("Use plain prose paragraphs only, no headings, lists or markup. Start directly with the summary, no preamble.\n\n")
	b.WriteString("Articles:\n---\n")
	b.WriteString(strings.Join(blocks, summaryDelimiter))
	b.WriteString("\n---\nSummary:")
	return b.String()
}
