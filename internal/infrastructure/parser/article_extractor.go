package parser

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"RSSDigest/internal/ports"
)

// contentSelectors are tried in order; the first match wins.
var contentSelectors = []string{"article", "div.post-content", "div.content"}

// ArticleExtractor fetches a page and returns the text of its main content container.
type ArticleExtractor struct {
	fetcher fetcher
	logger  *slog.Logger
}

var _ ports.Extractor = (*ArticleExtractor)(nil)

// NewArticleExtractor wires an HTTP client; timeout defaults to 10s.
func NewArticleExtractor(client *http.Client, timeout time.Duration, userAgent string, log *slog.Logger) *ArticleExtractor {
	if log == nil {
		log = slog.Default()
	}
	return &ArticleExtractor{
		fetcher: newFetcher(client, timeout, userAgent),
		logger:  log,
	}
}

// Extract never fails loudly: any error yields ok=false.
func (a *ArticleExtractor) Extract(ctx context.Context, url string) (string, bool) {
	doc, err := a.fetchDocument(ctx, url)
	if err != nil {
		a.logger.Debug("article fetch failed", "url", url, "error", err)
		return "", false
	}
	return mainText(doc)
}

func (a *ArticleExtractor) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := a.fetcher.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	return goquery.NewDocumentFromReader(body)
}

func mainText(doc *goquery.Document) (string, bool) {
	for _, sel := range contentSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		text := nodeText(node)
		if text == "" {
			return "", false
		}
		return text, true
	}
	return "", false
}

// nodeText joins the non-empty text runs under node with newlines.
func nodeText(node *goquery.Selection) string {
	node.Find("script, style, noscript").Remove()

	var lines []string
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, child *goquery.Selection) {
			if goquery.NodeName(child) == "#text" {
				if line := strings.TrimSpace(child.Text()); line != "" {
					lines = append(lines, line)
				}
				return
			}
			walk(child)
		})
	}
	walk(node)

	return strings.Join(lines, "\n")
}
