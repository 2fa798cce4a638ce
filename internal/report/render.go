// Package report renders the per-run HTML digest and writes it to disk.
package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"strings"

	"RSSDigest/internal/domain"
	"RSSDigest/internal/ports"
)

//go:embed report.html.tmpl
var reportTemplate string

var tmpl = template.Must(template.New("report").Parse(reportTemplate))

// Renderer turns grouped items and summaries into a self-contained HTML document.
// Sections follow the configured topic order; html/template escapes every
// feed- and model-supplied string.
type Renderer struct {
	title  string
	topics []string
}

var _ ports.Renderer = (*Renderer)(nil)

// NewRenderer fixes the report title and topic order.
func NewRenderer(title string, topics []string) *Renderer {
	return &Renderer{title: title, topics: topics}
}

type pageView struct {
	Title    string
	Date     string
	Empty    bool
	Sections []sectionView
}

type sectionView struct {
	Topic   string
	Summary []string
	Items   []itemView
}

type itemView struct {
	Title     string
	Link      string
	Published string
}

// Render builds the document for date. Every configured topic gets exactly one
// section; when no topic has items a single document-level placeholder replaces
// the per-topic ones.
func (r *Renderer) Render(date domain.Date, itemsByTopic map[string][]domain.Item, summaries map[string]string) ([]byte, error) {
	page := pageView{
		Title:    r.title,
		Date:     date.String(),
		Empty:    true,
		Sections: make([]sectionView, 0, len(r.topics)),
	}

	for _, topic := range r.topics {
		items := itemsByTopic[topic]
		section := sectionView{Topic: topic}
		if len(items) > 0 {
			page.Empty = false
			section.Summary = summaryLines(summaries[topic])
			section.Items = make([]itemView, 0, len(items))
			for _, it := range items {
				section.Items = append(section.Items, itemView{
					Title:     it.Title,
					Link:      it.Link,
					Published: it.Published.String(),
				})
			}
		}
		page.Sections = append(page.Sections, section)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, page); err != nil {
		return nil, fmt.Errorf("execute report template: %w", err)
	}
	return buf.Bytes(), nil
}

func summaryLines(summary string) []string {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(summary, "\r\n", "\n"), "\n")
}
