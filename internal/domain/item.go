package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date form used in checkpoints and report names.
const DateLayout = "2006-01-02"

// Item is one feed entry carried through the pipeline.
// Link is the identity used for deduplication; Topic stays empty until classified.
type Item struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Content   string `json:"content"`
	Published Date   `json:"published"`
	Topic     string `json:"topic,omitempty"`
}

// Classified reports whether a topic has been assigned.
func (i Item) Classified() bool {
	return i.Topic != ""
}

// Entry is a raw feed entry as yielded by a feed reader.
type Entry struct {
	Title     string
	Link      string
	Summary   string
	Published *time.Time
}

// Date is a calendar date without time-of-day.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar date in t's location.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MarshalJSON encodes the date as a YYYY-MM-DD string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes a YYYY-MM-DD string; null and "" leave the zero date.
func (d *Date) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*d = Date{}
		return nil
	}
	raw = strings.Trim(raw, `"`)
	if raw == "" {
		*d = Date{}
		return nil
	}
	parsed, err := time.Parse(DateLayout, raw)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", raw, err)
	}
	d.Time = parsed
	return nil
}

// Links returns the set of links present in items.
func Links(items []Item) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it.Link] = struct{}{}
	}
	return set
}
