package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"RSSDigest/internal/domain"
	"RSSDigest/internal/ports"
)

const (
	defaultAPIBase = "https://api.telegram.org"
	sendTimeout    = 5 * time.Second

	// maxMessageRunes is the sendMessage text limit.
	maxMessageRunes = 4096
)

// Notifier announces finished digests in one Telegram chat through the Bot API.
type Notifier struct {
	apiBase string
	token   string
	chatID  string
	client  *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier targets chatID with the given bot token.
func NewNotifier(token, chatID string) *Notifier {
	return &Notifier{
		apiBase: defaultAPIBase,
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: sendTimeout},
	}
}

// WithAPIBase points the notifier at another Bot API host.
func (n *Notifier) WithAPIBase(base string) *Notifier {
	n.apiBase = strings.TrimRight(base, "/")
	return n
}

// PublishDigest sends the per-topic counts and report location as plain text.
func (n *Notifier) PublishDigest(ctx context.Context, digest domain.Digest) error {
	if n.token == "" || n.chatID == "" {
		return fmt.Errorf("telegram: bot token and chat id are required")
	}

	form := url.Values{
		"chat_id":                  {n.chatID},
		"text":                     {truncate(FormatDigest(digest), maxMessageRunes)},
		"disable_web_page_preview": {"true"},
	}
	sendURL := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sendURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram: sendMessage %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}

// FormatDigest renders the chat message for a digest.
func FormatDigest(d domain.Digest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "RSS digest %s\n", d.Date)
	for _, t := range d.Topics {
		fmt.Fprintf(&b, "- %s: %d\n", t.Topic, t.Items)
	}
	if d.Total() == 0 {
		b.WriteString("No new articles this period.\n")
	}
	fmt.Fprintf(&b, "Report: %s", d.ReportPath)
	return b.String()
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
