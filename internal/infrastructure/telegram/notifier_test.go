package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"RSSDigest/internal/domain"
)

var sampleDigest = domain.Digest{
	Date: domain.NewDate(time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)),
	Topics: []domain.TopicCount{
		{Topic: "Go", Items: 2},
		{Topic: "Databases", Items: 0},
	},
	ReportPath: "/srv/reports/2025-03-10.html",
}

func TestPublishDigest(t *testing.T) {
	t.Parallel()

	var gotPath, gotChat, gotText, gotPreview string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotPath = r.URL.Path
		gotChat = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
		gotPreview = r.PostForm.Get("disable_web_page_preview")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	n := NewNotifier("123:abc", "42").WithAPIBase(server.URL + "/")
	if err := n.PublishDigest(context.Background(), sampleDigest); err != nil {
		t.Fatalf("PublishDigest returned error: %v", err)
	}

	if gotPath != "/bot123:abc/sendMessage" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if gotChat != "42" || gotPreview != "true" {
		t.Fatalf("unexpected form chat=%q preview=%q", gotChat, gotPreview)
	}
	if gotText != FormatDigest(sampleDigest) {
		t.Fatalf("unexpected text %q", gotText)
	}
}

func TestPublishDigestErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "chat not found", http.StatusBadRequest)
	}))
	defer server.Close()

	n := NewNotifier("t", "c").WithAPIBase(server.URL)
	err := n.PublishDigest(context.Background(), sampleDigest)
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected telegram error, got %v", err)
	}

	if err := NewNotifier("", "").PublishDigest(context.Background(), sampleDigest); err == nil {
		t.Fatal("expected misconfiguration error")
	}
}

func TestFormatDigest(t *testing.T) {
	t.Parallel()

	want := "RSS digest 2025-03-10\n- Go: 2\n- Databases: 0\nReport: /srv/reports/2025-03-10.html"
	if got := FormatDigest(sampleDigest); got != want {
		t.Fatalf("FormatDigest mismatch:\nwant %q\ngot  %q", want, got)
	}

	empty := sampleDigest
	empty.Topics = []domain.TopicCount{{Topic: "Go"}}
	if got := FormatDigest(empty); !strings.Contains(got, "No new articles this period.") {
		t.Fatalf("empty digest lacks placeholder: %q", got)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("ж", maxMessageRunes+10)
	got := truncate(long, maxMessageRunes)
	if utf8.RuneCountInString(got) != maxMessageRunes {
		t.Fatalf("expected %d runes, got %d", maxMessageRunes, utf8.RuneCountInString(got))
	}
	if truncate("short", maxMessageRunes) != "short" {
		t.Fatal("short text must be unchanged")
	}
}
