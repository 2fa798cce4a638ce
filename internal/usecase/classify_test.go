package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RSSDigest/internal/domain"
	"RSSDigest/internal/logging"
	"RSSDigest/internal/ports"
)

var testVocab = domain.NewVocabulary([]string{"Go", "Databases"}, "")

func candidates(n int) []domain.Item {
	items := make([]domain.Item, n)
	for i := range items {
		items[i] = domain.Item{
			Title:   fmt.Sprintf("title-%02d", i),
			Link:    fmt.Sprintf("http://x/%d", i),
			Content: "body",
		}
	}
	return items
}

func TestRoundRobin(t *testing.T) {
	t.Parallel()

	rr := RoundRobin{Size: 3}
	got := make([]int, 7)
	for i := range got {
		got[i] = rr.Assign(i)
	}
	require.Equal(t, []int{0, 1, 2, 0, 1, 2, 0}, got)
}

func TestClassifyPreservesOrderAndLength(t *testing.T) {
	t.Parallel()

	items := candidates(10)
	labels := make(map[string]string, len(items))
	for i, it := range items {
		if i%2 == 0 {
			labels[it.Title] = "Go"
		} else {
			labels[it.Title] = "Databases"
		}
	}
	// Varying delays make completion order differ from input order.
	pool := []ports.Completer{
		&fakeCompleter{name: "a", delay: 3 * time.Millisecond, respond: byTitle(labels)},
		&fakeCompleter{name: "b", delay: time.Millisecond, respond: byTitle(labels)},
		&fakeCompleter{name: "c", respond: byTitle(labels)},
	}
	c := NewClassifier(pool, testVocab, WithClassifierLogger(logging.Discard()))

	out, err := c.Classify(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, out, len(items))

	for i, it := range out {
		require.Equal(t, items[i].Link, it.Link)
		require.Equal(t, labels[it.Title], it.Topic)
	}
	require.Empty(t, items[0].Topic, "input slice is not mutated")
}

func TestClassifyRoundRobinAndOneCallPerEndpoint(t *testing.T) {
	t.Parallel()

	a := &fakeCompleter{name: "a", delay: 2 * time.Millisecond, respond: always("Go")}
	b := &fakeCompleter{name: "b", delay: 2 * time.Millisecond, respond: always("Go")}
	c := NewClassifier([]ports.Completer{a, b}, testVocab, WithClassifierLogger(logging.Discard()))

	_, err := c.Classify(context.Background(), candidates(6))
	require.NoError(t, err)

	titlesOf := func(prompts []string) []string {
		var titles []string
		for _, p := range prompts {
			for i := 0; i < 6; i++ {
				title := fmt.Sprintf("title-%02d", i)
				if strings.Contains(p, title) {
					titles = append(titles, title)
				}
			}
		}
		return titles
	}
	assert.Equal(t, []string{"title-00", "title-02", "title-04"}, titlesOf(a.seen()))
	assert.Equal(t, []string{"title-01", "title-03", "title-05"}, titlesOf(b.seen()))
	assert.EqualValues(t, 1, a.maxInFlight.Load())
	assert.EqualValues(t, 1, b.maxInFlight.Load())
}

func TestClassifyEndpointsRunConcurrently(t *testing.T) {
	t.Parallel()

	started := make(chan string, 2)
	release := make(chan struct{})
	blocking := func(name string) *fakeCompleter {
		return &fakeCompleter{name: name, respond: func(string) (string, error) {
			started <- name
			<-release
			return "Go", nil
		}}
	}
	c := NewClassifier([]ports.Completer{blocking("a"), blocking("b")}, testVocab, WithClassifierLogger(logging.Discard()))

	done := make(chan error, 1)
	go func() {
		_, err := c.Classify(context.Background(), candidates(2))
		done <- err
	}()

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case name := <-started:
			seen[name] = true
		case <-time.After(2 * time.Second):
			t.Fatal("endpoints were not called concurrently")
		}
	}
	close(release)
	require.NoError(t, <-done)
	require.Equal(t, map[string]bool{"a": true, "b": true}, seen)
}

func TestClassifyFailuresAndSentinel(t *testing.T) {
	t.Parallel()

	items := candidates(4)
	respond := func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "title-00"):
			return "  \"Databases\"\n", nil
		case strings.Contains(prompt, "title-01"):
			return "unmatched", nil
		case strings.Contains(prompt, "title-02"):
			return "", errors.New("timeout after retries")
		default:
			return "   ", nil
		}
	}
	c := NewClassifier([]ports.Completer{&fakeCompleter{name: "solo", respond: respond}}, testVocab,
		WithClassifierLogger(logging.Discard()))

	out, err := c.Classify(context.Background(), items)
	require.NoError(t, err)

	got := make([]string, len(out))
	for i, it := range out {
		got[i] = it.Topic
	}
	require.Equal(t, []string{"Databases", "unmatched", "", ""}, got)

	kept := KeepClassified(out, testVocab)
	require.Len(t, kept, 1)
	require.Equal(t, "http://x/0", kept[0].Link)
}

func TestClassifyLabelsOutsideVocabulary(t *testing.T) {
	t.Parallel()

	completer := func() []ports.Completer {
		return []ports.Completer{&fakeCompleter{name: "solo", respond: always("Rust")}}
	}

	lenient := NewClassifier(completer(), testVocab, WithClassifierLogger(logging.Discard()))
	out, err := lenient.Classify(context.Background(), candidates(1))
	require.NoError(t, err)
	require.Equal(t, "Rust", out[0].Topic)
	require.Len(t, KeepClassified(out, testVocab), 1)
	require.Empty(t, testVocab.Group(out)["Go"], "non-vocabulary labels never reach a report section")

	strict := NewClassifier(completer(), testVocab, WithStrictLabels(true), WithClassifierLogger(logging.Discard()))
	out, err = strict.Classify(context.Background(), candidates(1))
	require.NoError(t, err)
	require.Equal(t, "unmatched", out[0].Topic)
	require.Empty(t, KeepClassified(out, testVocab))
}

type fixedSlot int

func (f fixedSlot) Assign(int) int { return int(f) }

func TestClassifyCustomAssigner(t *testing.T) {
	t.Parallel()

	a := &fakeCompleter{name: "a", respond: always("Go")}
	b := &fakeCompleter{name: "b", respond: always("Go")}
	c := NewClassifier([]ports.Completer{a, b}, testVocab, WithAssigner(fixedSlot(1)), WithClassifierLogger(logging.Discard()))

	_, err := c.Classify(context.Background(), candidates(3))
	require.NoError(t, err)
	require.Empty(t, a.seen())
	require.Len(t, b.seen(), 3)

	bad := NewClassifier([]ports.Completer{a, b}, testVocab, WithAssigner(fixedSlot(5)), WithClassifierLogger(logging.Discard()))
	_, err = bad.Classify(context.Background(), candidates(1))
	require.Error(t, err)
}

func TestClassifyEmptyInput(t *testing.T) {
	t.Parallel()

	a := &fakeCompleter{name: "a", respond: always("Go")}
	out, err := NewClassifier([]ports.Completer{a}, testVocab).Classify(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, out)
	require.Empty(t, a.seen())

	_, err = NewClassifier(nil, testVocab).Classify(context.Background(), candidates(1))
	require.Error(t, err)
}

func TestClassificationPrompt(t *testing.T) {
	t.Parallel()

	item := domain.Item{Title: "Generics in practice", Content: strings.Repeat("é", 600)}
	prompt := ClassificationPrompt(item, testVocab)

	require.Contains(t, prompt, "Go, Databases")
	require.Contains(t, prompt, "Generics in practice")
	require.Contains(t, prompt, `"unmatched"`)
	require.Contains(t, prompt, "most specific")
	require.Contains(t, prompt, strings.Repeat("é", 500))
	require.NotContains(t, prompt, strings.Repeat("é", 501))
}

func TestNormalizeLabel(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Go":                 "Go",
		"  Go \n":            "Go",
		`"Go"`:               "Go",
		"'Databases'":        "Databases",
		"“Go”":              "Go",
		"":                   "",
		"Machine Learning\t": "Machine Learning",
	}
	got := make(map[string]string, len(cases))
	for in := range cases {
		got[in] = normalizeLabel(in)
	}
	if diff := cmp.Diff(cases, got); diff != "" {
		t.Fatalf("normalizeLabel mismatch (-want +got):\n%s", diff)
	}
}
