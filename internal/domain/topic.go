package domain

// DefaultUnmatched is the sentinel label meaning no configured topic applies.
const DefaultUnmatched = "unmatched"

// Vocabulary is the ordered set of configured topics plus the sentinel label.
type Vocabulary struct {
	Topics    []string
	Unmatched string
}

// NewVocabulary builds a vocabulary; an empty sentinel falls back to DefaultUnmatched.
func NewVocabulary(topics []string, unmatched string) Vocabulary {
	if unmatched == "" {
		unmatched = DefaultUnmatched
	}
	return Vocabulary{Topics: topics, Unmatched: unmatched}
}

// Contains reports whether topic is a configured vocabulary member.
func (v Vocabulary) Contains(topic string) bool {
	for _, t := range v.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// Group buckets items by topic in vocabulary order. Every configured topic has
// an entry, possibly empty; items with topics outside the vocabulary are not kept.
func (v Vocabulary) Group(items []Item) map[string][]Item {
	grouped := make(map[string][]Item, len(v.Topics))
	for _, t := range v.Topics {
		grouped[t] = nil
	}
	for _, it := range items {
		if _, ok := grouped[it.Topic]; ok {
			grouped[it.Topic] = append(grouped[it.Topic], it)
		}
	}
	return grouped
}
