package domain

import "time"

// Endpoint describes one remote text-generation target. Immutable for a run.
type Endpoint struct {
	Name              string
	BaseURL           string
	APIKey            string
	Model             string
	VerifyTLS         bool
	MaxRetries        int
	Timeout           time.Duration
	Temperature       float64
	RequestsPerMinute int
}

// Pool partitions endpoints by role: index 0 summarizes, the rest classify.
// A single endpoint serves both roles.
type Pool []Endpoint

// Summarizer returns the endpoint reserved for summarization.
func (p Pool) Summarizer() Endpoint {
	return p[0]
}

// Classifiers returns the endpoints serving classification.
func (p Pool) Classifiers() []Endpoint {
	if len(p) == 1 {
		return []Endpoint{p[0]}
	}
	return p[1:]
}
