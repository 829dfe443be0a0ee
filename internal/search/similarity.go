// Package search scores how alike two topic titles are. It is small and
// deterministic, and safe for concurrent use once a Matcher is built:
//
//   - No logging in the library (callers decide how/what to log)
//   - Functional options (Option pattern) for stop words
//   - Unicode-aware tokenization with full case folding
//   - Deterministic ranking (stable order for ties)
//
// Scoring uses Jaccard similarity between the token sets of the two titles:
// score = |A ∩ B| / |A ∪ B|.
package search

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// Candidate is a title to be ranked against a query.
type Candidate struct {
	ID    string
	Title string
}

// Result is a ranked candidate with its similarity score in [0,1].
type Result struct {
	ID    string
	Title string
	Score float64
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	stopwords map[string]struct{}
}

// DefaultStopwords are dropped from titles before scoring. Poll titles are
// short, so filler words would otherwise dominate the overlap.
var DefaultStopwords = []string{
	"a", "an", "and", "are", "do", "does", "for", "in", "is", "of",
	"on", "or", "should", "the", "to", "what", "which", "who", "you", "your",
}

func defaultConfig() config {
	var c config
	WithStopwords(DefaultStopwords)(&c)
	return c
}

// WithStopwords replaces the stop word list. An empty list disables stop
// word removal.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = fold(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) == 0 {
			c.stopwords = nil
			return
		}
		c.stopwords = m
	}
}

// ----------------------------------------------------------------------------
// Matcher

// Matcher scores titles with a fixed configuration.
type Matcher struct {
	cfg config
}

// NewMatcher builds a Matcher with the default stop words.
func NewMatcher(opts ...Option) *Matcher {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &Matcher{cfg: cfg}
}

// Rank scores every candidate against query and returns them best first.
// The score is the Jaccard similarity of the two token sets; titles without
// scorable tokens score 0. Ties keep the input order.
func (m *Matcher) Rank(query string, candidates []Candidate) []Result {
	if len(candidates) == 0 {
		return nil
	}
	q := m.tokenize(query)
	out := make([]Result, len(candidates))
	for i, c := range candidates {
		out[i] = Result{ID: c.ID, Title: c.Title, Score: jaccard(q, m.tokenize(c.Title))}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	return out
}

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

func fold(s string) string { return cases.Fold().String(s) }

func (m *Matcher) tokenize(s string) map[string]struct{} {
	words := wordRE.FindAllString(fold(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := m.cfg.stopwords[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	over := overlap(a, b)
	if over == 0 {
		return 0
	}
	union := len(a) + len(b) - over
	return float64(over) / float64(union)
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := 0
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
