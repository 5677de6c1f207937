// Package search is a small in-memory index used to answer help queries.
//
// Each document is a key (a command name) with the text users might search
// for: its keyword, exemplar and description. Scoring is the Jaccard
// similarity between the query's token set and the document's token set,
// |Q ∩ D| / |Q ∪ D|. The index is immutable after construction and safe for
// concurrent use. It does not log.
package search

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// Doc is one searchable entry.
type Doc struct {
	Key  string
	Text string
}

// Result is a ranked document.
type Result struct {
	Key     string
	Snippet string
	Score   float64
}

// Index ranks documents against a query.
type Index interface {
	TopK(query string, k int) []Result
	// TopKWhere is TopK restricted to documents whose key keep accepts.
	TopKWhere(query string, k int, keep func(key string) bool) []Result
	Keys() []string
}

// Option configures an index.
type Option func(*config)

type config struct {
	stopwords map[string]struct{}
	minScore  float64
}

func defaultConfig() config {
	return config{}
}

// WithStopwords drops the given words from documents and queries.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = fold(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

// WithMinScore drops results scoring below s.
func WithMinScore(s float64) Option {
	return func(c *config) {
		if s >= 0 && s <= 1 {
			c.minScore = s
		}
	}
}

type doc struct {
	Doc
	tokens map[string]struct{}
}

type index struct {
	cfg  config
	docs []doc
}

// NewIndex builds an index over docs. Documents with no indexable words are
// skipped; a repeated key keeps the first document.
func NewIndex(docs []Doc, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	seen := make(map[string]bool, len(docs))
	out := make([]doc, 0, len(docs))
	for _, d := range docs {
		if d.Key == "" || seen[d.Key] {
			continue
		}
		toks := tokenize(d.Text, cfg.stopwords)
		if len(toks) == 0 {
			continue
		}
		seen[d.Key] = true
		out = append(out, doc{Doc: Doc{Key: d.Key, Text: strings.Join(strings.Fields(d.Text), " ")}, tokens: toks})
	}
	return &index{cfg: cfg, docs: out}
}

func (i *index) Keys() []string {
	keys := make([]string, len(i.docs))
	for n, d := range i.docs {
		keys[n] = d.Key
	}
	return keys
}

func (i *index) TopK(q string, k int) []Result { return i.TopKWhere(q, k, nil) }

func (i *index) TopKWhere(q string, k int, keep func(string) bool) []Result {
	if len(i.docs) == 0 || strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 3
	}
	qt := tokenize(q, i.cfg.stopwords)
	if len(qt) == 0 {
		return nil
	}

	var buf []Result
	for _, d := range i.docs {
		if keep != nil && !keep(d.Key) {
			continue
		}
		over := overlap(qt, d.tokens)
		if over == 0 {
			continue
		}
		score := float64(over) / float64(len(qt)+len(d.tokens)-over)
		if score < i.cfg.minScore {
			continue
		}
		buf = append(buf, Result{Key: d.Key, Snippet: d.Text, Score: score})
	}

	// Ties go to the shorter document, then the key.
	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].Score != buf[b].Score {
			return buf[a].Score > buf[b].Score
		}
		if len(buf[a].Snippet) != len(buf[b].Snippet) {
			return len(buf[a].Snippet) < len(buf[b].Snippet)
		}
		return buf[a].Key < buf[b].Key
	})
	if k < len(buf) {
		buf = buf[:k]
	}
	return buf
}

var wordRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

func fold(s string) string { return cases.Fold().String(s) }

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(fold(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := stop[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
