// Package search ranks passages of extracted document text against a free
// text query. An Index is built once and is read-only afterwards, so it can
// be shared between goroutines.
//
// Scoring is Jaccard similarity over folded word sets:
// score = |Q ∩ P| / |Q ∪ P|. Ties go to the shorter passage, then to the
// lexically smaller one, so results are stable across runs.
package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DefaultK is used by TopK when k <= 0.
const DefaultK = 3

// Passage is a chunk of text attributed to the document it came from.
type Passage struct {
	Source string
	Text   string
}

// Result is a ranked snippet with its similarity score.
type Result struct {
	Source  string  `json:"source"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// Option tunes NewIndex.
type Option func(*settings)

type settings struct {
	minRunes int
	stop     termSet
	limit    int
}

func defaultSettings() settings {
	return settings{minRunes: 20}
}

// WithMinPassageRunes drops passages shorter than n runes. Negative n is
// ignored.
func WithMinPassageRunes(n int) Option {
	return func(s *settings) {
		if n >= 0 {
			s.minRunes = n
		}
	}
}

// WithStopwords removes the given words from passages and queries.
func WithStopwords(words []string) Option {
	return func(s *settings) {
		set := make(termSet, len(words))
		for _, w := range words {
			if w = fold(strings.TrimSpace(w)); w != "" {
				set[w] = struct{}{}
			}
		}
		if len(set) > 0 {
			s.stop = set
		}
	}
}

// WithMaxDocs stops indexing after n passages.
func WithMaxDocs(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.limit = n
		}
	}
}

// VietnameseStopwords are high-frequency function words that carry no
// subject signal in the course material.
var VietnameseStopwords = []string{
	"và", "là", "của", "có", "các", "những", "được", "cho", "với", "trong",
	"một", "này", "đã", "không", "thì", "mà", "để", "khi", "cũng", "về",
}

type entry struct {
	source string
	text   string
	runes  int
	terms  termSet
}

// Index holds tokenized passages.
type Index struct {
	set     settings
	entries []entry
}

// NewIndex tokenizes passages. Blank, short and wordless passages are
// skipped.
func NewIndex(passages []Passage, opts ...Option) *Index {
	set := defaultSettings()
	for _, o := range opts {
		o(&set)
	}
	idx := &Index{set: set, entries: make([]entry, 0, len(passages))}
	for _, p := range passages {
		text := collapseSpace(p.Text)
		n := utf8.RuneCountInString(text)
		if n == 0 || n < set.minRunes {
			continue
		}
		terms := terms(text, set.stop)
		if len(terms) == 0 {
			continue
		}
		idx.entries = append(idx.entries, entry{source: p.Source, text: text, runes: n, terms: terms})
		if set.limit > 0 && len(idx.entries) == set.limit {
			break
		}
	}
	return idx
}

// NewIndexFromText indexes SplitPassages(text), all attributed to source.
func NewIndexFromText(source, text string, opts ...Option) *Index {
	chunks := SplitPassages(text)
	ps := make([]Passage, len(chunks))
	for i, c := range chunks {
		ps[i] = Passage{Source: source, Text: c}
	}
	return NewIndex(ps, opts...)
}

// Len returns the number of indexed passages.
func (x *Index) Len() int { return len(x.entries) }

// TopK returns up to k passages sharing at least one word with q, best
// first. It returns nil when nothing matches.
func (x *Index) TopK(q string, k int) []Result {
	if len(x.entries) == 0 {
		return nil
	}
	qt := terms(q, x.set.stop)
	if len(qt) == 0 {
		return nil
	}
	if k <= 0 {
		k = DefaultK
	}

	type hit struct {
		e     *entry
		score float64
	}
	var hits []hit
	for i := range x.entries {
		e := &x.entries[i]
		shared := qt.intersect(e.terms)
		if shared == 0 {
			continue
		}
		hits = append(hits, hit{e: e, score: float64(shared) / float64(len(qt)+len(e.terms)-shared)})
	}
	if len(hits) == 0 {
		return nil
	}
	sort.Slice(hits, func(a, b int) bool {
		ha, hb := hits[a], hits[b]
		switch {
		case ha.score != hb.score:
			return ha.score > hb.score
		case ha.e.runes != hb.e.runes:
			return ha.e.runes < hb.e.runes
		default:
			return ha.e.text < hb.e.text
		}
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]Result, len(hits))
	for i, h := range hits {
		out[i] = Result{Source: h.e.source, Snippet: h.e.text, Score: h.score}
	}
	return out
}

type termSet map[string]struct{}

// intersect counts the members shared with o.
func (t termSet) intersect(o termSet) int {
	small, big := t, o
	if len(small) > len(big) {
		small, big = big, small
	}
	n := 0
	for w := range small {
		if _, ok := big[w]; ok {
			n++
		}
	}
	return n
}

// A word is a run of letters, optionally followed by digits.
var wordRE = regexp.MustCompile(`\p{L}+\p{N}*`)

func terms(s string, stop termSet) termSet {
	words := wordRE.FindAllString(fold(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(termSet, len(words))
	for _, w := range words {
		if _, skip := stop[w]; !skip {
			out[w] = struct{}{}
		}
	}
	return out
}

// fold composes combining marks and case-folds, so "HỒ" typed with
// decomposed diacritics still matches "hồ".
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
