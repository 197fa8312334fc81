// Package fuzzy scores items against a typed query with token-level Levenshtein distance.
package fuzzy

import (
	"math"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/kailas-cloud/cinesim/internal/domain/item"
)

// Defaults tuned for movie titles.
const (
	DefaultTitleWeight       = 0.8
	DefaultDescriptionWeight = 0.2
	DefaultThreshold         = 0.4
	DefaultMinMatchLength    = 2
)

const epsilon = 1e-3

// Config tunes the matcher. Zero fields take the defaults.
type Config struct {
	TitleWeight       float64
	DescriptionWeight float64
	Threshold         float64 // highest accepted field score; 0 is a perfect match
	MinMatchLength    int     // shorter query tokens are ignored
}

// Matcher ranks items by fuzzy title and description match.
type Matcher struct {
	titleW, descW float64
	threshold     float64
	minLen        int
}

// New creates a matcher.
func New(cfg Config) *Matcher {
	if cfg.TitleWeight <= 0 && cfg.DescriptionWeight <= 0 {
		cfg.TitleWeight, cfg.DescriptionWeight = DefaultTitleWeight, DefaultDescriptionWeight
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.MinMatchLength <= 0 {
		cfg.MinMatchLength = DefaultMinMatchLength
	}
	total := cfg.TitleWeight + cfg.DescriptionWeight
	return &Matcher{
		titleW:    cfg.TitleWeight / total,
		descW:     cfg.DescriptionWeight / total,
		threshold: cfg.Threshold,
		minLen:    cfg.MinMatchLength,
	}
}

// Match returns the matching items, best first. Ties keep corpus order.
func (m *Matcher) Match(query string, corpus []item.Item) []item.Item {
	hits := m.Score(query, corpus)
	out := make([]item.Item, len(hits))
	for i, h := range hits {
		out[i] = h.Item
	}
	return out
}

// Score is Match with a relevance in [0,1] per item (1 is a perfect match).
func (m *Matcher) Score(query string, corpus []item.Item) []item.Hit {
	q := tokens(query, m.minLen)
	if len(q) == 0 {
		return []item.Hit{}
	}
	phrase := strings.Join(q, " ")

	type scored struct {
		hit   item.Hit
		score float64
		pos   int
	}
	var matched []scored
	for pos, it := range corpus {
		total, ok := 1.0, false
		for _, f := range []struct {
			text   string
			weight float64
		}{
			{it.Title(), m.titleW},
			{it.Description(), m.descW},
		} {
			if f.weight == 0 {
				continue
			}
			s := fieldScore(phrase, q, f.text)
			if s > m.threshold {
				continue
			}
			ok = true
			total *= math.Pow(max(s, epsilon), f.weight)
		}
		if !ok {
			continue
		}
		matched = append(matched, scored{
			hit:   item.Hit{Item: it, Relevance: 1 - total},
			score: total,
			pos:   pos,
		})
	}

	slices.SortStableFunc(matched, func(a, b scored) int {
		switch {
		case a.score < b.score:
			return -1
		case a.score > b.score:
			return 1
		}
		return a.pos - b.pos
	})

	out := make([]item.Hit, len(matched))
	for i, s := range matched {
		out[i] = s.hit
	}
	return out
}

// fieldScore is 0 when the field contains the phrase and otherwise the mean,
// over query tokens, of the best normalized edit distance to a field token or its prefix.
func fieldScore(phrase string, q []string, text string) float64 {
	if text == "" {
		return 1
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, phrase) {
		return 0
	}
	words := tokens(lower, 1)
	if len(words) == 0 {
		return 1
	}

	var sum float64
	for _, qt := range q {
		best := 1.0
		qn := utf8.RuneCountInString(qt)
		for _, w := range words {
			d := min(levenshtein.ComputeDistance(qt, w), levenshtein.ComputeDistance(qt, prefix(w, qn)))
			best = min(best, float64(d)/float64(qn))
			if best == 0 {
				break
			}
		}
		sum += best
	}
	return sum / float64(len(q))
}

func tokens(s string, minLen int) []string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := words[:0]
	for _, w := range words {
		if utf8.RuneCountInString(w) >= minLen {
			out = append(out, w)
		}
	}
	return out
}

func prefix(s string, n int) string {
	i := 0
	for j := range s {
		if i == n {
			return s[:j]
		}
		i++
	}
	return s
}
