package ranker

import (
	"github.com/sydlexius/cadenza/internal/textmatch"
)

// CanonicalSet is an immutable allow-list of performer or label names used
// as a quality signal. Names are compared by folded token sequence.
type CanonicalSet struct {
	names  []string
	tokens [][]string
}

// NewCanonicalSet builds a set from names. Blank and duplicate names (after
// folding) are dropped.
func NewCanonicalSet(names ...string) *CanonicalSet {
	s := &CanonicalSet{}
	s.add(names...)
	return s
}

func (s *CanonicalSet) add(names ...string) {
	seen := make(map[string]bool, len(s.names)+len(names))
	for _, n := range s.names {
		seen[textmatch.Fold(n)] = true
	}
	for _, n := range names {
		folded := textmatch.Fold(n)
		if folded == "" || seen[folded] {
			continue
		}
		seen[folded] = true
		s.names = append(s.names, n)
		s.tokens = append(s.tokens, textmatch.Tokens(n))
	}
}

// Len returns the number of names in the set.
func (s *CanonicalSet) Len() int { return len(s.names) }

// Names returns a copy of the names in insertion order.
func (s *CanonicalSet) Names() []string { return append([]string(nil), s.names...) }

// Match reports whether some canonical name occurs as a whole-token run in
// name, so "Karajan" matches "Herbert von Karajan" but "Ma" does not match
// "Mahler Chamber Orchestra".
func (s *CanonicalSet) Match(name string) bool {
	tokens := textmatch.Tokens(name)
	if len(tokens) == 0 {
		return false
	}
	for _, canon := range s.tokens {
		if textmatch.ContainsSeq(tokens, canon) {
			return true
		}
	}
	return false
}

// Similarity returns the best bigram similarity between name and any
// canonical name, in [0,1].
func (s *CanonicalSet) Similarity(name string) float64 {
	best := 0.0
	for _, canon := range s.names {
		if d := textmatch.Dice(name, canon); d > best {
			best = d
		}
	}
	return best
}
