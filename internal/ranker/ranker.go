// Package ranker scores catalog candidates against a reference recording and
// picks the best one.
package ranker

import (
	"errors"
	"fmt"
	"math"

	"github.com/sydlexius/cadenza/internal/provider"
	"github.com/sydlexius/cadenza/internal/recording"
	"github.com/sydlexius/cadenza/internal/textmatch"
)

// Default scoring parameters.
const (
	DefaultMinScore        = 0.3
	DefaultPartialCredit   = 0.5
	DefaultSimilarityFloor = 0.75

	// ExactYearTolerance bounds the year drift between an exact release and
	// the candidate claiming to be it.
	ExactYearTolerance = 1
)

// Weights are the relative contributions of the scoring components. They
// must be non-negative and sum to 1.
type Weights struct {
	Performer  float64 `yaml:"performer" json:"performer"`
	Label      float64 `yaml:"label" json:"label"`
	Popularity float64 `yaml:"popularity" json:"popularity"`
}

// DefaultWeights returns the standard 0.50 / 0.35 / 0.15 split.
func DefaultWeights() Weights {
	return Weights{Performer: 0.50, Label: 0.35, Popularity: 0.15}
}

// Validate checks the weights.
func (w Weights) Validate() error {
	if w.Performer < 0 || w.Label < 0 || w.Popularity < 0 {
		return errors.New("weights must be non-negative")
	}
	if sum := w.Performer + w.Label + w.Popularity; math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("weights must sum to 1, got %.4f", sum)
	}
	return nil
}

// Config holds the injected scoring data. Canonical sets are shared
// read-only between goroutines.
type Config struct {
	Weights         Weights
	MinScore        float64
	PartialCredit   float64 // credit multiplier for near matches, below 1
	SimilarityFloor float64 // minimum similarity that earns partial credit
	Performers      *CanonicalSet
	Labels          *CanonicalSet
}

// DefaultConfig returns the default parameters with the given canonical sets.
func DefaultConfig(performers, labels *CanonicalSet) Config {
	return Config{
		Weights:         DefaultWeights(),
		MinScore:        DefaultMinScore,
		PartialCredit:   DefaultPartialCredit,
		SimilarityFloor: DefaultSimilarityFloor,
		Performers:      performers,
		Labels:          labels,
	}
}

// Components is the per-signal breakdown of a ranked score.
type Components struct {
	Performer  float64 `json:"performer"`
	Label      float64 `json:"label"`
	Popularity float64 `json:"popularity"`
}

// Scored is the ranker's decision for one candidate list.
type Scored struct {
	// Candidate is the winner, or nil when nothing qualified.
	Candidate *provider.Candidate
	// Index is the winner's position in the input, or -1.
	Index int
	// Score is the winner's score, or the best rejected score when there
	// is no winner.
	Score float64
	// Exact reports that the winner identity-matched the exact release.
	Exact      bool
	Components Components
}

// Ranker is a pure, deterministic scoring function over injected config.
type Ranker struct {
	cfg Config
}

// New validates cfg and returns a ranker.
func New(cfg Config) (*Ranker, error) {
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}
	if cfg.MinScore < 0 || cfg.MinScore > 1 {
		return nil, fmt.Errorf("min score %.2f out of range [0,1]", cfg.MinScore)
	}
	if cfg.PartialCredit < 0 || cfg.PartialCredit >= 1 {
		return nil, fmt.Errorf("partial credit %.2f out of range [0,1)", cfg.PartialCredit)
	}
	if cfg.SimilarityFloor < 0 || cfg.SimilarityFloor > 1 {
		return nil, fmt.Errorf("similarity floor %.2f out of range [0,1]", cfg.SimilarityFloor)
	}
	if cfg.Performers == nil {
		cfg.Performers = NewCanonicalSet()
	}
	if cfg.Labels == nil {
		cfg.Labels = NewCanonicalSet()
	}
	return &Ranker{cfg: cfg}, nil
}

// MinScore returns the acceptance threshold.
func (r *Ranker) MinScore() float64 { return r.cfg.MinScore }

// Score picks the best candidate for ref. A candidate identity-matching
// exact wins with score 1. Otherwise the highest weighted score wins, ties
// going to the earliest candidate. The boolean is false when no candidate
// reaches the threshold; the returned Scored then carries only the best
// rejected score.
func (r *Ranker) Score(ref recording.Recording, cands []provider.Candidate, exact *provider.ExternalRelease) (Scored, bool) {
	none := Scored{Index: -1}
	if len(cands) == 0 {
		return none, false
	}

	if exact != nil {
		for i := range cands {
			if IdentityMatch(ref, cands[i], *exact) {
				c := cands[i]
				return Scored{Candidate: &c, Index: i, Score: 1, Exact: true}, true
			}
		}
	}

	pop := normalizePopularity(cands)

	best := -1
	bestScore := -1.0
	var bestParts Components
	for i := range cands {
		parts := Components{
			Performer:  r.nameScore(r.cfg.Performers, cands[i].Artists...),
			Popularity: pop[i],
		}
		// Missing label metadata contributes nothing; its weight is not
		// redistributed.
		if cands[i].Label != "" {
			parts.Label = r.nameScore(r.cfg.Labels, cands[i].Label)
		}
		score := clamp(r.cfg.Weights.Performer*parts.Performer +
			r.cfg.Weights.Label*parts.Label +
			r.cfg.Weights.Popularity*parts.Popularity)
		if score > bestScore {
			best, bestScore, bestParts = i, score, parts
		}
	}

	if bestScore < r.cfg.MinScore {
		none.Score = bestScore
		none.Components = bestParts
		return none, false
	}
	c := cands[best]
	return Scored{Candidate: &c, Index: best, Score: bestScore, Components: bestParts}, true
}

// nameScore is 1 for a canonical match, partial credit for a near match and
// 0 otherwise.
func (r *Ranker) nameScore(set *CanonicalSet, names ...string) float64 {
	best := 0.0
	for _, n := range names {
		if set.Match(n) {
			return 1
		}
		if sim := set.Similarity(n); sim >= r.cfg.SimilarityFloor {
			best = math.Max(best, r.cfg.PartialCredit*sim)
		}
	}
	return best
}

// normalizePopularity min-max scales popularity within the list. A single
// candidate, or a list where all values are equal, normalizes to 1.
func normalizePopularity(cands []provider.Candidate) []float64 {
	out := make([]float64, len(cands))
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range cands {
		lo = math.Min(lo, c.Popularity)
		hi = math.Max(hi, c.Popularity)
	}
	for i, c := range cands {
		if hi == lo {
			out[i] = 1
			continue
		}
		out[i] = (c.Popularity - lo) / (hi - lo)
	}
	return out
}

// IdentityMatch reports whether cand is the same recording as the exact
// release: the titles contain one another, a performing artist overlaps and
// the years agree within tolerance. Artists matching the composer are not
// counted, since catalogs often credit the composer as an artist.
func IdentityMatch(ref recording.Recording, cand provider.Candidate, exact provider.ExternalRelease) bool {
	if !textmatch.Contains(cand.Title, exact.Title) {
		return false
	}
	if cand.Year != 0 && exact.Year != 0 {
		diff := cand.Year - exact.Year
		if diff < 0 {
			diff = -diff
		}
		if diff > ExactYearTolerance {
			return false
		}
	}
	for _, ea := range exact.Artists {
		if isComposer(ref, ea) {
			continue
		}
		for _, ca := range cand.Artists {
			if isComposer(ref, ca) {
				continue
			}
			if textmatch.Overlap(ea, ca) {
				return true
			}
		}
	}
	return false
}

// isComposer reports whether artist names the composer: "Bach*" and
// "Johann Sebastian Bach" do for composer "Bach", "Bach Collegium Japan"
// does not.
func isComposer(ref recording.Recording, artist string) bool {
	ct, at := textmatch.Tokens(ref.Composer), textmatch.Tokens(artist)
	if len(ct) == 0 || len(at) == 0 {
		return false
	}
	if textmatch.ContainsSeq(ct, at) {
		return true
	}
	return textmatch.ContainsSeq(at, ct) && at[len(at)-1] == ct[len(ct)-1]
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
