package ranker

import (
	"math"
	"testing"

	"github.com/sydlexius/cadenza/internal/provider"
	"github.com/sydlexius/cadenza/internal/recording"
)

func newTestRanker(t *testing.T) *Ranker {
	t.Helper()
	cfg := DefaultConfig(
		NewCanonicalSet("Herbert von Karajan", "Il Giardino Armonico", "Glenn Gould", "Karl Böhm"),
		NewCanonicalSet("Deutsche Grammophon", "Teldec", "Hyperion"),
	)
	r, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestScore_ExactIdentityWins(t *testing.T) {
	r := newTestRanker(t)
	ref := recording.Recording{Composer: "Bach", Work: "Brandenburg Concertos", Performer: "Il Giardino Armonico", Label: "Teldec", Year: 1997}
	exact := &provider.ExternalRelease{
		Title:   "Brandenburg Concertos",
		Artists: []string{"Bach*", "Il Giardino Armonico", "Giovanni Antonini"},
		Year:    1997,
	}
	cands := []provider.Candidate{
		{ID: "a", Title: "Brandenburg Concertos", Artists: []string{"Herbert von Karajan"}, Label: "Deutsche Grammophon", Popularity: 90},
		{ID: "b", Title: "Bach: Brandenburg Concertos Nos. 1-6", Artists: []string{"Il Giardino Armonico"}, Year: 1998, Popularity: 10},
	}

	got, ok := r.Score(ref, cands, exact)
	if !ok || !got.Exact {
		t.Fatalf("expected exact winner, got %+v ok=%v", got, ok)
	}
	if got.Index != 1 || got.Candidate.ID != "b" {
		t.Errorf("winner = %d (%v), want index 1", got.Index, got.Candidate)
	}
	if got.Score != 1 {
		t.Errorf("Score = %v, want 1", got.Score)
	}
}

func TestScore_ExactComposerCreditIgnored(t *testing.T) {
	r := newTestRanker(t)
	ref := recording.Recording{Composer: "Johann Sebastian Bach", Work: "Mass in B minor"}
	exact := &provider.ExternalRelease{
		Title:   "Mass in B minor",
		Artists: []string{"Johann Sebastian Bach", "John Eliot Gardiner"},
	}
	cands := []provider.Candidate{
		{ID: "a", Title: "Mass in B minor", Artists: []string{"Bach", "Karl Richter"}},
	}
	got, _ := r.Score(ref, cands, exact)
	if got.Exact {
		t.Error("a shared composer credit must not count as an identity match")
	}
}

func TestScore_RankedFullScoreIsNotExact(t *testing.T) {
	r := newTestRanker(t)
	ref := recording.Recording{Composer: "Beethoven", Work: "Symphony No. 9"}
	cands := []provider.Candidate{{
		ID:         "karajan",
		Title:      "Beethoven: Symphony No. 9",
		Artists:    []string{"Berliner Philharmoniker", "Herbert von Karajan"},
		Label:      "Deutsche Grammophon GmbH",
		Popularity: 0.5,
	}}
	unrelated := &provider.ExternalRelease{Title: "Symphony No. 9", Artists: []string{"Leonard Bernstein"}}

	for _, exact := range []*provider.ExternalRelease{nil, unrelated} {
		got, ok := r.Score(ref, cands, exact)
		if !ok {
			t.Fatalf("expected a winner, got %+v", got)
		}
		if got.Exact {
			t.Error("ranked result must not be tagged exact")
		}
		if !approx(got.Score, 1) {
			t.Errorf("Score = %v, want 1", got.Score)
		}
	}
}

func TestScore_BelowThresholdHasNoWinner(t *testing.T) {
	r := newTestRanker(t)
	ref := recording.Recording{Composer: "Vivaldi", Work: "The Four Seasons"}
	cands := []provider.Candidate{
		{ID: "a", Artists: []string{"Anonymous Ensemble"}, Label: "Budget Records", Popularity: 5},
		{ID: "b", Artists: []string{"Unknown Players"}, Popularity: 3},
	}

	got, ok := r.Score(ref, cands, nil)
	if ok {
		t.Fatalf("expected no winner, got %+v", got)
	}
	if got.Candidate != nil || got.Index != -1 {
		t.Errorf("rejected result must carry no candidate: %+v", got)
	}
	if !approx(got.Score, 0.15) {
		t.Errorf("best rejected score = %v, want 0.15", got.Score)
	}
}

func TestScore_Empty(t *testing.T) {
	r := newTestRanker(t)
	got, ok := r.Score(recording.Recording{Composer: "x", Work: "y"}, nil, nil)
	if ok || got.Candidate != nil || got.Index != -1 || got.Score != 0 {
		t.Errorf("empty input: %+v ok=%v", got, ok)
	}
}

// Missing label metadata scores zero and its weight is not redistributed.
func TestScore_MissingLabelScoresZero(t *testing.T) {
	r := newTestRanker(t)
	ref := recording.Recording{Composer: "Bach", Work: "Goldberg Variations"}
	withLabel := provider.Candidate{ID: "a", Artists: []string{"Glenn Gould"}, Label: "Hyperion"}
	noLabel := provider.Candidate{ID: "b", Artists: []string{"Glenn Gould"}}

	got, ok := r.Score(ref, []provider.Candidate{noLabel}, nil)
	if !ok {
		t.Fatal("expected a winner")
	}
	if got.Components.Label != 0 {
		t.Errorf("label component = %v, want 0", got.Components.Label)
	}
	if !approx(got.Score, 0.65) {
		t.Errorf("label-less score = %v, want 0.65", got.Score)
	}

	got, _ = r.Score(ref, []provider.Candidate{withLabel}, nil)
	if !approx(got.Score, 1) {
		t.Errorf("labelled score = %v, want 1", got.Score)
	}
}

func TestScore_PartialCredit(t *testing.T) {
	r := newTestRanker(t)
	ref := recording.Recording{Composer: "Brahms", Work: "Symphony No. 1"}
	cands := []provider.Candidate{{ID: "a", Artists: []string{"Herbert von Karajn"}}}

	got, ok := r.Score(ref, cands, nil)
	if !ok {
		t.Fatalf("expected a winner, got %+v", got)
	}
	p := got.Components.Performer
	if p <= 0 || p >= DefaultPartialCredit {
		t.Errorf("performer component = %v, want in (0, %v)", p, DefaultPartialCredit)
	}
}

func TestScore_ReferenceDoesNotExtendCanonicalSets(t *testing.T) {
	cfg := DefaultConfig(NewCanonicalSet("Herbert von Karajan"), NewCanonicalSet("Deutsche Grammophon"))
	r, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ref := recording.Recording{Composer: "Janáček", Work: "String Quartet No. 1", Performer: "Obscure Quartet", Label: "Tiny Label"}
	cands := []provider.Candidate{
		{ID: "a", Artists: []string{"Obscure Quartet"}, Label: "Tiny Label", Popularity: 0},
		{ID: "b", Artists: []string{"Someone Else"}, Popularity: 10},
	}

	got, ok := r.Score(ref, cands, nil)
	if ok {
		t.Fatalf("expected no qualifying candidate, got %+v", got)
	}
	if !approx(got.Score, 0.15) {
		t.Errorf("best rejected score = %v, want 0.15", got.Score)
	}
	if got.Components.Performer != 0 || got.Components.Label != 0 {
		t.Errorf("components = %+v, want no performer or label credit", got.Components)
	}
}

func TestScore_TieGoesToEarliest(t *testing.T) {
	r := newTestRanker(t)
	c := provider.Candidate{Artists: []string{"Glenn Gould"}, Label: "Hyperion", Popularity: 7}
	first, second := c, c
	first.ID, second.ID = "first", "second"

	got, ok := r.Score(recording.Recording{Composer: "Bach", Work: "Partitas"}, []provider.Candidate{first, second}, nil)
	if !ok || got.Index != 0 || got.Candidate.ID != "first" {
		t.Errorf("tie winner = %+v, want index 0", got)
	}
}

func TestScore_ThresholdInclusive(t *testing.T) {
	cfg := DefaultConfig(NewCanonicalSet(), NewCanonicalSet())
	cfg.MinScore = 0.15
	r, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, ok := r.Score(recording.Recording{Composer: "x", Work: "y"}, []provider.Candidate{{ID: "a"}}, nil)
	if !ok || got.Score != 0.15 {
		t.Errorf("score equal to threshold must qualify: %+v ok=%v", got, ok)
	}
}

func TestScore_Deterministic(t *testing.T) {
	r := newTestRanker(t)
	ref := recording.Recording{Composer: "Mahler", Work: "Symphony No. 2", Performer: "Klaus Tennstedt"}
	cands := []provider.Candidate{
		{ID: "a", Artists: []string{"Klaus Tennstedt"}, Popularity: 3},
		{ID: "b", Artists: []string{"Gilbert Kaplan"}, Label: "Deutsche Grammophon", Popularity: 9},
		{ID: "c", Artists: []string{"Herbert von Karajan"}, Popularity: 1},
	}
	first, ok1 := r.Score(ref, cands, nil)
	for range 20 {
		again, ok2 := r.Score(ref, cands, nil)
		if ok1 != ok2 || again.Index != first.Index || again.Score != first.Score {
			t.Fatalf("non-deterministic: %+v vs %+v", first, again)
		}
	}
}

func TestScore_Bounds(t *testing.T) {
	r := newTestRanker(t)
	pops := []float64{-50, 0, 0.5, 1e12, math.MaxFloat64 / 4}
	artists := []string{"Herbert von Karajan", "Herbert von Karajn", "Nobody", ""}
	labels := []string{"Teldec", "Teldek", "", "Other"}

	var cands []provider.Candidate
	for i, p := range pops {
		cands = append(cands, provider.Candidate{
			Artists:    []string{artists[i%len(artists)]},
			Label:      labels[i%len(labels)],
			Popularity: p,
		})
	}
	for n := 1; n <= len(cands); n++ {
		got, _ := r.Score(recording.Recording{Composer: "x", Work: "y"}, cands[:n], nil)
		if got.Score < 0 || got.Score > 1 {
			t.Errorf("n=%d score %v out of [0,1]", n, got.Score)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	base := DefaultConfig(nil, nil)
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"weights sum", func(c *Config) { c.Weights.Label = 0.5 }},
		{"negative weight", func(c *Config) { c.Weights = Weights{Performer: 1.2, Label: -0.2} }},
		{"min score", func(c *Config) { c.MinScore = 1.5 }},
		{"partial credit", func(c *Config) { c.PartialCredit = 1 }},
		{"similarity floor", func(c *Config) { c.SimilarityFloor = -0.1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			if _, err := New(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	if _, err := New(base); err != nil {
		t.Errorf("default config rejected: %v", err)
	}
}
