package matcher

import (
	"fmt"
	"time"

	"github.com/sydlexius/cadenza/internal/provider"
	"github.com/sydlexius/cadenza/internal/recording"
)

// Outcome tags how an entry was resolved.
type Outcome string

// Entry outcomes.
const (
	OutcomeExact    Outcome = "EXACT"
	OutcomeRanked   Outcome = "RANKED"
	OutcomeNotFound Outcome = "NOT_FOUND"
)

// PrimaryVariant is the Variant value of a result produced by the primary
// recording. Alternates are numbered from 0.
const PrimaryVariant = -1

// MatchResult is the final outcome for one entry. An EXACT result always
// scores 1; a NOT_FOUND result never carries a candidate or release.
type MatchResult struct {
	EntryID   string                    `json:"entry_id"`
	Entry     string                    `json:"entry"`
	Reference recording.Recording       `json:"reference"`
	Release   *provider.ExternalRelease `json:"release,omitempty"`
	Candidate *provider.Candidate       `json:"candidate,omitempty"`
	Score     float64                   `json:"score"`
	Outcome   Outcome                   `json:"outcome"`
	Variant   int                       `json:"variant"`
	// Attempts counts recording variants tried, at most 1+len(alternates).
	Attempts int `json:"attempts"`
	// RejectedScore is the best sub-threshold score seen, kept for
	// diagnostics on NOT_FOUND results only.
	RejectedScore float64 `json:"rejected_score,omitempty"`
}

// Matched reports whether the result carries a playable candidate.
func (r MatchResult) Matched() bool {
	return r.Outcome != OutcomeNotFound && r.Candidate != nil
}

// VariantLabel describes which recording produced the result.
func (r MatchResult) VariantLabel() string {
	if r.Variant == PrimaryVariant {
		return "primary"
	}
	return fmt.Sprintf("alternate %d", r.Variant+1)
}

// Error kinds recorded for entries without a result.
const (
	ErrorMalformed = "MALFORMED_INPUT"
	ErrorCanceled  = "CANCELED"
)

// EntryError records an entry that produced no MatchResult.
type EntryError struct {
	EntryID string `json:"entry_id"`
	Entry   string `json:"entry"`
	Kind    string `json:"kind"`
	Err     error  `json:"-"`
	Message string `json:"message"`
}

func (e EntryError) Error() string {
	return fmt.Sprintf("entry %s: %s: %s", e.EntryID, e.Kind, e.Message)
}

func (e EntryError) Unwrap() error { return e.Err }

// Summary holds the run-level counters.
type Summary struct {
	Entries  int `json:"entries"`
	Exact    int `json:"exact"`
	Ranked   int `json:"ranked"`
	NotFound int `json:"not_found"`
	Errors   int `json:"errors"`

	// ExactFailures and SearchFailures count stage calls that failed after
	// retries and were degraded to an empty result.
	ExactFailures  int `json:"exact_failures"`
	SearchFailures int `json:"search_failures"`
}

// Matched returns the number of entries with a qualifying match.
func (s Summary) Matched() int { return s.Exact + s.Ranked }

// Report is the orchestrator output for one run. Results and Errors are in
// entry order; together they account for every input entry.
type Report struct {
	Results       []MatchResult `json:"results"`
	Errors        []EntryError  `json:"errors,omitempty"`
	Summary       Summary       `json:"summary"`
	ExactSource   string        `json:"exact_source,omitempty"`
	SearchSource  string        `json:"search_source"`
	ExactDisabled bool          `json:"exact_disabled"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
}

// NotFound returns the NOT_FOUND results in entry order.
func (r *Report) NotFound() []MatchResult {
	var out []MatchResult
	for _, res := range r.Results {
		if res.Outcome == OutcomeNotFound {
			out = append(out, res)
		}
	}
	return out
}

// Matched returns the results carrying a playable candidate, in entry order.
func (r *Report) Matched() []MatchResult {
	var out []MatchResult
	for _, res := range r.Results {
		if res.Matched() {
			out = append(out, res)
		}
	}
	return out
}
