// Package matcher drives the per-entry lookup pipeline: exact lookup,
// candidate search and ranking, falling back through alternates.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sydlexius/cadenza/internal/event"
	"github.com/sydlexius/cadenza/internal/provider"
	"github.com/sydlexius/cadenza/internal/ranker"
	"github.com/sydlexius/cadenza/internal/recording"
)

// Config controls orchestration. Zero fields take the defaults.
type Config struct {
	Workers          int
	CallTimeout      time.Duration
	TransientRetries int
	RateLimitRetries int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	MaxRetryAfter    time.Duration

	// Events receives progress notifications when set.
	Events Publisher
}

// Publisher accepts progress events. *event.Bus satisfies it.
type Publisher interface {
	Publish(event.Event)
}

// Defaults for Config.
const (
	DefaultWorkers          = 4
	DefaultCallTimeout      = 30 * time.Second
	DefaultTransientRetries = 1
	DefaultRateLimitRetries = 3
	DefaultRetryBaseDelay   = 500 * time.Millisecond
	DefaultRetryMaxDelay    = 10 * time.Second
	DefaultMaxRetryAfter    = time.Minute
)

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.TransientRetries < 0 {
		c.TransientRetries = 0
	}
	if c.RateLimitRetries < 0 {
		c.RateLimitRetries = 0
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = DefaultRetryMaxDelay
	}
	if c.MaxRetryAfter <= 0 {
		c.MaxRetryAfter = DefaultMaxRetryAfter
	}
	return c
}

// Orchestrator matches entries against an optional exact source and a
// candidate source. It is safe for concurrent use; the only state shared
// between entries is the exact-source disable flag and stage counters.
type Orchestrator struct {
	exact      provider.ExactSource
	candidates provider.CandidateSource
	ranker     *ranker.Ranker
	cfg        Config
	retry      retryPolicy
	events     Publisher
	logger     *slog.Logger

	exactDisabled  atomic.Bool
	searchAuthLost atomic.Bool
	exactFailures  atomic.Int64
	searchFailures atomic.Int64
}

// New creates an orchestrator. exact may be nil to skip exact lookups.
func New(exact provider.ExactSource, candidates provider.CandidateSource, rk *ranker.Ranker, cfg Config, logger *slog.Logger) (*Orchestrator, error) {
	if candidates == nil {
		return nil, errors.New("candidate source is required")
	}
	if rk == nil {
		return nil, errors.New("ranker is required")
	}
	cfg = cfg.withDefaults()
	return &Orchestrator{
		exact:      exact,
		candidates: candidates,
		ranker:     rk,
		cfg:        cfg,
		retry: retryPolicy{
			callTimeout:      cfg.CallTimeout,
			transientRetries: cfg.TransientRetries,
			rateLimitRetries: cfg.RateLimitRetries,
			baseDelay:        cfg.RetryBaseDelay,
			maxDelay:         cfg.RetryMaxDelay,
			maxRetryAfter:    cfg.MaxRetryAfter,
		},
		events: cfg.Events,
		logger: logger.With(slog.String("component", "matcher")),
	}, nil
}

// ExactEnabled reports whether exact lookups are still being made. It turns
// false after the exact source rejects its credentials.
func (o *Orchestrator) ExactEnabled() bool {
	return o.exact != nil && !o.exactDisabled.Load()
}

// Run matches every entry with a bounded worker pool. Each entry yields one
// MatchResult or one EntryError. Run returns a non-nil error only when ctx
// ends first; the report then records the unprocessed entries as canceled.
func (o *Orchestrator) Run(ctx context.Context, entries []recording.Entry) (*Report, error) {
	report := &Report{
		SearchSource: string(o.candidates.Name()),
		StartedAt:    time.Now().UTC(),
	}
	if o.exact != nil {
		report.ExactSource = string(o.exact.Name())
	}

	results := make([]*MatchResult, len(entries))
	failures := make([]*EntryError, len(entries))
	var done atomic.Int64
	progress := func(ev event.Event) {
		ev.Done = int(done.Add(1))
		ev.Total = len(entries)
		o.publish(ev)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)
	for i := range entries {
		g.Go(func() error {
			e := entries[i]
			fail := func(kind string, err error) {
				failures[i] = &EntryError{EntryID: e.ID, Entry: e.String(), Kind: kind, Err: err, Message: err.Error()}
				progress(event.Event{Type: event.EntryFailed, EntryID: e.ID, Entry: e.String(), Outcome: kind, Message: err.Error()})
			}
			if err := e.Validate(); err != nil {
				o.logger.Warn("skipping malformed entry", slog.String("entry", e.ID), slog.String("error", err.Error()))
				fail(ErrorMalformed, err)
				return nil
			}
			if err := gctx.Err(); err != nil {
				fail(ErrorCanceled, err)
				return nil
			}
			res := o.MatchEntry(gctx, e)
			if err := gctx.Err(); err != nil && res.Outcome == OutcomeNotFound {
				fail(ErrorCanceled, err)
				return nil
			}
			results[i] = &res
			ev := event.Event{Type: event.EntryMatched, EntryID: e.ID, Entry: res.Entry, Outcome: string(res.Outcome), Score: res.Score}
			if res.Outcome == OutcomeNotFound {
				ev.Type, ev.Score = event.EntryNotFound, res.RejectedScore
			} else {
				ev.Message = res.Candidate.String()
			}
			progress(ev)
			return nil
		})
	}
	_ = g.Wait()

	for i := range entries {
		switch {
		case results[i] != nil:
			report.Results = append(report.Results, *results[i])
			switch results[i].Outcome {
			case OutcomeExact:
				report.Summary.Exact++
			case OutcomeRanked:
				report.Summary.Ranked++
			default:
				report.Summary.NotFound++
			}
		case failures[i] != nil:
			report.Errors = append(report.Errors, *failures[i])
			report.Summary.Errors++
		}
	}
	report.Summary.Entries = len(entries)
	report.Summary.ExactFailures = int(o.exactFailures.Load())
	report.Summary.SearchFailures = int(o.searchFailures.Load())
	report.ExactDisabled = o.exact != nil && o.exactDisabled.Load()
	report.FinishedAt = time.Now().UTC()

	o.logger.Info("run complete",
		slog.Int("entries", report.Summary.Entries),
		slog.Int("exact", report.Summary.Exact),
		slog.Int("ranked", report.Summary.Ranked),
		slog.Int("not_found", report.Summary.NotFound),
		slog.Int("errors", report.Summary.Errors),
		slog.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))

	o.publish(event.Event{
		Type:    event.RunCompleted,
		Done:    report.Summary.Entries,
		Total:   report.Summary.Entries,
		Message: fmt.Sprintf("%d/%d entries matched", report.Summary.Matched(), report.Summary.Entries),
	})

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("run interrupted: %w", err)
	}
	return report, nil
}

func (o *Orchestrator) publish(e event.Event) {
	if o.events != nil {
		o.events.Publish(e)
	}
}

// MatchEntry runs the pipeline for one valid entry. Variants are tried in
// order and the loop is bounded by their count.
func (o *Orchestrator) MatchEntry(ctx context.Context, e recording.Entry) MatchResult {
	variants := e.Variants()
	logger := o.logger.With(slog.String("entry", e.ID))

	bestRejected := 0.0
	attempts := 0
	for i := 0; i < len(variants); i++ {
		if ctx.Err() != nil {
			break
		}
		ref := variants[i]
		attempts++

		var exact *provider.ExternalRelease
		if o.ExactEnabled() {
			exact = o.lookupExact(ctx, logger, ref)
		}
		cands := o.searchCandidates(ctx, logger, ref)

		scored, ok := o.ranker.Score(ref, cands, exact)
		if ok {
			res := MatchResult{
				EntryID:   e.ID,
				Entry:     e.String(),
				Reference: ref,
				Candidate: scored.Candidate,
				Score:     scored.Score,
				Outcome:   OutcomeRanked,
				Variant:   variantIndex(i),
				Attempts:  attempts,
			}
			if scored.Exact {
				res.Outcome = OutcomeExact
				res.Score = 1
				res.Release = exact
			}
			logger.Debug("entry matched",
				slog.String("outcome", string(res.Outcome)),
				slog.String("variant", res.VariantLabel()),
				slog.Float64("score", res.Score),
				slog.String("candidate", res.Candidate.String()))
			return res
		}
		bestRejected = max(bestRejected, scored.Score)
		if i+1 < len(variants) {
			logger.Debug("no qualifying candidate, trying alternate",
				slog.Int("alternate", i+1),
				slog.Float64("best_score", scored.Score))
		}
	}

	logger.Debug("entry not found", slog.Int("attempts", attempts), slog.Float64("best_score", bestRejected))
	return MatchResult{
		EntryID:       e.ID,
		Entry:         e.String(),
		Reference:     e.Primary,
		Outcome:       OutcomeNotFound,
		Variant:       PrimaryVariant,
		Attempts:      attempts,
		RejectedScore: bestRejected,
	}
}

// lookupExact returns the best exact release, or nil. Failures never end
// the entry; an auth failure disables the exact source for the run.
func (o *Orchestrator) lookupExact(ctx context.Context, logger *slog.Logger, ref recording.Recording) *provider.ExternalRelease {
	filter := provider.ReleaseFilter{Performer: ref.Performer, Label: ref.Label, Year: ref.Year}
	var releases []provider.ExternalRelease
	_, err := o.retry.call(ctx, logger, "exact_lookup", func(ctx context.Context) error {
		var err error
		releases, err = o.exact.SearchReleases(ctx, ref.Composer, ref.Work, filter)
		return err
	})
	if err != nil {
		switch provider.Classify(err) {
		case provider.KindAuth:
			if o.exactDisabled.CompareAndSwap(false, true) {
				o.logger.Warn("exact source rejected credentials, continuing candidate-only",
					slog.String("source", string(o.exact.Name())),
					slog.String("error", err.Error()))
				o.publish(event.Event{Type: event.SourceDisabled, Source: string(o.exact.Name()), Message: err.Error()})
			}
		case provider.KindNotFound:
		default:
			o.exactFailures.Add(1)
			logger.Info("exact lookup failed", slog.String("error", err.Error()))
		}
		return nil
	}
	if len(releases) == 0 {
		return nil
	}
	rel := releases[0]
	return &rel
}

// searchCandidates returns the candidate list for ref. Any failure is
// treated as an empty list for this variant.
func (o *Orchestrator) searchCandidates(ctx context.Context, logger *slog.Logger, ref recording.Recording) []provider.Candidate {
	var cands []provider.Candidate
	_, err := o.retry.call(ctx, logger, "candidate_search", func(ctx context.Context) error {
		var err error
		cands, err = o.candidates.SearchCandidates(ctx, ref.Composer, ref.Work)
		return err
	})
	if err != nil {
		switch provider.Classify(err) {
		case provider.KindNotFound:
		case provider.KindAuth:
			o.searchFailures.Add(1)
			if o.searchAuthLost.CompareAndSwap(false, true) {
				o.logger.Error("candidate source rejected credentials",
					slog.String("source", string(o.candidates.Name())),
					slog.String("error", err.Error()))
			}
		default:
			o.searchFailures.Add(1)
			logger.Info("candidate search failed", slog.String("error", err.Error()))
		}
		return nil
	}
	return cands
}

func variantIndex(i int) int {
	if i == 0 {
		return PrimaryVariant
	}
	return i - 1
}
