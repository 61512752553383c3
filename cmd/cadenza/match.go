package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/sydlexius/cadenza/internal/config"
	"github.com/sydlexius/cadenza/internal/event"
	"github.com/sydlexius/cadenza/internal/listing"
	"github.com/sydlexius/cadenza/internal/matcher"
	"github.com/sydlexius/cadenza/internal/playlist"
	"github.com/sydlexius/cadenza/internal/provider"
	"github.com/sydlexius/cadenza/internal/ranker"
	"github.com/sydlexius/cadenza/internal/report"
)

type matchOptions struct {
	noExact  bool
	minScore float64
	workers  int
	name     string
	dryRun   bool
	noSave   bool
	matches  bool
	jsonOut  bool
	progress bool
}

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var opts matchOptions

	cmd := &cobra.Command{
		Use:   "match <listing>",
		Short: "Match a recommendation listing and publish a playlist",
		Long: "Match every entry of a listing (an HTML page or YAML file, local or http(s)) " +
			"against the configured sources and publish the matches as a playlist.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("min-score") {
				if err := config.CheckMinScore(opts.minScore); err != nil {
					return err
				}
				cfg.Matching.MinScore = opts.minScore
			}
			if cmd.Flags().Changed("workers") {
				if opts.workers < 1 {
					return errors.New("--workers must be at least 1")
				}
				cfg.Matching.Workers = opts.workers
			}
			if opts.noExact {
				cfg.Matching.ExactSource = config.ExactNone
			}
			return runMatch(cmd, ctx, cfg, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.noExact, "no-exact", false, "Skip the exact-release lookup")
	cmd.Flags().Float64Var(&opts.minScore, "min-score", ranker.DefaultMinScore, "Minimum score for a ranked match")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", matcher.DefaultWorkers, "Entries matched concurrently")
	cmd.Flags().StringVarP(&opts.name, "name", "n", "", "Playlist name (default \"Cadenza <date>\")")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Match only; do not create a playlist")
	cmd.Flags().BoolVar(&opts.noSave, "no-save", false, "Do not record the run in the database")
	cmd.Flags().BoolVar(&opts.matches, "show-matches", false, "List every matched entry")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print the full report as JSON")
	cmd.Flags().BoolVarP(&opts.progress, "progress", "p", false, "Print one line per finished entry to stderr")

	return cmd
}

func runMatch(cmd *cobra.Command, cc *commandContext, cfg *config.Config, src string, opts matchOptions) error {
	ctx := cmd.Context()
	logger := cc.logger
	out := cmd.OutOrStdout()

	limiter := provider.NewLimiterMap(cfg.Limits(), logger)
	reg := cc.newRegistry(cfg, limiter, logger)

	exact, err := selectExact(cfg, reg, logger)
	if err != nil {
		return err
	}
	candidateName := provider.SourceName(cfg.Matching.CandidateSource)
	candidates, err := reg.Candidate(candidateName)
	if err != nil {
		return err
	}
	if lookup, _ := configured(cfg, candidateName); !lookup {
		return fmt.Errorf("%s credentials are not configured", candidateName.DisplayName())
	}

	rcfg, err := cfg.RankerConfig()
	if err != nil {
		return err
	}
	rk, err := ranker.New(rcfg)
	if err != nil {
		return fmt.Errorf("configuring ranker: %w", err)
	}
	mcfg := cfg.MatcherConfig()
	var bus *event.Bus
	if opts.progress {
		bus = event.NewBus(logger, 0)
		bus.SubscribeAll(progressPrinter(cmd.ErrOrStderr()))
		go bus.Start()
		defer bus.Close()
		mcfg.Events = bus
	}
	orch, err := matcher.New(exact, candidates, rk, mcfg, logger)
	if err != nil {
		return err
	}

	loader := listing.NewLoader(&http.Client{Timeout: 30 * time.Second}, logger)
	entries, err := loader.Load(ctx, src)
	if err != nil {
		return fmt.Errorf("loading listing: %w", err)
	}

	rep, runErr := orch.Run(ctx, entries)
	if bus != nil {
		bus.Close()
	}

	// The run is recorded even when interrupted.
	saveCtx := context.WithoutCancel(ctx)
	var (
		store *report.Store
		run   report.Run
	)
	if !opts.noSave {
		db, err := cc.openStore(saveCtx)
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck
		store = report.NewStore(db)
		run = report.NewRun(src, rep)
		if err := store.SaveRun(saveCtx, run, rep); err != nil {
			return fmt.Errorf("saving run: %w", err)
		}
		logger.Debug("run saved", slog.String("run", run.ID))
	}

	if opts.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return err
		}
	} else {
		if err := report.Render(out, rep); err != nil {
			return err
		}
		if opts.matches {
			if err := report.RenderMatches(out, rep); err != nil {
				return err
			}
		}
	}

	if runErr != nil || opts.dryRun {
		return runErr
	}

	writer, err := reg.PlaylistWriter(candidateName)
	if err != nil {
		return err
	}
	name := opts.name
	if name == "" {
		name = "Cadenza " + rep.StartedAt.Local().Format(time.DateOnly)
	}
	res, err := playlist.NewPublisher(writer, playlist.DefaultBatchSize, logger).Publish(ctx, name, rep)
	if errors.Is(err, playlist.ErrNothingToPublish) {
		fmt.Fprintln(out, "No matches; playlist not created.")
		return nil
	}
	if err != nil {
		return err
	}
	if store != nil {
		if err := store.SetPlaylist(saveCtx, run.ID, res.PlaylistID, name); err != nil {
			return fmt.Errorf("recording playlist: %w", err)
		}
	}
	fmt.Fprintf(out, "Playlist %q (%s): %d of %d items added", name, res.PlaylistID, res.Added, res.Requested)
	if res.FailedBatches > 0 {
		fmt.Fprintf(out, ", %d batches failed", res.FailedBatches)
	}
	fmt.Fprintln(out)
	return nil
}

// selectExact returns the configured exact source, or nil when it is
// disabled or cannot authenticate.
func selectExact(cfg *config.Config, reg *provider.Registry, logger *slog.Logger) (provider.ExactSource, error) {
	if cfg.Matching.ExactSource == config.ExactNone {
		return nil, nil
	}
	name := provider.SourceName(cfg.Matching.ExactSource)
	exact, err := reg.Exact(name)
	if err != nil {
		return nil, err
	}
	if lookup, _ := configured(cfg, name); !lookup {
		logger.Warn("exact source has no credentials, continuing without it",
			slog.String("source", string(name)))
		return nil, nil
	}
	return exact, nil
}

func progressPrinter(w io.Writer) event.Handler {
	return func(e event.Event) {
		switch e.Type {
		case event.EntryMatched:
			fmt.Fprintf(w, "[%d/%d] %s: %s %.2f %s\n", e.Done, e.Total, e.EntryID, e.Outcome, e.Score, e.Message)
		case event.EntryNotFound:
			fmt.Fprintf(w, "[%d/%d] %s: NOT_FOUND %s\n", e.Done, e.Total, e.EntryID, e.Entry)
		case event.EntryFailed:
			fmt.Fprintf(w, "[%d/%d] %s: %s %s\n", e.Done, e.Total, e.EntryID, e.Outcome, e.Message)
		case event.SourceDisabled:
			fmt.Fprintf(w, "%s disabled: %s\n", e.Source, e.Message)
		case event.RunCompleted:
			fmt.Fprintf(w, "done: %s\n", e.Message)
		}
	}
}
