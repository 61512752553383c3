// Package playlist publishes matched candidates to a playlist on the
// candidate catalog.
package playlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sydlexius/cadenza/internal/matcher"
	"github.com/sydlexius/cadenza/internal/provider"
)

// DefaultBatchSize is the number of items sent per AddItems call.
const DefaultBatchSize = 20

// ErrNothingToPublish is returned when a report has no matched entries.
var ErrNothingToPublish = errors.New("no matched entries to publish")

// Result summarizes a publish.
type Result struct {
	PlaylistID    string `json:"playlist_id"`
	Requested     int    `json:"requested"`
	Added         int    `json:"added"`
	Duplicates    int    `json:"duplicates"`
	FailedBatches int    `json:"failed_batches"`
}

// Publisher creates playlists from match reports.
type Publisher struct {
	writer    provider.PlaylistWriter
	batchSize int
	logger    *slog.Logger
}

// NewPublisher creates a Publisher. A batchSize of zero or less uses
// DefaultBatchSize.
func NewPublisher(w provider.PlaylistWriter, batchSize int, logger *slog.Logger) *Publisher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Publisher{
		writer:    w,
		batchSize: batchSize,
		logger:    logger.With(slog.String("component", "playlist")),
	}
}

// Description returns the playlist description for a run summary.
func Description(s matcher.Summary) string {
	return fmt.Sprintf("%d/%d entries matched", s.Matched(), s.Entries)
}

// Items returns the candidate IDs of matched results in entry order, with
// repeats removed, and the number of repeats dropped.
func Items(report *matcher.Report) ([]string, int) {
	seen := make(map[string]bool)
	var ids []string
	dups := 0
	for _, res := range report.Matched() {
		id := res.Candidate.ID
		if seen[id] {
			dups++
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, dups
}

// Publish creates the playlist and adds the matched items in batches. A
// failed batch is logged and counted; only a failure to create the playlist
// is returned as an error.
func (p *Publisher) Publish(ctx context.Context, name string, report *matcher.Report) (*Result, error) {
	ids, dups := Items(report)
	if len(ids) == 0 {
		return nil, ErrNothingToPublish
	}

	playlistID, err := p.writer.CreatePlaylist(ctx, name, Description(report.Summary))
	if err != nil {
		return nil, fmt.Errorf("creating playlist %q: %w", name, err)
	}
	res := &Result{PlaylistID: playlistID, Requested: len(ids), Duplicates: dups}

	for start := 0; start < len(ids); start += p.batchSize {
		end := min(start+p.batchSize, len(ids))
		n, err := p.writer.AddItems(ctx, playlistID, ids[start:end])
		res.Added += n
		if err != nil {
			res.FailedBatches++
			p.logger.Warn("adding playlist items failed",
				slog.String("playlist", playlistID),
				slog.Int("batch_start", start),
				slog.Int("batch_size", end-start),
				slog.String("error", err.Error()))
			if ctx.Err() != nil {
				break
			}
		}
	}

	p.logger.Info("playlist published",
		slog.String("playlist", playlistID),
		slog.Int("added", res.Added),
		slog.Int("requested", res.Requested),
		slog.Int("failed_batches", res.FailedBatches))
	return res, nil
}
