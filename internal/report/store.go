// Package report persists completed runs and renders their summaries.
package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sydlexius/cadenza/internal/matcher"
)

// timeLayout stores UTC timestamps at fixed width so they sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run is a stored run record.
type Run struct {
	ID            string          `json:"id"`
	Source        string          `json:"source"`
	ExactSource   string          `json:"exact_source,omitempty"`
	SearchSource  string          `json:"search_source"`
	ExactDisabled bool            `json:"exact_disabled"`
	Summary       matcher.Summary `json:"summary"`
	PlaylistID    string          `json:"playlist_id,omitempty"`
	PlaylistName  string          `json:"playlist_name,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
}

// StoredResult is one persisted entry outcome, either a match result or an
// entry error.
type StoredResult struct {
	Position      int     `json:"position"`
	EntryID       string  `json:"entry_id"`
	Entry         string  `json:"entry"`
	Outcome       string  `json:"outcome"`
	Variant       int     `json:"variant"`
	Attempts      int     `json:"attempts"`
	Score         float64 `json:"score"`
	RejectedScore float64 `json:"rejected_score"`
	CandidateID   string  `json:"candidate_id,omitempty"`
	Candidate     string  `json:"candidate,omitempty"`
	ReleaseID     string  `json:"release_id,omitempty"`
	ErrorKind     string  `json:"error_kind,omitempty"`
	ErrorMessage  string  `json:"error_message,omitempty"`
}

// Store records runs in SQLite. Stored runs are history only and are never
// consulted to skip lookups.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store over a migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// NewRun builds a run record from an orchestrator report. A new id is
// assigned.
func NewRun(source string, r *matcher.Report) Run {
	return Run{
		ID:            uuid.New().String(),
		Source:        source,
		ExactSource:   r.ExactSource,
		SearchSource:  r.SearchSource,
		ExactDisabled: r.ExactDisabled,
		Summary:       r.Summary,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
	}
}

// SaveRun stores the run and every result and error of the report in one
// transaction.
func (s *Store) SaveRun(ctx context.Context, run Run, r *matcher.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, source, exact_source, search_source, exact_disabled,
			entries, exact, ranked, not_found, errors,
			playlist_id, playlist_name, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.ExactSource, run.SearchSource, boolToInt(run.ExactDisabled),
		run.Summary.Entries, run.Summary.Exact, run.Summary.Ranked, run.Summary.NotFound, run.Summary.Errors,
		run.PlaylistID, run.PlaylistName,
		run.StartedAt.UTC().Format(timeLayout), run.FinishedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO match_results (run_id, position, entry_id, entry, outcome, variant, attempts,
			score, rejected_score, candidate_id, candidate, release_id, error_kind, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing result insert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck

	pos := 0
	for _, res := range r.Results {
		var candID, cand, relID string
		if res.Candidate != nil {
			candID, cand = res.Candidate.ID, res.Candidate.String()
		}
		if res.Release != nil {
			relID = res.Release.ID
		}
		if _, err := stmt.ExecContext(ctx, run.ID, pos, res.EntryID, res.Entry, string(res.Outcome),
			res.Variant, res.Attempts, res.Score, res.RejectedScore, candID, cand, relID, "", ""); err != nil {
			return fmt.Errorf("inserting result %s: %w", res.EntryID, err)
		}
		pos++
	}
	for _, e := range r.Errors {
		if _, err := stmt.ExecContext(ctx, run.ID, pos, e.EntryID, e.Entry, "ERROR",
			matcher.PrimaryVariant, 0, 0, 0, "", "", "", e.Kind, e.Message); err != nil {
			return fmt.Errorf("inserting error %s: %w", e.EntryID, err)
		}
		pos++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run: %w", err)
	}
	return nil
}

// SetPlaylist records the playlist created for a run.
func (s *Store) SetPlaylist(ctx context.Context, runID, playlistID, name string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET playlist_id = ?, playlist_name = ? WHERE id = ?`,
		playlistID, name, runID)
	if err != nil {
		return fmt.Errorf("updating run playlist: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRunNotFound
	}
	return nil
}

const runColumns = `id, source, exact_source, search_source, exact_disabled,
	entries, exact, ranked, not_found, errors, playlist_id, playlist_name, started_at, finished_at`

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns one run by id or unique id prefix.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	if id == "" {
		return nil, ErrRunNotFound
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id LIKE ? ESCAPE '\' ORDER BY id LIMIT 2`,
		likeEscaper.Replace(id)+"%")
	if err != nil {
		return nil, fmt.Errorf("finding run: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var found []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, ErrRunNotFound
	case 1:
		return &found[0], nil
	default:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Results returns the stored outcomes of a run in entry order.
func (s *Store) Results(ctx context.Context, runID string) ([]StoredResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position, entry_id, entry, outcome, variant, attempts, score, rejected_score,
			candidate_id, candidate, release_id, error_kind, error_message
		FROM match_results WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []StoredResult
	for rows.Next() {
		var r StoredResult
		if err := rows.Scan(&r.Position, &r.EntryID, &r.Entry, &r.Outcome, &r.Variant, &r.Attempts,
			&r.Score, &r.RejectedScore, &r.CandidateID, &r.Candidate, &r.ReleaseID,
			&r.ErrorKind, &r.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run               Run
		exactDisabled     int
		started, finished string
	)
	err := row.Scan(&run.ID, &run.Source, &run.ExactSource, &run.SearchSource, &exactDisabled,
		&run.Summary.Entries, &run.Summary.Exact, &run.Summary.Ranked, &run.Summary.NotFound, &run.Summary.Errors,
		&run.PlaylistID, &run.PlaylistName, &started, &finished)
	if err != nil {
		return Run{}, err
	}
	run.ExactDisabled = exactDisabled != 0
	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return Run{}, fmt.Errorf("parsing started_at: %w", err)
	}
	if run.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return Run{}, fmt.Errorf("parsing finished_at: %w", err)
	}
	return run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
