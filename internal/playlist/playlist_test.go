package playlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/sydlexius/cadenza/internal/matcher"
	"github.com/sydlexius/cadenza/internal/provider"
)

type mockWriter struct {
	createFn func(ctx context.Context, name, description string) (string, error)
	addFn    func(ctx context.Context, playlistID string, ids []string) (int, error)
	batches  [][]string
	name     string
	desc     string
}

func (m *mockWriter) CreatePlaylist(ctx context.Context, name, description string) (string, error) {
	m.name, m.desc = name, description
	if m.createFn != nil {
		return m.createFn(ctx, name, description)
	}
	return "pl-1", nil
}

func (m *mockWriter) AddItems(ctx context.Context, playlistID string, ids []string) (int, error) {
	m.batches = append(m.batches, append([]string(nil), ids...))
	if m.addFn != nil {
		return m.addFn(ctx, playlistID, ids)
	}
	return len(ids), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func reportWith(ids ...string) *matcher.Report {
	r := &matcher.Report{}
	for i, id := range ids {
		res := matcher.MatchResult{EntryID: fmt.Sprint(i + 1)}
		if id == "" {
			res.Outcome = matcher.OutcomeNotFound
			r.Summary.NotFound++
		} else {
			res.Outcome = matcher.OutcomeRanked
			res.Candidate = &provider.Candidate{ID: id}
			r.Summary.Ranked++
		}
		r.Results = append(r.Results, res)
	}
	r.Summary.Entries = len(ids)
	return r
}

func TestPublish(t *testing.T) {
	w := &mockWriter{}
	p := NewPublisher(w, 2, testLogger())

	res, err := p.Publish(context.Background(), "Essentials", reportWith("a", "", "b", "a", "c"))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if w.name != "Essentials" || w.desc != "4/5 entries matched" {
		t.Errorf("name=%q desc=%q", w.name, w.desc)
	}
	if res.PlaylistID != "pl-1" || res.Requested != 3 || res.Added != 3 || res.Duplicates != 1 {
		t.Errorf("Result = %+v", res)
	}
	if len(w.batches) != 2 || len(w.batches[0]) != 2 || w.batches[1][0] != "c" {
		t.Errorf("batches = %v", w.batches)
	}
}

func TestPublish_BatchFailureCounted(t *testing.T) {
	calls := 0
	w := &mockWriter{addFn: func(_ context.Context, _ string, ids []string) (int, error) {
		calls++
		if calls == 1 {
			return 0, &provider.ErrProviderUnavailable{Provider: provider.NameTidal, Cause: errors.New("HTTP 500")}
		}
		return len(ids), nil
	}}
	p := NewPublisher(w, 1, testLogger())

	res, err := p.Publish(context.Background(), "x", reportWith("a", "b", "c"))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if res.FailedBatches != 1 || res.Added != 2 {
		t.Errorf("Result = %+v", res)
	}
}

func TestPublish_CreateFails(t *testing.T) {
	w := &mockWriter{createFn: func(context.Context, string, string) (string, error) {
		return "", &provider.ErrAuthRequired{Provider: provider.NameTidal}
	}}
	p := NewPublisher(w, 0, testLogger())

	_, err := p.Publish(context.Background(), "x", reportWith("a"))
	if provider.Classify(err) != provider.KindAuth {
		t.Fatalf("expected auth error, got %v", err)
	}
	if len(w.batches) != 0 {
		t.Error("no items should be added without a playlist")
	}
}

func TestPublish_NothingMatched(t *testing.T) {
	w := &mockWriter{}
	p := NewPublisher(w, 0, testLogger())

	_, err := p.Publish(context.Background(), "x", reportWith("", ""))
	if !errors.Is(err, ErrNothingToPublish) {
		t.Fatalf("expected ErrNothingToPublish, got %v", err)
	}
	if w.name != "" {
		t.Error("playlist must not be created")
	}
}
