package discogs

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sydlexius/cadenza/internal/provider"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testLimiter() *provider.LimiterMap {
	return provider.NewLimiterMap(map[provider.SourceName]provider.LimitConfig{
		provider.NameDiscogs: {RequestsPerMinute: 60000, Burst: 10},
	}, testLogger())
}

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatalf("loading fixture %s: %v", name, err)
	}
	return data
}

func newTestServer(t *testing.T, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests != nil {
			requests.Add(1)
		}
		if r.Header.Get("Authorization") != "Discogs token=test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "Cadenza/") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.URL.Path != "/database/search" || r.URL.Query().Get("type") != "release" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("page") {
		case "1":
			w.Write(loadFixture(t, "search_brandenburg_p1.json"))
		case "2":
			w.Write(loadFixture(t, "search_brandenburg_p2.json"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestSearchReleases(t *testing.T) {
	var requests atomic.Int32
	srv := newTestServer(t, &requests)
	defer srv.Close()
	a := NewWithBaseURL("test-token", testLimiter(), testLogger(), srv.URL)

	releases, err := a.SearchReleases(context.Background(), "Bach", "Brandenburg Concertos", provider.ReleaseFilter{})
	if err != nil {
		t.Fatalf("SearchReleases: %v", err)
	}
	if got := requests.Load(); got != 2 {
		t.Errorf("expected 2 page requests, got %d", got)
	}
	// The master entry is skipped.
	if len(releases) != 3 {
		t.Fatalf("expected 3 releases, got %d", len(releases))
	}

	first := releases[0]
	if first.ID != "1204512" {
		t.Errorf("ID = %q", first.ID)
	}
	if first.Title != "Brandenburg Concertos" {
		t.Errorf("Title = %q", first.Title)
	}
	wantArtists := []string{"Bach*", "Il Giardino Armonico", "Giovanni Antonini"}
	if len(first.Artists) != len(wantArtists) {
		t.Fatalf("Artists = %v", first.Artists)
	}
	for i := range wantArtists {
		if first.Artists[i] != wantArtists[i] {
			t.Errorf("Artists[%d] = %q, want %q", i, first.Artists[i], wantArtists[i])
		}
	}
	if len(first.Labels) != 1 || first.Labels[0] != "Teldec Classics" {
		t.Errorf("Labels = %v, want deduplicated [Teldec Classics]", first.Labels)
	}
	if first.Year != 1997 {
		t.Errorf("Year = %d", first.Year)
	}
	if first.MasterID != "884321" {
		t.Errorf("MasterID = %q", first.MasterID)
	}
	if first.CommunityRating == nil || *first.CommunityRating != 4.5 {
		t.Errorf("CommunityRating = %v", first.CommunityRating)
	}
	if first.Source != provider.NameDiscogs {
		t.Errorf("Source = %q", first.Source)
	}

	if releases[1].MasterID != "" || releases[1].CommunityRating != nil {
		t.Errorf("expected empty master and rating, got %+v", releases[1])
	}
	if releases[2].Artists[0] != "Il Giardino Armonico" {
		t.Errorf("disambiguator not stripped: %q", releases[2].Artists[0])
	}
}

func TestSearchReleases_Filter(t *testing.T) {
	srv := newTestServer(t, nil)
	defer srv.Close()
	a := NewWithBaseURL("test-token", testLimiter(), testLogger(), srv.URL)

	filter := provider.ReleaseFilter{Performer: "Giovanni Antonini", Label: "Teldec", Year: 1998}
	releases, err := a.SearchReleases(context.Background(), "Bach", "Brandenburg Concertos", filter)
	if err != nil {
		t.Fatalf("SearchReleases: %v", err)
	}
	if len(releases) != 1 || releases[0].ID != "1204512" {
		t.Fatalf("expected only release 1204512, got %v", releases)
	}
}

func TestSearchReleases_NoToken(t *testing.T) {
	a := NewWithBaseURL("", testLimiter(), testLogger(), "http://127.0.0.1:1")
	_, err := a.SearchReleases(context.Background(), "Bach", "Mass", provider.ReleaseFilter{})
	var authErr *provider.ErrAuthRequired
	if !errors.As(err, &authErr) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
}

func TestSearchReleases_BadToken(t *testing.T) {
	srv := newTestServer(t, nil)
	defer srv.Close()
	a := NewWithBaseURL("wrong", testLimiter(), testLogger(), srv.URL)

	_, err := a.SearchReleases(context.Background(), "Bach", "Mass", provider.ReleaseFilter{})
	if provider.Classify(err) != provider.KindAuth {
		t.Fatalf("expected auth failure, got %v", err)
	}
}

func TestSearchReleases_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   provider.Kind
	}{
		{"throttled", http.StatusTooManyRequests, provider.KindRateLimited},
		{"server error", http.StatusInternalServerError, provider.KindTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Retry-After", "3")
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()
			a := NewWithBaseURL("test-token", testLimiter(), testLogger(), srv.URL)

			_, err := a.SearchReleases(context.Background(), "Bach", "Mass", provider.ReleaseFilter{})
			if got := provider.Classify(err); got != tt.want {
				t.Errorf("Classify = %s, want %s (%v)", got, tt.want, err)
			}
			if provider.RetryAfter(err).Seconds() != 3 {
				t.Errorf("RetryAfter = %s", provider.RetryAfter(err))
			}
		})
	}
}

func TestSplitTitle(t *testing.T) {
	artists, title := splitTitle("Karajan - Beethoven: Symphony No. 9 - Live")
	if artists != "Karajan" || title != "Beethoven: Symphony No. 9 - Live" {
		t.Errorf("splitTitle = %q, %q", artists, title)
	}
	artists, title = splitTitle("Untitled")
	if artists != "" || title != "Untitled" {
		t.Errorf("splitTitle = %q, %q", artists, title)
	}
}
