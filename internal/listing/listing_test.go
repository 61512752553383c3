package listing

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/sydlexius/cadenza/internal/recording"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatalf("loading fixture %s: %v", name, err)
	}
	return data
}

func TestParseHTML(t *testing.T) {
	entries, err := ParseHTML(strings.NewReader(string(loadFixture(t, "classical.html"))))
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}
	if len(entries) != 6 {
		t.Fatalf("expected 6 entries, got %d", len(entries))
	}

	for i, e := range entries {
		if want := string(rune('1' + i)); e.ID != want {
			t.Errorf("entries[%d].ID = %q, want %q", i, e.ID, want)
		}
		if err := e.Validate(); err != nil {
			t.Errorf("entries[%d] invalid: %v", i, err)
		}
	}

	b := entries[0]
	if b.Composer != "Bach" || b.Work != "Brandenburg Concertos" {
		t.Errorf("entry 1 = %q / %q", b.Composer, b.Work)
	}
	if b.Primary.Performer != "Il Giardino Armonico" || b.Primary.Year != 1997 || b.Primary.Label != "" {
		t.Errorf("entry 1 primary = %+v", b.Primary)
	}
	if len(b.Alternates) != 1 || b.Alternates[0].Performer != "Trevor Pinnock and European Brandenburg Ensemble" {
		t.Errorf("entry 1 alternates = %+v", b.Alternates)
	}
	if b.Alternates[0].Composer != "Bach" || b.Alternates[0].Work != "Brandenburg Concertos" {
		t.Errorf("alternate did not inherit composer/work: %+v", b.Alternates[0])
	}
	if !strings.Contains(b.Raw, "Recommended recording:") {
		t.Errorf("Raw = %q", b.Raw)
	}

	g := entries[1]
	if g.Primary.Performer != "Glenn Gould" || g.Primary.Year != 1955 {
		t.Errorf("entry 2 primary = %+v", g.Primary)
	}
	if len(g.Alternates) != 2 ||
		g.Alternates[0] != (recording.Recording{Composer: "Bach", Work: "Goldberg Variations", Performer: "Andras Schiff", Label: "ECM"}) ||
		g.Alternates[1].Performer != "Murray Perahia" || g.Alternates[1].Label != "Sony" {
		t.Errorf("entry 2 alternates = %+v", g.Alternates)
	}

	if entries[2].Work != "String Quartets opp. 76; 77; 103" || entries[2].Primary.Year != 1963 {
		t.Errorf("entry 3 = %+v", entries[2])
	}
	if entries[3].Primary.Performer != "Masaaki Suzuki" || entries[3].Primary.Label != "BIS" || entries[3].Primary.Year != 0 {
		t.Errorf("entry 4 primary = %+v", entries[3].Primary)
	}

	s := entries[4]
	if s.Primary.Performer != "Pollini" || len(s.Alternates) != 1 || s.Alternates[0].Performer != "Krystian Zimerman" {
		t.Errorf("entry 5 = %+v", s)
	}

	k := entries[5]
	if k.Primary.Performer != "Karajan & Berliner Philharmoniker" || k.Primary.Year != 1975 {
		t.Errorf("entry 6 primary = %+v", k.Primary)
	}
}

func TestParseHTML_NoTable(t *testing.T) {
	entries, err := ParseHTML(strings.NewReader("<html><body><p>Bach: Mass<br>Recommended recording: Gardiner</p></body></html>"))
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
}

func TestParseRecording(t *testing.T) {
	tests := []struct {
		in   string
		want recording.Recording
		ok   bool
	}{
		{"Il Giardino Armonico (1997)", recording.Recording{Performer: "Il Giardino Armonico", Year: 1997}, true},
		{"Amadeus String Quartet (1963-73)", recording.Recording{Performer: "Amadeus String Quartet", Year: 1963}, true},
		{"Kleiber (1975 & 1976)", recording.Recording{Performer: "Kleiber", Year: 1975}, true},
		{"Masaaki Suzuki (BIS)", recording.Recording{Performer: "Masaaki Suzuki", Label: "BIS"}, true},
		{"Andras Schiff on ECM", recording.Recording{Performer: "Andras Schiff", Label: "ECM"}, true},
		{"Sviatoslav Richter", recording.Recording{Performer: "Sviatoslav Richter"}, true},
		{"(1997)", recording.Recording{}, false},
		{"   ", recording.Recording{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseRecording(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseRecording(%q) = %+v, %v; want %+v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseYAML(t *testing.T) {
	f, err := os.Open("testdata/listing.yaml")
	if err != nil {
		t.Fatalf("opening fixture: %v", err)
	}
	defer f.Close()

	entries, err := ParseYAML(f)
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	mass := entries[0]
	if mass.ID != "1" || mass.Primary.Composer != "Bach" || mass.Primary.Year != 1985 {
		t.Errorf("entry 1 = %+v", mass)
	}
	if len(mass.Alternates) != 1 || mass.Alternates[0].Work != "Mass in B minor" {
		t.Errorf("entry 1 alternates = %+v", mass.Alternates)
	}

	mahler := entries[1]
	if mahler.ID != "mahler-9" || mahler.Primary.Performer != "Bernstein" || mahler.Primary.Year != 1979 {
		t.Errorf("entry 2 = %+v", mahler)
	}
	if len(mahler.Alternates) != 1 || mahler.Alternates[0].Label != "DG" {
		t.Errorf("entry 2 alternates = %+v", mahler.Alternates)
	}

	if err := entries[2].Validate(); err == nil {
		t.Error("entry without composer should fail validation")
	}
}

func TestParseYAML_UnknownField(t *testing.T) {
	_, err := ParseYAML(strings.NewReader("entries:\n  - composer: Bach\n    wrok: typo\n"))
	if err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestLoader(t *testing.T) {
	html := loadFixture(t, "classical.html")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/classical.html":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write(html)
		case "/listing.yaml":
			w.Write(loadFixture(t, "listing.yaml"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	l := NewLoader(srv.Client(), slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	ctx := context.Background()

	tests := []struct {
		src  string
		want int
	}{
		{srv.URL + "/classical.html", 6},
		{srv.URL + "/listing.yaml", 3},
		{"testdata/classical.html", 6},
		{"testdata/listing.yaml", 3},
	}
	for _, tt := range tests {
		entries, err := l.Load(ctx, tt.src)
		if err != nil {
			t.Errorf("Load(%s): %v", tt.src, err)
			continue
		}
		if len(entries) != tt.want {
			t.Errorf("Load(%s) = %d entries, want %d", tt.src, len(entries), tt.want)
		}
	}

	if _, err := l.Load(ctx, srv.URL+"/missing"); err == nil {
		t.Error("expected error for HTTP 404")
	}
	if _, err := l.Load(ctx, "testdata/does-not-exist.html"); err == nil {
		t.Error("expected error for missing file")
	}
}
