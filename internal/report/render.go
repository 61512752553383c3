package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/sydlexius/cadenza/internal/matcher"
)

// NotFoundPreview is the number of unmatched entries listed by Render.
const NotFoundPreview = 10

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// Render writes the human-readable summary of a run: the counters, the
// first unmatched entries and every entry error.
func Render(w io.Writer, r *matcher.Report) error {
	var b strings.Builder

	s := r.Summary
	exact := r.ExactSource
	if exact == "" {
		exact = "none"
	} else if r.ExactDisabled {
		exact += " (disabled)"
	}
	fmt.Fprintf(&b, "Search source: %s, exact source: %s\n", r.SearchSource, exact)

	rows := [][]string{
		{"Entries", strconv.Itoa(s.Entries)},
		{"Exact", strconv.Itoa(s.Exact)},
		{"Ranked", strconv.Itoa(s.Ranked)},
		{"Not found", strconv.Itoa(s.NotFound)},
		{"Errors", strconv.Itoa(s.Errors)},
	}
	if s.ExactFailures > 0 || s.SearchFailures > 0 {
		rows = append(rows,
			[]string{"Exact lookup failures", strconv.Itoa(s.ExactFailures)},
			[]string{"Search failures", strconv.Itoa(s.SearchFailures)},
		)
	}
	if !r.StartedAt.IsZero() && !r.FinishedAt.IsZero() {
		rows = append(rows, []string{"Duration", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()})
	}
	b.WriteString(renderTable([]string{"Outcome", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
	b.WriteString("\n")

	if nf := r.NotFound(); len(nf) > 0 {
		rows = rows[:0]
		for i, res := range nf {
			if i == NotFoundPreview {
				break
			}
			rows = append(rows, []string{res.EntryID, res.Entry, fmt.Sprintf("%.2f", res.RejectedScore)})
		}
		fmt.Fprintf(&b, "\nNot found (%d):\n", len(nf))
		b.WriteString(renderTable([]string{"ID", "Entry", "Best score"}, rows,
			[]columnAlignment{alignRight, alignLeft, alignRight}))
		b.WriteString("\n")
		if len(nf) > NotFoundPreview {
			fmt.Fprintf(&b, "... and %d more\n", len(nf)-NotFoundPreview)
		}
	}

	if len(r.Errors) > 0 {
		rows = rows[:0]
		for _, e := range r.Errors {
			rows = append(rows, []string{e.EntryID, e.Kind, e.Message})
		}
		fmt.Fprintf(&b, "\nErrors (%d):\n", len(r.Errors))
		b.WriteString(renderTable([]string{"ID", "Kind", "Message"}, rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft}))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderMatches writes one row per matched entry.
func RenderMatches(w io.Writer, r *matcher.Report) error {
	matched := r.Matched()
	if len(matched) == 0 {
		_, err := io.WriteString(w, "No matches.\n")
		return err
	}
	rows := make([][]string, 0, len(matched))
	for _, res := range matched {
		rows = append(rows, []string{
			res.EntryID,
			string(res.Outcome),
			fmt.Sprintf("%.2f", res.Score),
			res.VariantLabel(),
			res.Candidate.String(),
		})
	}
	out := renderTable([]string{"ID", "Outcome", "Score", "Variant", "Candidate"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft})
	_, err := io.WriteString(w, out+"\n")
	return err
}

// RenderRuns writes the run history table. Start times are shown relative
// to now.
func RenderRuns(w io.Writer, runs []Run, now time.Time) error {
	if len(runs) == 0 {
		_, err := io.WriteString(w, "No runs recorded.\n")
		return err
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		playlist := run.PlaylistName
		if playlist == "" {
			playlist = "-"
		}
		rows = append(rows, []string{
			shortID(run.ID),
			humanize.RelTime(run.StartedAt, now, "ago", "from now"),
			run.Source,
			run.SearchSource,
			fmt.Sprintf("%d/%d", run.Summary.Matched(), run.Summary.Entries),
			strconv.Itoa(run.Summary.Errors),
			playlist,
		})
	}
	out := renderTable(
		[]string{"ID", "Started", "Source", "Search", "Matched", "Errors", "Playlist"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
	_, err := io.WriteString(w, out+"\n")
	return err
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// RenderResults writes the stored outcomes of one run.
func RenderResults(w io.Writer, run *Run, results []StoredResult) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s from %s (%s)\n", run.ID, run.Source, run.StartedAt.Local().Format(time.DateTime))
	if run.PlaylistID != "" {
		fmt.Fprintf(&b, "Playlist: %s (%s)\n", run.PlaylistName, run.PlaylistID)
	}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		detail := r.Candidate
		score := fmt.Sprintf("%.2f", r.Score)
		switch {
		case r.ErrorKind != "":
			detail = r.ErrorMessage
			score = "-"
		case r.Outcome == string(matcher.OutcomeNotFound):
			score = fmt.Sprintf("(%.2f)", r.RejectedScore)
		}
		outcome := r.Outcome
		if r.ErrorKind != "" {
			outcome = r.ErrorKind
		}
		rows = append(rows, []string{r.EntryID, r.Entry, outcome, score, detail})
	}
	b.WriteString(renderTable([]string{"ID", "Entry", "Outcome", "Score", "Match"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft}))
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}
