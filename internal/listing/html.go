// Package listing turns recommendation listings into entries. HTML pages use
// a "Composer: Work" line followed by a "Recommended recording:" line; hand
// written listings are YAML.
package listing

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/sydlexius/cadenza/internal/recording"
)

const recommendedPrefix = "Recommended recording:"

// ParseHTML extracts entries from the first table of an HTML page. Entry IDs
// are 1-based positions. Lines that do not form a work/recommendation pair
// are ignored. A page without a table yields no entries.
func ParseHTML(r io.Reader) ([]recording.Entry, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	table := findFirst(doc, atom.Table)
	if table == nil {
		return nil, nil
	}

	var b strings.Builder
	collectText(table, &b)
	return parseLines(strings.Split(b.String(), "\n")), nil
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

// collectText writes the text under n, turning line breaks and block
// boundaries into newlines.
func collectText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style:
			return
		case atom.Br:
			b.WriteByte('\n')
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.P, atom.Div, atom.Tr, atom.Td, atom.Li:
			b.WriteByte('\n')
		}
	}
}

// parseLines pairs each recommendation line with the work line before it.
func parseLines(lines []string) []recording.Entry {
	var entries []recording.Entry
	prev := ""
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(line, recommendedPrefix); ok {
			if e, ok := buildEntry(len(entries)+1, prev, strings.TrimSpace(rest)); ok {
				entries = append(entries, e)
			}
			prev = ""
			continue
		}
		prev = line
	}
	return entries
}

func buildEntry(pos int, workLine, recText string) (recording.Entry, bool) {
	composer, work, ok := strings.Cut(workLine, ":")
	composer, work = strings.TrimSpace(composer), strings.TrimSpace(work)
	if !ok || composer == "" || work == "" {
		return recording.Entry{}, false
	}
	primary, alternates, ok := ParseRecordings(recText)
	if !ok {
		return recording.Entry{}, false
	}
	e := recording.NewEntry(strconv.Itoa(pos), composer, work, primary, alternates...)
	e.Raw = workLine + "\n" + recommendedPrefix + " " + recText
	return e, true
}

// ParseRecordings splits recommendation text into the primary recording and
// its alternates. Supported forms are "A or B", "A (also B, C; D)" and any
// single form accepted by ParseRecording. Composer and work are left blank.
func ParseRecordings(text string) (recording.Recording, []recording.Recording, bool) {
	var primaryText string
	var altTexts []string

	if before, after, ok := strings.Cut(text, "(also"); ok {
		primaryText = before
		after = strings.TrimSpace(after)
		after = strings.TrimSuffix(after, ")")
		altTexts = strings.FieldsFunc(after, func(r rune) bool { return r == ',' || r == ';' })
	} else if strings.Contains(text, " or ") {
		parts := strings.Split(text, " or ")
		primaryText, altTexts = parts[0], parts[1:]
	} else {
		primaryText = text
	}

	primary, ok := ParseRecording(primaryText)
	if !ok {
		return recording.Recording{}, nil, false
	}
	var alternates []recording.Recording
	for _, t := range altTexts {
		if alt, ok := ParseRecording(t); ok {
			alternates = append(alternates, alt)
		}
	}
	return primary, alternates, true
}

// A parenthesized year or year range: "1997", "1963-73", "1985 & 1988".
var yearPattern = regexp.MustCompile(`^(\d{4})(?:\s*[-&]\s*\d{2,4})?$`)

var parenPattern = regexp.MustCompile(`\(([^)]+)\)`)

// ParseRecording parses one recording: "Performer on Label",
// "Performer (1997)", "Performer (1963-73)", "Performer (Label)" or a bare
// performer. It reports false when no performer remains.
func ParseRecording(text string) (recording.Recording, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return recording.Recording{}, false
	}

	var rec recording.Recording
	switch {
	case strings.Contains(text, " on "):
		performer, label, _ := strings.Cut(text, " on ")
		rec.Performer = strings.TrimSpace(performer)
		rec.Label = strings.Trim(strings.TrimSpace(label), "()")
	case parenPattern.MatchString(text):
		loc := parenPattern.FindStringSubmatchIndex(text)
		rec.Performer = strings.TrimSpace(text[:loc[0]])
		inner := strings.TrimSpace(text[loc[2]:loc[3]])
		if m := yearPattern.FindStringSubmatch(inner); m != nil {
			rec.Year, _ = strconv.Atoi(m[1])
		} else {
			rec.Label = inner
		}
	default:
		rec.Performer = text
	}

	if rec.Performer == "" {
		return recording.Recording{}, false
	}
	return rec, true
}
