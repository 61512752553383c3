package recording

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed marks an entry or recording that is missing required metadata.
var ErrMalformed = errors.New("malformed input")

// Year bounds accepted for a recording. Zero means unknown.
const (
	MinYear = 1000
	MaxYear = 2100
)

// Recording describes a desired performance of a work. Values are built once
// and never modified, so they are safe to share between workers.
type Recording struct {
	Composer  string `json:"composer" yaml:"composer"`
	Work      string `json:"work" yaml:"work"`
	Performer string `json:"performer,omitempty" yaml:"performer,omitempty"`
	Label     string `json:"label,omitempty" yaml:"label,omitempty"`
	Year      int    `json:"year,omitempty" yaml:"year,omitempty"`
}

// Query returns the broad "composer work" search string.
func (r Recording) Query() string {
	return strings.Join(strings.Fields(r.Composer+" "+r.Work), " ")
}

// Validate reports whether the recording carries the required fields.
func (r Recording) Validate() error {
	if strings.TrimSpace(r.Composer) == "" {
		return fmt.Errorf("%w: composer is required", ErrMalformed)
	}
	if strings.TrimSpace(r.Work) == "" {
		return fmt.Errorf("%w: work is required", ErrMalformed)
	}
	if r.Year != 0 && (r.Year < MinYear || r.Year > MaxYear) {
		return fmt.Errorf("%w: year %d out of range", ErrMalformed, r.Year)
	}
	return nil
}

func (r Recording) String() string {
	performer := r.Performer
	if performer == "" {
		performer = "unknown"
	}
	return fmt.Sprintf("%s: %s [%s]", r.Composer, r.Work, performer)
}

// Entry is one listing item: a work with its recommended recording and any
// alternates, tried in order.
type Entry struct {
	ID         string      `json:"id" yaml:"id"`
	Composer   string      `json:"composer" yaml:"composer"`
	Work       string      `json:"work" yaml:"work"`
	Primary    Recording   `json:"primary" yaml:"primary"`
	Alternates []Recording `json:"alternates,omitempty" yaml:"alternates,omitempty"`
	Raw        string      `json:"raw,omitempty" yaml:"-"`
}

// Validate checks the entry and every recording variant for required fields.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.Composer) == "" {
		return fmt.Errorf("entry %q: %w: composer is required", e.ID, ErrMalformed)
	}
	if strings.TrimSpace(e.Work) == "" {
		return fmt.Errorf("entry %q: %w: work is required", e.ID, ErrMalformed)
	}
	for i, r := range e.Variants() {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("entry %q variant %d: %w", e.ID, i, err)
		}
	}
	return nil
}

// Variants returns the primary recording followed by the alternates. The
// returned slice is a copy.
func (e Entry) Variants() []Recording {
	out := make([]Recording, 0, 1+len(e.Alternates))
	out = append(out, e.Primary)
	out = append(out, e.Alternates...)
	return out
}

func (e Entry) String() string {
	performer := e.Primary.Performer
	if performer == "" {
		performer = "unknown"
	}
	return fmt.Sprintf("%s: %s [%s]", e.Composer, e.Work, performer)
}

// NewEntry builds an entry whose recordings inherit the entry's composer and
// work when they leave them blank.
func NewEntry(id, composer, work string, primary Recording, alternates ...Recording) Entry {
	fill := func(r Recording) Recording {
		if r.Composer == "" {
			r.Composer = composer
		}
		if r.Work == "" {
			r.Work = work
		}
		return r
	}
	alts := make([]Recording, 0, len(alternates))
	for _, a := range alternates {
		alts = append(alts, fill(a))
	}
	return Entry{
		ID:         id,
		Composer:   composer,
		Work:       work,
		Primary:    fill(primary),
		Alternates: alts,
	}
}
