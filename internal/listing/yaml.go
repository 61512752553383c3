package listing

import (
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/sydlexius/cadenza/internal/recording"
)

// yamlListing is the on-disk form of a hand-written listing.
type yamlListing struct {
	Entries []yamlEntry `yaml:"entries"`
}

type yamlEntry struct {
	ID         string                `yaml:"id"`
	Composer   string                `yaml:"composer"`
	Work       string                `yaml:"work"`
	Primary    recording.Recording   `yaml:"primary"`
	Alternates []recording.Recording `yaml:"alternates"`
	// Recommended is free text in the HTML recommendation form, used when
	// primary is not given.
	Recommended string `yaml:"recommended"`
}

// ParseYAML loads a YAML listing. Entries are returned as written, including
// incomplete ones; validation is left to the caller so those can be reported.
// Missing IDs default to the 1-based position.
func ParseYAML(r io.Reader) ([]recording.Entry, error) {
	var doc yamlListing
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("parsing yaml listing: %w", err)
	}

	entries := make([]recording.Entry, 0, len(doc.Entries))
	for i, ye := range doc.Entries {
		id := ye.ID
		if id == "" {
			id = strconv.Itoa(i + 1)
		}
		primary, alternates := ye.Primary, ye.Alternates
		if ye.Recommended != "" && primary == (recording.Recording{}) {
			p, alts, ok := ParseRecordings(ye.Recommended)
			if ok {
				primary = p
				alternates = append(alts, alternates...)
			}
		}
		entries = append(entries, recording.NewEntry(id, ye.Composer, ye.Work, primary, alternates...))
	}
	return entries, nil
}
