package tidal

import (
	"encoding/json"
	"strings"
)

// TIDAL v2 API (JSON:API) response types.

// document is a JSON:API top-level document with a single primary resource.
type document struct {
	Data     resource   `json:"data"`
	Included []resource `json:"included"`
}

// listDocument is a JSON:API document whose primary data is a list of
// resource identifiers, as returned by relationship endpoints.
type listDocument struct {
	Data     []identifier `json:"data"`
	Included []resource   `json:"included"`
	Links    links        `json:"links"`
}

type links struct {
	Next string `json:"next,omitempty"`
}

type identifier struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type resource struct {
	ID            string                  `json:"id"`
	Type          string                  `json:"type"`
	Attributes    attributes              `json:"attributes"`
	Relationships map[string]relationship `json:"relationships,omitempty"`
}

type relationship struct {
	Data []identifier `json:"data"`
}

// attributes is the union of the album and artist attributes used here.
type attributes struct {
	Title         string    `json:"title,omitempty"`
	Name          string    `json:"name,omitempty"`
	ReleaseDate   string    `json:"releaseDate,omitempty"`
	Popularity    float64   `json:"popularity,omitempty"`
	NumberOfItems int       `json:"numberOfItems,omitempty"`
	Copyright     copyright `json:"copyright,omitempty"`
}

// copyright accepts both the legacy string form and the {"text": ...} object.
type copyright string

func (c *copyright) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*c = copyright(s)
		return nil
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*c = copyright(obj.Text)
	return nil
}

// createRequest is the body of a playlist creation request.
type createRequest struct {
	Data createData `json:"data"`
}

type createData struct {
	Type       string           `json:"type"`
	Attributes createAttributes `json:"attributes"`
}

type createAttributes struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	AccessType  string `json:"accessType"`
}

// itemsRequest is the body of an add-items relationship request.
type itemsRequest struct {
	Data []identifier `json:"data"`
}

// labelFromCopyright strips phonogram and copyright markers and years from a
// copyright line, leaving the rights holder, which is usually the label.
func labelFromCopyright(s string) string {
	s = strings.NewReplacer("℗", " ", "©", " ", "(P)", " ", "(C)", " ", "(p)", " ", "(c)", " ").Replace(s)
	fields := strings.Fields(s)
	out := fields[:0]
	for _, f := range fields {
		if isYearish(f) {
			continue
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}

func isYearish(s string) bool {
	s = strings.Trim(s, ",.;")
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
