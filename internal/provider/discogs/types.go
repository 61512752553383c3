package discogs

// Discogs API response types.

// SearchResponse is the top-level response from the database search endpoint.
type SearchResponse struct {
	Results    []SearchResult `json:"results"`
	Pagination Pagination     `json:"pagination"`
}

// SearchResult represents a single release hit. Title has the form
// "Artist, Artist - Release Title".
type SearchResult struct {
	ID          int        `json:"id"`
	Type        string     `json:"type"`
	Title       string     `json:"title"`
	Year        string     `json:"year"`
	Label       []string   `json:"label"`
	Format      []string   `json:"format"`
	Country     string     `json:"country"`
	MasterID    int        `json:"master_id"`
	Community   *Community `json:"community,omitempty"`
	ResourceURL string     `json:"resource_url"`
}

// Community holds the aggregate collection counts and rating when present.
type Community struct {
	Have   int     `json:"have"`
	Want   int     `json:"want"`
	Rating *Rating `json:"rating,omitempty"`
}

// Rating is the average user rating of a release.
type Rating struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}

// Pagination holds pagination info.
type Pagination struct {
	Page    int `json:"page"`
	Pages   int `json:"pages"`
	PerPage int `json:"per_page"`
	Items   int `json:"items"`
}
