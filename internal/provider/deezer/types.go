package deezer

// searchResponse is the JSON response from the Deezer album search endpoint.
type searchResponse struct {
	Data  []albumResult `json:"data"`
	Total int           `json:"total"`
	Next  string        `json:"next,omitempty"`
	Error *apiError     `json:"error,omitempty"`
}

// albumResult is a single album entry from a Deezer search.
type albumResult struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	RecordType  string    `json:"record_type"`
	NbTracks    int       `json:"nb_tracks"`
	Explicit    bool      `json:"explicit_lyrics"`
	Artist      artistRef `json:"artist"`
	Label       string    `json:"label,omitempty"`
	ReleaseDate string    `json:"release_date,omitempty"`
	Type        string    `json:"type"`
}

// artistRef is the artist embedded in album and track objects.
type artistRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// tracksResponse lists the tracks of an album.
type tracksResponse struct {
	Data  []trackRef `json:"data"`
	Total int        `json:"total"`
	Next  string     `json:"next,omitempty"`
	Error *apiError  `json:"error,omitempty"`
}

type trackRef struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// createResponse is returned when a playlist is created.
type createResponse struct {
	ID    int       `json:"id"`
	Error *apiError `json:"error,omitempty"`
}

// apiError is returned by Deezer with HTTP 200 when a call fails.
type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
