package musicbrainz

// MusicBrainz API response types.

// ReleaseSearchResponse is the response from the release search endpoint.
type ReleaseSearchResponse struct {
	Created  string      `json:"created"`
	Count    int         `json:"count"`
	Offset   int         `json:"offset"`
	Releases []MBRelease `json:"releases"`
}

// MBRelease represents a release in search results.
type MBRelease struct {
	ID           string          `json:"id"`
	Score        int             `json:"score"`
	Title        string          `json:"title"`
	Status       string          `json:"status"`
	Date         string          `json:"date"`
	Country      string          `json:"country"`
	ArtistCredit []ArtistCredit  `json:"artist-credit"`
	LabelInfo    []LabelInfo     `json:"label-info"`
	ReleaseGroup *MBReleaseGroup `json:"release-group,omitempty"`
}

// ArtistCredit is one credited artist on a release.
type ArtistCredit struct {
	Name       string   `json:"name"`
	JoinPhrase string   `json:"joinphrase"`
	Artist     MBArtist `json:"artist"`
}

// MBArtist is the minimal artist record embedded in credits.
type MBArtist struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	SortName string `json:"sort-name"`
}

// LabelInfo pairs a label with its catalog number.
type LabelInfo struct {
	CatalogNumber string   `json:"catalog-number"`
	Label         *MBLabel `json:"label,omitempty"`
}

// MBLabel is a record label.
type MBLabel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MBReleaseGroup groups editions of the same release.
type MBReleaseGroup struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	PrimaryType string `json:"primary-type"`
}
