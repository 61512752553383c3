package provider

import (
	"context"
	"fmt"
	"time"
)

// SourceName uniquely identifies a lookup source.
type SourceName string

// Known source names.
const (
	NameDiscogs     SourceName = "discogs"
	NameMusicBrainz SourceName = "musicbrainz"
	NameTidal       SourceName = "tidal"
	NameDeezer      SourceName = "deezer"
)

// DisplayName returns a human-readable name for the source.
func (n SourceName) DisplayName() string {
	switch n {
	case NameDiscogs:
		return "Discogs"
	case NameMusicBrainz:
		return "MusicBrainz"
	case NameTidal:
		return "TIDAL"
	case NameDeezer:
		return "Deezer"
	default:
		return string(n)
	}
}

// AccessTier classifies a source's access model.
type AccessTier string

// Access tier constants for classifying a source's access model.
const (
	TierFree    AccessTier = "free"     // No key, public API
	TierFreeKey AccessTier = "free_key" // Free account/sign-up required
	TierPaid    AccessTier = "paid"     // Subscription required
)

// Capability documents a source's access model and its published limits.
type Capability struct {
	Tier              AccessTier `json:"tier"`
	HelpURL           string     `json:"help_url,omitempty"`
	RequestsPerMinute float64    `json:"requests_per_minute"`
	Burst             int        `json:"burst"`
}

// Capabilities returns the known capability metadata for each source. The
// request rates double as the default limiter settings.
func Capabilities() map[SourceName]Capability {
	return map[SourceName]Capability{
		NameDiscogs: {
			Tier:              TierFreeKey,
			HelpURL:           "https://www.discogs.com/settings/developers",
			RequestsPerMinute: 60,
			Burst:             5,
		},
		NameMusicBrainz: {
			Tier:              TierFree,
			RequestsPerMinute: 60,
			Burst:             1,
		},
		NameTidal: {
			Tier:              TierPaid,
			HelpURL:           "https://developer.tidal.com/dashboard",
			RequestsPerMinute: 120,
			Burst:             10,
		},
		NameDeezer: {
			Tier:              TierFree,
			HelpURL:           "https://developers.deezer.com/myapps",
			RequestsPerMinute: 300,
			Burst:             10,
		},
	}
}

// ExternalRelease is a release reported by an authoritative catalog.
type ExternalRelease struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Artists         []string   `json:"artists"`
	Labels          []string   `json:"labels,omitempty"`
	Year            int        `json:"year,omitempty"`
	MasterID        string     `json:"master_id,omitempty"`
	CommunityRating *float64   `json:"community_rating,omitempty"`
	Source          SourceName `json:"source"`
}

// PrimaryArtist returns the first credited artist, or "".
func (r ExternalRelease) PrimaryArtist() string {
	if len(r.Artists) == 0 {
		return ""
	}
	return r.Artists[0]
}

func (r ExternalRelease) String() string {
	s := r.PrimaryArtist() + " - " + r.Title
	if r.Year != 0 {
		s += fmt.Sprintf(" (%d)", r.Year)
	}
	return s
}

// Candidate is a playable item from a broad catalog search. Popularity is
// only comparable between candidates returned by the same query.
type Candidate struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Artists    []string   `json:"artists"`
	Label      string     `json:"label,omitempty"` // "" when the source does not expose it
	Year       int        `json:"year,omitempty"`
	Popularity float64    `json:"popularity"`
	Source     SourceName `json:"source"`
}

func (c Candidate) String() string {
	artist := ""
	if len(c.Artists) > 0 {
		artist = c.Artists[0]
	}
	s := artist + " - " + c.Title
	if c.Year != 0 {
		s += fmt.Sprintf(" (%d)", c.Year)
	}
	return s
}

// ReleaseFilter narrows an exact lookup. Zero-valued fields do not filter.
type ReleaseFilter struct {
	Performer string
	Label     string
	Year      int
}

// ExactSource is an authoritative catalog able to confirm a specific release.
type ExactSource interface {
	// Name returns the unique source identifier.
	Name() SourceName

	// SearchReleases returns releases of the work that satisfy the filter,
	// best first. An empty result is not an error.
	SearchReleases(ctx context.Context, composer, work string, filter ReleaseFilter) ([]ExternalRelease, error)
}

// CandidateSource is a broad catalog searched for playable items.
type CandidateSource interface {
	// Name returns the unique source identifier.
	Name() SourceName

	// SearchCandidates returns catalog items for the work in source order.
	SearchCandidates(ctx context.Context, composer, work string) ([]Candidate, error)
}

// PlaylistWriter creates playlists on a candidate catalog. It is used only
// after matching has finished.
type PlaylistWriter interface {
	CreatePlaylist(ctx context.Context, name, description string) (string, error)
	// AddItems appends the given candidate IDs and returns how many were added.
	AddItems(ctx context.Context, playlistID string, itemIDs []string) (int, error)
}

// ErrProviderUnavailable indicates a transient failure (timeout, network, server error).
type ErrProviderUnavailable struct {
	Provider   SourceName
	Cause      error
	RetryAfter time.Duration
}

func (e *ErrProviderUnavailable) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Provider, e.Cause)
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Cause }

// ErrRateLimited indicates the service throttled us despite local limiting.
type ErrRateLimited struct {
	Provider   SourceName
	RetryAfter time.Duration
}

func (e *ErrRateLimited) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("source %s: rate limited (retry after %s)", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("source %s: rate limited", e.Provider)
}

// ErrNotFound indicates the source has no data for the request.
type ErrNotFound struct {
	Provider SourceName
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("source %s: %s not found", e.Provider, e.ID)
}

// ErrAuthRequired indicates missing or rejected credentials.
type ErrAuthRequired struct {
	Provider SourceName
	Reason   string
}

func (e *ErrAuthRequired) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("source %s: authentication failed: %s", e.Provider, e.Reason)
	}
	return fmt.Sprintf("source %s: credentials not configured", e.Provider)
}
