package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sydlexius/cadenza/internal/provider"
	"github.com/sydlexius/cadenza/internal/version"
)

const (
	defaultBaseURL = "https://musicbrainz.org/ws/2"
	searchLimit    = "100"
)

// Adapter implements provider.ExactSource for MusicBrainz.
type Adapter struct {
	client  *http.Client
	limiter *provider.LimiterMap
	logger  *slog.Logger
	baseURL string
}

// New creates a MusicBrainz adapter with the default base URL.
func New(limiter *provider.LimiterMap, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, logger, defaultBaseURL)
}

// NewWithBaseURL creates a MusicBrainz adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *provider.LimiterMap, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: limiter,
		logger:  logger.With(slog.String("provider", "musicbrainz")),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the source name.
func (a *Adapter) Name() provider.SourceName { return provider.NameMusicBrainz }

// SearchReleases runs a release search for the work and keeps the releases
// satisfying the filter, in relevance order.
func (a *Adapter) SearchReleases(ctx context.Context, composer, work string, filter provider.ReleaseFilter) ([]provider.ExternalRelease, error) {
	params := url.Values{
		"query": {buildQuery(composer, work, filter)},
		"fmt":   {"json"},
		"limit": {searchLimit},
	}
	reqURL := a.baseURL + "/release?" + params.Encode()

	body, err := a.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var resp ReleaseSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing release search response: %w", err)
	}

	releases := make([]provider.ExternalRelease, 0, len(resp.Releases))
	for i := range resp.Releases {
		rel := mapRelease(&resp.Releases[i])
		if provider.MatchesFilter(rel, filter) {
			releases = append(releases, rel)
		}
	}
	return releases, nil
}

// buildQuery assembles a Lucene query. The work and composer are free text
// because classical release titles rarely match the work name verbatim; the
// performer, when known, is required as an artist credit.
func buildQuery(composer, work string, filter provider.ReleaseFilter) string {
	terms := []string{escape(strings.Join(strings.Fields(composer+" "+work), " "))}
	if filter.Performer != "" {
		terms = append(terms, `artist:"`+escape(filter.Performer)+`"`)
	}
	return strings.Join(terms, " AND ")
}

var luceneEscaper = strings.NewReplacer(
	`\`, `\\`, `+`, `\+`, `-`, `\-`, `!`, `\!`, `(`, `\(`, `)`, `\)`,
	`{`, `\{`, `}`, `\}`, `[`, `\[`, `]`, `\]`, `^`, `\^`, `"`, `\"`,
	`~`, `\~`, `*`, `\*`, `?`, `\?`, `:`, `\:`, `/`, `\/`,
)

func escape(s string) string { return luceneEscaper.Replace(s) }

// doRequest executes an HTTP GET with rate limiting and standard headers.
func (a *Adapter) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	if err := a.limiter.Acquire(ctx, provider.NameMusicBrainz); err != nil {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameMusicBrainz,
			Cause:    fmt.Errorf("rate limiter: %w", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent())
	req.Header.Set("Accept", "application/json")

	a.logger.Debug("requesting", slog.String("url", reqURL))

	resp, err := a.client.Do(req) //nolint:gosec // URL constructed from trusted base + query params
	if err != nil {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameMusicBrainz,
			Cause:    err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	// MusicBrainz signals throttling with 503 rather than 429.
	if resp.StatusCode == http.StatusServiceUnavailable {
		_, _ = io.Copy(io.Discard, resp.Body)
		retry := provider.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		if retry == 0 {
			retry = 2 * time.Second
		}
		return nil, &provider.ErrRateLimited{
			Provider:   provider.NameMusicBrainz,
			RetryAfter: retry,
		}
	}

	if err := provider.StatusError(provider.NameMusicBrainz, resp, reqURL); err != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, err
	}

	return io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
}

// mapRelease converts a MusicBrainz release to the common ExternalRelease type.
func mapRelease(mb *MBRelease) provider.ExternalRelease {
	rel := provider.ExternalRelease{
		ID:     mb.ID,
		Title:  mb.Title,
		Year:   provider.ParseYear(mb.Date),
		Source: provider.NameMusicBrainz,
	}
	for _, ac := range mb.ArtistCredit {
		name := ac.Name
		if name == "" {
			name = ac.Artist.Name
		}
		if name != "" {
			rel.Artists = append(rel.Artists, name)
		}
	}
	seen := make(map[string]bool)
	for _, li := range mb.LabelInfo {
		if li.Label == nil || li.Label.Name == "" || seen[li.Label.Name] {
			continue
		}
		seen[li.Label.Name] = true
		rel.Labels = append(rel.Labels, li.Label.Name)
	}
	if mb.ReleaseGroup != nil {
		rel.MasterID = mb.ReleaseGroup.ID
	}
	return rel
}

func userAgent() string {
	return fmt.Sprintf("Cadenza/%s (https://github.com/sydlexius/cadenza)", version.Version)
}
