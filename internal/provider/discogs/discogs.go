package discogs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sydlexius/cadenza/internal/provider"
	"github.com/sydlexius/cadenza/internal/version"
)

const (
	defaultBaseURL = "https://api.discogs.com"
	perPage        = 100
	maxPages       = 2
)

// Adapter implements provider.ExactSource for Discogs.
type Adapter struct {
	client  *http.Client
	limiter *provider.LimiterMap
	logger  *slog.Logger
	baseURL string
	token   string
}

// New creates a Discogs adapter with the default base URL.
func New(token string, limiter *provider.LimiterMap, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(token, limiter, logger, defaultBaseURL)
}

// NewWithBaseURL creates a Discogs adapter with a custom base URL (for testing).
func NewWithBaseURL(token string, limiter *provider.LimiterMap, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: limiter,
		logger:  logger.With(slog.String("provider", "discogs")),
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// Name returns the source name.
func (a *Adapter) Name() provider.SourceName { return provider.NameDiscogs }

// SearchReleases searches the Discogs database for releases of the work and
// keeps those satisfying the filter. At most two pages are fetched.
func (a *Adapter) SearchReleases(ctx context.Context, composer, work string, filter provider.ReleaseFilter) ([]provider.ExternalRelease, error) {
	if a.token == "" {
		return nil, &provider.ErrAuthRequired{Provider: provider.NameDiscogs}
	}

	query := strings.Join(strings.Fields(composer+" "+work), " ")
	var releases []provider.ExternalRelease
	for page := 1; page <= maxPages; page++ {
		params := url.Values{
			"q":        {query},
			"type":     {"release"},
			"per_page": {strconv.Itoa(perPage)},
			"page":     {strconv.Itoa(page)},
		}
		reqURL := a.baseURL + "/database/search?" + params.Encode()

		body, err := a.doRequest(ctx, reqURL)
		if err != nil {
			return nil, err
		}

		var resp SearchResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("parsing search response: %w", err)
		}
		for i := range resp.Results {
			if resp.Results[i].Type != "" && resp.Results[i].Type != "release" {
				continue
			}
			rel := mapRelease(&resp.Results[i])
			if provider.MatchesFilter(rel, filter) {
				releases = append(releases, rel)
			}
		}
		if resp.Pagination.Pages <= page {
			break
		}
	}

	a.logger.Debug("release search complete",
		slog.String("query", query),
		slog.Int("matches", len(releases)))
	return releases, nil
}

func (a *Adapter) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	if err := a.limiter.Acquire(ctx, provider.NameDiscogs); err != nil {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameDiscogs,
			Cause:    fmt.Errorf("rate limiter: %w", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Discogs token="+a.token)
	req.Header.Set("User-Agent", "Cadenza/"+version.Version)
	req.Header.Set("Accept", "application/json")

	a.logger.Debug("requesting", slog.String("url", reqURL))

	resp, err := a.client.Do(req) //nolint:gosec // URL constructed from trusted base + API params
	if err != nil {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameDiscogs,
			Cause:    err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := provider.StatusError(provider.NameDiscogs, resp, reqURL); err != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, err
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
}

// Discogs appends "(2)", "(3)" to disambiguate artists sharing a name.
var disambiguator = regexp.MustCompile(`\s*\(\d+\)$`)

func mapRelease(r *SearchResult) provider.ExternalRelease {
	artistPart, title := splitTitle(r.Title)
	rel := provider.ExternalRelease{
		ID:     strconv.Itoa(r.ID),
		Title:  title,
		Labels: dedupe(r.Label),
		Year:   provider.ParseYear(r.Year),
		Source: provider.NameDiscogs,
	}
	for _, name := range splitArtists(artistPart) {
		rel.Artists = append(rel.Artists, disambiguator.ReplaceAllString(name, ""))
	}
	if r.MasterID != 0 {
		rel.MasterID = strconv.Itoa(r.MasterID)
	}
	if r.Community != nil && r.Community.Rating != nil && r.Community.Rating.Count > 0 {
		avg := r.Community.Rating.Average
		rel.CommunityRating = &avg
	}
	return rel
}

// splitTitle separates "Artist - Title". A title without the separator is
// returned whole with no artist part.
func splitTitle(s string) (artists, title string) {
	if i := strings.Index(s, " - "); i >= 0 {
		return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+3:])
	}
	return "", strings.TrimSpace(s)
}

func splitArtists(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '/' }) {
		for _, name := range strings.Split(part, " & ") {
			if name = strings.TrimSpace(name); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
