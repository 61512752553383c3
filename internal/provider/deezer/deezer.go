package deezer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sydlexius/cadenza/internal/provider"
)

const (
	defaultBaseURL = "https://api.deezer.com"
	searchLimit    = "50"
)

// Deezer error codes carried in the JSON body.
const (
	codeQuotaExceeded = 4
	codeInvalidToken  = 300
	codeNoData        = 800
)

// Adapter implements provider.CandidateSource and provider.PlaylistWriter
// for Deezer. Search is public; playlist writes need a user access token.
type Adapter struct {
	client      *http.Client
	limiter     *provider.LimiterMap
	logger      *slog.Logger
	baseURL     string
	accessToken string
}

// New creates a Deezer adapter with the default base URL.
func New(accessToken string, limiter *provider.LimiterMap, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(accessToken, limiter, logger, defaultBaseURL)
}

// NewWithBaseURL creates a Deezer adapter with a custom base URL (for testing).
func NewWithBaseURL(accessToken string, limiter *provider.LimiterMap, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client:      &http.Client{Timeout: 10 * time.Second},
		limiter:     limiter,
		logger:      logger.With(slog.String("provider", "deezer")),
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
	}
}

// Name returns the source identifier.
func (a *Adapter) Name() provider.SourceName { return provider.NameDeezer }

// SearchCandidates searches Deezer albums for the work. Deezer exposes no
// popularity figure, so search rank is used: the first hit of n gets n.
func (a *Adapter) SearchCandidates(ctx context.Context, composer, work string) ([]provider.Candidate, error) {
	query := strings.Join(strings.Fields(composer+" "+work), " ")
	if query == "" {
		return nil, nil
	}

	params := url.Values{
		"q":     {query},
		"limit": {searchLimit},
	}
	body, err := a.doRequest(ctx, http.MethodGet, a.baseURL+"/search/album?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}
	if err := a.apiErr(resp.Error, query); err != nil {
		return nil, err
	}

	n := len(resp.Data)
	out := make([]provider.Candidate, 0, n)
	for i, r := range resp.Data {
		c := provider.Candidate{
			ID:         strconv.Itoa(r.ID),
			Title:      r.Title,
			Label:      r.Label,
			Year:       provider.ParseYear(r.ReleaseDate),
			Popularity: float64(n - i),
			Source:     provider.NameDeezer,
		}
		if r.Artist.Name != "" {
			c.Artists = []string{r.Artist.Name}
		}
		out = append(out, c)
	}
	return out, nil
}

// CreatePlaylist creates a playlist for the token's user and returns its ID.
func (a *Adapter) CreatePlaylist(ctx context.Context, name, description string) (string, error) {
	if a.accessToken == "" {
		return "", &provider.ErrAuthRequired{Provider: provider.NameDeezer, Reason: "playlist writes need an access token"}
	}

	params := url.Values{
		"title":        {name},
		"access_token": {a.accessToken},
	}
	body, err := a.doRequest(ctx, http.MethodPost, a.baseURL+"/user/me/playlists?"+params.Encode())
	if err != nil {
		return "", err
	}
	var resp createResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parsing create response: %w", err)
	}
	if err := a.apiErr(resp.Error, name); err != nil {
		return "", err
	}
	id := strconv.Itoa(resp.ID)

	if description != "" {
		params = url.Values{
			"description":  {description},
			"access_token": {a.accessToken},
		}
		if _, err := a.doRequest(ctx, http.MethodPost, a.baseURL+"/playlist/"+id+"?"+params.Encode()); err != nil {
			a.logger.Warn("setting playlist description failed", slog.String("playlist", id), slog.String("error", err.Error()))
		}
	}
	return id, nil
}

// AddItems adds every track of the given albums to the playlist and returns
// the number of albums added. Albums whose tracks cannot be listed are skipped.
func (a *Adapter) AddItems(ctx context.Context, playlistID string, itemIDs []string) (int, error) {
	if a.accessToken == "" {
		return 0, &provider.ErrAuthRequired{Provider: provider.NameDeezer, Reason: "playlist writes need an access token"}
	}

	var tracks []string
	added := 0
	for _, albumID := range itemIDs {
		ids, err := a.albumTracks(ctx, albumID)
		if err != nil {
			if provider.Classify(err) == provider.KindAuth {
				return 0, err
			}
			a.logger.Warn("listing album tracks failed", slog.String("album", albumID), slog.String("error", err.Error()))
			continue
		}
		if len(ids) == 0 {
			continue
		}
		tracks = append(tracks, ids...)
		added++
	}
	if len(tracks) == 0 {
		return 0, nil
	}

	params := url.Values{
		"songs":        {strings.Join(tracks, ",")},
		"access_token": {a.accessToken},
	}
	body, err := a.doRequest(ctx, http.MethodPost, a.baseURL+"/playlist/"+url.PathEscape(playlistID)+"/tracks?"+params.Encode())
	if err != nil {
		return 0, err
	}
	var errResp struct {
		Error *apiError `json:"error,omitempty"`
	}
	if json.Unmarshal(body, &errResp) == nil {
		if err := a.apiErr(errResp.Error, playlistID); err != nil {
			return 0, err
		}
	}
	return added, nil
}

func (a *Adapter) albumTracks(ctx context.Context, albumID string) ([]string, error) {
	body, err := a.doRequest(ctx, http.MethodGet, a.baseURL+"/album/"+url.PathEscape(albumID)+"/tracks?limit=500")
	if err != nil {
		return nil, err
	}
	var resp tracksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing tracks response: %w", err)
	}
	if err := a.apiErr(resp.Error, albumID); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resp.Data))
	for _, t := range resp.Data {
		ids = append(ids, strconv.Itoa(t.ID))
	}
	return ids, nil
}

// apiErr maps an error object from a 200 response body onto the source error
// types. Deezer reports quota, auth and missing data this way.
func (a *Adapter) apiErr(e *apiError, id string) error {
	if e == nil {
		return nil
	}
	switch e.Code {
	case codeQuotaExceeded:
		return &provider.ErrRateLimited{Provider: provider.NameDeezer, RetryAfter: 5 * time.Second}
	case codeInvalidToken:
		return &provider.ErrAuthRequired{Provider: provider.NameDeezer, Reason: e.Message}
	case codeNoData:
		return &provider.ErrNotFound{Provider: provider.NameDeezer, ID: id}
	}
	if e.Type == "OAuthException" {
		return &provider.ErrAuthRequired{Provider: provider.NameDeezer, Reason: e.Message}
	}
	return &provider.ErrProviderUnavailable{
		Provider: provider.NameDeezer,
		Cause:    fmt.Errorf("%s (code %d): %s", e.Type, e.Code, e.Message),
	}
}

// doRequest executes a rate-limited request and returns the response body.
func (a *Adapter) doRequest(ctx context.Context, method, reqURL string) ([]byte, error) {
	if err := a.limiter.Acquire(ctx, provider.NameDeezer); err != nil {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameDeezer,
			Cause:    fmt.Errorf("rate limiter: %w", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	a.logger.Debug("requesting", slog.String("method", method), slog.String("path", req.URL.Path))

	resp, err := a.client.Do(req) //nolint:gosec // URL constructed from adapter config and validated inputs
	if err != nil {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameDeezer,
			Cause:    err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := provider.StatusError(provider.NameDeezer, resp, req.URL.Path); err != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, err
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024))
}
