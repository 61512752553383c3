// Package tidal implements the TIDAL catalog as a candidate source and
// playlist writer using the v2 JSON:API endpoints.
package tidal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/sydlexius/cadenza/internal/provider"
)

const (
	defaultBaseURL  = "https://openapi.tidal.com/v2"
	defaultTokenURL = "https://auth.tidal.com/v1/oauth2/token"
	mediaType       = "application/vnd.api+json"

	// TIDAL accepts at most this many items per add-items request.
	maxItemsPerRequest = 20
)

// Credentials configures access to TIDAL. Client credentials authorize
// catalog search; the user access token authorizes playlist writes and is
// also used for search when no client credentials are set.
type Credentials struct {
	ClientID     string
	ClientSecret string
	AccessToken  string
	CountryCode  string
}

// Adapter implements provider.CandidateSource and provider.PlaylistWriter.
type Adapter struct {
	search  *http.Client // nil when no credentials are configured
	user    *http.Client // nil without a user access token
	limiter *provider.LimiterMap
	logger  *slog.Logger
	baseURL string
	country string
}

// New creates a TIDAL adapter with the default endpoints.
func New(creds Credentials, limiter *provider.LimiterMap, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(creds, limiter, logger, defaultBaseURL, defaultTokenURL)
}

// NewWithBaseURL creates a TIDAL adapter with custom API and token endpoints
// (for testing).
func NewWithBaseURL(creds Credentials, limiter *provider.LimiterMap, logger *slog.Logger, baseURL, tokenURL string) *Adapter {
	a := &Adapter{
		limiter: limiter,
		logger:  logger.With(slog.String("provider", "tidal")),
		baseURL: strings.TrimRight(baseURL, "/"),
		country: creds.CountryCode,
	}
	if a.country == "" {
		a.country = "US"
	}

	if creds.AccessToken != "" {
		a.user = newClient(oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: creds.AccessToken,
			TokenType:   "Bearer",
		}))
	}
	switch {
	case creds.ClientID != "" && creds.ClientSecret != "":
		cc := &clientcredentials.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		a.search = newClient(cc.TokenSource(context.Background()))
	case a.user != nil:
		a.search = a.user
	}
	return a
}

func newClient(ts oauth2.TokenSource) *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &oauth2.Transport{
			Source: oauth2.ReuseTokenSource(nil, ts),
			Base:   http.DefaultTransport,
		},
	}
}

// Name returns the source name.
func (a *Adapter) Name() provider.SourceName { return provider.NameTidal }

// SearchCandidates searches TIDAL albums for the work. Candidates keep the
// order of the search relationship; popularity is TIDAL's own 0..1 figure.
func (a *Adapter) SearchCandidates(ctx context.Context, composer, work string) ([]provider.Candidate, error) {
	if a.search == nil {
		return nil, &provider.ErrAuthRequired{Provider: provider.NameTidal}
	}
	query := strings.Join(strings.Fields(composer+" "+work), " ")
	if query == "" {
		return nil, nil
	}

	params := url.Values{
		"countryCode": {a.country},
		"include":     {"albums,albums.artists"},
	}
	reqURL := a.baseURL + "/searchResults/" + url.PathEscape(query) + "?" + params.Encode()

	body, err := a.do(ctx, a.search, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}
	return mapCandidates(&doc), nil
}

func mapCandidates(doc *document) []provider.Candidate {
	albums := make(map[string]*resource)
	artists := make(map[string]string)
	for i := range doc.Included {
		r := &doc.Included[i]
		switch r.Type {
		case "albums":
			albums[r.ID] = r
		case "artists":
			artists[r.ID] = r.Attributes.Name
		}
	}

	refs := doc.Data.Relationships["albums"].Data
	out := make([]provider.Candidate, 0, len(refs))
	for _, ref := range refs {
		album, ok := albums[ref.ID]
		if !ok {
			continue
		}
		c := provider.Candidate{
			ID:         album.ID,
			Title:      album.Attributes.Title,
			Label:      labelFromCopyright(string(album.Attributes.Copyright)),
			Year:       provider.ParseYear(album.Attributes.ReleaseDate),
			Popularity: album.Attributes.Popularity,
			Source:     provider.NameTidal,
		}
		for _, ar := range album.Relationships["artists"].Data {
			if name := artists[ar.ID]; name != "" {
				c.Artists = append(c.Artists, name)
			}
		}
		out = append(out, c)
	}
	return out
}

// CreatePlaylist creates a public playlist owned by the token's user.
func (a *Adapter) CreatePlaylist(ctx context.Context, name, description string) (string, error) {
	if a.user == nil {
		return "", &provider.ErrAuthRequired{Provider: provider.NameTidal, Reason: "playlist writes need a user access token"}
	}

	payload, err := json.Marshal(createRequest{Data: createData{
		Type: "playlists",
		Attributes: createAttributes{
			Name:        name,
			Description: description,
			AccessType:  "PUBLIC",
		},
	}})
	if err != nil {
		return "", fmt.Errorf("encoding playlist: %w", err)
	}

	reqURL := a.baseURL + "/playlists?countryCode=" + url.QueryEscape(a.country)
	body, err := a.do(ctx, a.user, http.MethodPost, reqURL, payload)
	if err != nil {
		return "", err
	}
	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("parsing playlist response: %w", err)
	}
	if doc.Data.ID == "" {
		return "", &provider.ErrProviderUnavailable{
			Provider: provider.NameTidal,
			Cause:    errors.New("playlist response carried no id"),
		}
	}
	return doc.Data.ID, nil
}

// AddItems appends the tracks of each album to the playlist and returns the
// number of albums added. Albums whose tracks cannot be listed are skipped.
func (a *Adapter) AddItems(ctx context.Context, playlistID string, itemIDs []string) (int, error) {
	if a.user == nil {
		return 0, &provider.ErrAuthRequired{Provider: provider.NameTidal, Reason: "playlist writes need a user access token"}
	}

	added := 0
	for _, albumID := range itemIDs {
		tracks, err := a.albumTracks(ctx, albumID)
		if err != nil {
			if provider.Classify(err) == provider.KindAuth {
				return added, err
			}
			a.logger.Warn("listing album items failed", slog.String("album", albumID), slog.String("error", err.Error()))
			continue
		}
		if len(tracks) == 0 {
			continue
		}
		for start := 0; start < len(tracks); start += maxItemsPerRequest {
			end := min(start+maxItemsPerRequest, len(tracks))
			payload, err := json.Marshal(itemsRequest{Data: tracks[start:end]})
			if err != nil {
				return added, fmt.Errorf("encoding items: %w", err)
			}
			reqURL := a.baseURL + "/playlists/" + url.PathEscape(playlistID) + "/relationships/items?countryCode=" + url.QueryEscape(a.country)
			if _, err := a.do(ctx, a.user, http.MethodPost, reqURL, payload); err != nil {
				return added, err
			}
		}
		added++
	}
	return added, nil
}

func (a *Adapter) albumTracks(ctx context.Context, albumID string) ([]identifier, error) {
	next := a.baseURL + "/albums/" + url.PathEscape(albumID) + "/relationships/items?countryCode=" + url.QueryEscape(a.country)
	var out []identifier
	for pages := 0; next != "" && pages < 10; pages++ {
		body, err := a.do(ctx, a.search, http.MethodGet, next, nil)
		if err != nil {
			return nil, err
		}
		var doc listDocument
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("parsing album items: %w", err)
		}
		for _, item := range doc.Data {
			if item.Type == "tracks" {
				out = append(out, item)
			}
		}
		next = a.resolve(doc.Links.Next)
	}
	return out, nil
}

// resolve turns a relative JSON:API link into an absolute URL.
func (a *Adapter) resolve(link string) string {
	if link == "" || strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	return a.baseURL + "/" + strings.TrimLeft(link, "/")
}

func (a *Adapter) do(ctx context.Context, client *http.Client, method, reqURL string, payload []byte) ([]byte, error) {
	if err := a.limiter.Acquire(ctx, provider.NameTidal); err != nil {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameTidal,
			Cause:    fmt.Errorf("rate limiter: %w", err),
		}
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", mediaType)
	if payload != nil {
		req.Header.Set("Content-Type", mediaType)
	}

	a.logger.Debug("requesting", slog.String("method", method), slog.String("url", reqURL))

	resp, err := client.Do(req) //nolint:gosec // URL constructed from trusted base + API params
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, &provider.ErrAuthRequired{Provider: provider.NameTidal, Reason: "token request rejected"}
		}
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameTidal,
			Cause:    err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := provider.StatusError(provider.NameTidal, resp, reqURL); err != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, err
	}
	return io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
}
