package listing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sydlexius/cadenza/internal/recording"
	"github.com/sydlexius/cadenza/internal/version"
)

// maxListingSize caps the bytes read from a listing source.
const maxListingSize = 8 * 1024 * 1024

// Loader reads listings from files or http(s) URLs.
type Loader struct {
	client *http.Client
	logger *slog.Logger
}

// NewLoader creates a Loader. A nil client uses a default with a timeout.
func NewLoader(client *http.Client, logger *slog.Logger) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Loader{
		client: client,
		logger: logger.With(slog.String("component", "listing")),
	}
}

// Load reads and parses the listing at src. Files ending in .yaml or .yml
// are parsed as YAML, everything else as HTML.
func (l *Loader) Load(ctx context.Context, src string) ([]recording.Entry, error) {
	var (
		body     io.ReadCloser
		isYAML   bool
		err      error
		isRemote = strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
	)
	if isRemote {
		body, isYAML, err = l.fetch(ctx, src)
	} else {
		body, err = os.Open(filepath.Clean(src))
		ext := strings.ToLower(filepath.Ext(src))
		isYAML = ext == ".yaml" || ext == ".yml"
	}
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	r := io.LimitReader(body, maxListingSize)
	var entries []recording.Entry
	if isYAML {
		entries, err = ParseYAML(r)
	} else {
		entries, err = ParseHTML(r)
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", src, err)
	}
	l.logger.Info("listing loaded", slog.String("source", src), slog.Int("entries", len(entries)))
	return entries, nil
}

func (l *Loader) fetch(ctx context.Context, src string) (io.ReadCloser, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "Cadenza/"+version.Version)

	resp, err := l.client.Do(req) //nolint:gosec // URL supplied by the user on the command line
	if err != nil {
		return nil, false, fmt.Errorf("fetching %s: %w", src, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close() //nolint:errcheck,gosec
		return nil, false, fmt.Errorf("fetching %s: HTTP %d", src, resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	path := strings.ToLower(req.URL.Path)
	isYAML := strings.Contains(ct, "yaml") || strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")
	return resp.Body, isYAML, nil
}
