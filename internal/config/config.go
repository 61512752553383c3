// Package config loads cadenza's YAML configuration with environment
// overrides.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/sydlexius/cadenza/internal/logging"
	"github.com/sydlexius/cadenza/internal/matcher"
	"github.com/sydlexius/cadenza/internal/provider"
	"github.com/sydlexius/cadenza/internal/ranker"
)

// ExactNone disables the exact source.
const ExactNone = "none"

//go:embed canonical.yaml
var canonicalYAML []byte

// Config holds all application configuration.
type Config struct {
	Discogs     DiscogsConfig     `yaml:"discogs"`
	MusicBrainz MusicBrainzConfig `yaml:"musicbrainz"`
	Tidal       TidalConfig       `yaml:"tidal"`
	Deezer      DeezerConfig      `yaml:"deezer"`
	Matching    MatchingConfig    `yaml:"matching"`
	Canonical   CanonicalConfig   `yaml:"canonical"`
	Database    DatabaseConfig    `yaml:"database"`
	Logging     logging.Config    `yaml:"logging"`
}

// RateConfig overrides a source's published request rate. Zero keeps the
// default.
type RateConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// DiscogsConfig holds Discogs settings.
type DiscogsConfig struct {
	Token      string `yaml:"token"`
	RateConfig `yaml:",inline"`
}

// MusicBrainzConfig holds MusicBrainz settings.
type MusicBrainzConfig struct {
	RateConfig `yaml:",inline"`
}

// TidalConfig holds TIDAL settings. Search uses the client credentials;
// playlist writes need a user access token.
type TidalConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	AccessToken  string `yaml:"access_token"`
	CountryCode  string `yaml:"country_code"`
	RateConfig   `yaml:",inline"`
}

// DeezerConfig holds Deezer settings.
type DeezerConfig struct {
	AccessToken string `yaml:"access_token"`
	RateConfig  `yaml:",inline"`
}

// MatchingConfig holds orchestration and scoring settings.
type MatchingConfig struct {
	ExactSource      string         `yaml:"exact_source"`
	CandidateSource  string         `yaml:"candidate_source"`
	MinScore         float64        `yaml:"min_score"`
	Workers          int            `yaml:"workers"`
	CallTimeout      time.Duration  `yaml:"call_timeout"`
	TransientRetries int            `yaml:"transient_retries"`
	RateLimitRetries int            `yaml:"rate_limit_retries"`
	MaxRetryAfter    time.Duration  `yaml:"max_retry_after"`
	Weights          ranker.Weights `yaml:"weights"`
	PartialCredit    float64        `yaml:"partial_credit"`
	SimilarityFloor  float64        `yaml:"similarity_floor"`
}

// CanonicalConfig lists the curated names. Empty lists use the built-in
// sets.
type CanonicalConfig struct {
	Performers []string `yaml:"performers"`
	Labels     []string `yaml:"labels"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// DefaultPath returns the config file location under the XDG config home.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "cadenza", "config.yaml")
}

// DefaultDatabasePath returns the run store location under the XDG data
// home.
func DefaultDatabasePath() string {
	return filepath.Join(xdg.DataHome, "cadenza", "cadenza.db")
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Tidal: TidalConfig{CountryCode: "US"},
		Matching: MatchingConfig{
			ExactSource:      string(provider.NameDiscogs),
			CandidateSource:  string(provider.NameTidal),
			MinScore:         ranker.DefaultMinScore,
			Workers:          matcher.DefaultWorkers,
			CallTimeout:      matcher.DefaultCallTimeout,
			TransientRetries: matcher.DefaultTransientRetries,
			RateLimitRetries: matcher.DefaultRateLimitRetries,
			MaxRetryAfter:    matcher.DefaultMaxRetryAfter,
			Weights:          ranker.DefaultWeights(),
			PartialCredit:    ranker.DefaultPartialCredit,
			SimilarityFloor:  ranker.DefaultSimilarityFloor,
		},
		Database: DatabaseConfig{Path: DefaultDatabasePath()},
		Logging:  logging.DefaultConfig(),
	}
}

// Load reads config from a YAML file and applies environment overrides,
// which take precedence. An empty path falls back to CADENZA_CONFIG and
// then to DefaultPath; only the default location may be absent.
func Load(path string) (*Config, error) {
	explicit := true
	if path == "" {
		path = os.Getenv("CADENZA_CONFIG")
	}
	if path == "" {
		path = DefaultPath()
		explicit = false
	}

	cfg := Default()
	if err := cfg.loadFromFile(path, explicit); err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string, required bool) error {
	f, err := os.Open(path) //nolint:gosec // path comes from the operator
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return err
	}
	defer f.Close() //nolint:errcheck

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadFromEnv() error {
	strs := map[string]*string{
		"CADENZA_DISCOGS_TOKEN":       &c.Discogs.Token,
		"CADENZA_TIDAL_CLIENT_ID":     &c.Tidal.ClientID,
		"CADENZA_TIDAL_CLIENT_SECRET": &c.Tidal.ClientSecret,
		"CADENZA_TIDAL_ACCESS_TOKEN":  &c.Tidal.AccessToken,
		"CADENZA_TIDAL_COUNTRY_CODE":  &c.Tidal.CountryCode,
		"CADENZA_DEEZER_ACCESS_TOKEN": &c.Deezer.AccessToken,
		"CADENZA_EXACT_SOURCE":        &c.Matching.ExactSource,
		"CADENZA_CANDIDATE_SOURCE":    &c.Matching.CandidateSource,
		"CADENZA_DB_PATH":             &c.Database.Path,
		"CADENZA_LOG_LEVEL":           &c.Logging.Level,
		"CADENZA_LOG_FORMAT":          &c.Logging.Format,
		"CADENZA_LOG_FILE":            &c.Logging.FilePath,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("CADENZA_MIN_SCORE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("CADENZA_MIN_SCORE: %w", err)
		}
		c.Matching.MinScore = f
	}
	if v := os.Getenv("CADENZA_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CADENZA_WORKERS: %w", err)
		}
		c.Matching.Workers = n
	}
	return nil
}

func (c *Config) validate() error {
	m := &c.Matching
	m.ExactSource = strings.ToLower(strings.TrimSpace(m.ExactSource))
	m.CandidateSource = strings.ToLower(strings.TrimSpace(m.CandidateSource))

	switch m.ExactSource {
	case "", ExactNone:
		m.ExactSource = ExactNone
	case string(provider.NameDiscogs), string(provider.NameMusicBrainz):
	default:
		return fmt.Errorf("unknown exact source %q", m.ExactSource)
	}
	switch m.CandidateSource {
	case string(provider.NameTidal), string(provider.NameDeezer):
	default:
		return fmt.Errorf("unknown candidate source %q", m.CandidateSource)
	}

	if err := CheckMinScore(m.MinScore); err != nil {
		return err
	}
	if m.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", m.Workers)
	}
	if m.CallTimeout <= 0 {
		return fmt.Errorf("call_timeout must be positive, got %s", m.CallTimeout)
	}
	if m.TransientRetries < 0 || m.RateLimitRetries < 0 {
		return errors.New("retry counts must be non-negative")
	}
	if err := m.Weights.Validate(); err != nil {
		return err
	}
	if m.PartialCredit < 0 || m.PartialCredit >= 1 {
		return fmt.Errorf("partial_credit must be in [0, 1), got %v", m.PartialCredit)
	}
	if m.SimilarityFloor <= 0 || m.SimilarityFloor > 1 {
		return fmt.Errorf("similarity_floor must be in (0, 1], got %v", m.SimilarityFloor)
	}

	for name, rc := range map[provider.SourceName]RateConfig{
		provider.NameDiscogs:     c.Discogs.RateConfig,
		provider.NameMusicBrainz: c.MusicBrainz.RateConfig,
		provider.NameTidal:       c.Tidal.RateConfig,
		provider.NameDeezer:      c.Deezer.RateConfig,
	} {
		if rc.RequestsPerMinute < 0 || rc.Burst < 0 {
			return fmt.Errorf("%s: rate limits must be non-negative", name)
		}
	}

	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	return nil
}

// CheckMinScore validates a threshold, e.g. one given on the command line.
func CheckMinScore(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("min_score must be in [0, 1], got %v", v)
	}
	return nil
}

// Limits returns the per-source limiter overrides.
func (c *Config) Limits() map[provider.SourceName]provider.LimitConfig {
	out := make(map[provider.SourceName]provider.LimitConfig)
	add := func(name provider.SourceName, rc RateConfig) {
		if rc.RequestsPerMinute > 0 || rc.Burst > 0 {
			out[name] = provider.LimitConfig{RequestsPerMinute: rc.RequestsPerMinute, Burst: rc.Burst}
		}
	}
	add(provider.NameDiscogs, c.Discogs.RateConfig)
	add(provider.NameMusicBrainz, c.MusicBrainz.RateConfig)
	add(provider.NameTidal, c.Tidal.RateConfig)
	add(provider.NameDeezer, c.Deezer.RateConfig)
	return out
}

// MatcherConfig returns the orchestration settings.
func (c *Config) MatcherConfig() matcher.Config {
	return matcher.Config{
		Workers:          c.Matching.Workers,
		CallTimeout:      c.Matching.CallTimeout,
		TransientRetries: c.Matching.TransientRetries,
		RateLimitRetries: c.Matching.RateLimitRetries,
		MaxRetryAfter:    c.Matching.MaxRetryAfter,
	}
}

// RankerConfig returns the scoring settings with the canonical sets built
// from the configured lists or the built-in defaults.
func (c *Config) RankerConfig() (ranker.Config, error) {
	canon := c.Canonical
	if len(canon.Performers) == 0 || len(canon.Labels) == 0 {
		def, err := DefaultCanonical()
		if err != nil {
			return ranker.Config{}, err
		}
		if len(canon.Performers) == 0 {
			canon.Performers = def.Performers
		}
		if len(canon.Labels) == 0 {
			canon.Labels = def.Labels
		}
	}
	return ranker.Config{
		Weights:         c.Matching.Weights,
		MinScore:        c.Matching.MinScore,
		PartialCredit:   c.Matching.PartialCredit,
		SimilarityFloor: c.Matching.SimilarityFloor,
		Performers:      ranker.NewCanonicalSet(canon.Performers...),
		Labels:          ranker.NewCanonicalSet(canon.Labels...),
	}, nil
}

// DefaultCanonical returns the built-in curated lists.
func DefaultCanonical() (CanonicalConfig, error) {
	var cc CanonicalConfig
	if err := yaml.Unmarshal(canonicalYAML, &cc); err != nil {
		return CanonicalConfig{}, fmt.Errorf("parsing built-in canonical sets: %w", err)
	}
	return cc, nil
}
