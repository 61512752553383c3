package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/sydlexius/cadenza/internal/config"
	"github.com/sydlexius/cadenza/internal/provider"
	"github.com/sydlexius/cadenza/internal/provider/deezer"
	"github.com/sydlexius/cadenza/internal/provider/discogs"
	"github.com/sydlexius/cadenza/internal/provider/musicbrainz"
	"github.com/sydlexius/cadenza/internal/provider/tidal"
)

// buildRegistry creates every adapter. Adapters without credentials are
// still registered; they fail with an auth error when used.
func buildRegistry(cfg *config.Config, limiter *provider.LimiterMap, logger *slog.Logger) *provider.Registry {
	reg := provider.NewRegistry()
	reg.RegisterExact(discogs.New(cfg.Discogs.Token, limiter, logger))
	reg.RegisterExact(musicbrainz.New(limiter, logger))
	reg.RegisterCandidate(tidal.New(tidal.Credentials{
		ClientID:     cfg.Tidal.ClientID,
		ClientSecret: cfg.Tidal.ClientSecret,
		AccessToken:  cfg.Tidal.AccessToken,
		CountryCode:  cfg.Tidal.CountryCode,
	}, limiter, logger))
	reg.RegisterCandidate(deezer.New(cfg.Deezer.AccessToken, limiter, logger))
	return reg
}

// configured reports whether a source has the credentials it needs for
// lookups, and for playlist writes.
func configured(cfg *config.Config, name provider.SourceName) (lookup, write bool) {
	switch name {
	case provider.NameDiscogs:
		return cfg.Discogs.Token != "", false
	case provider.NameMusicBrainz:
		return true, false
	case provider.NameTidal:
		search := cfg.Tidal.AccessToken != "" || (cfg.Tidal.ClientID != "" && cfg.Tidal.ClientSecret != "")
		return search, cfg.Tidal.AccessToken != ""
	case provider.NameDeezer:
		return true, cfg.Deezer.AccessToken != ""
	}
	return false, false
}

func newSourcesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List lookup sources and their limits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			limiter := provider.NewLimiterMap(cfg.Limits(), ctx.logger)
			reg := ctx.newRegistry(cfg, limiter, ctx.logger)
			caps := provider.Capabilities()

			tw := table.NewWriter()
			tw.SetStyle(table.StyleRounded)
			tw.AppendHeader(table.Row{"Source", "Role", "Tier", "Req/min", "Burst", "Ready", "Playlists"})
			for _, name := range reg.Names() {
				role := "candidates"
				if _, err := reg.Exact(name); err == nil {
					role = "exact"
				}
				lookup, write := configured(cfg, name)
				rpm, burst := "-", "-"
				if l := limiter.Limiter(name); l != nil {
					rpm = strconv.FormatFloat(l.Rate()*60, 'f', -1, 64)
					burst = strconv.Itoa(l.Capacity())
				}
				playlists := "-"
				if _, err := reg.PlaylistWriter(name); err == nil {
					playlists = yesNo(write)
				}
				tw.AppendRow(table.Row{name.DisplayName(), role, string(caps[name].Tier), rpm, burst, yesNo(lookup), playlists})
			}
			tw.SetColumnConfigs([]table.ColumnConfig{
				{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
				{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft},
			})
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tw.Render())
			return err
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
