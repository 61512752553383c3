package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/sydlexius/cadenza/internal/config"
	"github.com/sydlexius/cadenza/internal/database"
	"github.com/sydlexius/cadenza/internal/logging"
	"github.com/sydlexius/cadenza/internal/provider"
)

// commandContext carries state shared by subcommands. The config is loaded
// once, after flags are parsed.
type commandContext struct {
	configFlag string
	verbose    bool

	logs   *logging.Manager
	logger *slog.Logger

	// newRegistry builds the source adapters; tests replace it.
	newRegistry func(cfg *config.Config, limiter *provider.LimiterMap, logger *slog.Logger) *provider.Registry

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(logOut io.Writer) *commandContext {
	logs, logger := logging.NewManager(logging.DefaultConfig(), logOut)
	return &commandContext{
		logs:        logs,
		logger:      logger,
		newRegistry: buildRegistry,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		c.logs.Reconfigure(cfg.Logging)
		if c.verbose {
			c.logs.SetLevel("debug")
		}
		c.config = cfg
		c.logger.Debug("configuration loaded", slog.String("logging", cfg.Logging.String()))
	})
	return c.config, c.configErr
}

// openStore opens and migrates the run database.
func (c *commandContext) openStore(ctx context.Context) (*sql.DB, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	db, err := database.Open(ctx, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := database.Migrate(ctx, db, c.logger); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return db, nil
}

func (c *commandContext) close() {
	c.logs.Close() //nolint:errcheck
}

func newRootCommand(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "cadenza",
		Short:         "Match recommended classical recordings to streaming catalogs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path (default $XDG_CONFIG_HOME/cadenza/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newMatchCommand(ctx))
	rootCmd.AddCommand(newRunsCommand(ctx))
	rootCmd.AddCommand(newSourcesCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
