package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sydlexius/cadenza/internal/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the version",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "cadenza %s (%s)\n", version.Version, version.Commit)
			return err
		},
	}
}
