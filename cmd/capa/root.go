package main

import (
	"fmt"

	"github.com/HerbHall/capa/internal/version"
	"github.com/spf13/cobra"
)

// newRootCommand returns the capa command tree.
func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "capa",
		Short:        "Robust collective and point anomaly detection",
		Long:         `capa finds collective (segment) and point anomalies in a series using a biweight cost and pruned optimal partitioning.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to configuration file")

	cmd.AddCommand(
		newServeCommand(&configPath),
		newDetectCommand(&configPath),
		newVersionCommand(),
	)
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Info())
			return err
		},
	}
}
