// Package cli implements the labcore command tree.
package cli

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configFile string
	envFile    string
}

// NewRootCmd returns the labcore command with every subcommand attached.
func NewRootCmd(version string) *cobra.Command {
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:     "labcore",
		Short:   "labcore - agronomy lab order fulfillment tracker",
		Version: version,
		Long: `labcore tracks soil, water and fertilizer orders from intake to the issued
report: it interprets recorded measurements against the test catalog and
generates the order report once every ordered parameter is measured.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "config file (default: ./labcore.yaml)")
	rootCmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file loaded before the environment")

	rootCmd.AddCommand(serveCmd(flags))
	rootCmd.AddCommand(catalogCmd(flags))
	rootCmd.AddCommand(clientCmd(flags))
	rootCmd.AddCommand(orderCmd(flags))
	rootCmd.AddCommand(sampleCmd(flags))
	rootCmd.AddCommand(resultCmd(flags))
	rootCmd.AddCommand(reportCmd(flags))
	rootCmd.AddCommand(summaryCmd(flags))
	return rootCmd
}
