// Package commands implements the podcore-inspect CLI.
package commands

import (
	"github.com/spf13/cobra"
)

var outputFormat string

var rootCmd = &cobra.Command{
	Use:   "podcore-inspect <blob-file>",
	Short: "Inspect a persisted pod-state blob",
	Long: `podcore-inspect reads a pod-state blob written by a podcomms host and
prints the pod's address, setup progress, suspend state, fault record,
activation/expiry times, and dose ledger. The nonce table is not shown.

Examples:
  # Print as a table
  podcore-inspect pod-a3f1.blob

  # Print as JSON
  podcore-inspect pod-a3f1.blob -o json`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runInspect,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table|json|yaml)")
}
