package main

import (
	"os"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "remedyq",
	Short: "Route remediation work through an escalating ladder of fixers",
	Long: `remedyq routes units of remediation work (issues and pull requests
needing a fix or review) through an ordered ladder of increasingly
expensive resolution tiers, sequenced by a shared lock-guarded queue.

Core commands:
  enqueue   Add a work item, scoring its priority from metadata
  worker    Run the processing loop
  status    Show queue stats
  cost      Show the daily cost ledger
  approve   Grant cloud-tier approval for a parked item
  resolve   Resolve a parked item by hand`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".remedyq/config.yaml", "config file path")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("remedyq %s\n", version)
	},
}
