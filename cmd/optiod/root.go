package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var version = "dev"

var debug bool

var rootCmd = &cobra.Command{
	Use:   "optiod",
	Short: "Security consulting backend: script factory and network scanner",
	Long: `optiod is the backend daemon for security consulting engagements.
It generates client preparation and agent deployment scripts from vetted
templates, runs network discovery scans, and maintains a per-client
asset inventory reconciled from scan results.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the optiod version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("optiod %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
