package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set by ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	var showVersion bool

	rootCmd := &cobra.Command{
		Use:   "restock",
		Short: "Marketplace asset publishing tool",
		Long: `restock - A command-line tool for publishing image assets to
marketplace groups, with duplicate detection and a publish ledger that
prevents paying for the same upload twice.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion()
				return nil
			}
			// Show help if no subcommand is provided
			return cmd.Help()
		},
	}

	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "version for restock")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			printVersion()
		},
	}

	rootCmd.AddCommand(newRunCmd(), newConfigCmd(), versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("restock version %s\n", version)
	if version != "dev" {
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	}
}
