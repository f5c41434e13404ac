// Command habitat explores topics as a growing force-laid-out tree.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:           "habitat",
		Short:         "Explore topics as a tree of rabbit holes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	configPath *string
	logLevel   *string
	noColor    *bool
)

func init() {
	configPath = rootCmd.PersistentFlags().StringP("config", "c", "config.json", "Path to the JSON configuration file")
	logLevel = rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level (debug, info, warn, error)")
	noColor = rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
