// Package main implements the marketplace command: the API server and its
// database maintenance commands.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// configPath points at an optional YAML config file.
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "marketplace",
	Short: "Expert insight marketplace server",
	Long: `marketplace runs the expert/investor insight marketplace API.

Configuration comes from built-in defaults, an optional YAML file, an optional
.env file and the environment, in increasing order of precedence.`,
	Version:       version,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults to $CONFIG_FILE)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}
