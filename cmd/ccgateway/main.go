package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fentz26/ccgateway/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "ccgateway",
	Short: "Claude Code gateway - REST front end for the claude-code CLI",
	Long: `ccgateway exposes the claude-code command-line tool over a small REST API,
tracks execute invocations as tasks and ships client commands for talking to a
running gateway.`,
	SilenceUsage: true,
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	apiAddr    string
	configFile string
	envFiles   []string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "http://127.0.0.1:3001", "Gateway address used by client commands")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Optional config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "Env files to load before reading the environment (default .env)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthcheckCmd)
	rootCmd.AddCommand(executeCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves the gateway configuration from the persistent flags.
func loadConfig() (*config.Config, error) {
	return config.Load(configFile, envFiles...)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
