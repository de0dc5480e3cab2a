// Package commands implements idhostd's CLI: init, migrate, start, and
// version, wired together with cobra.
package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time via -ldflags.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "idhostd",
	Short: "idhostd - an identity-hosting node",
	Long: `idhostd hosts identities, answers directory searches, relays
application-service calls, and mirrors a directory oracle's neighborhood
state over a small framed TCP protocol.

Use "idhostd [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/idhost/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(startCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path from the persistent --config
// flag, empty when the caller wants the default location.
func GetConfigFile() string {
	return cfgFile
}

// Exit prints an error to stderr and exits with a non-zero status,
// for startup-failure paths
// that fail before a RunE return would suffice.
func Exit(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
	os.Exit(1)
}
