// Navajo-server is a standalone HTTP(S) and WebSocket server built on the
// libnavajo engine.
//
// It serves local directories, an embedded demo page and echo WebSocket
// endpoints, with optional TLS, client certificates, Basic and PAM
// authentication, Prometheus metrics and mDNS advertisement.
//
// Usage:
//
//	navajo-server serve [flags]
//
// See 'navajo-server --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mingodad/libnavajo/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var configPath string

var rootCmd = &cobra.Command{
	Use:   "navajo-server",
	Short: "libnavajo HTTP(S) and WebSocket server",
	Long: `A standalone HTTP(S) and WebSocket server built on the libnavajo engine.

Configuration is read from a YAML file (see 'navajo-server config path') and
NAVAJO_ environment variables; command-line flags override both.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (default: user config directory)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(certCmd)
	rootCmd.AddCommand(hashPasswordCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("navajo-server %s\n", version.Full())
	},
}
