package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mingodad/libnavajo/internal/auth"
	"github.com/mingodad/libnavajo/internal/config"
	"github.com/mingodad/libnavajo/internal/discovery"
	"github.com/mingodad/libnavajo/internal/tlsconf"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Example: `  # Write to the user config directory
  navajo-server config init

  # Write to a specific file, replacing it
  navajo-server config init --config ./navajo.yaml --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.CreateDefaultConfig(configPath, configForce)
		if err != nil {
			return err
		}
		fmt.Printf("Configuration written to %s\n", path)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the default configuration file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print a summary of the configuration after applying the file and NAVAJO_
environment variables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "listen:      %s:%d (%s)\n", cfg.Network.Host, cfg.Network.Port, cfg.Scheme())
		fmt.Fprintf(out, "pool size:   %d\n", cfg.Pool.Size)
		fmt.Fprintf(out, "timeouts:    receive %s, write %s, handshake %s\n", cfg.Timeouts.Receive, cfg.Timeouts.Write, cfg.Timeouts.Handshake)
		fmt.Fprintf(out, "sessions:    %s\n", cfg.Session.Lifetime)
		if len(cfg.Network.Allow) > 0 {
			fmt.Fprintf(out, "allowed:     %s\n", strings.Join(cfg.Network.Allow, ", "))
		}
		fmt.Fprintf(out, "logins:      %d\n", len(cfg.Auth.Logins))
		for _, r := range cfg.Repositories {
			fmt.Fprintf(out, "repository:  /%s -> %s\n", r.Alias, r.Dir)
		}
		for _, p := range cfg.WebSocketPaths() {
			fmt.Fprintf(out, "websocket:   %s\n", p)
		}
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configShowCmd)
}

var (
	certOut   string
	certKey   string
	certHosts []string
	certCN    string
	certDays  int
	certCA    bool
)

var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "Certificate utilities",
}

var certGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a self-signed certificate",
	Example: `  # Certificate for local development
  navajo-server cert generate --out server.pem --key server.key

  # Certificate for a named host
  navajo-server cert generate --cn example.lan --host example.lan --host 192.168.1.10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		params := tlsconf.DefaultCertParams()
		if certCN != "" {
			params.CommonName = certCN
		}
		if len(certHosts) > 0 {
			params.Hosts = certHosts
		}
		params.ValidDays = certDays
		if certCA {
			params.Usage = tlsconf.UsageCA
		}

		issued, err := tlsconf.Generate(params, nil)
		if err != nil {
			return err
		}
		if err := issued.WriteFiles(certOut, certKey); err != nil {
			return err
		}
		fmt.Printf("Certificate: %s\nPrivate key: %s\nExpires:     %s\n",
			certOut, certKey, issued.Certificate.NotAfter.Format(time.RFC3339))
		return nil
	},
}

func init() {
	certGenerateCmd.Flags().StringVar(&certOut, "out", "server.pem", "Certificate output file")
	certGenerateCmd.Flags().StringVar(&certKey, "key", "server.key", "Private key output file")
	certGenerateCmd.Flags().StringArrayVar(&certHosts, "host", nil, "DNS name or IP address (repeatable)")
	certGenerateCmd.Flags().StringVar(&certCN, "cn", "", "Common name (default localhost)")
	certGenerateCmd.Flags().IntVar(&certDays, "days", 365, "Validity in days")
	certGenerateCmd.Flags().BoolVar(&certCA, "ca", false, "Generate a CA certificate for signing client certificates")
	certCmd.AddCommand(certGenerateCmd)
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [user]",
	Short: "Hash a password for the auth.logins list",
	Long: `Read a password from the terminal and print an auth.logins entry with
its Argon2id hash.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return fmt.Errorf("hash-password must be run from a terminal")
		}
		fmt.Fprint(os.Stderr, "Password: ")
		password, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		if len(password) == 0 {
			return fmt.Errorf("empty password")
		}

		hash, err := auth.HashPassword(string(password))
		if err != nil {
			return err
		}
		if len(args) == 1 {
			fmt.Printf("%s:%s\n", args[0], hash)
		} else {
			fmt.Println(hash)
		}
		return nil
	},
}

var (
	discoverTimeout int
	discoverName    string
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find servers advertised on the local network",
	Long: `Browse mDNS for servers started with discovery.enabled and print their
addresses.`,
	Example: `  # Browse for 5 seconds (default)
  navajo-server discover

  # Look for a single instance
  navajo-server discover --name lab`,
	RunE: func(cmd *cobra.Command, args []string) error {
		browser := discovery.NewBrowser()
		browser.Timeout = time.Duration(discoverTimeout) * time.Second
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		if discoverName != "" {
			instance, err := browser.Find(ctx, discoverName)
			if err != nil {
				return err
			}
			fmt.Println(instance.BaseURL())
			return nil
		}

		fmt.Printf("Browsing for servers (timeout: %ds)...\n\n", discoverTimeout)
		instances, err := browser.Browse(ctx)
		if err != nil {
			return fmt.Errorf("browse failed: %w", err)
		}
		if len(instances) == 0 {
			fmt.Println("No servers found.")
			return nil
		}
		for i, in := range instances {
			fmt.Printf("%d. %s\n", i+1, in.Name)
			fmt.Printf("   URL:      %s\n", in.BaseURL())
			if in.Hostname != "" {
				fmt.Printf("   Host:     %s\n", in.Hostname)
			}
			if len(in.Metadata) > 0 {
				fmt.Printf("   Metadata: %v\n", in.Metadata)
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	discoverCmd.Flags().IntVar(&discoverTimeout, "timeout", 5, "Browse timeout in seconds")
	discoverCmd.Flags().StringVar(&discoverName, "name", "", "Instance name to look up")
}
