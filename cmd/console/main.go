// Package main is the entry point for the Bazaar admin console server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pitabwire/bazaar/internal/config"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

// exitCode carries a process exit status out of a cobra command.
type exitCode int

func (c exitCode) Error() string { return fmt.Sprintf("exit status %d", int(c)) }

func run() int {
	err := newRootCmd().Execute()
	if err == nil {
		return 0
	}
	if code, ok := err.(exitCode); ok {
		return int(code)
	}
	return 1
}

type rootOptions struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "console",
		Short:         "Bazaar admin console server",
		Long:          "Serves the Bazaar marketplace admin console: session-backed sign-in, resource views, confirmations and live invalidation events.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnvFile(opts.envFile); err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
				return exitCode(1)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to configuration file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the configuration")

	root.AddCommand(newServeCmd(opts), newCheckConfigCmd(opts), newVersionCmd())
	return root
}

func newCheckConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration file and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "configuration error: %v\n", err)
				return exitCode(1)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "configuration ok: %s\n", opts.configPath)
			fmt.Fprintf(out, "  backend:       %s\n", cfg.Backend.BaseURL)
			fmt.Fprintf(out, "  port:          %d\n", cfg.Server.Port)
			fmt.Fprintf(out, "  sessions:      %s\n", storeDriver(cfg.Session.Store.Driver))
			fmt.Fprintf(out, "  query cache:   %s\n", storeDriver(cfg.Cache.Store.Driver))
			fmt.Fprintf(out, "  confirmations: %s\n", storeDriver(cfg.Confirmations.Store.Driver))
			if cfg.Audit.Enabled {
				fmt.Fprintf(out, "  audit:         %s\n", storeDriver(cfg.Audit.Store.Driver))
			} else {
				fmt.Fprintln(out, "  audit:         disabled")
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "console %s (%s)\n", version, commit)
		},
	}
}

func storeDriver(d string) string {
	if d == "" {
		return config.DriverMemory
	}
	return d
}
