// Command clicast runs the PTY-backed terminal-streaming server
// (spec.md §1). Entry point grounded on ehrlich-b-wingthing/cmd/wt's
// cobra root + serve subcommand shape.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"clicast/config"
	"clicast/server"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	serve := serveCmd()

	cmd := &cobra.Command{
		Use:   "clicast",
		Short: "PTY-backed terminal streaming server",
		// serve is the default action (spec.md §2): bare `clicast` runs
		// the server using serve's own flags and defaults.
		RunE: serve.RunE,
	}
	cmd.Flags().AddFlagSet(serve.Flags())
	cmd.AddCommand(serve)
	cmd.AddCommand(versionCmd())
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the clicast version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var configPath string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the clicast server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if port != 0 {
				cfg.Port = port
			}

			watcher, err := config.NewWatcher(cfg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "config hot-reload disabled: %v\n", err)
				watcher = nil
			}

			srv := server.New(cfg, watcher)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to the JSON config file (default: $CLICAST_CONFIG or ./clicast.config.json)")
	cmd.Flags().IntVar(&port, "port", 0, "override the configured listen port")
	return cmd
}
