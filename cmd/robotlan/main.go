// robotlan - LAN connection manager for cleaning robots
//
// This is the main entry point for the robotlan service and its tools.
// robotlan keeps one session per registered robot, republishes robot state
// over MQTT and a REST/WebSocket API, and records telemetry.
//
// Subcommands:
//   - serve: run the service
//   - discover: list robots answering on the local network
//   - verify: check credentials and detect a robot's product family
//   - version: print build information
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// defaultEnvFile holds robot passwords and tokens kept out of the YAML file.
const defaultEnvFile = ".env"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "robotlan",
		Short:         "LAN connection manager for cleaning robots",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadEnvFile(envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", defaultEnvFile, "Environment file loaded before configuration")

	root.AddCommand(
		newServeCmd(),
		newDiscoverCmd(),
		newVerifyCmd(),
		newVersionCmd(),
	)
	return root
}

// loadEnvFile loads path into the environment. A missing file is not an
// error; variables already set are not overwritten.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "robotlan %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// envOr returns the environment variable key, or def when unset.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
