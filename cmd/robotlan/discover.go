package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/robotlan-core/internal/discovery"
)

func newDiscoverCmd() *cobra.Command {
	var (
		timeout time.Duration
		asJSON  bool
		port    int
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Discover robots on the local network",
		Long: `Broadcast a discovery query on every IPv4 interface and list each
robot that answers.

Examples:
  # Five second sweep, table output
  robotlan discover

  # Longer sweep, machine-readable output
  robotlan discover --timeout 10s --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := discovery.DefaultConfig()
			cfg.Port = port
			cfg.SweepDuration = timeout
			cfg.ReceiveTimeout = timeout + time.Second

			robots, err := discovery.New(cfg).Sweep(cmd.Context())
			if err != nil {
				return fmt.Errorf("discovery: %w", err)
			}
			if asJSON {
				return writeRobotsJSON(cmd.OutOrStdout(), robots)
			}
			return writeRobotsTable(cmd.OutOrStdout(), robots)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "How long to keep broadcasting")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	cmd.Flags().IntVar(&port, "port", discovery.DefaultPort, "Discovery UDP port")
	return cmd
}

func writeRobotsJSON(w io.Writer, robots []discovery.Robot) error {
	if robots == nil {
		robots = []discovery.Robot{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(robots)
}

func writeRobotsTable(w io.Writer, robots []discovery.Robot) error {
	if len(robots) == 0 {
		_, err := fmt.Fprintln(w, "No robots found")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tADDRESS\tSKU\tSOFTWARE")
	for _, r := range robots {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Address, r.SKU, r.SoftwareVersion)
	}
	return tw.Flush()
}
