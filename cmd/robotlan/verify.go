package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/robotlan-core/internal/session"
)

func newVerifyCmd() *cobra.Command {
	var (
		address  string
		robotID  string
		password string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a robot's credentials and detect its product family",
		Long: `Connect to a robot once, wait for its first state report and print
the detected product family.

The password may also be given as ROBOTLAN_VERIFY_PASSWORD.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				return errors.New("--password is required")
			}

			timings := session.DefaultTimings()
			if timeout > 0 {
				timings.VerifyTimeout = timeout
			}
			v := session.Verifier{Dialer: session.MQTTDialer{}, Timings: timings}

			family, err := v.Verify(cmd.Context(), address, robotID, password)
			if err != nil {
				var ce *session.ConnectError
				if errors.As(err, &ce) {
					return fmt.Errorf("%s: %w", ce.FriendlyMessage(), err)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s at %s is a %s robot\n", robotID, address, family)
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "Robot IP address")
	cmd.Flags().StringVar(&robotID, "id", "", "Robot id (BLID)")
	cmd.Flags().StringVar(&password, "password", envOr("ROBOTLAN_VERIFY_PASSWORD", ""), "Robot password")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Overall timeout (default 10s)")
	cmd.MarkFlagRequired("address") //nolint:errcheck // Flag is defined above
	cmd.MarkFlagRequired("id")      //nolint:errcheck // Flag is defined above
	return cmd
}
