package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the Windows service that hosts syncrootctl run",
		// Service management does not touch the sync root platform.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "install -- COMMAND [FLAGS]",
		Short: "Install the service; arguments after -- are passed to it on start",
		Example: "  syncrootctl service install -- run --name Seki --account acct-1 " +
			`--dir C:\Users\u\SyncRoot --unregister-on-exit`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := installService(args); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Service %q installed. Start with: sc start %s\n", serviceName, serviceName)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "uninstall",
		Short: "Remove the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := uninstallService(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Service %q uninstalled.\n", serviceName)
			return nil
		},
	})
	return cmd
}
