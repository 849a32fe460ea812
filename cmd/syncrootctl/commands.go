package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/fruitsalade/syncroot/internal/logging"
	"github.com/fruitsalade/syncroot/internal/placeholder"
	"github.com/fruitsalade/syncroot/internal/syncroot"
)

// rootFlags are shared by register and run.
type rootFlags struct {
	name    string
	account string
	dir     string
	policy  string
}

func (f *rootFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "display name of the sync root")
	cmd.Flags().StringVar(&f.account, "account", "", "account id the root belongs to")
	cmd.Flags().StringVar(&f.dir, "dir", "", "absolute directory to register")
	cmd.Flags().StringVar(&f.policy, "policy", "ondemand", "population policy: ondemand or full")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("account")
	cmd.MarkFlagRequired("dir")
}

func (f *rootFlags) registration() (syncroot.Registration, error) {
	policy, err := syncroot.ParsePopulationPolicy(f.policy)
	if err != nil {
		return syncroot.Registration{}, err
	}
	return syncroot.Registration{
		Name:      f.name,
		AccountID: f.account,
		Directory: f.dir,
		Policy:    policy,
	}, nil
}

func newRegisterCmd(a *app) *cobra.Command {
	var f rootFlags
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a directory as a sync root",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := f.registration()
			if err != nil {
				return err
			}
			ctx := logging.WithRoot(cmd.Context(), reg.Directory)

			err = a.withTransientRetry(ctx, func() error {
				return a.registrar.Register(ctx, a.cfg.ProviderOptions, reg)
			})
			if err != nil {
				logging.WithContext(ctx).Error("register failed", logging.Err(err))
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s, policy %s)\n", reg.Directory, reg.Name, reg.Policy)
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func newUnregisterCmd(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "unregister",
		Short: "Remove a sync root registration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := logging.WithRoot(cmd.Context(), dir)
			err := a.withTransientRetry(ctx, func() error {
				return a.registrar.Unregister(ctx, dir)
			})
			if err != nil {
				logging.WithContext(ctx).Error("unregister failed", logging.Err(err))
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Unregistered %s\n", dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "sync root directory")
	cmd.MarkFlagRequired("dir")
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the registration state of a directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			state, err := a.registrar.State(cmd.Context(), dir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", dir, state)
			if state != syncroot.StateRegistered {
				return nil
			}

			info, ok, err := a.registrar.Lookup(cmd.Context(), dir)
			if err != nil || !ok {
				return err
			}
			if info.Name != "" {
				fmt.Fprintf(out, "  name:     %s\n", info.Name)
			}
			if info.AccountID != "" {
				fmt.Fprintf(out, "  account:  %s\n", info.AccountID)
			}
			if info.ProviderID != "" {
				fmt.Fprintf(out, "  provider: %s\n", info.ProviderID)
				fmt.Fprintf(out, "  policy:   %s\n", info.Policy)
			}
			if !info.RegisteredAt.IsZero() {
				fmt.Fprintf(out, "  since:    %s\n", info.RegisteredAt.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory to inspect")
	cmd.MarkFlagRequired("dir")
	return cmd
}

func newOpenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open PATH...",
		Short: "Open placeholders and report per-file handle failures",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			var failed []string
			for _, path := range args {
				abs, err := filepath.Abs(path)
				if err != nil {
					return err
				}
				h, err := a.platform.OpenPlaceholder(abs)
				var invalid *placeholder.InvalidHandleError
				switch {
				case errors.As(err, &invalid):
					logging.L().Warn("invalid placeholder handle", logging.Any("data", invalid.Data()), logging.Err(err))
					failed = append(failed, invalid.Path)
					continue
				case err != nil:
					return err
				}
				fmt.Fprintf(out, "%s: handle 0x%x\n", h.Path, h.Raw)
				if err := a.platform.ClosePlaceholder(h); err != nil {
					return err
				}
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d of %d placeholders could not be opened: %v", len(failed), len(args), failed)
			}
			return nil
		},
	}
	return cmd
}
