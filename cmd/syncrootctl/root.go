package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fruitsalade/syncroot/internal/cfapi"
	"github.com/fruitsalade/syncroot/internal/config"
	"github.com/fruitsalade/syncroot/internal/emulated"
	"github.com/fruitsalade/syncroot/internal/logging"
	"github.com/fruitsalade/syncroot/internal/placeholder"
	"github.com/fruitsalade/syncroot/internal/retry"
	"github.com/fruitsalade/syncroot/internal/syncroot"
)

// version is set at build time via ldflags.
var version = "dev"

// Exit codes.
const (
	exitFailure    = 1
	exitValidation = 2
	exitConflict   = 3
)

// platform is what the commands need from a backend.
type platform interface {
	syncroot.Platform
	placeholder.Opener
	Close() error
}

// app carries the state of one invocation.
type app struct {
	configPath string
	verbose    bool

	cfg       *config.Config
	platform  platform
	registrar *syncroot.Registrar
}

// execute runs one CLI invocation and always releases the platform.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{}
	cmd := a.rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if cerr := a.teardown(); err == nil {
		err = cerr
	}
	return err
}

func (a *app) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "syncrootctl",
		Short:         "Register directories as cloud sync roots",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file path (TOML)")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newRegisterCmd(a))
	cmd.AddCommand(newUnregisterCmd(a))
	cmd.AddCommand(newStatusCmd(a))
	cmd.AddCommand(newOpenCmd(a))
	cmd.AddCommand(newRunCmd(a))
	cmd.AddCommand(newServiceCmd())

	return cmd
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg

	level := cfg.LogLevel
	if a.verbose {
		level = "debug"
	}
	if err := logging.Init(logging.Config{Level: level, Format: cfg.LogFormat, OutputPath: "stderr"}); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	p, err := openPlatform(ctx, cfg, logging.L())
	if err != nil {
		return err
	}
	a.platform = p
	a.registrar = syncroot.NewRegistrar(p, syncroot.WithLogger(logging.L()))

	logging.L().Debug("platform ready", zap.String("platform", cfg.ResolvedPlatform()))
	return nil
}

func (a *app) teardown() error {
	if a.platform == nil {
		return nil
	}
	err := a.platform.Close()
	a.platform = nil
	return err
}

func openPlatform(ctx context.Context, cfg *config.Config, logger *zap.Logger) (platform, error) {
	switch cfg.ResolvedPlatform() {
	case config.PlatformCfAPI:
		p, err := cfapi.New(cfapi.Config{ShimLibrary: cfg.ShimLibrary, Logger: logger})
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.PlatformEmulated:
		p, err := emulated.Open(ctx, cfg.StatePath, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown platform %q", cfg.Platform)
	}
}

// retryConfig turns the configured bounds into a retry.Config that logs
// each transient failure.
func (a *app) retryConfig(ctx context.Context) retry.Config {
	rc := retry.DefaultConfig()
	rc.MaxAttempts = a.cfg.Retry.MaxAttempts
	if a.cfg.Retry.InitialWait.Duration > 0 {
		rc.InitialWait = a.cfg.Retry.InitialWait.Duration
	}
	if a.cfg.Retry.MaxWait.Duration > 0 {
		rc.MaxWait = a.cfg.Retry.MaxWait.Duration
	}
	rc.OnRetry = func(attempt int, wait time.Duration, err error) {
		logging.WithContext(ctx).Warn("transient failure, retrying",
			logging.Int("attempt", attempt),
			logging.Duration("wait", wait),
			logging.Err(err),
		)
	}
	return rc
}

// withTransientRetry retries fn only for failures the registrar classifies
// as transient.
func (a *app) withTransientRetry(ctx context.Context, fn func() error) error {
	return retry.Do(ctx, a.retryConfig(ctx), func() error {
		err := fn()
		if syncroot.IsTransient(err) {
			return retry.Retryable(err)
		}
		return err
	})
}

func exitCode(err error) int {
	switch {
	case syncroot.IsValidation(err):
		return exitValidation
	case errors.Is(err, syncroot.ErrAlreadyRegistered):
		return exitConflict
	default:
		return exitFailure
	}
}
