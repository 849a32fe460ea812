package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fruitsalade/syncroot/internal/cancel"
	"github.com/fruitsalade/syncroot/internal/logging"
	"github.com/fruitsalade/syncroot/internal/metrics"
	"github.com/fruitsalade/syncroot/internal/syncroot"
)

const shutdownTimeout = 5 * time.Second

func newRunCmd(a *app) *cobra.Command {
	var (
		f                rootFlags
		unregisterOnExit bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Register a sync root and hold it until interrupted",
		Long: `Registers the sync root (adopting an existing registration for the same
account), serves Prometheus metrics when metrics_addr is set, and waits for
SIGINT/SIGTERM. With --unregister-on-exit the root is removed on shutdown.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := f.registration()
			if err != nil {
				return err
			}
			ctx := logging.WithRoot(cmd.Context(), reg.Directory)
			log := logging.WithContext(ctx)

			err = a.withTransientRetry(ctx, func() error {
				return a.registrar.Register(ctx, a.cfg.ProviderOptions, reg)
			})
			var already *syncroot.AlreadyRegisteredError
			switch {
			case err == nil:
			case errors.As(err, &already) && already.AccountID == reg.AccountID:
				log.Info("sync root already registered for this account, adopting it")
			default:
				log.Error("register failed", logging.Err(err))
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Serving sync root %s\n", reg.Directory)

			runErr := a.serveUntilCancelled(ctx)

			if unregisterOnExit {
				if err := a.registrar.Unregister(context.WithoutCancel(ctx), reg.Directory); err != nil {
					log.Error("unregister on exit failed", logging.Err(err))
					return errors.Join(runErr, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Unregistered %s\n", reg.Directory)
			}
			return runErr
		},
	}
	f.bind(cmd)
	cmd.Flags().BoolVar(&unregisterOnExit, "unregister-on-exit", false, "remove the registration on shutdown")
	return cmd
}

// serveUntilCancelled blocks until a signal arrives or ctx ends. The wait
// is a suspension on the cancellation bridge, not a poll.
func (a *app) serveUntilCancelled(ctx context.Context) error {
	log := logging.WithContext(ctx)

	sigCtx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	sig, detach := cancel.FromContext(sigCtx)
	defer detach()
	aw := sig.Awaiter()

	var srv *http.Server
	if a.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv = &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	}

	// The group only ends early on a member failure; ctx cancellation
	// arrives through the signal so the server is always shut down.
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	if srv != nil {
		g.Go(func() error {
			log.Info("serving metrics", logging.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		if err := cancel.Await(gctx, aw); err != nil {
			// Another member failed first; its error is the one reported.
			return nil
		}
		log.Info("cancellation requested, shutting down")
		if srv == nil {
			return nil
		}
		shutdownCtx, cancelShutdown := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancelShutdown()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
