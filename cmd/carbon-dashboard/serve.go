package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ecoledger/carbon-dashboard/internal/scheduler"
	"github.com/ecoledger/carbon-dashboard/internal/web"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the report scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen != "" {
				opts.cfg.Listen = listen
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	return cmd
}

// runServe runs until ctx is cancelled, then shuts the server down.
func runServe(ctx context.Context, opts *rootOptions) error {
	logger := opts.logger
	a, err := openApp(opts.cfg, logger, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error().Err(err).Msg("close failed")
		}
	}()

	srv := web.New(web.Options{
		Addr:      opts.cfg.Listen,
		Records:   a.records,
		Schedules: a.schedules,
		Metrics:   a.metrics,
		Publisher: a.publisher,
		CORS:      opts.cfg.CORS,
	}, logger)

	ln, err := net.Listen("tcp", opts.cfg.Listen)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if opts.cfg.Scheduler.Enabled {
		sched := scheduler.New(a.schedules, a.records, a.sender(), a.metrics, opts.cfg.Scheduler.Interval, logger)
		g.Go(func() error { return sched.Run(gctx) })
	}

	return g.Wait()
}
