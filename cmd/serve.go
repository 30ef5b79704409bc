package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/config"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/httpapi"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/pkg/log"
)

const shutdownTimeout = 10 * time.Second

type scheduler interface {
	Schedule() error
}

type cronEngine interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run scheduled content syncs",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().String("addr", "", "listen address")
	_ = a.v.BindPFlag("http.addr", cmd.Flags().Lookup("addr"))

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := a.loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	}
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	library, err := openLibrary(ctx, cfg)
	if err != nil {
		return err
	}
	defer library.Close()

	sc, err := buildSync(ctx, cfg)
	if err != nil {
		return err
	}
	defer sc.close()

	settingsStore, err := config.NewRuntimeSettingsStore(config.RuntimeSettingsFilePath(), cfg.RuntimeSettings())
	if err != nil {
		return err
	}

	sc.queue.Start(sc.service.Execute)
	defer sc.queue.Stop()

	srv := httpapi.NewServer(library, sc.queue,
		httpapi.WithSync(sc.service),
		httpapi.WithReports(sc.state),
		httpapi.WithRuntimeSettingsStore(settingsStore),
		httpapi.WithRuntimeSettingsApplier(sc.service.ApplyRuntimeSettings),
	)
	return runWithComponents(ctx, cfg, sc.service, sc.cron, srv)
}

// runWithComponents schedules the sync, starts cron and the HTTP server, and
// blocks until ctx is done or the server fails.
func runWithComponents(ctx context.Context, cfg *config.Config, sched scheduler, engine cronEngine, srv httpServer) error {
	if err := sched.Schedule(); err != nil {
		return err
	}
	engine.Start()
	defer engine.Stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening on %s", cfg.HTTP.Addr)
		errCh <- srv.ListenAndServe(cfg.HTTP.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
