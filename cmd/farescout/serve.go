package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/farescout/farescout/internal/api"
	"github.com/farescout/farescout/internal/config"
	"github.com/farescout/farescout/pkg/cache"
	"github.com/farescout/farescout/pkg/fetch"
	"github.com/farescout/farescout/pkg/logging"
	"github.com/farescout/farescout/pkg/progress"
	"github.com/farescout/farescout/pkg/queue"
	"github.com/farescout/farescout/pkg/scan"
	"github.com/farescout/farescout/pkg/station"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the fare scanner HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				var err error
				cfg, err = config.Load(configPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}

			return serve(cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level (overrides config)")
	return cmd
}

func serve(cfg config.Root) error {
	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.LogLevel(cfg.Log.Level)
	logCfg.Pretty = cfg.Log.Pretty
	logging.Setup(logCfg)

	logger := logging.NewLogger("serve")

	if cfg.Upstream.BaseURL == "" {
		return errors.New("upstream base URL not configured (set upstream.base_url or FARESCOUT_UPSTREAM_URL)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := cache.NewStore(cache.Config{
		Capacity:      cfg.Cache.Capacity,
		ResultTTL:     time.Duration(cfg.Cache.ResultTTLMinutes) * time.Minute,
		ErrorTTL:      time.Duration(cfg.Cache.ErrorTTLMinutes) * time.Minute,
		SweepInterval: time.Duration(cfg.Cache.SweepIntervalSec) * time.Second,
	}, logging.NewLogger("cache"))
	go store.Sweep(ctx)

	q := queue.New(queue.Config{
		Pacer: queue.PacerConfig{
			InitialInterval: time.Duration(cfg.Queue.InitialIntervalMs) * time.Millisecond,
			FloorInterval:   time.Duration(cfg.Queue.FloorIntervalMs) * time.Millisecond,
			CeilingInterval: time.Duration(cfg.Queue.CeilingIntervalMs) * time.Millisecond,
			IncreaseFactor:  cfg.Queue.IncreaseFactor,
			DecreaseFactor:  cfg.Queue.DecreaseFactor,
			SuccessStreak:   cfg.Queue.SuccessStreak,
		},
		BackoffBase: time.Duration(cfg.Queue.BackoffBaseMs) * time.Millisecond,
		BackoffCap:  time.Duration(cfg.Queue.BackoffCapMs) * time.Millisecond,
		MaxRetries:  cfg.Queue.MaxRetries,
	}, logging.NewLogger("queue"))
	q.Start(ctx)

	tracker := progress.NewTracker(progress.Config{
		Alpha:            cfg.Progress.Alpha,
		SeedUncachedMs:   cfg.Progress.SeedUncachedMs,
		SeedCachedMs:     cfg.Progress.SeedCachedMs,
		InactivityWindow: time.Duration(cfg.Progress.InactivityMin) * time.Minute,
		GCInterval:       time.Duration(cfg.Progress.GCIntervalMin) * time.Minute,
	}, logging.NewLogger("progress"))
	go tracker.GC(ctx)

	upstream, err := fetch.NewHTTPUpstream(fetch.HTTPConfig{
		BaseURL:   cfg.Upstream.BaseURL,
		Timeout:   cfg.UpstreamTimeout(),
		UserAgent: cfg.Upstream.UserAgent,
	}, logging.NewLogger("upstream"))
	if err != nil {
		return fmt.Errorf("init upstream: %w", err)
	}

	fetcher := fetch.NewFetcher(store, q, upstream, logging.NewLogger("fetch"))
	stations := station.DefaultDirectory()

	orchestrator := scan.New(scan.Config{MaxBatchDays: cfg.Scan.MaxBatchDays},
		fetcher, store, q, tracker, stations, logging.NewLogger("scan"))

	handler := api.NewHandler(orchestrator, tracker, logging.NewLogger("api"))
	router := api.NewRouter(handler, logging.NewLogger("http"))
	srv := api.NewServer(api.ServerConfig{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}, router)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.Server.Addr).
			Str("upstream", cfg.Upstream.BaseURL).
			Msg("Server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info().Msg("Server stopped")
	return nil
}
