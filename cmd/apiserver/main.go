// Command apiserver serves the dashboard API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coprede/sir-dashboard/internal/app"
	"github.com/coprede/sir-dashboard/internal/config"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	httpserver "github.com/coprede/sir-dashboard/internal/interfaces/http"
	"github.com/coprede/sir-dashboard/internal/interfaces/http/handlers"
	"github.com/coprede/sir-dashboard/internal/interfaces/http/middleware"
)

// Version is injected at build time.
var Version = "dev"

const initialRefreshTimeout = time.Minute

func main() {
	configPath := flag.String("config", "", "path to configuration file (environment only when empty)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the configuration")
	addr := flag.String("addr", "", "listen address (overrides server.addr)")
	flag.Parse()

	if err := run(*configPath, *envFile, *addr); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, envFile, addr string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()
	logger = logger.Named("apiserver")

	if configPath != "" {
		if err := config.Watch(configPath, logger, config.LevelReloader(logger)); err != nil {
			logger.Warn("config watch disabled", logging.Err(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	query := infra.NewQueryService()

	var refresher handlers.Refresher
	if cfg.Server.EnableRefresh {
		r, err := infra.NewRefresher()
		if err != nil {
			return err
		}
		refresher = r
		go func() {
			defer infra.Reporter.Recover("apiserver.initial_refresh")
			rctx, cancel := context.WithTimeout(ctx, initialRefreshTimeout)
			defer cancel()
			if _, err := r.Refresh(rctx); err != nil {
				logger.Warn("initial refresh failed", logging.Err(err))
			}
		}()
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.Server.CORSOrigins

	router := httpserver.NewRouter(httpserver.RouterConfig{
		DashboardHandler: handlers.NewDashboardHandler(query, refresher, logger),
		HealthHandler:    handlers.NewHealthHandler(Version, infra.HealthCheckers(query)...),
		CORS:             &cors,
		Auth:             middleware.NewTokenAuth(cfg.Server.APITokens, logger),
		Logging:          middleware.DefaultLoggingConfig(),
		RefreshLimiter:   middleware.NewKeyedLimiter(middleware.RateLimitConfig{}),
		RequestTimeout:   cfg.Server.RequestTimeout,
		Logger:           logger,
		Reporter:         infra.Reporter,
		Metrics:          infra.Metrics,
		MetricsCollector: infra.Collector,
	})

	srv := httpserver.NewServer(httpserver.ServerConfig{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, router, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	logger.Info("starting dashboard API", logging.String("version", Version), logging.String("addr", cfg.Server.Addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	return srv.Shutdown(context.Background())
}
