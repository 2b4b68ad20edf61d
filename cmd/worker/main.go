// Command worker runs the scheduled refresh and summary jobs and relays
// critical transitions from Kafka to WhatsApp.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coprede/sir-dashboard/internal/app"
	"github.com/coprede/sir-dashboard/internal/config"
	"github.com/coprede/sir-dashboard/internal/infrastructure/messaging/kafka"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	httpserver "github.com/coprede/sir-dashboard/internal/interfaces/http"
	"github.com/coprede/sir-dashboard/internal/interfaces/http/handlers"
	"github.com/coprede/sir-dashboard/internal/interfaces/http/middleware"
	"github.com/coprede/sir-dashboard/internal/interfaces/scheduler"
)

var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to configuration file (environment only when empty)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the configuration")
	healthAddr := flag.String("health-addr", ":9091", "listen address of the health and metrics endpoints; empty disables them")
	flag.Parse()

	if err := run(*configPath, *envFile, *healthAddr); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, envFile, healthAddr string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()
	logger = logger.Named("worker")

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

	refresher, err := infra.NewRefresher()
	if err != nil {
		return err
	}
	query := infra.NewQueryService()

	sched := scheduler.New(infra.Location(), logger, infra.Reporter)
	if err := sched.Add(scheduler.RefreshJob(cfg.Scheduler.RefreshSpec, cfg.Scheduler.LockTTL, refresher, logger)); err != nil {
		return err
	}

	if cfg.Notify.Enabled {
		summary, err := infra.NewSummaryService(query)
		if err != nil {
			return err
		}
		if err := sched.Add(scheduler.SummaryJob(cfg.Scheduler.SummarySpec, summary)); err != nil {
			return err
		}
	}

	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled && cfg.Notify.Enabled {
		relay, err := infra.NewAlertRelay()
		if err != nil {
			return err
		}
		consumer, err = kafka.NewConsumer(cfg.Kafka.Consumer, logger)
		if err != nil {
			return err
		}
		consumer.Subscribe(kafka.TopicCriticalTransitions, kafka.TransitionHandler(relay.Handle, logger))
		if err := consumer.Start(ctx); err != nil {
			return err
		}
		defer consumer.Close()
	}

	var srv *httpserver.Server
	if healthAddr != "" {
		srv = httpserver.NewServer(httpserver.ServerConfig{Addr: healthAddr, ShutdownTimeout: cfg.Server.ShutdownTimeout},
			httpserver.NewRouter(httpserver.RouterConfig{
				HealthHandler:    handlers.NewHealthHandler(Version, infra.HealthCheckers(nil)...),
				Logging:          middleware.DefaultLoggingConfig(),
				Logger:           logger,
				Reporter:         infra.Reporter,
				MetricsCollector: infra.Collector,
			}), logger)
		go func() {
			if err := srv.ListenAndServe(); err != nil {
				logger.Error("health server failed", logging.Err(err))
			}
		}()
	}

	sched.Start()
	go func() {
		if err := sched.RunNow(scheduler.JobRefresh); err != nil {
			logger.Warn("initial refresh not run", logging.Err(err))
		}
	}()
	logger.Info("worker started",
		logging.String("version", Version),
		logging.Any("jobs", sched.Entries()),
		logging.Bool("alerts", consumer != nil))

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Warn("jobs still running at shutdown", logging.Err(err))
	}
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("health server shutdown failed", logging.Err(err))
		}
	}
	return nil
}
