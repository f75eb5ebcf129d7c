package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bakkerme/salewatch/internal/config"
	"github.com/bakkerme/salewatch/internal/metrics"
	"github.com/bakkerme/salewatch/internal/observability/otelx"
	"github.com/bakkerme/salewatch/internal/runner"
	"github.com/bakkerme/salewatch/internal/runner/factory"
	"github.com/bakkerme/salewatch/internal/server"
	"github.com/bakkerme/salewatch/internal/trigger"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup always happens.
func run() int {
	if err := config.LoadDotEnv(); err != nil {
		log.Printf("failed to load .env: %v", err)
		return 1
	}
	env := config.LoadEnv()

	configPath := flag.String("config", env.ConfigPath, "path to watch document")
	runOnce := flag.Bool("run-once", env.RunOnce, "run once and exit")
	serve := flag.Bool("serve", false, "serve the HTTP trigger alongside the schedule")
	addr := flag.String("addr", env.ServerAddr, "HTTP listen address for -serve")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: env.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otelx.Init(ctx, logger, env.OTel)
	if err != nil {
		logger.Warn("otel_init_failed", "error", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	doc, err := config.LoadDocument(*configPath)
	if err != nil {
		logger.Error("watch_document_load_failed", "path", *configPath, "error", err)
		return 1
	}
	doc.Resolve(env)
	if err := doc.Validate(); err != nil {
		logger.Error("watch_document_invalid", "path", *configPath, "error", err)
		return 1
	}
	env.Trade.LogCredentials(logger)

	m := metrics.New()
	components, err := factory.New(logger, env, m).Build(ctx, doc)
	if err != nil {
		logger.Error("components_build_failed", "error", err)
		return 1
	}
	defer func() {
		if err := components.Close(); err != nil {
			logger.Error("close_failed", "error", err)
		}
	}()

	r := runner.New(logger, components.Reconciler, doc.Market,
		runner.WithPreflight(env.Trade.CheckCredentials),
		runner.WithObserver(m),
	)

	if *runOnce {
		result := r.RunOnce(ctx)
		logger.Info("run_once_finished", "message", result.Message)
		if !result.OK() {
			return 1
		}
		return 0
	}

	if err := r.Start(ctx, trigger.NewCron(doc.Schedule.Cron, doc.Schedule.Timezone)); err != nil {
		logger.Error("runner_start_failed", "error", err)
		return 1
	}
	logger.Info("schedule_started", "cron", doc.Schedule.Cron, "timezone", doc.Schedule.Timezone, "market", doc.Market)

	if *serve {
		srv := server.New(r, m.Handler(), logger)
		go func() {
			if err := srv.Start(*addr); err != nil {
				logger.Error("http_server_failed", "error", err)
				stop()
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("http_server_shutdown_failed", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting_down")
	r.Wait()
	return 0
}
