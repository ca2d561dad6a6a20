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

	"github.com/joho/godotenv"
	"github.com/maltedev/refurb-crawler/internal/api"
	"github.com/maltedev/refurb-crawler/internal/app"
	"github.com/maltedev/refurb-crawler/internal/config"
	"github.com/maltedev/refurb-crawler/internal/jobs"
	"github.com/maltedev/refurb-crawler/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Init(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	stack, err := app.Build(ctx, cfg, reg, log)
	if err != nil {
		log.Error("failed to start crawl stack", "error", err)
		os.Exit(1)
	}
	defer stack.Close()

	stack.StartRelay(ctx)

	manager := jobs.NewManager(stack.Runner, jobs.Defaults{
		Seeds:  config.DefaultSeeds(),
		Limits: stack.Runner.Limits(),
	}, log)
	defer manager.Close()

	go manager.StartWorker(ctx)

	// Typed nils must not reach the optional handler dependencies.
	var records api.RecordLister
	if stack.Records != nil {
		records = stack.Records
	}
	var events api.EventStats
	if stack.Relay != nil {
		events = stack.Relay
	}

	handlers := api.NewHandlers(manager, records, events, log)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(handlers, stack.Metrics, reg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	}()

	log.Info("server starting", "port", cfg.Server.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server failed", "error", err)
		cancel()
		return
	}

	log.Info("server stopped")
}
