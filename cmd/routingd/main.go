// routingd serves the intelligent ticket routing engine: HTTP API, broker
// consumers, and the classify-dedup-route pipeline.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nabusboi/smart-support-routing/pkg/api"
	"github.com/nabusboi/smart-support-routing/pkg/breaker"
	"github.com/nabusboi/smart-support-routing/pkg/broker"
	"github.com/nabusboi/smart-support-routing/pkg/classifier"
	"github.com/nabusboi/smart-support-routing/pkg/clock"
	"github.com/nabusboi/smart-support-routing/pkg/config"
	"github.com/nabusboi/smart-support-routing/pkg/dedup"
	"github.com/nabusboi/smart-support-routing/pkg/embeddings"
	"github.com/nabusboi/smart-support-routing/pkg/notify"
	"github.com/nabusboi/smart-support-routing/pkg/pqueue"
	"github.com/nabusboi/smart-support-routing/pkg/routing"
	"github.com/nabusboi/smart-support-routing/pkg/tickets"
	"github.com/nabusboi/smart-support-routing/pkg/version"
	"github.com/nabusboi/smart-support-routing/pkg/worker"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configPath := flag.String("config",
		getEnv("CONFIG_PATH", "./deploy/config.yaml"),
		"Path to configuration file")
	flag.Parse()

	// Load .env before config so its values participate in env overrides.
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file, continuing with existing environment", "error", err)
	}

	slog.Info("Starting routingd",
		"version", version.Full(),
		"config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	clk := clock.System()

	// Core state. Everything is in-memory except the broker queues.
	store := tickets.NewStore(clk)
	registry := routing.NewRegistry(clk)
	queue := pqueue.New()
	coordinator := routing.NewCoordinator(cfg.Routing, registry, queue)

	embedder := embeddings.NewHashing()
	cls := classifier.NewFailover(
		classifier.NewSemantic(embedder),
		breaker.New("classifier", cfg.Breaker, clk),
	)
	deduplicator := dedup.New(embedder, cfg.Dedup, clk)

	dispatcher := notify.NewDispatcher(
		notify.NewWebhook(cfg.Webhooks),
		cfg.Routing.HighUrgencyThreshold,
		cfg.Dedup.TimeWindow,
		clk,
	)

	pipeline := worker.NewPipeline(store, cls, deduplicator, coordinator, dispatcher)

	// Broker: Redis when reachable, otherwise an in-process queue. Tickets
	// submitted over HTTP are unaffected either way.
	var msgBroker broker.Broker
	redisBroker, err := broker.NewRedisBroker(ctx, cfg.Redis)
	if err != nil {
		slog.Warn("Redis unavailable, using in-memory broker",
			"addr", cfg.Redis.Addr, "error", err)
		msgBroker = broker.NewMemoryBroker(1024)
	} else {
		slog.Info("Connected to Redis broker", "addr", cfg.Redis.Addr)
		msgBroker = redisBroker
	}
	defer func() {
		if err := msgBroker.Close(); err != nil {
			slog.Error("Error closing broker", "error", err)
		}
	}()

	pool := worker.NewPool(msgBroker, pipeline, cfg.Worker)
	pool.Start()

	httpServer := api.NewServer(api.Deps{
		Config:      cfg,
		Store:       store,
		Pipeline:    pipeline,
		Registry:    registry,
		Coordinator: coordinator,
		Queue:       queue,
		Dedup:       deduplicator,
		Classifier:  cls,
		Broker:      msgBroker,
		Pool:        pool,
	})

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", cfg.HTTP.Port)
		if err := httpServer.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("routingd started",
		"workers", cfg.Worker.Count,
		"similarity_threshold", cfg.Dedup.SimilarityThreshold,
		"preemption_threshold", cfg.Routing.PreemptionThreshold)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// Stop consuming before closing the HTTP surface so in-flight tickets
	// finish and get acked.
	pool.Stop()
	slog.Info("Worker pool stopped")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
