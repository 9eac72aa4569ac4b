package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	http_handler "serverguard.keepalive/internal/adapters/handler/http"
	"serverguard.keepalive/internal/adapters/handler/mqtt"
	redis_adapter "serverguard.keepalive/internal/adapters/pubsub/redis"
	"serverguard.keepalive/internal/config"
	"serverguard.keepalive/internal/core/logger"
	"serverguard.keepalive/internal/core/ports"
	"serverguard.keepalive/internal/core/services"
	"serverguard.keepalive/internal/core/tracing"
)

const version = "0.1.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	// Initialize structured logger
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	logger.Info("Starting ServerGuard", "version", version, "origin", cfg.BaseURL)

	// Initialize tracing
	var shutdownTracing func(context.Context) error
	if cfg.EnableTracing {
		shutdownTracing, err = tracing.Init(cfg.ServiceName, cfg.OTLPEndpoint)
		if err != nil {
			logger.Error("Failed to initialize tracing", "error", err)
		} else {
			logger.Info("Tracing initialized", "endpoint", cfg.OTLPEndpoint)
		}
	}

	assets, err := config.LoadAssets(cfg.AssetsFile)
	if err != nil {
		log.Fatalf("failed to load assets: %v", err)
	}

	client := &http.Client{
		Timeout:   cfg.PingTimeout,
		Transport: tracing.Transport(nil),
	}
	guard, err := services.NewGuard(services.GuardConfig{
		BaseURL:      cfg.BaseURL,
		PingPath:     cfg.PingPath,
		PingInterval: cfg.PingInterval,
		UptimeTick:   cfg.UptimeTick,
		LogCapacity:  cfg.LogCapacity,
		Assets:       assets,
	}, services.WithHTTPClient(client), services.WithLogger(logger.Get()))
	if err != nil {
		log.Fatalf("failed to init keep-alive: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional log fan-out
	var (
		sinks    []ports.LogSink
		checkers []ports.HealthChecker
		closers  []func()
		relays   []*services.StateRelay
	)
	if cfg.RedisURL != "" {
		pub, err := redis_adapter.NewLogPublisher(cfg.RedisURL, cfg.RedisChannel)
		if err != nil {
			logger.Error("Failed to init redis publisher", "error", err)
		} else {
			sinks = append(sinks, pub)
			checkers = append(checkers, pub)
			closers = append(closers, func() { pub.Close() })
		}
	}
	if cfg.MQTTBroker != "" {
		pub, err := mqtt.NewPublisher(cfg.MQTTBroker, cfg.MQTTTopicPrefix)
		if err != nil {
			logger.Error("Failed to init MQTT publisher", "error", err)
		} else {
			sinks = append(sinks, pub)
			checkers = append(checkers, pub)
			closers = append(closers, pub.Close)
			relays = append(relays, services.NewStateRelay(pub, logger.WithComponent("state-relay")))
			logger.Info("MQTT Publisher started", "broker", cfg.MQTTBroker)
		}
	}

	var forwarder *services.LogForwarder
	fwdCtx, stopForwarder := context.WithCancel(context.Background())
	defer stopForwarder()
	if len(sinks) > 0 {
		forwarder = services.NewLogForwarder(sinks, 256, logger.WithComponent("forwarder"))
		guard.Logs.Subscribe(forwarder.Enqueue)
		go forwarder.Run(fwdCtx)
	}
	for _, relay := range relays {
		guard.Keeper.OnChange(relay.Offer)
		go relay.Run(fwdCtx)
	}

	healthService := services.NewHealthService(guard.Keeper, checkers, version)

	// Initialize HTTP handlers
	hub := http_handler.NewHub(http_handler.SnapshotMessage(guard))
	go hub.Run(ctx)
	http_handler.Observe(guard, hub, cfg.EnableMetrics)

	httpServer := http_handler.NewServer(guard, healthService, hub, http_handler.Options{
		PublicDir:        cfg.PublicDir,
		EnableMetrics:    cfg.EnableMetrics,
		APIRatePerMinute: cfg.APIRatePerMinute,
		APIRateBurst:     cfg.APIRateBurst,
	})
	httpServer.StartBackground(ctx)

	// Start HTTP Server
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP Server starting", "port", cfg.HTTPPort)
		serveErr <- httpServer.Run(":" + cfg.HTTPPort)
	}()

	if cfg.AutoStart {
		guard.Boot()
	}

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("Shutting down gracefully...")
	case err := <-serveErr:
		if err != nil {
			logger.Error("HTTP server failed", "error", err)
		}
	}

	guard.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}
	cancel()

	if forwarder != nil {
		stopForwarder()
		select {
		case <-forwarder.Done():
		case <-shutdownCtx.Done():
			logger.Warn("Log forwarder did not drain in time", "dropped", forwarder.Dropped())
		}
	}
	stopForwarder()
	for _, relay := range relays {
		select {
		case <-relay.Done():
		case <-shutdownCtx.Done():
		}
	}
	for _, c := range closers {
		c()
	}

	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error("Failed to shutdown tracing", "error", err)
		}
	}
}
