package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/solgate/service/config"
	"github.com/brojonat/solgate/service/keys"
	"github.com/brojonat/solgate/service/metrics"
	"github.com/brojonat/solgate/service/nats"
	"github.com/brojonat/solgate/service/server"
	"github.com/brojonat/solgate/service/solana"
	"github.com/brojonat/solgate/service/temporal"
	"github.com/brojonat/solgate/service/wallet"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any config value is malformed
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.Addr(),
		"network", cfg.Network,
		"log_level", cfg.LogLevel,
		"transfer_mode", cfg.TransferMode,
	)

	// A malformed PRIVATE_KEY disables signing rather than stopping the server
	signer := keys.Load(cfg.PrivateKey, logger.With("component", "keys"))

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	// Initialize Solana RPC gateway
	// Note: For premium RPC endpoints, include API key in the URL
	gateway := solana.NewGateway(solana.NewRPCClient(cfg.RPCURL), cfg.RPCURL, cfg.Network, m, logger.With("component", "solana"))
	logger.Info("initialized solana RPC gateway", "url", cfg.RPCURL)

	// Optional transfer event publishing
	var events wallet.EventPublisher
	if cfg.NATSEnabled() {
		publisher, err := nats.NewPublisher(cfg.NATSURL, m, logger.With("component", "nats"))
		if err != nil {
			logger.Error("failed to connect to NATS", "url", cfg.NATSURL, "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		events = publisher
	} else {
		logger.Info("NATS_URL not set, transfer events disabled")
	}

	svc := wallet.NewService(gateway, signer, walletConfig(cfg), events, m, logger.With("component", "wallet"))
	defer svc.Close()

	// Optional async transfers, executed by a worker embedded in this process
	var transfers temporal.TransferStarter
	if cfg.TemporalEnabled() {
		temporalClient, err := temporal.NewClient(cfg.TemporalHost, cfg.TemporalNamespace, cfg.TemporalTaskQueue, m, logger.With("component", "temporal"))
		if err != nil {
			logger.Error("failed to connect to temporal", "host", cfg.TemporalHost, "error", err)
			os.Exit(1)
		}
		defer temporalClient.Close()

		worker, err := temporal.NewWorker(temporal.WorkerConfig{
			Client:  temporalClient,
			Wallet:  svc,
			Metrics: m,
			Logger:  logger,
		})
		if err != nil {
			logger.Error("failed to create temporal worker", "error", err)
			os.Exit(1)
		}
		if err := worker.Start(); err != nil {
			logger.Error("failed to start temporal worker", "error", err)
			os.Exit(1)
		}
		defer worker.Stop()
		transfers = temporalClient
	} else {
		logger.Info("TEMPORAL_HOST not set, async transfers disabled")
	}

	// Initialize HTTP server
	httpServer := server.New(cfg, svc, gateway, transfers, m, logger.With("component", "http"))
	if err := httpServer.WithTemplates(); err != nil {
		logger.Error("failed to load templates", "error", err)
		os.Exit(1)
	}

	logger.Info("server initialized, all dependencies ready",
		"rpc_url", cfg.RPCURL,
		"signer", signer != nil,
		"nats_enabled", cfg.NATSEnabled(),
		"temporal_enabled", cfg.TemporalEnabled(),
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// walletConfig maps the environment configuration onto the orchestrator's.
func walletConfig(cfg *config.Config) wallet.Config {
	wc := wallet.Config{
		Network: cfg.Network,
		Submit: solana.SubmitOptions{
			SkipPreflight:       cfg.SkipPreflight,
			PreflightCommitment: rpc.CommitmentType(cfg.PreflightCommitment),
		},
		TransferMode: wallet.TransferMode(cfg.TransferMode),
		QueueSize:    cfg.SubmitQueueSize,
		RPCTimeout:   cfg.RPCTimeout,
	}
	// PUBLIC_KEY has already been validated by config.Load
	if cfg.PublicKey != "" {
		if pk, err := solanago.PublicKeyFromBase58(cfg.PublicKey); err == nil {
			wc.FallbackPublicKey = &pk
		}
	}
	return wc
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
