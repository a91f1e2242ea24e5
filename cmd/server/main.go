package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"agentwallet/internal/audit"
	"agentwallet/internal/audit/kafka"
	"agentwallet/internal/platform/config"
	"agentwallet/internal/platform/httpserver"
	"agentwallet/internal/platform/logger"
	"agentwallet/internal/platform/metrics"
	"agentwallet/internal/recordstore"
	httptransport "agentwallet/internal/transport/http"
	"agentwallet/internal/wallet"
	"agentwallet/internal/wallet/backends"
)

// main wires the agent's wallet, record store and operational HTTP surface.
// Business logic lives in the internal packages.
func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not load .env", "error", err)
	}
	cfg := config.FromEnv()
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	if err := run(cfg, log); err != nil {
		log.Error("agent stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	manager := backends.NewManager(cfg, wallet.WithLogger(log), wallet.WithMetrics(m))
	handle, err := manager.CreateOrOpen(ctx, []byte(cfg.Wallet.ConfigJSON), []byte(cfg.Wallet.CredentialsJSON))
	if err != nil {
		return err
	}
	defer func() {
		if err := manager.Close(context.Background(), handle); err != nil {
			log.Warn("wallet close failed", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	checks := map[string]httptransport.Check{"wallet": handle.Ping}

	var sinks []audit.Sink
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := kafka.New(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			return err
		}
		defer sink.Close()
		if err := sink.EnsureTopic(ctx, 1, 1); err != nil {
			log.Warn("audit topic not ensured", "topic", cfg.Kafka.AuditTopic, "error", err)
		}

		queue := audit.NewQueue(0)
		sinks = append(sinks, queue)
		checks["kafka"] = sink.Ping
		g.Go(func() error {
			err := audit.NewWorker(sink, queue.Events(), log, audit.WithWorkerMetrics(m)).Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	publisher := audit.NewPublisher(sinks, audit.WithLogger(log), audit.WithMetrics(m))
	store := recordstore.New(recordstore.WithMetrics(m), recordstore.WithAuditPublisher(publisher))

	router := httptransport.NewRouter(log, reg, checks, httptransport.NewRecordsHandler(store, handle, log))
	srv := httpserver.New(cfg.Server.Addr, router)
	g.Go(func() error {
		log.Info("agent listening", "addr", cfg.Server.Addr, "wallet", handle.ID())
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout)
	})

	return g.Wait()
}
