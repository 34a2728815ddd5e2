package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"delivery-marketplace/internal/app/api"
	"delivery-marketplace/internal/app/notify"
	"delivery-marketplace/internal/app/reconciler"
	"delivery-marketplace/internal/common/logger"
	"delivery-marketplace/internal/config"
	"delivery-marketplace/internal/connections/database"
)

const modes = "api-service | payment-reconciler | notification-subscriber | migrate"

func main() {
	mode := flag.String("mode", "", modes)
	port := flag.Int("port", 0, "api-service: http port (default HTTP_PORT)")
	workers := flag.Int("workers", 0, "payment-reconciler: worker count (default RECONCILER_WORKERS)")
	prefetch := flag.Int("prefetch", 10, "notification-subscriber: RabbitMQ prefetch")
	reconcile := flag.Bool("reconcile", false, "api-service: also run the payment reconciler in-process")
	envFile := flag.String("env", ".env", "optional .env file")
	flag.Parse()

	lg := logger.New("bootstrap")
	cfg, err := config.Load(*envFile)
	if err != nil {
		lg.Error("config_load_failed", err, nil)
		os.Exit(1)
	}
	logger.SetLevel(cfg.LogLevel)
	if *workers > 0 {
		cfg.Reconciler.Workers = *workers
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch *mode {
	case "api-service":
		lg.Info("service_started", map[string]any{"service": "api-service", "port": *port, "reconcile": *reconcile})
		exitOnErr(lg, api.Run(ctx, cfg, api.Options{Port: *port, Reconcile: *reconcile}))
	case "payment-reconciler":
		lg.Info("service_started", map[string]any{"service": "payment-reconciler", "workers": cfg.Reconciler.Workers})
		exitOnErr(lg, reconciler.RunProcess(ctx, cfg))
	case "notification-subscriber":
		lg.Info("service_started", map[string]any{"service": "notification-subscriber", "prefetch": *prefetch})
		exitOnErr(lg, notify.Run(ctx, cfg, *prefetch))
	case "migrate":
		exitOnErr(lg, migrate(ctx, cfg, lg))
	default:
		fmt.Fprintln(os.Stderr, "--mode is required: "+modes)
		os.Exit(2)
	}
}

func migrate(ctx context.Context, cfg *config.Config, lg *logger.Logger) error {
	db, err := database.ConnectDB(ctx, cfg.Database, lg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}
	lg.Info("migrated", nil)
	return nil
}

func exitOnErr(lg *logger.Logger, err error) {
	if err != nil {
		lg.Error("fatal", err, nil)
		os.Exit(1)
	}
}
