// knxnetctl runs a standalone KNXnet/IP tunneling client: it discovers
// or dials a gateway, maintains the tunnel, and optionally forwards
// group traffic to MQTT and InfluxDB and serves an HTTP health check.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	knxnet "github.com/nerrad567/knxnet"
	"github.com/nerrad567/knxnet/internal/config"
	"github.com/nerrad567/knxnet/internal/eventbus"
	"github.com/nerrad567/knxnet/internal/health"
	"github.com/nerrad567/knxnet/internal/logging"
	"github.com/nerrad567/knxnet/internal/telemetry"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config.yaml")
	flag.Parse()

	fmt.Printf("knxnetctl %s (%s)\n", version, commit)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.LogLevel, "stdout")

	client, err := knxnet.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("building client: %w", err)
	}
	defer client.Close()

	events := client.Subscribe()

	var reporter *health.Reporter
	var healthSrv *health.Server
	if cfg.Health.Enabled {
		reporter = health.NewReporter()
		healthSrv = health.NewServer(cfg.Health, reporter)
		go func() {
			if err := healthSrv.ListenAndServe(); err != nil {
				logger.Warn("health server stopped", "error", err)
			}
		}()
		defer healthSrv.Close(context.Background())
	}

	var bus *eventbus.Publisher
	if cfg.EventPublisher.Enabled {
		bus, err = eventbus.Connect(cfg.EventPublisher, logger)
		if err != nil {
			return fmt.Errorf("connecting event publisher: %w", err)
		}
		defer bus.Close()
	}

	var rec *telemetry.Recorder
	if cfg.Telemetry.Enabled {
		rec, err = telemetry.Connect(ctx, cfg.Telemetry, logger)
		if err != nil {
			return fmt.Errorf("connecting telemetry recorder: %w", err)
		}
		defer rec.Close()
	}

	fanIn := fanOutEvents(events, reporter, bus, rec)
	go fanIn()

	logger.Info("connecting", "remote_endpoint", cfg.RemoteEndpoint)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to gateway: %w", err)
	}
	logger.Info("connected, waiting for shutdown signal")

	<-ctx.Done()

	logger.Info("shutdown signal received")
	disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer disconnectCancel()
	if err := client.Disconnect(disconnectCtx); err != nil {
		logger.Warn("graceful disconnect failed", "error", err)
	}

	return nil
}
