// Command livepersd runs a persistence service over the configured back-end and serves its
// REST API until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	log "log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sharedcode/livepers"
	"github.com/sharedcode/livepers/location"
	"github.com/sharedcode/livepers/metrics"
	"github.com/sharedcode/livepers/persistence"
	"github.com/sharedcode/livepers/restapi"

	// Back-ends register themselves with livepers.RegisterBackend.
	_ "github.com/sharedcode/livepers/aws_s3"
	_ "github.com/sharedcode/livepers/cassandra"
	_ "github.com/sharedcode/livepers/fs"
	_ "github.com/sharedcode/livepers/inmemory"
	_ "github.com/sharedcode/livepers/postgres"
	_ "github.com/sharedcode/livepers/redis"
)

func main() {
	configPath := flag.String("config", os.Getenv("LIVEPERS_CONFIG"), "path to the TOML configuration file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		log.Error("livepersd failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := livepers.LoadConfig(configPath)
	if err != nil {
		return err
	}
	livepers.ConfigureLoggingLevel(cfg.LogLevel)

	backend, err := livepers.NewBackend(ctx, cfg)
	if err != nil {
		return err
	}
	switch c := backend.(type) {
	case io.Closer:
		defer c.Close()
	case interface{ Close() }:
		defer c.Close()
	}

	// Cross-node forwarding is not wired in this daemon; calls on remote entities fail
	// with location.ErrNoForwarder.
	locator, err := location.New(cfg, nil)
	if err != nil {
		return fmt.Errorf("location: %w", err)
	}

	collector := metrics.NewCollector("livepers")
	service := persistence.New(persistence.Options{
		Locator:          locator,
		Metrics:          collector,
		FlushConcurrency: cfg.FlushConcurrency,
		OnEvent: func(ev persistence.Event) {
			if ev.Err != nil {
				log.Debug("persistence event", "kind", ev.Kind, "id", ev.ID, "label", ev.Label, "error", ev.Err)
			}
		},
	})
	if err := service.Init(ctx, backend); err != nil {
		return err
	}
	log.Info("persistence service ready", "version", livepers.Version, "node", cfg.NodeID, "backend", cfg.Backend, "location", cfg.Location.Mode)

	apiOptions := restapi.Options{
		Node:    cfg.NodeID,
		Token:   cfg.APIToken,
		Metrics: collector.Handler(),
	}
	if cfg.Okta.Domain != "" {
		apiOptions.Verifier = restapi.OktaVerifier(cfg.Okta.Domain, cfg.Okta.ClientID, cfg.Okta.Audience)
		log.Info("REST API accepts Okta access tokens", "domain", cfg.Okta.Domain)
	}
	server, err := restapi.NewServer(service, apiOptions)
	if err != nil {
		return err
	}
	return server.Run(ctx, cfg.Listen)
}
