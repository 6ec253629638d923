package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	redis "github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quantfort/riskgov/internal/application"
	"github.com/quantfort/riskgov/internal/audit"
	"github.com/quantfort/riskgov/internal/config"
	"github.com/quantfort/riskgov/internal/domain/evolve"
	httpiface "github.com/quantfort/riskgov/internal/interfaces/http"
	"github.com/quantfort/riskgov/internal/metrics"
	"github.com/quantfort/riskgov/internal/persistence/postgres"
	"github.com/quantfort/riskgov/internal/store"
)

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reg := metrics.NewRegistry(nil)
	deps, cleanup, err := buildDeps(cfg, reg)
	if err != nil {
		return err
	}
	defer cleanup()

	deps.Metrics = reg
	eng := application.NewEngine(cfg, deps)
	srv := httpiface.NewServer(cfg.Server, eng)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// buildDeps wires the optional backends. Everything falls back to
// in-process implementations so the service runs with zero infrastructure.
func buildDeps(cfg *config.Config, reg *metrics.Registry) (application.Deps, func(), error) {
	var deps application.Deps
	var closers []func()
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	clock, err := evolve.NewSessionClock()
	if err != nil {
		return deps, cleanup, fmt.Errorf("failed to load session clock: %w", err)
	}
	deps.Clock = clock

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Addr,
			DB:   cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			cleanup()
			return deps, cleanup, fmt.Errorf("redis unreachable at %s: %w", cfg.Redis.Addr, err)
		}
		closers = append(closers, func() { _ = client.Close() })
		deps.Store = store.NewRedis(client)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Flow cache on Redis")
	}

	if cfg.Database.DSN != "" {
		db, err := sqlx.Connect("postgres", cfg.Database.DSN)
		if err != nil {
			cleanup()
			return deps, cleanup, fmt.Errorf("postgres unreachable: %w", err)
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		closers = append(closers, func() { _ = db.Close() })

		timeout := cfg.Database.QueryTimeout
		deps.GuardRepo = postgres.NewGuardRepo(db, timeout)
		deps.Recorder = audit.NewSink(postgres.NewAuditRepo(db, timeout)).
			WithFallbackHook(reg.AuditFallbacks.Inc)
		deps.Adjustments = postgres.NewAdjustmentRepo(db, timeout)
		deps.Outcomes = postgres.NewOutcomeRepo(db, timeout)
		log.Info().Msg("Persistence on Postgres")
	}

	return deps, cleanup, nil
}
