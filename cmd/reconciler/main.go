// Command reconciler runs the background sweep that keeps cached tallies in
// agreement with the vote ledger, and serves the operational HTTP endpoints
// (health probes, version, Prometheus metrics). One instance at a time holds
// the Redis leader lease and performs the sweep.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/peteonrails/vote-fu/internal/adapter/httpserver"
	"github.com/peteonrails/vote-fu/internal/adapter/metrics"
	"github.com/peteonrails/vote-fu/internal/adapter/postgres"
	"github.com/peteonrails/vote-fu/internal/adapter/redis"
	"github.com/peteonrails/vote-fu/internal/platform/config"
	"github.com/peteonrails/vote-fu/internal/platform/logging"
	"github.com/peteonrails/vote-fu/internal/platform/version"
	"github.com/peteonrails/vote-fu/internal/reconcile"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(ctx context.Context, cfg *config.Config, redisMetrics *metrics.RedisMetrics) *redis.Client {
	client, err := redis.NewClient(cfg.RedisURL,
		redis.NewMetricsHook(redisMetrics),
		redis.NewCircuitBreakerHook(redisMetrics),
	)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	if err := client.Ping(ctx); err != nil {
		slog.Error("Failed to ping Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func instanceID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

func runGracefulShutdown(srv *httpserver.Server, reconciler *reconcile.Reconciler, leader *redis.Leader) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		reconciler.Stop()

		if err := leader.Release(shutdownCtx); err != nil {
			slog.Error("Failed to release leader lease", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().String())

	registry := metrics.NewRegistry()
	redisMetrics := metrics.NewRedisMetrics(registry)
	reconcileMetrics := metrics.NewReconcileMetrics(registry)

	pool := setupDB(cfg)
	defer pool.Close()

	redisClient := setupRedis(context.Background(), cfg, redisMetrics)
	defer func() { _ = redisClient.Close() }()

	voteStore := postgres.NewVoteStore(pool)
	tallyStore := redis.NewTallyStore(redisClient)
	leader := redis.NewLeader(redisClient, instanceID(), redis.DefaultLeaderTTL)

	reconciler := reconcile.NewReconciler(voteStore, tallyStore, cfg.ReconcileInterval, clock).
		WithMetrics(reconcileMetrics).
		WithLeader(leader)

	healthChecks := []httpserver.HealthCheck{
		{Name: "postgres", Check: pool.Ping},
		{Name: "redis", Check: redisClient.Ping},
	}
	srv := httpserver.NewServer(cfg.Port, registry, healthChecks)

	done := runGracefulShutdown(srv, reconciler, leader)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reconciler.Start(ctx)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("Shutdown complete")
}
