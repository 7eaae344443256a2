package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/FuJacob/mapletenders-sub000/internal/analytics"
	"github.com/FuJacob/mapletenders-sub000/internal/circuitbreaker"
	"github.com/FuJacob/mapletenders-sub000/internal/config"
	"github.com/FuJacob/mapletenders-sub000/internal/embedding"
	"github.com/FuJacob/mapletenders-sub000/internal/ingest"
	"github.com/FuJacob/mapletenders-sub000/internal/metrics"
	"github.com/FuJacob/mapletenders-sub000/internal/refresh"
	"github.com/FuJacob/mapletenders-sub000/internal/searchsync"
	"github.com/FuJacob/mapletenders-sub000/internal/source"
	"github.com/FuJacob/mapletenders-sub000/internal/store/postgres"
)

// app is the wiring shared by serve, refresh and import.
type app struct {
	cfg         config.Config
	db          *sql.DB
	store       *postgres.Store
	redis       *redis.Client // nil when analytics is disabled
	analytics   *analytics.RedisSink
	importers   []*ingest.Importer
	breaker     *circuitbreaker.CircuitBreaker
	coordinator *refresh.Coordinator
	syncClient  *searchsync.Client
}

func loadCatalogue(cfg config.Config) (config.Catalogue, error) {
	return config.LoadCatalogue(cfg.SourcesFile, config.DefaultCatalogue(cfg))
}

// openDB opens and configures the connection pool and checks connectivity.
func openDB(cfg config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	log.Printf("tenderingest: db pool configured (max_open=%d, max_idle=%d, max_lifetime=%s, max_idle_time=%s)",
		cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DBOpTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// probeRefreshState checks that the refresh lock row exists, which is the
// last thing the migrations create.
func probeRefreshState(ctx context.Context, db *sql.DB) error {
	var scope string
	return db.QueryRowContext(ctx, `SELECT scope FROM refresh_state WHERE scope = 'refresh'`).Scan(&scope)
}

func newRedisClient(addr string) (*redis.Client, error) {
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_ADDR: %w", err)
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: addr}), nil
}

// buildApp wires storage, sources and the coordinator. metricsSink may be
// nil.
func buildApp(cfg config.Config, db *sql.DB, metricsSink *metrics.PrometheusSink) (*app, error) {
	a := &app{cfg: cfg, db: db, store: postgres.New(db)}

	if cfg.RedisAddr != "" {
		client, err := newRedisClient(cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		a.redis = client
		a.analytics = analytics.NewRedisSink(client, cfg.AnalyticsRetention)
		log.Printf("tenderingest: analytics enabled (retention=%s)", cfg.AnalyticsRetention)
	} else {
		log.Println("tenderingest: REDIS_ADDR not set; analytics disabled")
	}

	catalogue, err := loadCatalogue(cfg)
	if err != nil {
		return nil, err
	}
	registry, err := source.NewRegistry(catalogue, source.SettingsFromConfig(cfg))
	if err != nil {
		return nil, err
	}

	embedder := embedding.NewClient(
		embedding.WithBaseURL(cfg.EmbeddingURL),
		embedding.WithTimeout(cfg.EmbeddingTimeout),
		embedding.WithBatchSize(cfg.EmbeddingBatchSize),
	)

	var importers []refresh.Importer
	for _, kind := range registry.Kinds() {
		adapter, _ := registry.Get(kind)
		sc, _ := catalogue.Get(kind)

		imp := ingest.NewImporter(adapter, a.store, embedder).WithFullSnapshot(sc.FullSnapshot)
		if a.analytics != nil {
			imp = imp.WithAnalytics(a.analytics)
		}
		if metricsSink != nil {
			imp = imp.WithMetrics(metricsSink)
		}
		a.importers = append(a.importers, imp)
		importers = append(importers, imp)
	}
	log.Printf("tenderingest: %d sources enabled (%s)", len(importers), joinKinds(registry))

	a.breaker = circuitbreaker.New(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown)

	a.coordinator = refresh.New(
		refresh.Config{
			Cooldown:       cfg.RefreshCooldown,
			LockStaleAfter: cfg.RefreshLockStaleAfter,
			MaxParallel:    cfg.MaxParallelSources,
			SourceTimeout:  cfg.SourceTimeout,
		},
		a.store,
		importers,
	).WithBreaker(a.breaker)
	if metricsSink != nil {
		a.coordinator = a.coordinator.WithMetrics(metricsSink)
	}

	a.syncClient = searchsync.NewClient(searchsync.NewHTTPSender(cfg.SearchSyncURL, cfg.SearchSyncTimeout))
	if metricsSink != nil {
		a.syncClient = a.syncClient.WithMetrics(metricsSink)
	}

	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Printf("tenderingest: redis close error: %v", err)
		}
	}
}

func joinKinds(r *source.Registry) string {
	kinds := r.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ",")
}
