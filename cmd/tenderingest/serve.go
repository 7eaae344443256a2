package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FuJacob/mapletenders-sub000/internal/api"
	"github.com/FuJacob/mapletenders-sub000/internal/config"
	"github.com/FuJacob/mapletenders-sub000/internal/cron"
	"github.com/FuJacob/mapletenders-sub000/internal/metrics"
	"github.com/FuJacob/mapletenders-sub000/internal/scheduler"
	"github.com/FuJacob/mapletenders-sub000/internal/searchsync"
	"github.com/FuJacob/mapletenders-sub000/internal/store/postgres"
	"github.com/FuJacob/mapletenders-sub000/internal/sweeper"
	"github.com/FuJacob/mapletenders-sub000/internal/transport/channel"
)

const schedulerTickInterval = 30 * time.Second

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		log.Printf("tenderingest: %v", err)
		return exitInvalidConfig
	}

	logConfigWarnings(&cfg)

	log.Printf("tenderingest: starting version=%s commit=%s", version, commit)

	db, err := openDB(cfg)
	if err != nil {
		log.Printf("tenderingest: %v", err)
		return exitRuntimeError
	}
	defer db.Close()

	if cfg.AutoMigrate {
		ver, dirty, err := postgres.Migrate(db)
		if err != nil {
			log.Printf("tenderingest: migration failed: %v", err)
			return exitRuntimeError
		}
		log.Printf("tenderingest: migrations applied (version=%d, dirty=%t)", ver, dirty)
	}

	probeCtx, probeCancel := context.WithTimeout(context.Background(), cfg.DBOpTimeout)
	if err := probeRefreshState(probeCtx, db); err != nil {
		probeCancel()
		log.Printf("tenderingest: schema check failed, run 'tenderingest migrate' or set AUTO_MIGRATE=true: %v", err)
		return exitRuntimeError
	}
	probeCancel()

	var metricsSink *metrics.PrometheusSink
	var metricsServer *http.Server
	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)

		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.MetricsPath, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.MetricsPort),
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Printf("tenderingest: metrics enabled on :%s%s", cfg.MetricsPort, cfg.MetricsPath)
	}

	a, err := buildApp(cfg, db, metricsSink)
	if err != nil {
		log.Printf("tenderingest: %v", err)
		return exitInvalidConfig
	}
	defer a.Close()

	var bus *channel.EventBus
	if metricsSink != nil {
		bus = channel.NewEventBus(cfg.SearchSyncBuffer, channel.WithMetrics(metricsSink))
	} else {
		bus = channel.NewEventBus(cfg.SearchSyncBuffer)
	}
	a.coordinator = a.coordinator.WithSyncEmitter(bus)

	syncWorker := searchsync.NewWorker(a.syncClient)

	var sched *scheduler.Scheduler
	if cfg.RefreshSchedule != "" {
		sched = scheduler.New(
			scheduler.Config{
				TickInterval: schedulerTickInterval,
				Expression:   cfg.RefreshSchedule,
				Timezone:     cfg.RefreshTimezone,
			},
			a.coordinator,
			&cronParserAdapter{parser: cron.NewParser()},
		)
		if metricsSink != nil {
			sched = sched.WithMetrics(metricsSink)
		}
	}

	var sweep *sweeper.Sweeper
	if cfg.SweepEnabled {
		sweep = sweeper.New(sweeper.Config{Interval: cfg.SweepInterval}, a.store, bus)
		if metricsSink != nil {
			sweep = sweep.WithMetrics(metricsSink)
		}
	}

	handler := api.NewHandler(a.coordinator).
		WithSearchSyncer(a.syncClient).
		WithBreaker(a.breaker).
		WithHealthChecker(db)
	for _, imp := range a.importers {
		handler = handler.WithSampler(imp.Kind(), imp)
	}
	if sched != nil {
		handler = handler.WithSchedule(sched)
	}
	if a.analytics != nil {
		handler = handler.WithImportHistory(a.analytics)
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Separate contexts so shutdown can stop producers before draining the
	// search sync worker.
	producerCtx, cancelProducers := context.WithCancel(context.Background())
	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelProducers()
	defer cancelWorker()

	var producerWg, workerWg sync.WaitGroup
	errCh := make(chan error, 3)

	workerWg.Add(1)
	go func() {
		defer workerWg.Done()
		syncWorker.Run(workerCtx, bus.Channel())
	}()

	if sched != nil {
		producerWg.Add(1)
		go func() {
			defer producerWg.Done()
			if err := sched.Run(producerCtx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("scheduler: %w", err)
			}
		}()
		log.Printf("tenderingest: scheduled refresh enabled (schedule=%q, timezone=%s)", cfg.RefreshSchedule, cfg.RefreshTimezone)
	}

	if sweep != nil {
		producerWg.Add(1)
		go func() {
			defer producerWg.Done()
			sweep.Run(producerCtx)
		}()
	}

	go func() {
		log.Printf("tenderingest: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	exitCode := exitSuccess
	select {
	case sig := <-sigCh:
		log.Printf("tenderingest: received %s, shutting down", sig)
	case err := <-errCh:
		log.Printf("tenderingest: %v", err)
		exitCode = exitRuntimeError
	}

	// 1. Stop producers: no new refreshes or sweeps.
	cancelProducers()
	producerWg.Wait()

	// 2. Stop accepting HTTP requests; in-flight manual refreshes finish
	// detached and may still emit sync requests.
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("tenderingest: http shutdown error: %v", err)
	}
	cancelShutdown()

	// 3. Drain queued search sync requests.
	cancelWorker()
	workerWg.Wait()

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil {
			log.Printf("tenderingest: metrics shutdown error: %v", err)
		}
		cancelMetrics()
	}

	log.Println("tenderingest: shutdown complete")
	return exitCode
}
