package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/vrf-wager-platform/internal/app"
	"github.com/radieske/vrf-wager-platform/internal/shared/cache"
	"github.com/radieske/vrf-wager-platform/internal/shared/config"
	"github.com/radieske/vrf-wager-platform/internal/shared/logger"
	"github.com/radieske/vrf-wager-platform/internal/shared/metrics"
	"github.com/radieske/vrf-wager-platform/internal/wager"
	"github.com/radieske/vrf-wager-platform/internal/wager/reconcile"
)

func main() {
	if os.Getenv("SERVICE_NAME") == "" {
		_ = os.Setenv("SERVICE_NAME", "reconciler-worker")
	}
	cfg := config.Load()

	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Postgres, Kafka e Redis são obrigatórios aqui
	a, err := app.New(ctx, cfg, log, app.Options{Record: true, Metrics: reg})
	if err != nil {
		log.Fatal("init", zap.Error(err))
	}
	defer a.Close()

	rc := metrics.NewReconcileCollectors(reg)
	resumers := make(map[string]reconcile.Resumer, len(a.Orchestrators))
	for name, o := range a.Orchestrators {
		resumers[name] = o
	}

	sweeper := &reconcile.Sweeper{
		Store: a.Store,
		// o claim dura o pior caso de uma retomada
		Locker:      cache.NewLocker(a.Redis, "wager:reconcile:", a.Policy.LiveBudget()+time.Minute),
		Resumers:    resumers,
		DLQ:         a.Publisher,
		Grace:       a.Policy.ReconcileGrace,
		Interval:    a.Policy.ReconcileInterval,
		RetryAfter:  a.Policy.ReconcileRetryAfter,
		MaxAttempts: a.Policy.ReconcileMaxAttempts,
		Log:         log,
		Hooks: reconcile.Hooks{
			OnSweep:   func(reconcile.Report) { rc.Sweeps.Inc() },
			OnResumed: func(w *wager.Wager) { rc.Resumed.WithLabelValues(w.Game, string(w.State)).Inc() },
			OnOrphan:  func(*wager.Wager, error) { rc.Orphans.Inc() },
		},
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, reg, log, a.Checks()...)
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	log.Info("reconciler-worker started",
		zap.Duration("grace", sweeper.Grace),
		zap.Duration("interval", sweeper.Interval),
		zap.Int("games", len(resumers)))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(sctx)
	})
	if err := g.Wait(); err != nil {
		log.Error("reconciler-worker stopped", zap.Error(err))
		return
	}
	log.Info("reconciler-worker stopped")
}
