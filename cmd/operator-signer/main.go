package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/vrf-wager-platform/internal/games"
	"github.com/radieske/vrf-wager-platform/internal/ledger"
	shttp "github.com/radieske/vrf-wager-platform/internal/operator-signer/http"
	"github.com/radieske/vrf-wager-platform/internal/operator-signer/program"
	"github.com/radieske/vrf-wager-platform/internal/shared/config"
	"github.com/radieske/vrf-wager-platform/internal/shared/logger"
	"github.com/radieske/vrf-wager-platform/internal/shared/metrics"
)

func main() {
	// as portas padrão dependem do SERVICE_NAME
	if os.Getenv("SERVICE_NAME") == "" {
		_ = os.Setenv("SERVICE_NAME", "operator-signer")
	}
	cfg := config.Load()

	// Inicializa logger estruturado
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log = log.With(zap.String("game", cfg.OperatorGame))

	catalog, err := games.LoadCatalog(cfg.GamesCatalog)
	if err != nil {
		log.Fatal("load catalog", zap.Error(err))
	}
	game, err := catalog.Game(cfg.OperatorGame)
	if err != nil {
		log.Fatal("game", zap.Error(err))
	}
	programID, err := game.Profile().Program()
	if err != nil {
		log.Fatal("program id", zap.Error(err))
	}

	// A chave do operador só existe neste processo
	operatorKey, err := ledger.LoadKeypairFile(cfg.OperatorKeypair)
	if err != nil {
		log.Fatal("operator keypair", zap.String("path", cfg.OperatorKeypair), zap.Error(err))
	}

	rpc := ledger.NewRPCClient(cfg.LedgerRPCURL)
	prog := program.New(programID, operatorKey, rpc, log)
	api := shttp.NewServer(log, prog, operatorKey.PublicKey(), programID)

	log.Info("operator signer",
		zap.String("agent", operatorKey.PublicKey().String()),
		zap.String("program", programID.String()),
		zap.String("rpc", cfg.LedgerRPCURL))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort, // ex: 3003
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, prometheus.DefaultGatherer, log,
		metrics.Check{Name: "ledger", Fn: rpc.Health})
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("api listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// espera as transações em voo confirmarem
		sctx, cancel := context.WithTimeout(context.Background(), 70*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(sctx)
		return apiSrv.Shutdown(sctx)
	})
	if err := g.Wait(); err != nil {
		log.Fatal("operator signer stopped", zap.Error(err))
	}
	log.Info("operator signer stopped")
}
