package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/vrf-wager-platform/internal/games"
	"github.com/radieske/vrf-wager-platform/internal/ledger"
	"github.com/radieske/vrf-wager-platform/internal/shared/cache"
	"github.com/radieske/vrf-wager-platform/internal/shared/config"
	"github.com/radieske/vrf-wager-platform/internal/shared/db"
	"github.com/radieske/vrf-wager-platform/internal/shared/kafka"
	"github.com/radieske/vrf-wager-platform/internal/shared/metrics"
	"github.com/radieske/vrf-wager-platform/internal/wager/oracle"
	"github.com/radieske/vrf-wager-platform/internal/wager/orchestrator"
	"github.com/radieske/vrf-wager-platform/internal/wager/producer"
	"github.com/radieske/vrf-wager-platform/internal/wager/repo"
	"github.com/radieske/vrf-wager-platform/internal/wager/signer"
)

// Options controla o que é montado além dos orquestradores
type Options struct {
	// Record liga Postgres, Kafka e Redis como observers de cada transição
	Record bool
	// Metrics registra os collectors de aposta; nil desliga
	Metrics prometheus.Registerer
}

// App reúne os orquestradores de todos os jogos habilitados e a infraestrutura comum
type App struct {
	Config        config.Config
	Policy        config.Policy
	Catalog       games.Catalog
	RPC           *ledger.RPCClient
	VRFProgram    ledger.PublicKey
	Orchestrators map[string]*orchestrator.Orchestrator

	Store     *repo.Postgres
	Publisher *producer.KafkaPublisher
	Redis     *redis.Client

	log     *zap.Logger
	closers []func() error
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger, opts Options) (*App, error) {
	policy, err := config.LoadPolicy()
	if err != nil {
		return nil, err
	}
	catalog, err := games.LoadCatalog(cfg.GamesCatalog)
	if err != nil {
		return nil, err
	}
	vrf, err := ledger.ParsePublicKey(cfg.VRFProgramID)
	if err != nil {
		return nil, fmt.Errorf("VRF_PROGRAM_ID: %w", err)
	}

	a := &App{
		Config:        cfg,
		Policy:        policy,
		Catalog:       catalog,
		RPC:           ledger.NewRPCClient(cfg.LedgerRPCURL),
		VRFProgram:    vrf,
		Orchestrators: map[string]*orchestrator.Orchestrator{},
		log:           log,
	}

	var observers []orchestrator.Observer
	if opts.Record {
		obs, err := a.connect(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		observers = append(observers, obs...)
	}
	if opts.Metrics != nil {
		observers = append(observers, metrics.NewWagerCollectors(opts.Metrics))
	}

	// o fast path por websocket é opcional
	var notifier oracle.Notifier
	if cfg.LedgerWSURL != "" {
		notifier = oracle.NewWSNotifier(ledger.NewWSClient(cfg.LedgerWSURL, log), log)
	}

	for _, g := range catalog.Enabled() {
		p := g.Profile()
		o, err := orchestrator.New(orchestrator.Deps{
			Game:       g,
			Ledger:     a.RPC,
			Signer:     signer.New(p.SignerURL),
			VRFProgram: vrf,
			Policy:     policy,
			Log:        log,
			Notifier:   notifier,
			Observers:  append([]orchestrator.Observer(nil), observers...),
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("orchestrator %s: %w", p.Name, err)
		}
		a.Orchestrators[p.Name] = o
	}
	if len(a.Orchestrators) == 0 {
		a.Close()
		return nil, errors.New("no enabled games in catalog")
	}
	return a, nil
}

// connect abre Postgres, Kafka e Redis. A ordem dos observers importa: o store grava primeiro.
func (a *App) connect(ctx context.Context) ([]orchestrator.Observer, error) {
	cfg := a.Config

	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pg.Close)
	a.Store = repo.NewPostgres(pg)
	if err := a.Store.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	w := kafka.NewWriter(cfg.KafkaBrokers, "")
	a.closers = append(a.closers, w.Close)
	a.Publisher = producer.NewKafkaPublisher(w, producer.Topics{
		Placed:     cfg.TopicWagerPlaced,
		Settled:    cfg.TopicWagerSettled,
		Failed:     cfg.TopicWagerFailed,
		OrphansDLQ: cfg.TopicWagerOrphansDLQ,
	})

	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, rdb.Close)
	a.Redis = rdb

	a.log.Info("recording enabled",
		zap.String("redis", cfg.RedisAddr),
		zap.String("kafka", cfg.KafkaBrokers))
	return []orchestrator.Observer{
		a.Store,
		a.Publisher,
		cache.NewBroadcaster(rdb, cfg.RedisPubSubChannel),
	}, nil
}

// Orchestrator devolve o orquestrador de um jogo habilitado
func (a *App) Orchestrator(game string) (*orchestrator.Orchestrator, error) {
	o, ok := a.Orchestrators[game]
	if !ok {
		if _, err := a.Catalog.Game(game); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", games.ErrUnknownGame, game)
	}
	return o, nil
}

// Checks são os health checks das dependências abertas
func (a *App) Checks() []metrics.Check {
	checks := []metrics.Check{{Name: "ledger", Fn: a.RPC.Health}}
	if a.Redis != nil {
		checks = append(checks, metrics.Check{Name: "redis", Fn: func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}})
	}
	return checks
}

// Close fecha as conexões na ordem inversa da abertura
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close", zap.Error(err))
		}
	}
	a.closers = nil
}
