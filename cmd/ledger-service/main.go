package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/noloss-ledger-poc/internal/custody"
	"github.com/radieske/noloss-ledger-poc/internal/ledger"
	lcache "github.com/radieske/noloss-ledger-poc/internal/ledger-service/cache"
	lhttp "github.com/radieske/noloss-ledger-poc/internal/ledger-service/http"
	"github.com/radieske/noloss-ledger-poc/internal/ledger-service/producer"
	sharedcache "github.com/radieske/noloss-ledger-poc/internal/shared/cache"
	"github.com/radieske/noloss-ledger-poc/internal/shared/config"
	"github.com/radieske/noloss-ledger-poc/internal/shared/kafka"
	"github.com/radieske/noloss-ledger-poc/internal/shared/logger"
	"github.com/radieske/noloss-ledger-poc/internal/shared/metrics"
)

func main() {
	cfg := config.Load()

	// Inicializa logger estruturado
	log, err := logger.New("ledger-service", cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}
	log.Info("starting service",
		zap.String("service", "ledger-service"),
		zap.String("env", cfg.Env),
		zap.String("custody", cfg.CustodyMode),
		zap.Uint32("supermajorityBps", cfg.SupermajorityBPS),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Custódia: wallet-service via HTTP ou memória (demo/local)
	var custodian ledger.Custodian
	var checks []metrics.HealthFunc
	switch cfg.CustodyMode {
	case config.CustodyMemory:
		mem := custody.NewMemory()
		seed, err := custody.ParseSeed(cfg.CustodySeed)
		if err != nil {
			log.Fatal("custody seed", zap.Error(err))
		}
		for user, amount := range seed {
			mem.Deposit(user, amount)
		}
		custodian = mem
		log.Warn("using in-memory custody, balances are lost on restart", zap.Int("seededUsers", len(seed)))
	default:
		if cfg.LedgerInstance == "" {
			log.Warn("LEDGER_INSTANCE_ID not set, escrow of previous runs will not be reachable after restart")
		}
		client := custody.NewClient(cfg.WalletURL)
		custodian = client
		checks = append(checks, client.Ping)
	}

	// Publisher Kafka: writer sem tópico fixo, cada evento escolhe o seu
	writer := kafka.NewWriter(cfg.KafkaBrokers, "")
	defer writer.Close()
	pub := producer.NewKafkaPublisher(writer, producer.Topics{
		BetCreated:      cfg.TopicBetCreated,
		StakeJoined:     cfg.TopicStakeJoined,
		OutcomeAttested: cfg.TopicOutcomeAttested,
		BetSettled:      cfg.TopicBetSettled,
	})

	l, err := ledger.New(ctx, ledger.Options{
		Factory:   ledger.StaticFactory(cfg.LedgerAdmin),
		Instance:  cfg.LedgerInstance,
		Asset:     cfg.LedgerAsset,
		Params:    cfg.LedgerParams(),
		Custodian: custodian,
		Publisher: pub,
		Logger:    log,
	})
	if err != nil {
		log.Fatal("ledger init", zap.Error(err))
	}

	// Idempotência de criação em memória (ristretto)
	idem, err := lcache.NewIdempotency(100_000, cfg.IdempotencyTTL, log)
	if err != nil {
		log.Fatal("idempotency cache", zap.Error(err))
	}
	defer idem.Close()

	opts := []lhttp.Option{lhttp.WithIdempotency(idem)}

	// Cache de leitura no Redis é opcional: sem Redis o serviço lê direto do ledger
	rdb, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Warn("redis unavailable, bet cache disabled", zap.Error(err))
	} else {
		defer rdb.Close()
		opts = append(opts, lhttp.WithCache(lcache.New(rdb, l.Instance(), cfg.BetCacheTTL)))
		checks = append(checks, func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	api := lhttp.NewServer(log, l, opts...)
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort, // ex: 8083
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, checks...)

	go func() {
		log.Info("api listening",
			zap.String("addr", apiSrv.Addr),
			zap.String("admin", l.Admin()),
			zap.String("instance", l.Instance()),
		)
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api srv", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("ledger-service stopped")
}
