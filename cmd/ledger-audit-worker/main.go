package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/noloss-ledger-poc/internal/ledger-audit/consumer"
	"github.com/radieske/noloss-ledger-poc/internal/ledger-audit/repository"
	"github.com/radieske/noloss-ledger-poc/internal/shared/config"
	"github.com/radieske/noloss-ledger-poc/internal/shared/db"
	"github.com/radieske/noloss-ledger-poc/internal/shared/kafka"
	"github.com/radieske/noloss-ledger-poc/internal/shared/logger"
	"github.com/radieske/noloss-ledger-poc/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New("ledger-audit-worker", cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Inicializa dependências: Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// Consumer group próprio sobre bet_settled; DLQ para o que não persistir
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicBetSettled, "ledger-audit")
	defer reader.Close()
	dlq := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettledDLQ)
	defer dlq.Close()

	// Métricas Prometheus do worker
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "ledger_audit_messages_consumed_total", Help: "mensagens consumidas"})
	persisted := prometheus.NewCounter(prometheus.CounterOpts{Name: "ledger_audit_settlements_saved_total", Help: "liquidações gravadas"})
	dlqSent := prometheus.NewCounter(prometheus.CounterOpts{Name: "ledger_audit_dlq_total", Help: "mensagens enviadas para a DLQ"})
	violations := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ledger_audit_violations_total", Help: "violações por regra"}, []string{"rule"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ledger_audit_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, persisted, dlqSent, violations, errorsBy)

	proc := &consumer.Processor{
		Log:         log,
		Reader:      reader,
		Repo:        repository.NewPostgresRepo(pg),
		DLQ:         dlq,
		OnConsumed:  func() { consumed.Inc() },
		OnPersist:   func() { persisted.Inc() },
		OnDLQ:       func() { dlqSent.Inc() },
		OnViolation: func(rule string) { violations.WithLabelValues(rule).Inc() },
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, pg.PingContext)

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("ledger-audit-worker started", zap.String("topic", cfg.TopicBetSettled))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("ledger-audit-worker stopped")
}
