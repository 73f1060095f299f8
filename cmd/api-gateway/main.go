package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/radieske/noloss-ledger-poc/internal/shared/config"
	"github.com/radieske/noloss-ledger-poc/internal/shared/logger"
	"github.com/radieske/noloss-ledger-poc/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New("api-gateway", cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	gw, err := newGateway(log, cfg.LedgerURL, cfg.WalletURL, rate.NewLimiter(rate.Limit(200), 400))
	if err != nil {
		log.Fatal("gateway targets", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           gw,
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("api-gateway listening",
			zap.String("addr", srv.Addr),
			zap.String("ledger", cfg.LedgerURL),
			zap.String("wallet", cfg.WalletURL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("gateway failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
