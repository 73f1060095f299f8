package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func rp(log *zap.Logger, to string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(to)
	if err != nil {
		return nil, err
	}
	p := httputil.NewSingleHostReverseProxy(u)
	p.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("upstream failed", zap.String("target", to), zap.String("path", r.URL.Path), zap.Error(err))
		w.WriteHeader(http.StatusBadGateway)
	}
	return p, nil
}

// newGateway encaminha /api/ledger/* e /api/wallet/* para os serviços
func newGateway(log *zap.Logger, ledgerURL, walletURL string, limiter *rate.Limiter) (http.Handler, error) {
	ledgerProxy, err := rp(log, ledgerURL)
	if err != nil {
		return nil, err
	}
	walletProxy, err := rp(log, walletURL)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(withCORS)
	r.Use(withRateLimit(limiter))

	// ledger (ex.: /api/ledger/v1/bets -> ledger-service /v1/bets)
	r.Mount("/api/ledger", http.StripPrefix("/api/ledger", ledgerProxy))

	// wallet (ex.: /api/wallet/wallet?userId= -> wallet-service /wallet?userId=)
	r.Mount("/api/wallet", http.StripPrefix("/api/wallet", walletProxy))

	return r, nil
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Idempotency-Key")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// withRateLimit aplica um limite global de requisições; excesso recebe 429
func withRateLimit(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "rate limited", http.StatusTooManyRequests)
				return
			}
			h.ServeHTTP(w, r)
		})
	}
}
