package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/noloss-ledger-poc/internal/custody"
	"github.com/radieske/noloss-ledger-poc/internal/ledger"
	"github.com/radieske/noloss-ledger-poc/internal/wallet-service/dto"
	"github.com/radieske/noloss-ledger-poc/internal/wallet-service/repo"
)

// Repo define as operações de carteira e escrow usadas pelo handler HTTP
type Repo interface {
	GetOrCreateWallet(ctx context.Context, userID string) (walletID string, balance int64, err error)
	Deposit(ctx context.Context, userID string, amount int64, externalRef string) (walletID string, newBalance int64, err error)
	Pull(ctx context.Context, key ledger.EscrowKey, userID string, amount int64) error
	Refund(ctx context.Context, key ledger.EscrowKey, userID string) error
	Release(ctx context.Context, key ledger.EscrowKey, transfers []dto.Transfer) error
	Surplus(ctx context.Context, key ledger.EscrowKey) (int64, error)
	LastBetID(ctx context.Context, ledgerID string) (uint64, error)
	AccrueYield(ctx context.Context, key ledger.EscrowKey, amount int64) error
	Escrow(ctx context.Context, key ledger.EscrowKey) (dto.EscrowResponse, error)
}

// Server expõe carteira e custódia por HTTP
type Server struct {
	log  *zap.Logger
	repo Repo
}

// NewServer instancia o servidor HTTP de wallet
func NewServer(log *zap.Logger, repo Repo) *Server { return &Server{log: log, repo: repo} }

// Router retorna as rotas da API de wallet e custódia
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	r.Get("/wallet", s.getWallet) // ?userId=...
	r.Post("/wallet/deposit", s.deposit)

	r.Route("/custody", func(r chi.Router) {
		r.Post("/pull", s.pull)
		r.Post("/refund", s.refund)
		r.Post("/release", s.release)
		r.Get("/surplus", s.surplus)  // ?ledgerId=...&betId=...
		r.Get("/last-bet", s.lastBet) // ?ledgerId=...
		r.Post("/yield", s.yield)
		r.Get("/escrow", s.escrow) // ?ledgerId=...&betId=...
	})
	return r
}

func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId required", "")
		return
	}
	walletID, bal, err := s.repo.GetOrCreateWallet(r.Context(), userID)
	if err != nil {
		s.fail(w, "get wallet", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.WalletResponse{UserID: userID, WalletID: walletID, BalanceCents: bal})
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json", "")
		return
	}
	if req.UserID == "" || req.AmountCents <= 0 {
		writeError(w, http.StatusBadRequest, "invalid payload", "")
		return
	}
	walletID, bal, err := s.repo.Deposit(r.Context(), req.UserID, req.AmountCents, req.ExternalRef)
	if err != nil {
		s.fail(w, "deposit", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.WalletResponse{UserID: req.UserID, WalletID: walletID, BalanceCents: bal})
}

func (s *Server) pull(w http.ResponseWriter, r *http.Request) {
	var req dto.PullRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json", "")
		return
	}
	if req.LedgerID == "" || req.UserID == "" || req.AmountCents <= 0 {
		writeError(w, http.StatusBadRequest, "invalid payload", "")
		return
	}
	key := ledger.EscrowKey{Instance: req.LedgerID, Bet: ledger.BetID(req.BetID)}
	if err := s.repo.Pull(r.Context(), key, req.UserID, req.AmountCents); err != nil {
		s.fail(w, "pull", err)
		return
	}
	s.log.Info("stake pulled into escrow",
		zap.String("escrow", key.String()), zap.String("userId", req.UserID), zap.Int64("amount", req.AmountCents))
	writeJSON(w, http.StatusOK, map[string]string{"status": "PULLED"})
}

func (s *Server) refund(w http.ResponseWriter, r *http.Request) {
	var req dto.RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json", "")
		return
	}
	if req.LedgerID == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "invalid payload", "")
		return
	}
	key := ledger.EscrowKey{Instance: req.LedgerID, Bet: ledger.BetID(req.BetID)}
	if err := s.repo.Refund(r.Context(), key, req.UserID); err != nil {
		s.fail(w, "refund", err)
		return
	}
	s.log.Info("stake refunded", zap.String("escrow", key.String()), zap.String("userId", req.UserID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "REFUNDED"})
}

func (s *Server) release(w http.ResponseWriter, r *http.Request) {
	var req dto.ReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json", "")
		return
	}
	if req.LedgerID == "" {
		writeError(w, http.StatusBadRequest, "ledgerId required", "")
		return
	}
	for _, t := range req.Transfers {
		if t.UserID == "" || t.AmountCents < 0 {
			writeError(w, http.StatusBadRequest, "invalid transfer", "")
			return
		}
	}
	key := ledger.EscrowKey{Instance: req.LedgerID, Bet: ledger.BetID(req.BetID)}
	if err := s.repo.Release(r.Context(), key, req.Transfers); err != nil {
		s.fail(w, "release", err)
		return
	}
	s.log.Info("escrow released", zap.String("escrow", key.String()), zap.Int("transfers", len(req.Transfers)))
	writeJSON(w, http.StatusOK, map[string]string{"status": "RELEASED"})
}

func (s *Server) surplus(w http.ResponseWriter, r *http.Request) {
	key, ok := escrowParam(w, r)
	if !ok {
		return
	}
	v, err := s.repo.Surplus(r.Context(), key)
	if err != nil {
		s.fail(w, "surplus", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SurplusResponse{LedgerID: key.Instance, BetID: uint64(key.Bet), SurplusCents: v})
}

func (s *Server) lastBet(w http.ResponseWriter, r *http.Request) {
	ledgerID := r.URL.Query().Get("ledgerId")
	if ledgerID == "" {
		writeError(w, http.StatusBadRequest, "ledgerId required", "")
		return
	}
	last, err := s.repo.LastBetID(r.Context(), ledgerID)
	if err != nil {
		s.fail(w, "last bet", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.LastBetResponse{LedgerID: ledgerID, BetID: last})
}

func (s *Server) yield(w http.ResponseWriter, r *http.Request) {
	var req dto.YieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json", "")
		return
	}
	if req.LedgerID == "" || req.AmountCents <= 0 {
		writeError(w, http.StatusBadRequest, "invalid payload", "")
		return
	}
	key := ledger.EscrowKey{Instance: req.LedgerID, Bet: ledger.BetID(req.BetID)}
	if err := s.repo.AccrueYield(r.Context(), key, req.AmountCents); err != nil {
		s.fail(w, "accrue yield", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ACCRUED"})
}

func (s *Server) escrow(w http.ResponseWriter, r *http.Request) {
	key, ok := escrowParam(w, r)
	if !ok {
		return
	}
	out, err := s.repo.Escrow(r.Context(), key)
	if err != nil {
		s.fail(w, "escrow", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// fail traduz erros do repo em status + código que o custody.Client entende
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	if code := custody.CodeFor(err); code != "" {
		status := http.StatusConflict
		if errors.Is(err, custody.ErrUnknownEscrow) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error(), code)
		return
	}
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error(), "")
		return
	}
	s.log.Error(op+" failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, err.Error(), "")
}

func escrowParam(w http.ResponseWriter, r *http.Request) (ledger.EscrowKey, bool) {
	q := r.URL.Query()
	id, err := strconv.ParseUint(q.Get("betId"), 10, 64)
	if err != nil || q.Get("ledgerId") == "" {
		writeError(w, http.StatusBadRequest, "ledgerId and betId required", "")
		return ledger.EscrowKey{}, false
	}
	return ledger.EscrowKey{Instance: q.Get("ledgerId"), Bet: ledger.BetID(id)}, true
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, dto.ErrorResponse{Error: msg, Code: code})
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
