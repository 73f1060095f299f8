package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/noloss-ledger-poc/internal/ledger"
	"github.com/radieske/noloss-ledger-poc/internal/ledger-service/dto"
)

// DetailsCache é o cache de leitura do GET /v1/bets/{id}.
// Set só grava se version for maior que a versão já guardada para a aposta.
type DetailsCache interface {
	Get(ctx context.Context, betID uint64, dst any) (bool, error)
	Set(ctx context.Context, betID, version uint64, v any, ttl time.Duration) error
	Invalidate(ctx context.Context, betID uint64) error
}

// IdempotencyStore deduplica criações pelo header Idempotency-Key
type IdempotencyStore interface {
	Lookup(key string) (uint64, bool)
	Remember(key string, betID uint64)
}

type Server struct {
	log    *zap.Logger
	ledger *ledger.Ledger
	cache  DetailsCache     // opcional
	idem   IdempotencyStore // opcional
	now    func() time.Time

	idemMu sync.Mutex
}

// Option customiza o Server
type Option func(*Server)

func WithCache(c DetailsCache) Option { return func(s *Server) { s.cache = c } }
func WithIdempotency(i IdempotencyStore) Option { return func(s *Server) { s.idem = i } }
func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

func NewServer(log *zap.Logger, l *ledger.Ledger, opts ...Option) *Server {
	s := &Server{log: log, ledger: l, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/v1/bets", func(r chi.Router) {
		r.Post("/", s.createBet)
		r.Route("/{betID}", func(r chi.Router) {
			r.Get("/", s.getBet)
			r.Get("/stakes", s.listStakes)
			r.Get("/stakes/{participantID}", s.getStake)
			r.Post("/stakes", s.joinBet)
			r.Post("/attestations", s.attest)
			r.Post("/finalize", s.finalize)
			r.Post("/admin-finalize", s.adminFinalize)
		})
	})
	r.Route("/v1/admin", func(r chi.Router) {
		r.Get("/yield-rate", s.getYieldRate)
		r.Put("/yield-rate", s.setYieldRate)
		r.Get("/owner", s.getAdmin)
		r.Put("/owner", s.transferAdmin)
	})
	return r
}

func (s *Server) createBet(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateBetRequest
	if !decode(w, r, &req) {
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if key != "" && s.idem != nil {
		s.idemMu.Lock()
		defer s.idemMu.Unlock()
		if id, ok := s.idem.Lookup(key); ok {
			writeJSON(w, http.StatusOK, dto.CreateBetResponse{BetID: id, Status: string(ledger.StatusOpen)})
			return
		}
	}

	id, err := s.ledger.CreateBet(r.Context(), ledger.CreateBetRequest{
		Creator:      req.CreatorID,
		MinStake:     req.MinStake,
		Condition:    req.Condition,
		DurationDays: req.DurationDays,
		Stake:        req.Stake,
		Prediction:   req.Prediction,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	if key != "" && s.idem != nil {
		s.idem.Remember(key, uint64(id))
	}
	writeJSON(w, http.StatusCreated, dto.CreateBetResponse{BetID: uint64(id), Status: string(ledger.StatusOpen)})
}

func (s *Server) getBet(w http.ResponseWriter, r *http.Request) {
	id, ok := betIDParam(w, r)
	if !ok {
		return
	}
	if s.cache != nil {
		var cached ledger.BetDetails
		hit, err := s.cache.Get(r.Context(), uint64(id), &cached)
		if err != nil {
			s.log.Warn("bet cache read failed", zap.Uint64("betId", uint64(id)), zap.Error(err))
		} else if hit {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	d, err := s.ledger.GetBetDetails(id)
	if err != nil {
		s.fail(w, err)
		return
	}
	if s.cache != nil {
		if err := s.cacheDetails(r.Context(), d); err != nil {
			s.log.Warn("bet cache write failed", zap.Uint64("betId", uint64(id)), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) listStakes(w http.ResponseWriter, r *http.Request) {
	id, ok := betIDParam(w, r)
	if !ok {
		return
	}
	stakes, err := s.ledger.Stakes(id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stakes)
}

func (s *Server) getStake(w http.ResponseWriter, r *http.Request) {
	id, ok := betIDParam(w, r)
	if !ok {
		return
	}
	p := chi.URLParam(r, "participantID")
	writeJSON(w, http.StatusOK, dto.StakeResponse{
		BetID:         uint64(id),
		ParticipantID: p,
		Amount:        s.ledger.GetParticipantStake(id, p),
	})
}

func (s *Server) joinBet(w http.ResponseWriter, r *http.Request) {
	id, ok := betIDParam(w, r)
	if !ok {
		return
	}
	var req dto.JoinBetRequest
	if !decode(w, r, &req) {
		return
	}
	s.mutate(w, r, id, func(ctx context.Context) error {
		return s.ledger.JoinBet(ctx, id, req.ParticipantID, req.Amount, req.Prediction)
	})
}

func (s *Server) attest(w http.ResponseWriter, r *http.Request) {
	id, ok := betIDParam(w, r)
	if !ok {
		return
	}
	var req dto.AttestRequest
	if !decode(w, r, &req) {
		return
	}
	s.mutate(w, r, id, func(ctx context.Context) error {
		return s.ledger.SubmitResolutionOutcome(ctx, id, req.ParticipantID, req.Outcome)
	})
}

func (s *Server) finalize(w http.ResponseWriter, r *http.Request) {
	id, ok := betIDParam(w, r)
	if !ok {
		return
	}
	s.mutate(w, r, id, func(ctx context.Context) error {
		return s.ledger.FinalizeResolution(ctx, id)
	})
}

func (s *Server) adminFinalize(w http.ResponseWriter, r *http.Request) {
	id, ok := betIDParam(w, r)
	if !ok {
		return
	}
	var req dto.AdminFinalizeRequest
	if !decode(w, r, &req) {
		return
	}
	s.mutate(w, r, id, func(ctx context.Context) error {
		return s.ledger.AdminFinalizeResolution(ctx, req.CallerID, id, req.Outcome, req.Cancel)
	})
}

func (s *Server) getYieldRate(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, dto.YieldRateResponse{Percent: s.ledger.YieldRate()})
}

func (s *Server) setYieldRate(w http.ResponseWriter, r *http.Request) {
	var req dto.YieldRateRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.ledger.SetYieldRate(req.CallerID, req.Percent); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.YieldRateResponse{Percent: s.ledger.YieldRate()})
}

func (s *Server) getAdmin(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, dto.AdminResponse{Admin: s.ledger.Admin()})
}

func (s *Server) transferAdmin(w http.ResponseWriter, r *http.Request) {
	var req dto.TransferAdminRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.ledger.TransferAdmin(req.CallerID, req.NewAdmin); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.AdminResponse{Admin: s.ledger.Admin()})
}

// mutate roda a operação e, se ela passou, grava o estado novo no cache e o
// devolve. Se a escrita falhar a entrada é apagada para não servir a versão antiga.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, id ledger.BetID, op func(context.Context) error) {
	if err := op(r.Context()); err != nil {
		s.fail(w, err)
		return
	}
	d, err := s.ledger.GetBetDetails(id)
	if err != nil {
		s.fail(w, err)
		return
	}
	if s.cache != nil {
		if err := s.cacheDetails(r.Context(), d); err != nil {
			s.log.Warn("bet cache write failed, invalidating", zap.Uint64("betId", uint64(id)), zap.Error(err))
			if err := s.cache.Invalidate(r.Context(), uint64(id)); err != nil {
				s.log.Warn("bet cache invalidate failed", zap.Uint64("betId", uint64(id)), zap.Error(err))
			}
		}
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) cacheDetails(ctx context.Context, d ledger.BetDetails) error {
	return s.cache.Set(ctx, uint64(d.ID), d.Version, d, cacheTTL(d, s.now()))
}

// StatusFor traduz o Kind do erro em status HTTP
func StatusFor(err error) int {
	switch ledger.KindOf(err) {
	case ledger.KindValidation:
		return http.StatusUnprocessableEntity
	case ledger.KindTiming, ledger.KindConsensus, ledger.KindIdempotency:
		return http.StatusConflict
	case ledger.KindAuthorization:
		return http.StatusForbidden
	case ledger.KindNotFound:
		return http.StatusNotFound
	case ledger.KindCustody:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, dto.ErrorResponse{Error: err.Error(), Kind: string(ledger.KindOf(err))})
}

// cacheTTL não deixa a entrada atravessar a próxima transição de status
func cacheTTL(d ledger.BetDetails, now time.Time) time.Duration {
	if d.Settlement != nil {
		return 0
	}
	for _, edge := range []time.Time{d.ExpirationTime, d.ResolutionDeadline} {
		if now.Before(edge) {
			return edge.Sub(now)
		}
	}
	return 0
}

func betIDParam(w http.ResponseWriter, r *http.Request) (ledger.BetID, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "betID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid bet id"})
		return 0, false
	}
	return ledger.BetID(id), true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
