package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Day é a unidade de duração usada na criação de apostas
const Day = 24 * time.Hour

// refundTimeout limita a compensação de um pull que falhou
const refundTimeout = 5 * time.Second

// Options monta uma instância isolada do ledger
type Options struct {
	Factory   Factory
	Instance  string // namespace do escrow no custodiante; vazio gera um uuid
	Asset     string
	Params    Params
	Custodian Custodian
	Publisher Publisher // opcional
	Logger    *zap.Logger
	Clock     func() time.Time // opcional, default time.Now
}

// Ledger é uma instância do ledger com seu próprio administrador.
// Mutações na mesma aposta são serializadas pelo lock do slot; apostas diferentes
// andam em paralelo.
type Ledger struct {
	params    Params
	instance  string
	asset     string
	custodian Custodian
	publisher Publisher
	log       *zap.Logger
	now       func() time.Time

	mu        sync.RWMutex
	admin     string
	yieldRate uint32
	lastID    BetID // último id reservado, inclusive os que falharam no pull
	bets      map[BetID]*slot
}

type slot struct {
	mu  sync.Mutex
	bet *Bet
}

// New cria uma instância; o administrador vem da Factory. Se o custodiante
// implementa BetIndex a numeração continua depois do maior id já usado.
func New(ctx context.Context, opts Options) (*Ledger, error) {
	if opts.Custodian == nil {
		return nil, fmt.Errorf("ledger: custodian required")
	}
	if opts.Factory == nil {
		return nil, fmt.Errorf("ledger: factory required")
	}
	if err := opts.Params.Validate(); err != nil {
		return nil, fmt.Errorf("ledger params: %w", err)
	}
	admin, err := opts.Factory.Administrator(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger administrator: %w", err)
	}
	l := &Ledger{
		params:    opts.Params,
		instance:  strings.TrimSpace(opts.Instance),
		asset:     opts.Asset,
		custodian: opts.Custodian,
		publisher: opts.Publisher,
		log:       opts.Logger,
		now:       opts.Clock,
		admin:     admin,
		yieldRate: opts.Params.YieldRatePct,
		bets:      make(map[BetID]*slot),
	}
	if l.instance == "" {
		l.instance = uuid.NewString()
	}
	if idx, ok := opts.Custodian.(BetIndex); ok {
		last, err := idx.LastBetID(ctx, l.instance)
		if err != nil {
			return nil, fmt.Errorf("ledger last bet id: %w", err)
		}
		l.lastID = last
	}
	if l.publisher == nil {
		l.publisher = nopPublisher{}
	}
	if l.log == nil {
		l.log = zap.NewNop()
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l, nil
}

// Instance devolve o namespace de escrow desta instância
func (l *Ledger) Instance() string { return l.instance }

func (l *Ledger) escrowKey(betID BetID) EscrowKey {
	return EscrowKey{Instance: l.instance, Bet: betID}
}

// CreateBetRequest agrupa os dados de criação; o criador entra como primeiro stake
type CreateBetRequest struct {
	Creator      string
	MinStake     int64
	Condition    string
	DurationDays int
	Stake        int64
	Prediction   bool
}

// CreateBet cria a aposta e registra o stake do criador numa única operação.
// O id é reservado antes do pull, então criações não esperam umas pelas outras
// no custodiante; um pull que falha deixa o id sem aposta.
func (l *Ledger) CreateBet(ctx context.Context, req CreateBetRequest) (id BetID, err error) {
	defer func() { observe("create", err) }()

	switch {
	case strings.TrimSpace(req.Creator) == "":
		return 0, ErrEmptyParticipant
	case strings.TrimSpace(req.Condition) == "":
		return 0, ErrEmptyCondition
	case req.DurationDays <= 0:
		return 0, ErrInvalidDuration
	case req.MinStake < 0 || req.Stake <= 0:
		return 0, ErrInvalidAmount
	case req.Stake < req.MinStake:
		return 0, ErrStakeTooLow
	}

	l.mu.Lock()
	l.lastID++
	id = l.lastID
	l.mu.Unlock()

	now := l.now()
	bet := newBet(id, req.Creator, req.Condition, req.MinStake, now, time.Duration(req.DurationDays)*Day, l.params.ResolutionWindow)

	if err := l.pull(ctx, id, req.Creator, req.Stake); err != nil {
		return 0, fmt.Errorf("%w: pull creator stake: %v", ErrCustody, err)
	}
	bet.addStake(&StakeRecord{
		Participant: req.Creator,
		Amount:      req.Stake,
		Prediction:  req.Prediction,
		JoinedAt:    now,
	})

	l.mu.Lock()
	l.bets[id] = &slot{bet: bet}
	l.mu.Unlock()

	l.log.Info("bet created",
		zap.String("instance", l.instance),
		zap.Uint64("betId", uint64(id)),
		zap.String("creator", req.Creator),
		zap.Int64("stake", req.Stake),
		zap.Time("expiresAt", bet.ExpiresAt),
	)
	l.publish(ctx, Event{
		Type:        EventBetCreated,
		BetID:       id,
		Participant: req.Creator,
		Amount:      req.Stake,
		Prediction:  req.Prediction,
		Condition:   req.Condition,
		ExpiresAt:   bet.ExpiresAt,
		At:          now,
	})
	return id, nil
}

// pull move o stake para o escrow. Se o custodiante falha o resultado é
// desconhecido (timeout pode ter aplicado o débito), então o stake é
// devolvido com Refund antes de reportar o erro.
func (l *Ledger) pull(ctx context.Context, betID BetID, participant string, amount int64) error {
	key := l.escrowKey(betID)
	err := l.custodian.Pull(ctx, key, participant, amount)
	if err == nil {
		return nil
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refundTimeout)
	defer cancel()
	if rerr := l.custodian.Refund(rctx, key, participant); rerr != nil {
		// no join o Release devolve o stake órfão; na criação resta o ledgerctl refund
		refundFailures.Inc()
		l.log.Error("refund after failed pull failed",
			zap.String("escrow", key.String()),
			zap.String("participant", participant),
			zap.NamedError("pullError", err),
			zap.Error(rerr),
		)
	}
	return err
}

// BetCount devolve quantas apostas existem na instância
func (l *Ledger) BetCount() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.bets))
}

// GetBetDetails devolve uma cópia destacada da aposta
func (l *Ledger) GetBetDetails(betID BetID) (BetDetails, error) {
	s := l.lookup(betID)
	if s == nil {
		return BetDetails{}, ErrBetNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.bet.details(l.now())
	d.Instance = l.instance
	return d, nil
}

// GetParticipantStake devolve zero para aposta ou participante desconhecido
func (l *Ledger) GetParticipantStake(betID BetID, participant string) int64 {
	s := l.lookup(betID)
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.bet.stakes[participant]; ok {
		return rec.Amount
	}
	return 0
}

// Stakes lista os registros de stake na ordem de entrada
func (l *Ledger) Stakes(betID BetID) ([]StakeRecord, error) {
	s := l.lookup(betID)
	if s == nil {
		return nil, ErrBetNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bet.records(), nil
}

func (l *Ledger) lookup(betID BetID) *slot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.bets[betID]
}

// withBet executa fn com o lock exclusivo da aposta
func (l *Ledger) withBet(betID BetID, fn func(b *Bet) error) error {
	s := l.lookup(betID)
	if s == nil {
		return ErrBetNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.bet)
}

func (l *Ledger) publish(ctx context.Context, ev Event) {
	ev.Instance = l.instance
	if err := l.publisher.Publish(ctx, ev); err != nil {
		publishFailures.WithLabelValues(string(ev.Type)).Inc()
		l.log.Warn("event publish failed",
			zap.String("type", string(ev.Type)),
			zap.String("instance", l.instance),
			zap.Uint64("betId", uint64(ev.BetID)),
			zap.Error(err),
		)
	}
}
