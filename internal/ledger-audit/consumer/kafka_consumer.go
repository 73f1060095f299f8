package consumer

import (
	"context"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/noloss-ledger-poc/internal/ledger-audit/check"
	"github.com/radieske/noloss-ledger-poc/pkg/contracts/events"
)

const maxAttempts = 3

// MessageReader é o subconjunto do kafka.Reader usado pelo processor
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// MessageWriter é usado para a DLQ
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// SettlementStore persiste a liquidação auditada
type SettlementStore interface {
	SaveSettlement(ctx context.Context, e events.BetSettled, violations []check.Violation) error
}

// Processor consome bet_settled, reconfere os invariantes e persiste o resultado.
// Falhas de persistência tentam maxAttempts vezes antes de ir para a DLQ.
type Processor struct {
	Log    *zap.Logger
	Reader MessageReader
	Repo   SettlementStore
	DLQ    MessageWriter // opcional
	Sleep  func(time.Duration)

	OnConsumed  func()       // métricas
	OnViolation func(string) // métricas por regra
	OnPersist   func()       // métricas
	OnDLQ       func()       // métricas
	OnError     func(string) // métricas por fase
}

// Run inicia o loop de consumo até o contexto ser cancelado
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.onError("read")
			p.sleep(500 * time.Millisecond)
			continue
		}
		p.Handle(ctx, m)
	}
}

// Handle processa uma mensagem; nunca devolve erro para não travar a partição
func (p *Processor) Handle(ctx context.Context, m kafka.Message) {
	if p.OnConsumed != nil {
		p.OnConsumed()
	}

	var ev events.BetSettled
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		p.Log.Warn("invalid message", zap.Error(err))
		p.onError("decode")
		p.toDLQ(ctx, m, "decode")
		return
	}

	violations := check.Verify(ev)
	for _, v := range violations {
		p.Log.Error("settlement invariant violated",
			zap.String("ledgerId", ev.LedgerID),
			zap.Uint64("betId", ev.BetID),
			zap.String("rule", v.Rule),
			zap.String("detail", v.String()),
		)
		if p.OnViolation != nil {
			p.OnViolation(v.Rule)
		}
	}

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			p.sleep(time.Duration(300*attempt) * time.Millisecond)
		}
		if err = p.Repo.SaveSettlement(ctx, ev, violations); err == nil {
			break
		}
		p.Log.Warn("db save failed", zap.Uint64("betId", ev.BetID), zap.Int("attempt", attempt+1), zap.Error(err))
	}
	if err != nil {
		p.onError("db_save")
		p.toDLQ(ctx, m, "db_save")
		return
	}
	if p.OnPersist != nil {
		p.OnPersist()
	}
	p.Log.Info("settlement audited",
		zap.String("ledgerId", ev.LedgerID),
		zap.Uint64("betId", ev.BetID),
		zap.String("kind", ev.Kind),
		zap.Int("violations", len(violations)),
	)
}

func (p *Processor) toDLQ(ctx context.Context, m kafka.Message, reason string) {
	if p.DLQ == nil {
		return
	}
	err := p.DLQ.WriteMessages(ctx, kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "dlq-reason", Value: []byte(reason)},
			{Key: "source-offset", Value: []byte(strconv.FormatInt(m.Offset, 10))},
		},
	})
	if err != nil {
		p.Log.Error("dlq write failed", zap.Error(err))
		p.onError("dlq")
		return
	}
	if p.OnDLQ != nil {
		p.OnDLQ()
	}
}

func (p *Processor) onError(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

func (p *Processor) sleep(d time.Duration) {
	if p.Sleep != nil {
		p.Sleep(d)
		return
	}
	time.Sleep(d)
}
