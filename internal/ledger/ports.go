package ledger

import (
	"context"
	"strconv"
	"time"
)

// Transfer é uma ordem de liberação de fundos para um participante
type Transfer struct {
	Participant string `json:"userId"`
	Amount      int64  `json:"amount_cents"`
}

// EscrowKey identifica o escrow de uma aposta dentro de uma instância.
// Duas instâncias no mesmo custodiante nunca compartilham escrow, mesmo com o
// mesmo BetID.
type EscrowKey struct {
	Instance string
	Bet      BetID
}

func (k EscrowKey) String() string {
	return k.Instance + "/" + strconv.FormatUint(uint64(k.Bet), 10)
}

// Custodian guarda os fundos das apostas (principal + rendimento acumulado).
//
// Pull é idempotente por (escrow, participante): repetir o mesmo valor não
// debita de novo e um valor diferente falha. Refund desfaz um Pull cujo
// resultado o ledger não conhece; sem stake no escrow é no-op. Release aplica
// o lote inteiro ou nada e devolve o principal de qualquer stake do escrow que
// não esteja no lote.
type Custodian interface {
	Pull(ctx context.Context, key EscrowKey, participant string, amount int64) error
	Refund(ctx context.Context, key EscrowKey, participant string) error
	Release(ctx context.Context, key EscrowKey, transfers []Transfer) error
	SurplusFor(ctx context.Context, key EscrowKey) (int64, error)
}

// BetIndex é opcional. Custodiantes persistentes informam o maior BetID já
// usado pela instância para a numeração continuar depois de um restart.
type BetIndex interface {
	LastBetID(ctx context.Context, instance string) (BetID, error)
}

// Factory entrega a identidade do administrador de uma nova instância
type Factory interface {
	Administrator(ctx context.Context) (string, error)
}

// StaticFactory devolve sempre o mesmo administrador (vem da config)
type StaticFactory string

func (f StaticFactory) Administrator(context.Context) (string, error) {
	if f == "" {
		return "", ErrEmptyParticipant
	}
	return string(f), nil
}

// EventType nomeia as transições publicadas pelo ledger
type EventType string

const (
	EventBetCreated      EventType = "bet_created"
	EventStakeJoined     EventType = "stake_joined"
	EventOutcomeAttested EventType = "outcome_attested"
	EventBetSettled      EventType = "bet_settled"
)

// Event descreve uma transição já confirmada
type Event struct {
	Type        EventType
	Instance    string
	BetID       BetID
	Participant string
	Amount      int64
	Prediction  bool
	Condition   string
	ExpiresAt   time.Time
	Settlement  *Settlement
	Stakes      []StakeRecord // só em bet_settled
	At          time.Time
}

// Publisher recebe os eventos depois do commit; falhas não desfazem a operação
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }
