package producer

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/radieske/noloss-ledger-poc/internal/ledger"
	"github.com/radieske/noloss-ledger-poc/pkg/contracts/events"
	"github.com/radieske/noloss-ledger-poc/pkg/contracts/topics"
)

// MessageWriter é o subconjunto do kafka.Writer usado aqui
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Topics mapeia cada tipo de evento para o seu tópico
type Topics struct {
	BetCreated      string
	StakeJoined     string
	OutcomeAttested string
	BetSettled      string
}

// DefaultTopics usa os nomes do pacote de contratos
func DefaultTopics() Topics {
	return Topics{
		BetCreated:      topics.BetCreated,
		StakeJoined:     topics.StakeJoined,
		OutcomeAttested: topics.OutcomeAttested,
		BetSettled:      topics.BetSettled,
	}
}

// KafkaPublisher implementa ledger.Publisher. O writer não tem tópico fixo:
// cada mensagem leva o seu. A chave é instância/betId para manter a ordem por aposta.
type KafkaPublisher struct {
	Writer MessageWriter
	Topics Topics
}

func NewKafkaPublisher(w MessageWriter, t Topics) *KafkaPublisher {
	return &KafkaPublisher{Writer: w, Topics: t}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev ledger.Event) error {
	topic, payload, err := p.encode(ev)
	if err != nil {
		return err
	}
	b, _ := json.Marshal(payload)
	return p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(ledger.EscrowKey{Instance: ev.Instance, Bet: ev.BetID}.String()),
		Value: b,
		Time:  ev.At,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(uuid.NewString())},
			{Key: "event-type", Value: []byte(ev.Type)},
		},
	})
}

func (p *KafkaPublisher) encode(ev ledger.Event) (string, any, error) {
	ts := ev.At.UnixMilli()
	switch ev.Type {
	case ledger.EventBetCreated:
		return p.Topics.BetCreated, events.BetCreated{
			LedgerID:   ev.Instance,
			BetID:      uint64(ev.BetID),
			Creator:    ev.Participant,
			Condition:  ev.Condition,
			StakeCents: ev.Amount,
			Prediction: ev.Prediction,
			ExpiresAt:  ev.ExpiresAt,
			TsUnixMs:   ts,
		}, nil
	case ledger.EventStakeJoined:
		return p.Topics.StakeJoined, events.StakeJoined{
			LedgerID:   ev.Instance,
			BetID:      uint64(ev.BetID),
			UserID:     ev.Participant,
			StakeCents: ev.Amount,
			Prediction: ev.Prediction,
			TsUnixMs:   ts,
		}, nil
	case ledger.EventOutcomeAttested:
		return p.Topics.OutcomeAttested, events.OutcomeAttested{
			LedgerID: ev.Instance,
			BetID:    uint64(ev.BetID),
			UserID:   ev.Participant,
			Outcome:  ev.Prediction,
			TsUnixMs: ts,
		}, nil
	case ledger.EventBetSettled:
		if ev.Settlement == nil {
			return "", nil, fmt.Errorf("bet_settled without settlement for bet %d", ev.BetID)
		}
		return p.Topics.BetSettled, SettledEvent(ev.Instance, ev.BetID, *ev.Settlement, ev.Stakes), nil
	}
	return "", nil, fmt.Errorf("unknown event type %q", ev.Type)
}

// SettledEvent converte uma liquidação do ledger no contrato publicado
func SettledEvent(instance string, betID ledger.BetID, s ledger.Settlement, stakes []ledger.StakeRecord) events.BetSettled {
	out := events.BetSettled{
		LedgerID:     instance,
		BetID:        uint64(betID),
		Kind:         string(s.Kind),
		Outcome:      s.Outcome,
		SurplusCents: s.Surplus,
		DustCents:    s.Dust,
		SettledAt:    s.SettledAt,
		Stakes:       make([]events.Stake, 0, len(stakes)),
		Payouts:      make([]events.Payout, 0, len(s.Payouts)),
	}
	for _, st := range stakes {
		out.Stakes = append(out.Stakes, events.Stake{UserID: st.Participant, StakeCents: st.Amount, Prediction: st.Prediction})
	}
	for _, p := range s.Payouts {
		out.Payouts = append(out.Payouts, events.Payout{UserID: p.Participant, PrincipalCents: p.Principal, YieldCents: p.Yield})
	}
	return out
}
