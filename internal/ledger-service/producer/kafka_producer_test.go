package producer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/noloss-ledger-poc/internal/ledger"
	"github.com/radieske/noloss-ledger-poc/pkg/contracts/events"
	"github.com/radieske/noloss-ledger-poc/pkg/contracts/topics"
)

type captureWriter struct{ msgs []kafka.Message }

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func TestPublish_RoutesEachTypeToItsTopic(t *testing.T) {
	w := &captureWriter{}
	p := NewKafkaPublisher(w, DefaultTopics())
	at := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, ledger.Event{Type: ledger.EventBetCreated, Instance: "main", BetID: 3, Participant: "c", Amount: 10, At: at}))
	require.NoError(t, p.Publish(ctx, ledger.Event{Type: ledger.EventStakeJoined, Instance: "main", BetID: 3, Participant: "a", Amount: 5, At: at}))
	require.NoError(t, p.Publish(ctx, ledger.Event{Type: ledger.EventOutcomeAttested, Instance: "main", BetID: 3, Participant: "a", At: at}))

	require.Len(t, w.msgs, 3)
	assert.Equal(t, topics.BetCreated, w.msgs[0].Topic)
	assert.Equal(t, topics.StakeJoined, w.msgs[1].Topic)
	assert.Equal(t, topics.OutcomeAttested, w.msgs[2].Topic)
	for _, m := range w.msgs {
		assert.Equal(t, "main/3", string(m.Key))
		assert.Len(t, m.Headers, 2)
	}

	var joined events.StakeJoined
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &joined))
	assert.Equal(t, events.StakeJoined{LedgerID: "main", BetID: 3, UserID: "a", StakeCents: 5, TsUnixMs: at.UnixMilli()}, joined)
}

func TestPublish_BetSettledCarriesStakesAndPayouts(t *testing.T) {
	w := &captureWriter{}
	p := NewKafkaPublisher(w, DefaultTopics())

	err := p.Publish(context.Background(), ledger.Event{
		Type:     ledger.EventBetSettled,
		Instance: "main",
		BetID:    9,
		Settlement: &ledger.Settlement{
			Kind:    ledger.SettledBySupermajority,
			Outcome: true,
			Surplus: 25,
			Payouts: []ledger.Payout{{Participant: "c", Principal: 400, Yield: 20}, {Participant: "b", Principal: 100, Yield: 5}},
		},
		Stakes: []ledger.StakeRecord{{Participant: "c", Amount: 400, Prediction: true}, {Participant: "b", Amount: 100}},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, topics.BetSettled, w.msgs[0].Topic)

	var got events.BetSettled
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, "main", got.LedgerID)
	assert.Equal(t, "main/9", string(w.msgs[0].Key))
	assert.Equal(t, "SUPERMAJORITY", got.Kind)
	assert.Len(t, got.Stakes, 2)
	assert.Equal(t, events.Payout{UserID: "c", PrincipalCents: 400, YieldCents: 20}, got.Payouts[0])
}

func TestPublish_RejectsSettledWithoutSettlement(t *testing.T) {
	p := NewKafkaPublisher(&captureWriter{}, DefaultTopics())
	assert.Error(t, p.Publish(context.Background(), ledger.Event{Type: ledger.EventBetSettled, BetID: 1}))
	assert.Error(t, p.Publish(context.Background(), ledger.Event{Type: "weird"}))
}
