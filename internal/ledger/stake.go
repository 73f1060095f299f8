package ledger

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// JoinBet registra o stake de um participante enquanto a aposta está aberta.
// O pull no custodiante acontece com o lock da aposta; a contabilidade só é
// aplicada depois que ele confirma.
func (l *Ledger) JoinBet(ctx context.Context, betID BetID, participant string, amount int64, prediction bool) (err error) {
	defer func() { observe("join", err) }()

	if strings.TrimSpace(participant) == "" {
		return ErrEmptyParticipant
	}

	var ev Event
	err = l.withBet(betID, func(b *Bet) error {
		now := l.now()
		switch {
		case amount <= 0:
			return ErrInvalidAmount
		case !now.Before(b.ExpiresAt):
			return ErrBetExpired
		}
		if _, ok := b.stakes[participant]; ok {
			return ErrAlreadyJoined
		}
		if amount < b.MinStake {
			return ErrStakeTooLow
		}

		if err := l.pull(ctx, betID, participant, amount); err != nil {
			return fmt.Errorf("%w: pull stake: %v", ErrCustody, err)
		}
		b.addStake(&StakeRecord{
			Participant: participant,
			Amount:      amount,
			Prediction:  prediction,
			JoinedAt:    now,
		})
		ev = Event{
			Type:        EventStakeJoined,
			BetID:       betID,
			Participant: participant,
			Amount:      amount,
			Prediction:  prediction,
			At:          now,
		}
		return nil
	})
	if err != nil {
		l.log.Debug("join rejected", zap.Uint64("betId", uint64(betID)), zap.String("participant", participant), zap.Error(err))
		return err
	}

	l.log.Info("stake joined",
		zap.Uint64("betId", uint64(betID)),
		zap.String("participant", participant),
		zap.Int64("amount", amount),
		zap.Bool("prediction", prediction),
	)
	l.publish(ctx, ev)
	return nil
}
