package ledger

import (
	"context"

	"go.uber.org/zap"
)

// SubmitResolutionOutcome registra a atestação de um participante.
//
// A atestação só habilita a finalização (precisa existir pelo menos uma); ela não
// entra na conta da supermaioria, que é feita sobre o stake de cada lado.
// Regra inferida de cenários observados, não de regra documentada: apostas
// finalizam pelo peso do stake mesmo quando só um lado atesta.
func (l *Ledger) SubmitResolutionOutcome(ctx context.Context, betID BetID, participant string, outcome bool) (err error) {
	defer func() { observe("attest", err) }()

	var ev Event
	err = l.withBet(betID, func(b *Bet) error {
		now := l.now()
		switch {
		case b.settlement != nil:
			return ErrAlreadyFinalized
		case now.Before(b.ExpiresAt):
			return ErrTooEarly
		case !now.Before(b.ResolutionDeadline):
			return ErrWindowClosed
		}
		rec, ok := b.stakes[participant]
		switch {
		case !ok:
			return ErrNotParticipant
		case rec.Attested:
			return ErrAlreadyAttested
		case rec.Prediction != outcome:
			return ErrSideMismatch
		}

		rec.Attested = true
		rec.AttestedOutcome = outcome
		b.attestations++
		b.version++
		ev = Event{
			Type:        EventOutcomeAttested,
			BetID:       betID,
			Participant: participant,
			Amount:      rec.Amount,
			Prediction:  outcome,
			At:          now,
		}
		return nil
	})
	if err != nil {
		l.log.Debug("attestation rejected", zap.Uint64("betId", uint64(betID)), zap.String("participant", participant), zap.Error(err))
		return err
	}

	l.log.Info("outcome attested",
		zap.Uint64("betId", uint64(betID)),
		zap.String("participant", participant),
		zap.Bool("outcome", outcome),
	)
	l.publish(ctx, ev)
	return nil
}
