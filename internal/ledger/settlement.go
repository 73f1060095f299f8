package ledger

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"
)

// decideFunc valida as pré-condições do caminho de resolução e devolve o tipo
// de liquidação e o resultado certificado
type decideFunc func(b *Bet) (SettlementKind, bool, error)

// settleLocked roda a liquidação inteira com o lock da aposta: decide, lê o
// excedente, calcula os pagamentos e libera o lote no custodiante. O estado só
// muda depois que o Release confirma.
func (l *Ledger) settleLocked(ctx context.Context, betID BetID, decide decideFunc) error {
	var ev Event
	err := l.withBet(betID, func(b *Bet) error {
		kind, outcome, err := decide(b)
		if err != nil {
			return err
		}

		var surplus int64
		if kind != SettledByCancel {
			surplus, err = l.custodian.SurplusFor(ctx, l.escrowKey(betID))
			if err != nil {
				return fmt.Errorf("%w: surplus: %v", ErrCustody, err)
			}
			if surplus < 0 {
				l.log.Warn("negative surplus reported, distributing principal only",
					zap.Uint64("betId", uint64(betID)), zap.Int64("surplus", surplus))
				surplus = 0
			}
		}

		payouts := ComputePayouts(b.records(), outcome, kind == SettledByCancel, surplus, l.params.WinnerShareBPS)
		transfers := make([]Transfer, 0, len(payouts))
		var distributed int64
		for _, p := range payouts {
			transfers = append(transfers, Transfer{Participant: p.Participant, Amount: p.Total()})
			distributed += p.Yield
		}
		if err := l.custodian.Release(ctx, l.escrowKey(betID), transfers); err != nil {
			return fmt.Errorf("%w: release: %v", ErrCustody, err)
		}

		now := l.now()
		b.version++
		b.settlement = &Settlement{
			Kind:      kind,
			Outcome:   outcome && kind != SettledByCancel,
			Surplus:   surplus,
			Dust:      surplus - distributed,
			SettledAt: now,
			Payouts:   payouts,
		}
		settlements.WithLabelValues(string(kind)).Inc()
		yieldDistributed.Add(float64(distributed))
		dustRetained.Add(float64(surplus - distributed))

		cp := *b.settlement
		cp.Payouts = append([]Payout(nil), payouts...)
		ev = Event{
			Type:       EventBetSettled,
			BetID:      betID,
			Settlement: &cp,
			Stakes:     b.records(),
			At:         now,
		}
		return nil
	})
	if err != nil {
		l.log.Debug("settlement rejected", zap.Uint64("betId", uint64(betID)), zap.Error(err))
		return err
	}

	l.log.Info("bet settled",
		zap.Uint64("betId", uint64(betID)),
		zap.String("kind", string(ev.Settlement.Kind)),
		zap.Bool("outcome", ev.Settlement.Outcome),
		zap.Int64("surplus", ev.Settlement.Surplus),
		zap.Int64("dust", ev.Settlement.Dust),
	)
	l.publish(ctx, ev)
	return nil
}

// ComputePayouts calcula o pagamento de cada participante, na ordem dos stakes.
//
// Cancelada: todo mundo recebe exatamente o principal. Caso contrário os
// vencedores dividem surplus*winnerBPS/10000 e os perdedores o restante, ambos
// proporcionalmente ao principal. Lado vazio não recebe e sua fatia fica no
// custodiante. Divisões truncam; a sobra (dust) também fica no custodiante.
func ComputePayouts(stakes []StakeRecord, outcome, cancelled bool, surplus int64, winnerBPS uint32) []Payout {
	out := make([]Payout, 0, len(stakes))
	if cancelled || surplus <= 0 {
		for _, s := range stakes {
			out = append(out, Payout{Participant: s.Participant, Principal: s.Amount})
		}
		return out
	}

	var winTotal, loseTotal int64
	for _, s := range stakes {
		if s.Prediction == outcome {
			winTotal += s.Amount
		} else {
			loseTotal += s.Amount
		}
	}
	winPool := mulDiv(surplus, int64(winnerBPS), bpsDenominator)
	losePool := mulDiv(surplus, int64(bpsDenominator-winnerBPS), bpsDenominator)

	for _, s := range stakes {
		p := Payout{Participant: s.Participant, Principal: s.Amount}
		if s.Prediction == outcome {
			if winTotal > 0 {
				p.Yield = mulDiv(winPool, s.Amount, winTotal)
			}
		} else if loseTotal > 0 {
			p.Yield = mulDiv(losePool, s.Amount, loseTotal)
		}
		out = append(out, p)
	}
	return out
}

// mulDiv calcula a*b/c truncado sem overflow intermediário
func mulDiv(a, b, c int64) int64 {
	if c == 0 {
		return 0
	}
	r := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	return r.Quo(r, big.NewInt(c)).Int64()
}
