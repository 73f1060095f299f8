package ledger

import (
	"context"
	"math/big"
)

// Supermajority decide o lado vencedor pelo peso do stake.
// ok == false quando nenhum lado atinge thresholdBPS do total.
func Supermajority(totalTrue, totalFalse int64, thresholdBPS uint32) (outcome bool, ok bool) {
	total := totalTrue + totalFalse
	if total <= 0 {
		return false, false
	}
	// side*10000 >= threshold*total, em big.Int para não estourar int64
	need := new(big.Int).Mul(big.NewInt(int64(thresholdBPS)), big.NewInt(total))
	side := func(v int64) bool {
		return new(big.Int).Mul(big.NewInt(v), big.NewInt(bpsDenominator)).Cmp(need) >= 0
	}
	switch {
	case side(totalTrue):
		return true, true
	case side(totalFalse):
		return false, true
	}
	return false, false
}

// FinalizeResolution tenta a finalização automática; qualquer um pode chamar
// depois do prazo de resolução, desde que exista ao menos uma atestação.
func (l *Ledger) FinalizeResolution(ctx context.Context, betID BetID) (err error) {
	defer func() { observe("finalize", err) }()

	return l.settleLocked(ctx, betID, func(b *Bet) (SettlementKind, bool, error) {
		switch {
		case b.settlement != nil:
			return "", false, ErrAlreadyFinalized
		case l.now().Before(b.ResolutionDeadline):
			return "", false, ErrTooEarly
		case b.attestations == 0:
			return "", false, ErrNoAttestations
		}
		outcome, ok := Supermajority(b.TotalTrue, b.TotalFalse, l.params.SupermajorityBPS)
		if !ok {
			return "", false, ErrNoSupermajority
		}
		return SettledBySupermajority, outcome, nil
	})
}
