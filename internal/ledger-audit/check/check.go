package check

import (
	"fmt"

	"github.com/radieske/noloss-ledger-poc/pkg/contracts/events"
)

// Violation descreve uma quebra de invariante encontrada num bet_settled
type Violation struct {
	Rule   string `json:"rule"`
	UserID string `json:"userId,omitempty"`
	Detail string `json:"detail"`
}

func (v Violation) String() string {
	if v.UserID == "" {
		return v.Rule + ": " + v.Detail
	}
	return fmt.Sprintf("%s[%s]: %s", v.Rule, v.UserID, v.Detail)
}

const (
	RuleNoLoss       = "no_loss"
	RuleCancelExact  = "cancel_exact"
	RuleConservation = "conservation"
	RuleCoverage     = "coverage"
)

// Verify reconfere, só com o conteúdo do evento, que cada participante recebeu
// pelo menos o principal, que cancelamento devolveu exatamente o principal e que
// rendimento pago + dust fecha com o excedente.
func Verify(ev events.BetSettled) []Violation {
	var out []Violation

	stakes := make(map[string]int64, len(ev.Stakes))
	for _, s := range ev.Stakes {
		stakes[s.UserID] = s.StakeCents
	}

	paid := make(map[string]bool, len(ev.Payouts))
	var yield int64
	for _, p := range ev.Payouts {
		principal, ok := stakes[p.UserID]
		switch {
		case !ok:
			out = append(out, Violation{RuleCoverage, p.UserID, "payout to a non-participant"})
			continue
		case paid[p.UserID]:
			out = append(out, Violation{RuleCoverage, p.UserID, "paid twice"})
			continue
		}
		paid[p.UserID] = true

		if p.PrincipalCents != principal || p.YieldCents < 0 {
			out = append(out, Violation{RuleNoLoss, p.UserID,
				fmt.Sprintf("stake %d, paid principal %d yield %d", principal, p.PrincipalCents, p.YieldCents)})
		}
		if ev.Kind == "CANCEL" && p.YieldCents != 0 {
			out = append(out, Violation{RuleCancelExact, p.UserID, fmt.Sprintf("cancelled bet paid yield %d", p.YieldCents)})
		}
		yield += p.YieldCents
	}

	for _, s := range ev.Stakes {
		if !paid[s.UserID] {
			out = append(out, Violation{RuleCoverage, s.UserID, "participant without payout"})
		}
	}

	if ev.DustCents < 0 || yield+ev.DustCents != ev.SurplusCents {
		out = append(out, Violation{Rule: RuleConservation,
			Detail: fmt.Sprintf("surplus %d != yield %d + dust %d", ev.SurplusCents, yield, ev.DustCents)})
	}
	return out
}
