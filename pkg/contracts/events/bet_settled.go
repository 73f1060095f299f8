package events

import "time"

// Stake é a posição de um participante no momento da liquidação
type Stake struct {
	UserID     string `json:"user_id"`
	StakeCents int64  `json:"stake_cents"`
	Prediction bool   `json:"prediction"`
}

type Payout struct {
	UserID         string `json:"user_id"`
	PrincipalCents int64  `json:"principal_cents"`
	YieldCents     int64  `json:"yield_cents"`
}

// Evento publicado no tópico "bet_settled", consumido pelo ledger-audit-worker.
type BetSettled struct {
	LedgerID     string    `json:"ledger_id"`
	BetID        uint64    `json:"bet_id"`
	Kind         string    `json:"kind"` // "SUPERMAJORITY" | "ADMIN" | "CANCEL"
	Outcome      bool      `json:"outcome"`
	SurplusCents int64     `json:"surplus_cents"`
	DustCents    int64     `json:"dust_cents"`
	Stakes       []Stake   `json:"stakes"`
	Payouts      []Payout  `json:"payouts"`
	SettledAt    time.Time `json:"settled_at"`
}
