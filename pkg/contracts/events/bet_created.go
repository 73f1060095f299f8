package events

import "time"

// Evento emitido pelo ledger-service quando uma aposta é criada.
// O criador já entra com o primeiro stake.
type BetCreated struct {
	LedgerID   string    `json:"ledger_id"`
	BetID      uint64    `json:"bet_id"`
	Creator    string    `json:"creator"`
	Condition  string    `json:"condition"`
	StakeCents int64     `json:"stake_cents"`
	Prediction bool      `json:"prediction"`
	ExpiresAt  time.Time `json:"expires_at"`
	TsUnixMs   int64     `json:"ts_unix_ms"`
}
