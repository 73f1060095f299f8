package events

type StakeJoined struct {
	LedgerID   string `json:"ledger_id"`
	BetID      uint64 `json:"bet_id"`
	UserID     string `json:"user_id"`
	StakeCents int64  `json:"stake_cents"`
	Prediction bool   `json:"prediction"`
	TsUnixMs   int64  `json:"ts_unix_ms"`
}

// OutcomeAttested é publicado a cada atestação aceita
type OutcomeAttested struct {
	LedgerID string `json:"ledger_id"`
	BetID    uint64 `json:"bet_id"`
	UserID   string `json:"user_id"`
	Outcome  bool   `json:"outcome"`
	TsUnixMs int64  `json:"ts_unix_ms"`
}
