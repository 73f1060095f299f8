package dto

type DepositRequest struct {
	UserID      string `json:"userId"`
	AmountCents int64  `json:"amount_cents"`
	ExternalRef string `json:"external_ref,omitempty"` // opcional p/ idempotência simples
}

// PullRequest move principal da carteira para o escrow da aposta
type PullRequest struct {
	LedgerID    string `json:"ledgerId"`
	BetID       uint64 `json:"betId"`
	UserID      string `json:"userId"`
	AmountCents int64  `json:"amount_cents"`
}

// RefundRequest devolve à carteira um stake que o ledger não registrou
type RefundRequest struct {
	LedgerID string `json:"ledgerId"`
	BetID    uint64 `json:"betId"`
	UserID   string `json:"userId"`
}

// Transfer é uma linha do lote de liberação
type Transfer struct {
	UserID      string `json:"userId"`
	AmountCents int64  `json:"amount_cents"`
}

// ReleaseRequest libera o escrow de uma aposta em lote único
type ReleaseRequest struct {
	LedgerID  string     `json:"ledgerId"`
	BetID     uint64     `json:"betId"`
	Transfers []Transfer `json:"transfers"`
}

// YieldRequest registra rendimento externo acumulado no escrow
type YieldRequest struct {
	LedgerID    string `json:"ledgerId"`
	BetID       uint64 `json:"betId"`
	AmountCents int64  `json:"amount_cents"`
}
