package dto

type WalletResponse struct {
	UserID       string `json:"userId"`
	WalletID     string `json:"walletId"`
	BalanceCents int64  `json:"balance_cents"`
}

// SurplusResponse devolve o excedente do escrow sobre o principal
type SurplusResponse struct {
	LedgerID     string `json:"ledgerId"`
	BetID        uint64 `json:"betId"`
	SurplusCents int64  `json:"surplus_cents"`
}

// EscrowResponse descreve o escrow de uma aposta
type EscrowResponse struct {
	LedgerID       string `json:"ledgerId"`
	BetID          uint64 `json:"betId"`
	PrincipalCents int64  `json:"principal_cents"`
	BalanceCents   int64  `json:"balance_cents"`
	Released       bool   `json:"released"`
}

// LastBetResponse devolve o maior betId com escrow na instância (0 se nenhum)
type LastBetResponse struct {
	LedgerID string `json:"ledgerId"`
	BetID    uint64 `json:"betId"`
}

// ErrorResponse é o corpo padrão de erro
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
