package dto

type CreateBetResponse struct {
	BetID  uint64 `json:"betId"`
	Status string `json:"status"`
}

type StakeResponse struct {
	BetID         uint64 `json:"betId"`
	ParticipantID string `json:"participantId"`
	Amount        int64  `json:"amount"`
}

type YieldRateResponse struct {
	Percent uint32 `json:"percent"`
}

type AdminResponse struct {
	Admin string `json:"admin"`
}

// ErrorResponse carrega o Kind do ledger para o cliente decidir se tenta de novo
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
