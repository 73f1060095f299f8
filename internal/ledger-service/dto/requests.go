package dto

type CreateBetRequest struct {
	CreatorID    string `json:"creatorId"`
	MinStake     int64  `json:"minStake"`
	Condition    string `json:"condition"`
	DurationDays int    `json:"durationDays"`
	Stake        int64  `json:"stake"`
	Prediction   bool   `json:"prediction"`
}

type JoinBetRequest struct {
	ParticipantID string `json:"participantId"`
	Amount        int64  `json:"amount"`
	Prediction    bool   `json:"prediction"`
}

type AttestRequest struct {
	ParticipantID string `json:"participantId"`
	Outcome       bool   `json:"outcome"`
}

// AdminFinalizeRequest certifica o resultado ou cancela (cancel=true ignora outcome)
type AdminFinalizeRequest struct {
	CallerID string `json:"callerId"`
	Outcome  bool   `json:"outcome"`
	Cancel   bool   `json:"cancel"`
}

type YieldRateRequest struct {
	CallerID string `json:"callerId"`
	Percent  uint32 `json:"percent"`
}

type TransferAdminRequest struct {
	CallerID string `json:"callerId"`
	NewAdmin string `json:"newAdmin"`
}
