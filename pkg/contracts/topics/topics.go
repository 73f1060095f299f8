package topics

const (
	// Ciclo de vida das apostas
	BetCreated      = "bet_created"
	StakeJoined     = "stake_joined"
	OutcomeAttested = "outcome_attested"
	BetSettled      = "bet_settled"

	// DLQs
	BetSettledDLQ = "bet_settled_dlq"
)
