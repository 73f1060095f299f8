package ledger

import "errors"

// Kind agrupa os erros do ledger pela forma como o chamador pode reagir
type Kind string

const (
	KindValidation    Kind = "validation"    // corrigir input e tentar de novo
	KindTiming        Kind = "timing"        // esperar ou cair no admin
	KindAuthorization Kind = "authorization" // terminal para o chamador
	KindConsensus     Kind = "consensus"     // precisa de override do admin
	KindIdempotency   Kind = "idempotency"   // liquidação já executada
	KindNotFound      Kind = "not_found"
	KindCustody       Kind = "custody" // falha no custodiante, nada foi aplicado
	KindInternal      Kind = "internal"
)

var (
	// validação
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrInvalidDuration  = errors.New("duration must be at least one day")
	ErrEmptyCondition   = errors.New("condition text required")
	ErrEmptyParticipant = errors.New("participant id required")
	ErrStakeTooLow      = errors.New("stake below bet minimum")
	ErrAlreadyJoined    = errors.New("participant already joined this bet")
	ErrNotParticipant   = errors.New("participant has no stake on this bet")
	ErrAlreadyAttested  = errors.New("participant already attested")
	ErrSideMismatch     = errors.New("outcome differs from participant prediction")
	ErrInvalidYieldRate = errors.New("yield rate must be between 0 and 100")

	// tempo
	ErrBetExpired    = errors.New("bet expired")
	ErrTooEarly      = errors.New("too early")
	ErrWindowClosed  = errors.New("resolution window closed")
	ErrNotYetExpired = errors.New("bet not yet expired")

	// autorização
	ErrNotAdmin = errors.New("caller is not the ledger administrator")

	// consenso
	ErrNoAttestations  = errors.New("no attestations recorded")
	ErrNoSupermajority = errors.New("no supermajority reached")

	// idempotência
	ErrAlreadyFinalized = errors.New("bet already finalized")

	ErrBetNotFound = errors.New("bet not found")
	ErrCustody     = errors.New("custodian failure")
)

var kinds = map[error]Kind{
	ErrInvalidAmount:    KindValidation,
	ErrInvalidDuration:  KindValidation,
	ErrEmptyCondition:   KindValidation,
	ErrEmptyParticipant: KindValidation,
	ErrStakeTooLow:      KindValidation,
	ErrAlreadyJoined:    KindValidation,
	ErrNotParticipant:   KindValidation,
	ErrAlreadyAttested:  KindValidation,
	ErrSideMismatch:     KindValidation,
	ErrInvalidYieldRate: KindValidation,

	ErrBetExpired:    KindTiming,
	ErrTooEarly:      KindTiming,
	ErrWindowClosed:  KindTiming,
	ErrNotYetExpired: KindTiming,

	ErrNotAdmin: KindAuthorization,

	ErrNoAttestations:  KindConsensus,
	ErrNoSupermajority: KindConsensus,

	ErrAlreadyFinalized: KindIdempotency,
	ErrBetNotFound:      KindNotFound,
	ErrCustody:          KindCustody,
}

// KindOf classifica um erro retornado pelo ledger; erros desconhecidos são internal
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for target, k := range kinds {
		if errors.Is(err, target) {
			return k
		}
	}
	return KindInternal
}
