package ledger

import "time"

// BetID é atribuído de forma monotônica pelo registro, começando em 1
type BetID uint64

// Status é derivado do relógio e da liquidação; nunca é armazenado
type Status string

const (
	StatusOpen          Status = "OPEN"           // aceitando stakes
	StatusAwaitingVotes Status = "AWAITING_VOTES" // janela de atestação aberta
	StatusResolvable    Status = "RESOLVABLE"     // prazo encerrado, aguardando finalização
	StatusAutoResolved  Status = "AUTO_RESOLVED"
	StatusAdminResolved Status = "ADMIN_RESOLVED"
	StatusCancelled     Status = "CANCELLED"
)

// SettlementKind identifica o caminho que liquidou a aposta
type SettlementKind string

const (
	SettledBySupermajority SettlementKind = "SUPERMAJORITY"
	SettledByAdmin         SettlementKind = "ADMIN"
	SettledByCancel        SettlementKind = "CANCEL"
)

// StakeRecord é a posição de um participante numa aposta
type StakeRecord struct {
	Participant     string    `json:"participantId"`
	Amount          int64     `json:"amount"`
	Prediction      bool      `json:"prediction"`
	Attested        bool      `json:"attested"`
	AttestedOutcome bool      `json:"attestedOutcome"`
	JoinedAt        time.Time `json:"joinedAt"`
}

// Payout é o valor liberado para um participante na liquidação
type Payout struct {
	Participant string `json:"participantId"`
	Principal   int64  `json:"principal"`
	Yield       int64  `json:"yield"`
}

// Total devolve principal + rendimento
func (p Payout) Total() int64 { return p.Principal + p.Yield }

// Settlement existe apenas depois que a aposta foi finalizada.
// resolved/finalized/cancelled são todos derivados da presença dele.
type Settlement struct {
	Kind      SettlementKind `json:"kind"`
	Outcome   bool           `json:"outcome"` // sem significado quando Kind == SettledByCancel
	Surplus   int64          `json:"surplus"`
	Dust      int64          `json:"dust"`
	SettledAt time.Time      `json:"settledAt"`
	Payouts   []Payout       `json:"payouts"`
}

// Bet é o estado interno de uma aposta. Só é tocado com o lock do slot.
type Bet struct {
	ID                 BetID
	Creator            string
	Condition          string
	MinStake           int64
	CreatedAt          time.Time
	ExpiresAt          time.Time
	ResolutionDeadline time.Time
	TotalTrue          int64
	TotalFalse         int64

	stakes       map[string]*StakeRecord
	order        []string // ordem de entrada, usada para iterar de forma determinística
	attestations int
	settlement   *Settlement
	version      uint64 // sobe a cada mutação aplicada
}

func newBet(id BetID, creator, condition string, minStake int64, now time.Time, duration, window time.Duration) *Bet {
	expires := now.Add(duration)
	return &Bet{
		ID:                 id,
		Creator:            creator,
		Condition:          condition,
		MinStake:           minStake,
		CreatedAt:          now,
		ExpiresAt:          expires,
		ResolutionDeadline: expires.Add(window),
		stakes:             make(map[string]*StakeRecord),
	}
}

// TotalStake soma os dois lados
func (b *Bet) TotalStake() int64 { return b.TotalTrue + b.TotalFalse }

// Status calcula o estado do ciclo de vida no instante now
func (b *Bet) Status(now time.Time) Status {
	if s := b.settlement; s != nil {
		switch s.Kind {
		case SettledByCancel:
			return StatusCancelled
		case SettledByAdmin:
			return StatusAdminResolved
		default:
			return StatusAutoResolved
		}
	}
	switch {
	case now.Before(b.ExpiresAt):
		return StatusOpen
	case now.Before(b.ResolutionDeadline):
		return StatusAwaitingVotes
	default:
		return StatusResolvable
	}
}

func (b *Bet) addStake(rec *StakeRecord) {
	b.version++
	b.stakes[rec.Participant] = rec
	b.order = append(b.order, rec.Participant)
	if rec.Prediction {
		b.TotalTrue += rec.Amount
	} else {
		b.TotalFalse += rec.Amount
	}
}

// BetDetails é a visão destacada de uma aposta devolvida aos chamadores
type BetDetails struct {
	ID                  BetID       `json:"betId"`
	Instance            string      `json:"instance"`
	Version             uint64      `json:"version"`
	Creator             string      `json:"creator"`
	Condition           string      `json:"condition"`
	MinStake            int64       `json:"minStake"`
	CreatedAt           time.Time   `json:"createdAt"`
	ExpirationTime      time.Time   `json:"expirationTime"`
	ResolutionDeadline  time.Time   `json:"resolutionDeadline"`
	Status              Status      `json:"status"`
	Resolved            bool        `json:"resolved"`
	ResolutionFinalized bool        `json:"resolutionFinalized"`
	Cancelled           bool        `json:"cancelled"`
	WinningOutcome      bool        `json:"winningOutcome"`
	TotalStakeTrue      int64       `json:"totalStakeTrue"`
	TotalStakeFalse     int64       `json:"totalStakeFalse"`
	Participants        int         `json:"participants"`
	Attestations        int         `json:"attestations"`
	Settlement          *Settlement `json:"settlement,omitempty"`
}

func (b *Bet) details(now time.Time) BetDetails {
	d := BetDetails{
		ID:                 b.ID,
		Creator:            b.Creator,
		Condition:          b.Condition,
		MinStake:           b.MinStake,
		CreatedAt:          b.CreatedAt,
		ExpirationTime:     b.ExpiresAt,
		ResolutionDeadline: b.ResolutionDeadline,
		Version:            b.version,
		Status:             b.Status(now),
		TotalStakeTrue:     b.TotalTrue,
		TotalStakeFalse:    b.TotalFalse,
		Participants:       len(b.order),
		Attestations:       b.attestations,
	}
	if s := b.settlement; s != nil {
		cp := *s
		cp.Payouts = append([]Payout(nil), s.Payouts...)
		d.Settlement = &cp
		d.Resolved = true
		d.ResolutionFinalized = true
		d.Cancelled = s.Kind == SettledByCancel
		d.WinningOutcome = s.Outcome && !d.Cancelled
	}
	return d
}

func (b *Bet) records() []StakeRecord {
	out := make([]StakeRecord, 0, len(b.order))
	for _, p := range b.order {
		out = append(out, *b.stakes[p])
	}
	return out
}
