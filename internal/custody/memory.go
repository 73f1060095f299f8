package custody

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/radieske/noloss-ledger-poc/internal/ledger"
)

var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientEscrow = errors.New("escrow cannot cover release")
	ErrAlreadyReleased    = errors.New("escrow already released")
	ErrUnknownEscrow      = errors.New("escrow not found")
	ErrStakeConflict      = errors.New("participant already pulled a different amount into this escrow")
)

// Op identifica uma operação do custodiante para injeção de falhas
type Op string

const (
	OpPull    Op = "pull"
	OpRefund  Op = "refund"
	OpRelease Op = "release"
	OpSurplus Op = "surplus"
)

type escrow struct {
	principal int64
	balance   int64
	released  bool
	stakes    map[string]int64
}

// Memory é um custodiante em memória: carteiras por participante e um escrow
// por (instância, aposta). Usado no modo CUSTODY_MODE=memory e nos testes.
type Memory struct {
	mu       sync.Mutex
	balances map[string]int64
	escrows  map[ledger.EscrowKey]*escrow
	failures map[Op]error
	lost     map[Op]error
}

// NewMemory cria um custodiante vazio
func NewMemory() *Memory {
	return &Memory{
		balances: make(map[string]int64),
		escrows:  make(map[ledger.EscrowKey]*escrow),
		failures: make(map[Op]error),
		lost:     make(map[Op]error),
	}
}

// Deposit credita saldo livre na carteira do participante
func (m *Memory) Deposit(participant string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[participant] += amount
}

// Balance devolve o saldo livre do participante
func (m *Memory) Balance(participant string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[participant]
}

// AccrueYield soma rendimento externo ao escrow da aposta
func (m *Memory) AccrueYield(key ledger.EscrowKey, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.escrowFor(key).balance += amount
}

// Escrow devolve principal e saldo do escrow da aposta
func (m *Memory) Escrow(key ledger.EscrowKey) (principal, balance int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.escrows[key]; ok {
		return e.principal, e.balance
	}
	return 0, 0
}

// FailNext faz a próxima chamada de op falhar com err (uma vez), sem aplicar nada
func (m *Memory) FailNext(op Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = err
}

// LoseNextReply faz a próxima chamada de op ser aplicada e mesmo assim devolver
// err, como um timeout depois do commit
func (m *Memory) LoseNextReply(op Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lost[op] = err
}

func (m *Memory) takeFailure(op Op) error {
	err := m.failures[op]
	delete(m.failures, op)
	return err
}

func (m *Memory) takeLost(op Op) error {
	err := m.lost[op]
	delete(m.lost, op)
	return err
}

func (m *Memory) escrowFor(key ledger.EscrowKey) *escrow {
	e, ok := m.escrows[key]
	if !ok {
		e = &escrow{stakes: make(map[string]int64)}
		m.escrows[key] = e
	}
	return e
}

// Pull é idempotente por (escrow, participante): o mesmo valor de novo é no-op
// e um valor diferente devolve ErrStakeConflict
func (m *Memory) Pull(_ context.Context, key ledger.EscrowKey, participant string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(OpPull); err != nil {
		return err
	}
	if e, ok := m.escrows[key]; ok {
		if existing, ok := e.stakes[participant]; ok {
			if existing != amount {
				return ErrStakeConflict
			}
			return m.takeLost(OpPull)
		}
	}
	if m.balances[participant] < amount {
		return ErrInsufficientFunds
	}
	e := m.escrowFor(key)
	if e.released {
		return ErrAlreadyReleased
	}
	m.balances[participant] -= amount
	e.principal += amount
	e.balance += amount
	e.stakes[participant] = amount
	return m.takeLost(OpPull)
}

// Refund devolve o stake do participante para a carteira; sem stake é no-op
func (m *Memory) Refund(_ context.Context, key ledger.EscrowKey, participant string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(OpRefund); err != nil {
		return err
	}
	e, ok := m.escrows[key]
	if !ok {
		return nil
	}
	amount, ok := e.stakes[participant]
	if !ok {
		return nil
	}
	if e.released {
		return ErrAlreadyReleased
	}
	m.balances[participant] += amount
	e.principal -= amount
	e.balance -= amount
	delete(e.stakes, participant)
	return m.takeLost(OpRefund)
}

// Release aplica o lote inteiro ou nada. Stakes do escrow sem linha no lote
// recebem o principal de volta na mesma operação.
func (m *Memory) Release(_ context.Context, key ledger.EscrowKey, transfers []ledger.Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(OpRelease); err != nil {
		return err
	}
	e, ok := m.escrows[key]
	if !ok {
		return ErrUnknownEscrow
	}
	if e.released {
		return ErrAlreadyReleased
	}
	paid := make(map[string]bool, len(transfers))
	var total int64
	for _, t := range transfers {
		total += t.Amount
		paid[t.Participant] = true
	}
	orphans := make(map[string]int64)
	for p, amount := range e.stakes {
		if !paid[p] {
			orphans[p] = amount
			total += amount
		}
	}
	if total > e.balance {
		return ErrInsufficientEscrow
	}
	for _, t := range transfers {
		m.balances[t.Participant] += t.Amount
	}
	for p, amount := range orphans {
		m.balances[p] += amount
	}
	e.balance -= total
	e.released = true
	return m.takeLost(OpRelease)
}

func (m *Memory) SurplusFor(_ context.Context, key ledger.EscrowKey) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(OpSurplus); err != nil {
		return 0, err
	}
	e, ok := m.escrows[key]
	if !ok {
		return 0, nil
	}
	return e.balance - e.principal, nil
}

// LastBetID devolve o maior BetID com escrow na instância
func (m *Memory) LastBetID(_ context.Context, instance string) (ledger.BetID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last ledger.BetID
	for k := range m.escrows {
		if k.Instance == instance && k.Bet > last {
			last = k.Bet
		}
	}
	return last, nil
}

// ParseSeed lê saldos iniciais no formato "alice:1000,bob:500"
func ParseSeed(s string) (map[string]int64, error) {
	out := make(map[string]int64)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		user, amount, ok := strings.Cut(part, ":")
		if !ok || user == "" {
			return nil, fmt.Errorf("custody seed: bad entry %q", part)
		}
		n, err := strconv.ParseInt(amount, 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("custody seed: bad amount for %q", user)
		}
		out[user] += n
	}
	return out, nil
}
