package ledger

import (
	"fmt"
	"time"
)

const (
	bpsDenominator = 10_000

	// SupermajorityBPS é o limiar default de participação (em bps do stake total)
	// que um lado precisa atingir para finalização automática. Só a faixa
	// (6667, 8000] foi observada; 8000 ainda precisa de confirmação.
	SupermajorityBPS = 8000

	// WinnerShareBPS é a fatia do rendimento que vai para o lado vencedor
	WinnerShareBPS = 8000

	DefaultYieldRatePct     = 5
	DefaultResolutionWindow = 1 * Day
)

// Params são os parâmetros fixos de uma instância
type Params struct {
	ResolutionWindow time.Duration
	SupermajorityBPS uint32
	WinnerShareBPS   uint32
	YieldRatePct     uint32 // nominal, só armazenado
}

// DefaultParams devolve os valores de produção
func DefaultParams() Params {
	return Params{
		ResolutionWindow: DefaultResolutionWindow,
		SupermajorityBPS: SupermajorityBPS,
		WinnerShareBPS:   WinnerShareBPS,
		YieldRatePct:     DefaultYieldRatePct,
	}
}

// Validate confere os limites de cada parâmetro
func (p Params) Validate() error {
	if p.ResolutionWindow <= 0 {
		return fmt.Errorf("resolution window must be positive, got %s", p.ResolutionWindow)
	}
	if p.SupermajorityBPS <= 6667 || p.SupermajorityBPS > 8000 {
		return fmt.Errorf("supermajority must be in (6667, 8000] bps, got %d", p.SupermajorityBPS)
	}
	if p.WinnerShareBPS > bpsDenominator {
		return fmt.Errorf("winner share must be <= %d bps, got %d", bpsDenominator, p.WinnerShareBPS)
	}
	if p.YieldRatePct > 100 {
		return ErrInvalidYieldRate
	}
	return nil
}
