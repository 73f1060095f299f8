package ledger

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// AdminFinalizeResolution é a válvula de escape do administrador: certifica o
// resultado informado, ou cancela devolvendo só o principal. Não depende de
// supermaioria nem de atestações.
func (l *Ledger) AdminFinalizeResolution(ctx context.Context, caller string, betID BetID, outcome, cancel bool) (err error) {
	defer func() { observe("admin_finalize", err) }()

	if !l.IsAdmin(caller) {
		return ErrNotAdmin
	}
	return l.settleLocked(ctx, betID, func(b *Bet) (SettlementKind, bool, error) {
		switch {
		case b.settlement != nil:
			return "", false, ErrAlreadyFinalized
		case l.now().Before(b.ExpiresAt):
			return "", false, ErrNotYetExpired
		}
		if cancel {
			return SettledByCancel, false, nil
		}
		return SettledByAdmin, outcome, nil
	})
}

// Admin devolve o administrador atual
func (l *Ledger) Admin() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.admin
}

// IsAdmin compara o chamador com o administrador atual
func (l *Ledger) IsAdmin(caller string) bool {
	return caller != "" && caller == l.Admin()
}

// Asset devolve a referência do ativo da instância
func (l *Ledger) Asset() string { return l.asset }

// TransferAdmin passa a administração adiante; só o admin atual pode
func (l *Ledger) TransferAdmin(caller, next string) (err error) {
	defer func() { observe("transfer_admin", err) }()

	if strings.TrimSpace(next) == "" {
		return ErrEmptyParticipant
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if caller == "" || caller != l.admin {
		return ErrNotAdmin
	}
	prev := l.admin
	l.admin = next
	l.log.Info("administrator transferred", zap.String("from", prev), zap.String("to", next))
	return nil
}

// SetYieldRate grava a taxa nominal de rendimento (percentual).
// O valor é apenas registrado: a liquidação distribui o excedente observado no
// custodiante, não uma taxa calculada.
func (l *Ledger) SetYieldRate(caller string, percent uint32) (err error) {
	defer func() { observe("set_yield_rate", err) }()

	l.mu.Lock()
	defer l.mu.Unlock()
	if caller == "" || caller != l.admin {
		return ErrNotAdmin
	}
	if percent > 100 {
		return ErrInvalidYieldRate
	}
	l.yieldRate = percent
	l.log.Info("yield rate updated", zap.Uint32("percent", percent))
	return nil
}

// YieldRate devolve a taxa nominal armazenada
func (l *Ledger) YieldRate() uint32 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.yieldRate
}
