package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/radieske/noloss-ledger-poc/internal/ledger-audit/check"
	"github.com/radieske/noloss-ledger-poc/pkg/contracts/events"
)

// PostgresRepo persiste liquidações auditadas
type PostgresRepo struct {
	DB *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

// SaveSettlement grava a liquidação e os pagamentos numa transação.
// Reentregas do mesmo bet_settled não duplicam linhas.
func (r *PostgresRepo) SaveSettlement(ctx context.Context, e events.BetSettled, violations []check.Violation) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var vjson any // NULL quando a liquidação está limpa
	if len(violations) > 0 {
		b, _ := json.Marshal(violations)
		vjson = string(b)
	}

	const qSettlement = `
		INSERT INTO bet_settlements
		  (ledger_id, bet_id, kind, outcome, surplus_cents, dust_cents, violations, settled_at)
		VALUES
		  ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (ledger_id, bet_id) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, qSettlement,
		e.LedgerID, e.BetID, e.Kind, e.Outcome, e.SurplusCents, e.DustCents, vjson, e.SettledAt,
	); err != nil {
		return err
	}

	const qPayout = `
		INSERT INTO bet_payouts
		  (ledger_id, bet_id, user_id, principal_cents, yield_cents)
		VALUES
		  ($1,$2,$3,$4,$5)
		ON CONFLICT (ledger_id, bet_id, user_id) DO NOTHING
	`
	for _, p := range e.Payouts {
		if _, err := tx.ExecContext(ctx, qPayout, e.LedgerID, e.BetID, p.UserID, p.PrincipalCents, p.YieldCents); err != nil {
			return err
		}
	}
	return tx.Commit()
}
