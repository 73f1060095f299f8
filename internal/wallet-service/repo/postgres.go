package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/radieske/noloss-ledger-poc/internal/custody"
	"github.com/radieske/noloss-ledger-poc/internal/ledger"
	walletdto "github.com/radieske/noloss-ledger-poc/internal/wallet-service/dto"
)

// Postgres implementa carteiras e o escrow por aposta em banco
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var (
	ErrInsufficientFunds  = custody.ErrInsufficientFunds
	ErrInsufficientEscrow = custody.ErrInsufficientEscrow
	ErrAlreadyReleased    = custody.ErrAlreadyReleased
	ErrUnknownEscrow      = custody.ErrUnknownEscrow
	ErrStakeConflict      = custody.ErrStakeConflict
	ErrNotFound           = errors.New("not found")
)

// GetOrCreateWallet retorna o walletId e saldo de um usuário, criando a carteira se não existir
func (p *Postgres) GetOrCreateWallet(ctx context.Context, userID string) (walletID string, balance int64, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `SELECT id, balance_cents FROM wallets WHERE user_id=$1`, userID).Scan(&walletID, &balance)
	if err == sql.ErrNoRows {
		walletID = uuid.New().String()
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO wallets(id, user_id, balance_cents, version) VALUES($1,$2,0,1)`,
			walletID, userID); err != nil {
			return "", 0, err
		}
		balance = 0
	} else if err != nil {
		return "", 0, err
	}

	if err = tx.Commit(); err != nil {
		return "", 0, err
	}
	return walletID, balance, nil
}

// Deposit credita a carteira (criando se preciso) e registra no ledger
func (p *Postgres) Deposit(ctx context.Context, userID string, amount int64, externalRef string) (walletID string, newBalance int64, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, err
	}
	defer tx.Rollback()

	if walletID, newBalance, err = creditWallet(ctx, tx, userID, amount); err != nil {
		return "", 0, err
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO wallet_ledger(wallet_id, operation_type, amount_cents, description) VALUES($1,'CREDIT',$2,$3)`,
		walletID, amount, "deposit:"+externalRef); err != nil {
		return "", 0, err
	}

	if err = tx.Commit(); err != nil {
		return "", 0, err
	}
	return walletID, newBalance, nil
}

// Pull debita a carteira e credita o principal do escrow da aposta.
// Idempotente por (escrow, user_id): repetir o mesmo valor é no-op e um valor
// diferente devolve ErrStakeConflict sem mexer em nada.
func (p *Postgres) Pull(ctx context.Context, key ledger.EscrowKey, userID string, amount int64) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existing int64
	err = tx.QueryRowContext(ctx, `SELECT amount_cents FROM escrow_stakes WHERE ledger_id=$1 AND bet_id=$2 AND user_id=$3`,
		key.Instance, uint64(key.Bet), userID).Scan(&existing)
	if err == nil {
		if existing != amount {
			return ErrStakeConflict
		}
		return nil // retry de um pull já aplicado
	} else if err != sql.ErrNoRows {
		return err
	}

	// lock pessimista na carteira
	var walletID string
	var balance int64
	err = tx.QueryRowContext(ctx, `SELECT id, balance_cents FROM wallets WHERE user_id=$1 FOR UPDATE`, userID).Scan(&walletID, &balance)
	if err == sql.ErrNoRows {
		return ErrInsufficientFunds
	} else if err != nil {
		return err
	}
	if balance < amount {
		return ErrInsufficientFunds
	}

	var touched uint64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO bet_escrow(ledger_id, bet_id, principal_cents, balance_cents, released)
		VALUES($1,$2,$3,$3,false)
		ON CONFLICT (ledger_id, bet_id) DO UPDATE SET
		  principal_cents = bet_escrow.principal_cents + EXCLUDED.principal_cents,
		  balance_cents   = bet_escrow.balance_cents + EXCLUDED.balance_cents,
		  updated_at      = NOW()
		WHERE bet_escrow.released = false
		RETURNING bet_id`, key.Instance, uint64(key.Bet), amount).Scan(&touched)
	if err == sql.ErrNoRows {
		return ErrAlreadyReleased
	} else if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE wallets SET balance_cents = balance_cents - $1, version = version + 1 WHERE id=$2`, amount, walletID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO escrow_stakes(ledger_id, bet_id, user_id, amount_cents) VALUES($1,$2,$3,$4)`,
		key.Instance, uint64(key.Bet), userID, amount); err != nil {
		return err
	}
	if err = appendLedger(ctx, tx, walletID, "PULL", amount, key); err != nil {
		return err
	}

	return tx.Commit()
}

// Refund desfaz o pull de um participante: apaga o stake, devolve o valor à
// carteira e tira o principal do escrow. Sem stake registrado é no-op.
func (p *Postgres) Refund(ctx context.Context, key ledger.EscrowKey, userID string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var released bool
	err = tx.QueryRowContext(ctx, `SELECT released FROM bet_escrow WHERE ledger_id=$1 AND bet_id=$2 FOR UPDATE`,
		key.Instance, uint64(key.Bet)).Scan(&released)
	if err == sql.ErrNoRows {
		return nil
	} else if err != nil {
		return err
	}

	var amount int64
	err = tx.QueryRowContext(ctx, `SELECT amount_cents FROM escrow_stakes WHERE ledger_id=$1 AND bet_id=$2 AND user_id=$3`,
		key.Instance, uint64(key.Bet), userID).Scan(&amount)
	if err == sql.ErrNoRows {
		return nil
	} else if err != nil {
		return err
	}
	if released {
		return ErrAlreadyReleased
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM escrow_stakes WHERE ledger_id=$1 AND bet_id=$2 AND user_id=$3`,
		key.Instance, uint64(key.Bet), userID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `
		UPDATE bet_escrow SET
		  principal_cents = principal_cents - $1,
		  balance_cents   = balance_cents - $1,
		  updated_at      = NOW()
		WHERE ledger_id=$2 AND bet_id=$3`, amount, key.Instance, uint64(key.Bet)); err != nil {
		return err
	}
	walletID, _, err := creditWallet(ctx, tx, userID, amount)
	if err != nil {
		return err
	}
	if err = appendLedger(ctx, tx, walletID, "REFUND", amount, key); err != nil {
		return err
	}
	return tx.Commit()
}

// Release credita todas as transferências e fecha o escrow numa única transação.
// Stakes sem transferência no lote recebem o principal de volta. A sobra
// (dust) continua no saldo do escrow.
func (p *Postgres) Release(ctx context.Context, key ledger.EscrowKey, transfers []walletdto.Transfer) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var principal, balance int64
	var released bool
	err = tx.QueryRowContext(ctx, `SELECT principal_cents, balance_cents, released FROM bet_escrow WHERE ledger_id=$1 AND bet_id=$2 FOR UPDATE`,
		key.Instance, uint64(key.Bet)).Scan(&principal, &balance, &released)
	if err == sql.ErrNoRows {
		return ErrUnknownEscrow
	} else if err != nil {
		return err
	}
	if released {
		return ErrAlreadyReleased
	}

	paid := make(map[string]bool, len(transfers))
	var total int64
	for _, t := range transfers {
		total += t.AmountCents
		paid[t.UserID] = true
	}
	orphans, err := unpaidStakes(ctx, tx, key, paid)
	if err != nil {
		return err
	}
	for _, o := range orphans {
		total += o.AmountCents
	}
	if total > balance {
		return ErrInsufficientEscrow
	}

	for _, t := range transfers {
		walletID, _, err := creditWallet(ctx, tx, t.UserID, t.AmountCents)
		if err != nil {
			return err
		}
		if err = appendLedger(ctx, tx, walletID, "RELEASE", t.AmountCents, key); err != nil {
			return err
		}
	}
	for _, o := range orphans {
		walletID, _, err := creditWallet(ctx, tx, o.UserID, o.AmountCents)
		if err != nil {
			return err
		}
		if err = appendLedger(ctx, tx, walletID, "REFUND", o.AmountCents, key); err != nil {
			return err
		}
	}

	if _, err = tx.ExecContext(ctx, `UPDATE bet_escrow SET balance_cents = balance_cents - $1, released = true, updated_at = NOW() WHERE ledger_id=$2 AND bet_id=$3`,
		total, key.Instance, uint64(key.Bet)); err != nil {
		return err
	}
	return tx.Commit()
}

// unpaidStakes lista os stakes do escrow sem transferência no lote
func unpaidStakes(ctx context.Context, tx *sql.Tx, key ledger.EscrowKey, paid map[string]bool) ([]walletdto.Transfer, error) {
	rows, err := tx.QueryContext(ctx, `SELECT user_id, amount_cents FROM escrow_stakes WHERE ledger_id=$1 AND bet_id=$2`,
		key.Instance, uint64(key.Bet))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []walletdto.Transfer
	for rows.Next() {
		var t walletdto.Transfer
		if err := rows.Scan(&t.UserID, &t.AmountCents); err != nil {
			return nil, err
		}
		if !paid[t.UserID] {
			out = append(out, t)
		}
	}
	return out, rows.Err()
}

// Surplus devolve saldo - principal do escrow; zero se a aposta não tem escrow
func (p *Postgres) Surplus(ctx context.Context, key ledger.EscrowKey) (int64, error) {
	var surplus int64
	err := p.db.QueryRowContext(ctx, `SELECT balance_cents - principal_cents FROM bet_escrow WHERE ledger_id=$1 AND bet_id=$2`,
		key.Instance, uint64(key.Bet)).Scan(&surplus)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return surplus, err
}

// LastBetID devolve o maior bet_id com escrow na instância
func (p *Postgres) LastBetID(ctx context.Context, ledgerID string) (uint64, error) {
	var last int64
	err := p.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(bet_id), 0) FROM bet_escrow WHERE ledger_id=$1`, ledgerID).Scan(&last)
	return uint64(last), err
}

// AccrueYield soma rendimento externo ao escrow ainda não liberado
func (p *Postgres) AccrueYield(ctx context.Context, key ledger.EscrowKey, amount int64) error {
	var touched uint64
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO bet_escrow(ledger_id, bet_id, principal_cents, balance_cents, released)
		VALUES($1,$2,0,$3,false)
		ON CONFLICT (ledger_id, bet_id) DO UPDATE SET
		  balance_cents = bet_escrow.balance_cents + EXCLUDED.balance_cents,
		  updated_at    = NOW()
		WHERE bet_escrow.released = false
		RETURNING bet_id`, key.Instance, uint64(key.Bet), amount).Scan(&touched)
	if err == sql.ErrNoRows {
		return ErrAlreadyReleased
	}
	return err
}

// Escrow devolve o estado do escrow de uma aposta
func (p *Postgres) Escrow(ctx context.Context, key ledger.EscrowKey) (walletdto.EscrowResponse, error) {
	out := walletdto.EscrowResponse{LedgerID: key.Instance, BetID: uint64(key.Bet)}
	err := p.db.QueryRowContext(ctx, `SELECT principal_cents, balance_cents, released FROM bet_escrow WHERE ledger_id=$1 AND bet_id=$2`,
		key.Instance, uint64(key.Bet)).Scan(&out.PrincipalCents, &out.BalanceCents, &out.Released)
	if err == sql.ErrNoRows {
		return out, ErrNotFound
	}
	return out, err
}

func appendLedger(ctx context.Context, tx *sql.Tx, walletID, op string, amount int64, key ledger.EscrowKey) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO wallet_ledger(wallet_id, operation_type, amount_cents, description, related_ledger_id, related_bet_id)
		VALUES($1,$2,$3,$4,$5,$6)`, walletID, op, amount, strings.ToLower(op)+":"+key.String(), key.Instance, uint64(key.Bet))
	return err
}

// creditWallet soma amount na carteira do usuário, criando-a se não existir
func creditWallet(ctx context.Context, tx *sql.Tx, userID string, amount int64) (walletID string, balance int64, err error) {
	err = tx.QueryRowContext(ctx, `
		INSERT INTO wallets(id, user_id, balance_cents, version)
		VALUES($1,$2,$3,1)
		ON CONFLICT (user_id) DO UPDATE SET
		  balance_cents = wallets.balance_cents + EXCLUDED.balance_cents,
		  version       = wallets.version + 1
		RETURNING id, balance_cents`, uuid.New().String(), userID, amount).Scan(&walletID, &balance)
	return walletID, balance, err
}
