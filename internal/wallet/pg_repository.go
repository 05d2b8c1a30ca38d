package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-booking/internal/db"
)

type PgRepository struct {
	db db.DBTX
}

// NewPgRepository binds the repository to a pool or an open transaction.
// Row locks only make sense when q is a pgx.Tx.
func NewPgRepository(q db.DBTX) *PgRepository {
	return &PgRepository{db: q}
}

var _ Repository = (*PgRepository)(nil)

func (r *PgRepository) LockBalance(ctx context.Context, acct Account) (Money, error) {
	switch acct.Kind {
	case OwnerPatient:
		return r.scanBalance(r.db.QueryRow(ctx, `
			SELECT wallet_balance_cents
			FROM patients
			WHERE id = $1
			FOR UPDATE
		`, acct.ID))
	case OwnerClinic:
		_, err := r.db.Exec(ctx, `
			INSERT INTO clinic_wallets (clinic_id, balance_cents, updated_at)
			VALUES ($1, 0, now())
			ON CONFLICT (clinic_id) DO NOTHING
		`, acct.ID)
		if err != nil {
			if db.HasCode(err, db.CodeForeignKeyViolation) {
				return 0, ErrAccountNotFound
			}
			return 0, fmt.Errorf("ensure clinic wallet: %w", err)
		}
		return r.scanBalance(r.db.QueryRow(ctx, `
			SELECT balance_cents
			FROM clinic_wallets
			WHERE clinic_id = $1
			FOR UPDATE
		`, acct.ID))
	default:
		return 0, fmt.Errorf("unknown account kind %q", acct.Kind)
	}
}

func (r *PgRepository) Balance(ctx context.Context, acct Account) (Money, error) {
	switch acct.Kind {
	case OwnerPatient:
		return r.scanBalance(r.db.QueryRow(ctx, `
			SELECT wallet_balance_cents FROM patients WHERE id = $1
		`, acct.ID))
	case OwnerClinic:
		bal, err := r.scanBalance(r.db.QueryRow(ctx, `
			SELECT balance_cents FROM clinic_wallets WHERE clinic_id = $1
		`, acct.ID))
		if errors.Is(err, ErrAccountNotFound) {
			return 0, nil
		}
		return bal, err
	default:
		return 0, fmt.Errorf("unknown account kind %q", acct.Kind)
	}
}

func (r *PgRepository) SetBalance(ctx context.Context, acct Account, balance Money) error {
	var query string
	switch acct.Kind {
	case OwnerPatient:
		query = `UPDATE patients SET wallet_balance_cents = $2, updated_at = now() WHERE id = $1`
	case OwnerClinic:
		query = `UPDATE clinic_wallets SET balance_cents = $2, updated_at = now() WHERE clinic_id = $1`
	default:
		return fmt.Errorf("unknown account kind %q", acct.Kind)
	}

	tag, err := r.db.Exec(ctx, query, acct.ID, int64(balance))
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *PgRepository) InsertTransaction(ctx context.Context, tx *Transaction) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO wallet_transactions (
			id, owner_kind, owner_id, amount_cents, type, reference,
			balance_before_cents, balance_after_cents, notes, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10)
	`,
		tx.ID,
		string(tx.Account.Kind),
		tx.Account.ID,
		int64(tx.Amount),
		string(tx.Type),
		tx.Reference,
		int64(tx.BalanceBefore),
		int64(tx.BalanceAfter),
		tx.Notes,
		tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet transaction: %w", err)
	}
	return nil
}

// TransactionsByReference returns every ledger row written for reference, oldest first.
func (r *PgRepository) TransactionsByReference(ctx context.Context, reference string) ([]Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, owner_kind, owner_id, amount_cents, type, reference,
		       balance_before_cents, balance_after_cents, COALESCE(notes, ''), created_at
		FROM wallet_transactions
		WHERE reference = $1
		ORDER BY created_at, owner_kind DESC
	`, reference)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Transaction
	for rows.Next() {
		var t Transaction
		var kind, typ string
		var amount, before, after int64
		if err := rows.Scan(&t.ID, &kind, &t.Account.ID, &amount, &typ, &t.Reference, &before, &after, &t.Notes, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Account.Kind = OwnerKind(kind)
		t.Type = TxType(typ)
		t.Amount, t.BalanceBefore, t.BalanceAfter = Money(amount), Money(before), Money(after)
		result = append(result, t)
	}
	return result, rows.Err()
}

func (r *PgRepository) scanBalance(row pgx.Row) (Money, error) {
	var cents int64
	if err := row.Scan(&cents); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		if db.HasCode(err, db.CodeLockNotAvailable) {
			return 0, fmt.Errorf("wallet row locked: %w", err)
		}
		return 0, err
	}
	return Money(cents), nil
}
