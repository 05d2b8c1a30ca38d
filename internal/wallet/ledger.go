package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Transfer describes a two-sided movement of money between wallets.
type Transfer struct {
	From      Account
	To        Account
	Amount    Money
	Reference string
	Type      TxType
	Notes     string
	// Guard, when set, is evaluated under the balance locks before anything is
	// written. Returning false aborts with ErrTransferRejected.
	Guard func(fromBalance, toBalance Money) bool
}

// Ledger moves money between patient and clinic wallets with double-entry rows.
// It holds no storage of its own; every call runs against the transaction-scoped
// Repository handed in by the caller.
type Ledger struct {
	log *zap.Logger
	now func() time.Time
}

func NewLedger(log *zap.Logger) *Ledger {
	return &Ledger{log: log, now: time.Now}
}

// Transfer debits t.From and credits t.To by t.Amount and writes one
// Transaction per side. Both balances and both rows are written through repo,
// so they commit or roll back with the caller's transaction.
func (l *Ledger) Transfer(ctx context.Context, repo Repository, t Transfer) (*TransactionPair, error) {
	if t.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if t.From == t.To {
		return nil, ErrSameAccount
	}

	balances, err := l.lockPair(ctx, repo, t.From, t.To)
	if err != nil {
		return nil, err
	}
	fromBefore, toBefore := balances[t.From], balances[t.To]

	if t.Guard != nil && !t.Guard(fromBefore, toBefore) {
		return nil, ErrTransferRejected
	}
	if fromBefore < t.Amount {
		return nil, &InsufficientFundsError{Account: t.From, Balance: fromBefore, Required: t.Amount}
	}

	fromAfter := fromBefore - t.Amount
	toAfter := toBefore + t.Amount

	if err := repo.SetBalance(ctx, t.From, fromAfter); err != nil {
		return nil, fmt.Errorf("debit %s: %w", t.From, err)
	}
	if err := repo.SetBalance(ctx, t.To, toAfter); err != nil {
		return nil, fmt.Errorf("credit %s: %w", t.To, err)
	}

	now := l.now()
	pair := &TransactionPair{
		Debit: Transaction{
			ID:            uuid.New(),
			Account:       t.From,
			Amount:        t.Amount,
			Type:          t.Type,
			Reference:     t.Reference,
			BalanceBefore: fromBefore,
			BalanceAfter:  fromAfter,
			Notes:         t.Notes,
			CreatedAt:     now,
		},
		Credit: Transaction{
			ID:            uuid.New(),
			Account:       t.To,
			Amount:        t.Amount,
			Type:          t.Type,
			Reference:     t.Reference,
			BalanceBefore: toBefore,
			BalanceAfter:  toAfter,
			Notes:         t.Notes,
			CreatedAt:     now,
		},
	}

	if err := repo.InsertTransaction(ctx, &pair.Debit); err != nil {
		return nil, fmt.Errorf("insert debit transaction: %w", err)
	}
	if err := repo.InsertTransaction(ctx, &pair.Credit); err != nil {
		return nil, fmt.Errorf("insert credit transaction: %w", err)
	}

	l.log.Debug("wallet transfer staged",
		zap.String("reference", t.Reference),
		zap.String("type", string(t.Type)),
		zap.String("from", t.From.String()),
		zap.String("to", t.To.String()),
		zap.Int64("amount_cents", int64(t.Amount)),
	)

	return pair, nil
}

// Deposit credits an account from outside the ledger (cash top-up at the desk).
// Only the credited side is recorded.
func (l *Ledger) Deposit(ctx context.Context, repo Repository, to Account, amount Money, reference, notes string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	before, err := repo.LockBalance(ctx, to)
	if err != nil {
		return nil, err
	}
	after := before + amount

	if err := repo.SetBalance(ctx, to, after); err != nil {
		return nil, fmt.Errorf("credit %s: %w", to, err)
	}

	tx := &Transaction{
		ID:            uuid.New(),
		Account:       to,
		Amount:        amount,
		Type:          TypeDeposit,
		Reference:     reference,
		BalanceBefore: before,
		BalanceAfter:  after,
		Notes:         notes,
		CreatedAt:     l.now(),
	}
	if err := repo.InsertTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("insert deposit transaction: %w", err)
	}
	return tx, nil
}

func (l *Ledger) Balance(ctx context.Context, repo Repository, acct Account) (Money, error) {
	return repo.Balance(ctx, acct)
}

// lockPair takes both balance locks in a fixed order (patient rows before
// clinic rows, then by id) so a payment and a refund on the same pair of
// wallets never wait on each other in opposite order.
func (l *Ledger) lockPair(ctx context.Context, repo Repository, a, b Account) (map[Account]Money, error) {
	first, second := a, b
	if lockBefore(b, a) {
		first, second = b, a
	}

	out := make(map[Account]Money, 2)
	for _, acct := range []Account{first, second} {
		bal, err := repo.LockBalance(ctx, acct)
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", acct, err)
		}
		out[acct] = bal
	}
	return out, nil
}

func lockBefore(a, b Account) bool {
	if a.Kind != b.Kind {
		return a.Kind == OwnerPatient
	}
	return a.ID.String() < b.ID.String()
}
