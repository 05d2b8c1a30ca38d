package wallet

import "context"

// Repository is the storage a Ledger mutates. Implementations are scoped to
// one transaction; LockBalance must hold the row lock until that transaction ends.
type Repository interface {
	// LockBalance locks the account row and returns its balance. Clinic
	// wallets are created with a zero balance on first use.
	LockBalance(ctx context.Context, acct Account) (Money, error)
	// Balance reads the balance without locking.
	Balance(ctx context.Context, acct Account) (Money, error)
	SetBalance(ctx context.Context, acct Account, balance Money) error
	InsertTransaction(ctx context.Context, tx *Transaction) error
}
