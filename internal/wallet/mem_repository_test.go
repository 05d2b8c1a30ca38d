package wallet

import (
	"context"
	"sync"
)

// memRepository is an in-memory Repository that records lock order.
type memRepository struct {
	mu       sync.Mutex
	balances map[Account]Money
	txs      []Transaction
	locked   []Account
	failSet  map[Account]error
}

func newMemRepository() *memRepository {
	return &memRepository{balances: map[Account]Money{}, failSet: map[Account]error{}}
}

func (m *memRepository) LockBalance(_ context.Context, acct Account) (Money, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal, ok := m.balances[acct]
	if !ok {
		if acct.Kind != OwnerClinic {
			return 0, ErrAccountNotFound
		}
		m.balances[acct] = 0
	}
	m.locked = append(m.locked, acct)
	return bal, nil
}

func (m *memRepository) Balance(_ context.Context, acct Account) (Money, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal, ok := m.balances[acct]
	if !ok && acct.Kind == OwnerPatient {
		return 0, ErrAccountNotFound
	}
	return bal, nil
}

func (m *memRepository) SetBalance(_ context.Context, acct Account, balance Money) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failSet[acct]; err != nil {
		return err
	}
	m.balances[acct] = balance
	return nil
}

func (m *memRepository) InsertTransaction(_ context.Context, tx *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs = append(m.txs, *tx)
	return nil
}
