package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestLedger_TransferWritesDoubleEntry(t *testing.T) {
	repo := newMemRepository()
	patient := PatientAccount(uuid.New())
	clinic := ClinicAccount(uuid.New())
	repo.balances[patient] = 20000
	repo.balances[clinic] = 1000

	l := NewLedger(zaptest.NewLogger(t))
	pair, err := l.Transfer(context.Background(), repo, Transfer{
		From:      patient,
		To:        clinic,
		Amount:    10000,
		Reference: "APT-1",
		Type:      TypePayment,
	})
	require.NoError(t, err)

	assert.Equal(t, Money(10000), repo.balances[patient])
	assert.Equal(t, Money(11000), repo.balances[clinic])

	require.Len(t, repo.txs, 2)
	assert.Equal(t, pair.Debit.Reference, pair.Credit.Reference)
	assert.Equal(t, pair.Debit.Amount, pair.Credit.Amount)
	assert.Equal(t, -pair.Debit.Delta(), pair.Credit.Delta())
	assert.Equal(t, Money(20000), pair.Debit.BalanceBefore)
	assert.Equal(t, Money(10000), pair.Debit.BalanceAfter)
	assert.Equal(t, Money(1000), pair.Credit.BalanceBefore)
	assert.Equal(t, Money(11000), pair.Credit.BalanceAfter)
}

func TestLedger_TransferInsufficientFundsMutatesNothing(t *testing.T) {
	repo := newMemRepository()
	patient := PatientAccount(uuid.New())
	clinic := ClinicAccount(uuid.New())
	repo.balances[patient] = 4000

	l := NewLedger(zaptest.NewLogger(t))
	_, err := l.Transfer(context.Background(), repo, Transfer{
		From: patient, To: clinic, Amount: 10000, Reference: "APT-2", Type: TypePayment,
	})

	var insufficient *InsufficientFundsError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, Money(4000), insufficient.Balance)
	assert.Equal(t, Money(10000), insufficient.Required)
	assert.Equal(t, Money(6000), insufficient.Shortfall())

	assert.Equal(t, Money(4000), repo.balances[patient])
	assert.Equal(t, Money(0), repo.balances[clinic])
	assert.Empty(t, repo.txs)
}

func TestLedger_LocksPatientBeforeClinicInBothDirections(t *testing.T) {
	patient := PatientAccount(uuid.New())
	clinic := ClinicAccount(uuid.New())
	l := NewLedger(zaptest.NewLogger(t))

	pay := newMemRepository()
	pay.balances[patient] = 500
	_, err := l.Transfer(context.Background(), pay, Transfer{From: patient, To: clinic, Amount: 100, Reference: "APT-3", Type: TypePayment})
	require.NoError(t, err)

	refund := newMemRepository()
	refund.balances[patient] = 0
	refund.balances[clinic] = 500
	_, err = l.Transfer(context.Background(), refund, Transfer{From: clinic, To: patient, Amount: 100, Reference: "APT-3", Type: TypeRefund})
	require.NoError(t, err)

	assert.Equal(t, []Account{patient, clinic}, pay.locked)
	assert.Equal(t, []Account{patient, clinic}, refund.locked)
}

func TestLedger_GuardRejectsBeforeWriting(t *testing.T) {
	repo := newMemRepository()
	patient := PatientAccount(uuid.New())
	clinic := ClinicAccount(uuid.New())
	repo.balances[patient] = 0
	repo.balances[clinic] = 9600

	l := NewLedger(zaptest.NewLogger(t))
	_, err := l.Transfer(context.Background(), repo, Transfer{
		From: clinic, To: patient, Amount: 9500, Reference: "APT-4", Type: TypeRefund,
		Guard: func(from, _ Money) bool { return CanRefund(from, 10000) },
	})
	require.ErrorIs(t, err, ErrTransferRejected)
	assert.Empty(t, repo.txs)
	assert.Equal(t, Money(9600), repo.balances[clinic])
}

func TestLedger_TransferValidation(t *testing.T) {
	repo := newMemRepository()
	l := NewLedger(zaptest.NewLogger(t))
	acct := PatientAccount(uuid.New())

	_, err := l.Transfer(context.Background(), repo, Transfer{From: acct, To: ClinicAccount(uuid.New()), Amount: 0})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = l.Transfer(context.Background(), repo, Transfer{From: acct, To: acct, Amount: 100})
	assert.ErrorIs(t, err, ErrSameAccount)

	_, err = l.Transfer(context.Background(), repo, Transfer{From: acct, To: ClinicAccount(uuid.New()), Amount: 100})
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestLedger_Deposit(t *testing.T) {
	repo := newMemRepository()
	patient := PatientAccount(uuid.New())
	repo.balances[patient] = 250

	l := NewLedger(zaptest.NewLogger(t))
	tx, err := l.Deposit(context.Background(), repo, patient, 5000, "TOP-1", "front desk")
	require.NoError(t, err)

	assert.Equal(t, TypeDeposit, tx.Type)
	assert.Equal(t, Money(250), tx.BalanceBefore)
	assert.Equal(t, Money(5250), tx.BalanceAfter)
	assert.Equal(t, Money(5250), repo.balances[patient])
	require.Len(t, repo.txs, 1)

	_, err = l.Deposit(context.Background(), repo, patient, -1, "TOP-2", "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
