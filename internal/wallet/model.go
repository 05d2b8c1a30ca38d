package wallet

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Money is an amount in minor currency units (cents).
type Money int64

func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON renders money as a two-decimal JSON number, e.g. 95.00.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func FromFloat(f float64) Money {
	if f < 0 {
		return -Money(-f*100 + 0.5)
	}
	return Money(f*100 + 0.5)
}

type OwnerKind string

const (
	OwnerPatient OwnerKind = "patient"
	OwnerClinic  OwnerKind = "clinic"
)

type TxType string

const (
	TypePayment TxType = "payment"
	TypeRefund  TxType = "refund"
	TypeDeposit TxType = "deposit"
)

type Account struct {
	Kind OwnerKind
	ID   uuid.UUID
}

func PatientAccount(id uuid.UUID) Account { return Account{Kind: OwnerPatient, ID: id} }
func ClinicAccount(id uuid.UUID) Account  { return Account{Kind: OwnerClinic, ID: id} }

func (a Account) String() string { return string(a.Kind) + ":" + a.ID.String() }

// Transaction is one append-only ledger row.
type Transaction struct {
	ID            uuid.UUID
	Account       Account
	Amount        Money
	Type          TxType
	Reference     string
	BalanceBefore Money
	BalanceAfter  Money
	Notes         string
	CreatedAt     time.Time
}

// Delta is the signed balance change the row records.
func (t Transaction) Delta() Money { return t.BalanceAfter - t.BalanceBefore }

// TransactionPair is the two sides of one transfer sharing a reference.
type TransactionPair struct {
	Debit  Transaction
	Credit Transaction
}
