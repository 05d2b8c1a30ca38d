package wallet

import (
	"errors"
	"fmt"
)

var (
	ErrAccountNotFound  = errors.New("wallet account not found")
	ErrInvalidAmount    = errors.New("transfer amount must be positive")
	ErrSameAccount      = errors.New("cannot transfer to the same account")
	ErrTransferRejected = errors.New("transfer rejected by guard")
)

// InsufficientFundsError is returned when the debited account cannot cover a transfer.
type InsufficientFundsError struct {
	Account  Account
	Balance  Money
	Required Money
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds in %s: balance %s, required %s", e.Account, e.Balance, e.Required)
}

func (e *InsufficientFundsError) Shortfall() Money {
	return e.Required - e.Balance
}
