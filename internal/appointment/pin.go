package appointment

import (
	"errors"
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

var pinPattern = regexp.MustCompile(`^[0-9]{4}$`)

// ValidPIN reports whether pin has the wallet PIN shape (exactly four digits).
func ValidPIN(pin string) bool {
	return pinPattern.MatchString(pin)
}

type PinVerifier interface {
	Verify(hash, pin string) (bool, error)
}

type BcryptPinVerifier struct{}

func (BcryptPinVerifier) Verify(hash, pin string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("compare pin hash: %w", err)
}

// HashPIN is used when activating wallets and by the seeder.
func HashPIN(pin string, cost int) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pin), cost)
	if err != nil {
		return "", fmt.Errorf("hash pin: %w", err)
	}
	return string(h), nil
}
