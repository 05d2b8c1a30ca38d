package appointment

import (
	"fmt"
	"maps"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindConflict
	KindPolicy
	KindSystem
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindPolicy:
		return "policy"
	case KindSystem:
		return "system"
	default:
		return "unknown"
	}
}

// Error is a classified failure with a stable short code. Two Errors match
// under errors.Is when their codes are equal, so callers compare against the
// package-level values even when context fields were attached.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// With returns a copy carrying extra context fields.
func (e *Error) With(fields map[string]any) *Error {
	cp := *e
	cp.Fields = make(map[string]any, len(e.Fields)+len(fields))
	maps.Copy(cp.Fields, e.Fields)
	maps.Copy(cp.Fields, fields)
	return &cp
}

// Wrap returns a copy that carries cause.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

var (
	ErrInvalidRequest = &Error{Kind: KindValidation, Code: "validation_failed", Message: "The request is invalid"}
	ErrForbidden      = &Error{Kind: KindPolicy, Code: "forbidden", Message: "Caller may not perform this operation"}

	ErrDoctorNotFound      = &Error{Kind: KindNotFound, Code: "doctor_not_found", Message: "The selected doctor is not available for appointments"}
	ErrPatientNotFound     = &Error{Kind: KindNotFound, Code: "patient_not_found", Message: "Patient not found"}
	ErrSlotNotFound        = &Error{Kind: KindNotFound, Code: "slot_not_found", Message: "Time slot not found or does not belong to this doctor"}
	ErrAppointmentNotFound = &Error{Kind: KindNotFound, Code: "appointment_not_found", Message: "Appointment not found"}
	ErrPaymentNotFound     = &Error{Kind: KindNotFound, Code: "payment_not_found", Message: "Payment not found"}

	ErrSlotAlreadyBooked = &Error{Kind: KindConflict, Code: "slot_already_booked", Message: "This time slot has already been booked"}
	ErrSlotBeingBooked   = &Error{Kind: KindConflict, Code: "slot_being_booked", Message: "This time slot is currently being booked, please retry shortly"}

	ErrDoctorInactive          = &Error{Kind: KindPolicy, Code: "doctor_inactive", Message: "Doctor is not available at the moment"}
	ErrAccountBlocked          = &Error{Kind: KindPolicy, Code: "account_blocked", Message: "Your account has been blocked due to multiple missed appointments. Please contact the clinic center."}
	ErrWalletNotActivated      = &Error{Kind: KindPolicy, Code: "wallet_not_activated", Message: "Please activate your wallet before making payments"}
	ErrInvalidPIN              = &Error{Kind: KindPolicy, Code: "invalid_pin", Message: "Incorrect PIN"}
	ErrInsufficientBalance     = &Error{Kind: KindPolicy, Code: "insufficient_balance", Message: "Your wallet balance is insufficient."}
	ErrAlreadyCompleted        = &Error{Kind: KindPolicy, Code: "already_completed", Message: "Appointment has already been completed"}
	ErrInvalidTransition       = &Error{Kind: KindPolicy, Code: "invalid_status_transition", Message: "Appointment can no longer be changed"}
	ErrInsufficientClinicFunds = &Error{Kind: KindPolicy, Code: "insufficient_clinic_funds", Message: "Medical center wallet has insufficient funds for refund"}

	ErrLockTimeout = &Error{Kind: KindSystem, Code: "lock_timeout", Message: "Timed out waiting for a booking lock"}
)
