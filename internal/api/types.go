package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/wallet"
)

type BookAppointmentRequest struct {
	DoctorID  string `json:"doctor_id" validate:"required,uuid"`
	SlotID    string `json:"slot_id" validate:"required,uuid"`
	Method    string `json:"method" validate:"required,oneof=cash wallet"`
	WalletPIN string `json:"wallet_pin" validate:"omitempty,len=4,numeric"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type DoctorCancelRequest struct {
	Reason    string `json:"reason" validate:"required,max=500"`
	Emergency bool   `json:"emergency"`
}

type RescheduleRequest struct {
	SlotID string `json:"slot_id" validate:"required,uuid"`
}

type TopUpRequest struct {
	Amount float64 `json:"amount" validate:"gt=0,lte=100000"`
	Notes  string  `json:"notes" validate:"max=255"`
}

type BookingResponse struct {
	AppointmentID        uuid.UUID    `json:"appointment_id"`
	DoctorID             uuid.UUID    `json:"doctor_id"`
	ClinicID             uuid.UUID    `json:"clinic_id"`
	SlotID               uuid.UUID    `json:"slot_id"`
	AppointmentDate      time.Time    `json:"appointment_date"`
	Price                wallet.Money `json:"price"`
	PaymentMethod        string       `json:"payment_method"`
	PaymentStatus        string       `json:"payment_status"`
	TransactionReference string       `json:"transaction_reference,omitempty"`
}

type CancellationResponse struct {
	AppointmentID     uuid.UUID    `json:"appointment_id"`
	SlotFreed         *uuid.UUID   `json:"slot_freed"`
	RefundProcessed   bool         `json:"refund_processed"`
	RefundAmount      wallet.Money `json:"refund_amount"`
	DiscountApplied   wallet.Money `json:"discount_applied"`
	OriginalAmount    wallet.Money `json:"original_amount"`
	NewPatientBalance wallet.Money `json:"new_patient_balance"`
}

type RescheduleResponse struct {
	AppointmentID   uuid.UUID `json:"appointment_id"`
	OldSlotID       uuid.UUID `json:"old_slot_id"`
	NewSlotID       uuid.UUID `json:"new_slot_id"`
	AppointmentDate time.Time `json:"appointment_date"`
}

type PaymentResponse struct {
	ID                   uuid.UUID     `json:"id"`
	Amount               wallet.Money  `json:"amount"`
	Method               string        `json:"method"`
	Status               string        `json:"status"`
	TransactionReference string        `json:"transaction_reference,omitempty"`
	RefundAmount         *wallet.Money `json:"refund_amount,omitempty"`
	DiscountApplied      *wallet.Money `json:"discount_applied,omitempty"`
	PaidAt               *time.Time    `json:"paid_at,omitempty"`
	RefundedAt           *time.Time    `json:"refunded_at,omitempty"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID        `json:"id"`
	PatientID          uuid.UUID        `json:"patient_id"`
	DoctorID           uuid.UUID        `json:"doctor_id"`
	ClinicID           uuid.UUID        `json:"clinic_id"`
	SlotID             uuid.UUID        `json:"slot_id"`
	AppointmentDate    time.Time        `json:"appointment_date"`
	Status             string           `json:"status"`
	PaymentStatus      string           `json:"payment_status"`
	Price              wallet.Money     `json:"price"`
	CancellationReason *string          `json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time       `json:"cancelled_at,omitempty"`
	Payment            *PaymentResponse `json:"payment,omitempty"`
}

type TopUpResponse struct {
	PatientID  uuid.UUID    `json:"patient_id"`
	Amount     wallet.Money `json:"amount"`
	NewBalance wallet.Money `json:"new_balance"`
	Reference  string       `json:"reference"`
}
