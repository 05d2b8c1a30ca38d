package appointment

import (
	"context"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/wallet"
)

// SlotRepository owns time_slots rows.
type SlotRepository interface {
	// LockSlot locks the slot row for the rest of the transaction.
	// Returns ErrSlotNotFound when no slot matches the id/doctor pair.
	LockSlot(ctx context.Context, slotID, doctorID uuid.UUID) (*TimeSlot, error)
	// LockSlotByID is LockSlot without the doctor filter.
	LockSlotByID(ctx context.Context, slotID uuid.UUID) (*TimeSlot, error)
	// HasActiveAppointment reports whether a confirmed or completed appointment references the slot.
	HasActiveAppointment(ctx context.Context, slotID uuid.UUID) (bool, error)
	SetBooked(ctx context.Context, slotID uuid.UUID, booked bool) error
}

// AppointmentRepository owns appointments rows.
type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	// GetForUpdate locks and returns the appointment, or ErrAppointmentNotFound.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	CountByStatus(ctx context.Context, patientID uuid.UUID, status AppointmentStatus) (int, error)
}

// PaymentRepository owns payments rows. One payment per appointment.
type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	// GetByAppointment locks and returns the payment, or ErrPaymentNotFound.
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Payment, error)
	Update(ctx context.Context, p *Payment) error
}

type EventRepository interface {
	InsertEvent(ctx context.Context, ev EventLog) error
}

// Repositories is the transaction-scoped set handed to a unit of work.
type Repositories struct {
	Slots        SlotRepository
	Appointments AppointmentRepository
	Payments     PaymentRepository
	Wallets      wallet.Repository
	Events       EventRepository
}

// Store runs fn atomically: everything written through r commits together or
// not at all.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error
}

// DoctorDirectory resolves doctors, including tombstoned ones.
type DoctorDirectory interface {
	GetActiveDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
}

type PatientDirectory interface {
	GetWalletCredentials(ctx context.Context, patientID uuid.UUID) (*WalletCredentials, error)
}

// Notifier delivers post-commit notifications. Fire and forget.
type Notifier interface {
	Send(eventType string, recipientID uuid.UUID, payload map[string]any)
}
