package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/wallet"
)

type AppointmentStatus string

const (
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusAbsent    AppointmentStatus = "absent"
)

// Active appointments hold their slot.
func (s AppointmentStatus) Active() bool {
	return s == StatusConfirmed || s == StatusCompleted
}

func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusAbsent
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	MethodCash   PaymentMethod = "cash"
	MethodWallet PaymentMethod = "wallet"
)

type Doctor struct {
	ID              uuid.UUID
	ClinicID        uuid.UUID
	Name            string
	ConsultationFee wallet.Money
	IsActive        bool
	Deleted         bool
}

// Bookable reports whether new appointments may be made with the doctor.
// Tombstoned doctors are never bookable.
func (d *Doctor) Bookable() bool {
	return d.IsActive && !d.Deleted
}

type WalletCredentials struct {
	PatientID uuid.UUID
	PinHash   string
	Activated bool
	Balance   wallet.Money
}

type TimeSlot struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	Date      time.Time     // calendar date, time part ignored
	StartTime time.Duration // offset from midnight
	EndTime   time.Duration
	IsBooked  bool
}

// StartsAt resolves the slot start in the clinic's location. StartTime is a
// wall-clock time, so it is applied as fields rather than added to midnight.
func (s *TimeSlot) StartsAt(loc *time.Location) time.Time {
	y, m, d := s.Date.Date()
	h := int(s.StartTime / time.Hour)
	mi := int(s.StartTime % time.Hour / time.Minute)
	sec := int(s.StartTime % time.Minute / time.Second)
	return time.Date(y, m, d, h, mi, sec, 0, loc)
}

type Appointment struct {
	ID                 uuid.UUID
	PatientID          uuid.UUID
	DoctorID           uuid.UUID
	ClinicID           uuid.UUID
	TimeSlotID         uuid.UUID
	AppointmentDate    time.Time
	Status             AppointmentStatus
	PaymentStatus      PaymentStatus
	Price              wallet.Money
	CancellationReason *string
	CancelledAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Reference is the ledger reference shared by every money movement for the appointment.
func (a *Appointment) Reference() string {
	return "APT-" + a.ID.String()
}

type Payment struct {
	ID                   uuid.UUID
	AppointmentID        uuid.UUID
	PatientID            uuid.UUID
	Amount               wallet.Money
	Method               PaymentMethod
	Status               PaymentStatus
	TransactionReference string
	RefundAmount         *wallet.Money
	DiscountApplied      *wallet.Money
	PaidAt               *time.Time
	RefundedAt           *time.Time
	CreatedAt            time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleStaff   Role = "staff"
)

// Caller is the authenticated identity a request acts as.
type Caller struct {
	Role Role
	ID   uuid.UUID
}

func PatientCaller(id uuid.UUID) Caller { return Caller{Role: RolePatient, ID: id} }
func DoctorCaller(id uuid.UUID) Caller  { return Caller{Role: RoleDoctor, ID: id} }
func StaffCaller(id uuid.UUID) Caller   { return Caller{Role: RoleStaff, ID: id} }

type BookingRequest struct {
	DoctorID  uuid.UUID
	SlotID    uuid.UUID
	Method    PaymentMethod
	WalletPIN string
}

type BookingResult struct {
	AppointmentID        uuid.UUID
	DoctorID             uuid.UUID
	ClinicID             uuid.UUID
	SlotID               uuid.UUID
	AppointmentDate      time.Time
	Price                wallet.Money
	Method               PaymentMethod
	PaymentStatus        PaymentStatus
	TransactionReference string
}

type CancellationResult struct {
	AppointmentID     uuid.UUID
	SlotFreed         *uuid.UUID
	RefundProcessed   bool
	RefundAmount      wallet.Money
	DiscountApplied   wallet.Money
	OriginalAmount    wallet.Money
	NewPatientBalance wallet.Money
}

type RescheduleResult struct {
	AppointmentID   uuid.UUID
	OldSlotID       uuid.UUID
	NewSlotID       uuid.UUID
	AppointmentDate time.Time
}

type TopUpResult struct {
	PatientID  uuid.UUID
	Amount     wallet.Money
	NewBalance wallet.Money
	Reference  string
}

// AppointmentView is an appointment as observed by a read, with its payment.
type AppointmentView struct {
	Appointment   Appointment
	Payment       *Payment
	PaymentStatus PaymentStatus
}
