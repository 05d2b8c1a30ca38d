package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/wallet"
)

const activeSlotIndex = "appointments_active_slot_uidx"

// PgStore opens one pgx transaction per unit of work.
type PgStore struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

func NewPgStore(pool *pgxpool.Pool, lockTimeout time.Duration) *PgStore {
	return &PgStore{pool: pool, lockTimeout: lockTimeout}
}

var _ Store = (*PgStore)(nil)

func (s *PgStore) WithinTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error {
	err := db.WithTx(ctx, s.pool, s.lockTimeout, func(tx pgx.Tx) error {
		return fn(ctx, NewPgRepositories(tx))
	})
	if err != nil && db.HasCode(err, db.CodeLockNotAvailable) {
		return ErrLockTimeout.Wrap(err)
	}
	return err
}

// NewPgRepositories binds every repository to q, normally an open pgx.Tx.
func NewPgRepositories(q db.DBTX) Repositories {
	return Repositories{
		Slots:        &pgSlotRepository{db: q},
		Appointments: &pgAppointmentRepository{db: q},
		Payments:     &pgPaymentRepository{db: q},
		Wallets:      wallet.NewPgRepository(q),
		Events:       &pgEventRepository{db: q},
	}
}

// Slots

type pgSlotRepository struct {
	db db.DBTX
}

func scanSlot(row pgx.Row) (*TimeSlot, error) {
	var s TimeSlot
	var start, end pgtype.Time

	err := row.Scan(&s.ID, &s.DoctorID, &s.Date, &start, &end, &s.IsBooked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	s.StartTime = time.Duration(start.Microseconds) * time.Microsecond
	s.EndTime = time.Duration(end.Microseconds) * time.Microsecond
	return &s, nil
}

func (r *pgSlotRepository) LockSlot(ctx context.Context, slotID, doctorID uuid.UUID) (*TimeSlot, error) {
	return scanSlot(r.db.QueryRow(ctx, `
		SELECT id, doctor_id, date, start_time, end_time, is_booked
		FROM time_slots
		WHERE id = $1 AND doctor_id = $2
		FOR UPDATE
	`, slotID, doctorID))
}

func (r *pgSlotRepository) LockSlotByID(ctx context.Context, slotID uuid.UUID) (*TimeSlot, error) {
	return scanSlot(r.db.QueryRow(ctx, `
		SELECT id, doctor_id, date, start_time, end_time, is_booked
		FROM time_slots
		WHERE id = $1
		FOR UPDATE
	`, slotID))
}

func (r *pgSlotRepository) HasActiveAppointment(ctx context.Context, slotID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE time_slot_id = $1 AND status IN ('confirmed', 'completed')
		)
	`, slotID).Scan(&exists)
	return exists, err
}

func (r *pgSlotRepository) SetBooked(ctx context.Context, slotID uuid.UUID, booked bool) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE time_slots
		SET is_booked = $2,
		    updated_at = now()
		WHERE id = $1
	`, slotID, booked)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// Appointments

type pgAppointmentRepository struct {
	db db.DBTX
}

const appointmentColumns = `id, patient_id, doctor_id, clinic_id, time_slot_id, appointment_date,
	status, payment_status, price_cents, cancellation_reason, cancelled_at, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status, paymentStatus string
	var price int64

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.ClinicID,
		&a.TimeSlotID,
		&a.AppointmentDate,
		&status,
		&paymentStatus,
		&price,
		&a.CancellationReason,
		&a.CancelledAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Status = AppointmentStatus(status)
	a.PaymentStatus = PaymentStatus(paymentStatus)
	a.Price = wallet.Money(price)
	return &a, nil
}

func (r *pgAppointmentRepository) Create(ctx context.Context, a *Appointment) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		a.ID, a.PatientID, a.DoctorID, a.ClinicID, a.TimeSlotID, a.AppointmentDate,
		string(a.Status), string(a.PaymentStatus), int64(a.Price),
		a.CancellationReason, a.CancelledAt, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return translateAppointmentWriteErr(err)
	}
	return nil
}

func (r *pgAppointmentRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id))
}

func (r *pgAppointmentRepository) Update(ctx context.Context, a *Appointment) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET time_slot_id = $2,
		    appointment_date = $3,
		    status = $4,
		    payment_status = $5,
		    cancellation_reason = $6,
		    cancelled_at = $7,
		    updated_at = now()
		WHERE id = $1
	`, a.ID, a.TimeSlotID, a.AppointmentDate, string(a.Status), string(a.PaymentStatus),
		a.CancellationReason, a.CancelledAt)
	if err != nil {
		return translateAppointmentWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *pgAppointmentRepository) CountByStatus(ctx context.Context, patientID uuid.UUID, status AppointmentStatus) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT count(*) FROM appointments WHERE patient_id = $1 AND status = $2
	`, patientID, string(status)).Scan(&n)
	return n, err
}

func translateAppointmentWriteErr(err error) error {
	switch {
	case db.HasCode(err, db.CodeUniqueViolation) && db.ConstraintName(err) == activeSlotIndex:
		return ErrSlotAlreadyBooked.Wrap(err)
	case db.HasCode(err, db.CodeForeignKeyViolation) && db.ConstraintName(err) == "appointments_patient_id_fkey":
		return ErrPatientNotFound.Wrap(err)
	default:
		return fmt.Errorf("write appointment: %w", err)
	}
}

// Payments

type pgPaymentRepository struct {
	db db.DBTX
}

func (r *pgPaymentRepository) Create(ctx context.Context, p *Payment) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO payments (
			id, appointment_id, patient_id, amount_cents, method, status,
			transaction_reference, refund_amount_cents, discount_cents,
			paid_at, refunded_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11, $12, $12)
	`,
		p.ID, p.AppointmentID, p.PatientID, int64(p.Amount), string(p.Method), string(p.Status),
		p.TransactionReference, moneyPtr(p.RefundAmount), moneyPtr(p.DiscountApplied),
		p.PaidAt, p.RefundedAt, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *pgPaymentRepository) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Payment, error) {
	var p Payment
	var amount int64
	var method, status string
	var refund, discount *int64

	err := r.db.QueryRow(ctx, `
		SELECT id, appointment_id, patient_id, amount_cents, method, status,
		       COALESCE(transaction_reference, ''), refund_amount_cents, discount_cents,
		       paid_at, refunded_at, created_at
		FROM payments
		WHERE appointment_id = $1
		FOR UPDATE
	`, appointmentID).Scan(
		&p.ID, &p.AppointmentID, &p.PatientID, &amount, &method, &status,
		&p.TransactionReference, &refund, &discount,
		&p.PaidAt, &p.RefundedAt, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	p.Amount = wallet.Money(amount)
	p.Method = PaymentMethod(method)
	p.Status = PaymentStatus(status)
	if refund != nil {
		m := wallet.Money(*refund)
		p.RefundAmount = &m
	}
	if discount != nil {
		m := wallet.Money(*discount)
		p.DiscountApplied = &m
	}
	return &p, nil
}

func (r *pgPaymentRepository) Update(ctx context.Context, p *Payment) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE payments
		SET status = $2,
		    transaction_reference = NULLIF($3, ''),
		    refund_amount_cents = $4,
		    discount_cents = $5,
		    paid_at = $6,
		    refunded_at = $7,
		    updated_at = now()
		WHERE id = $1
	`, p.ID, string(p.Status), p.TransactionReference, moneyPtr(p.RefundAmount), moneyPtr(p.DiscountApplied),
		p.PaidAt, p.RefundedAt)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func moneyPtr(m *wallet.Money) *int64 {
	if m == nil {
		return nil
	}
	v := int64(*m)
	return &v
}

// Events

type pgEventRepository struct {
	db db.DBTX
}

func (r *pgEventRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`, ev.EventType, ev.AppointmentID, ev.Payload, ev.CreatedAt)
	return err
}
