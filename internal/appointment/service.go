package appointment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	redisclient "github.com/hackgods/clinic-booking/internal/redis"
	"github.com/hackgods/clinic-booking/internal/wallet"
)

const (
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
	EventWalletTopUp            = "WALLET_TOP_UP"
)

// Notification types sent through the Notifier.
const (
	NotifyAppointmentBooked       = "appointment_booked"
	NotifyDoctorAppointmentBooked = "doctor_appointment_booked"
	NotifyAppointmentCancelled    = "appointment_cancelled"
	NotifyEmergencyCancellation   = "emergency_appointment_cancellation"
	NotifyAppointmentRescheduled  = "appointment_rescheduled"
	NotifyPatientBlocked          = "patient_blocked"
	NotifyWalletFundsAdded        = "wallet_funds_added"
)

type Deps struct {
	Store    Store
	Doctors  DoctorDirectory
	Patients PatientDirectory
	Locker   redisclient.Locker
	Notifier Notifier
	Pins     PinVerifier
	Log      *zap.Logger
	// Location is the clinic timezone used to turn slot dates into instants.
	Location *time.Location
	Now      func() time.Time
}

type Service struct {
	store    Store
	doctors  DoctorDirectory
	patients PatientDirectory
	locker   redisclient.Locker
	notifier Notifier
	pins     PinVerifier
	ledger   *wallet.Ledger
	log      *zap.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{
		store:    d.Store,
		doctors:  d.Doctors,
		patients: d.Patients,
		locker:   d.Locker,
		notifier: d.Notifier,
		pins:     d.Pins,
		log:      d.Log,
		loc:      d.Location,
		now:      d.Now,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.locker == nil {
		s.locker = redisclient.NewLocalSlotLocker()
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.pins == nil {
		s.pins = BcryptPinVerifier{}
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.ledger = wallet.NewLedger(s.log)
	return s
}

type nopNotifier struct{}

func (nopNotifier) Send(string, uuid.UUID, map[string]any) {}

// notification is queued inside a unit of work and sent only after commit.
type notification struct {
	eventType string
	recipient uuid.UUID
	payload   map[string]any
}

func (s *Service) dispatch(ns []notification) {
	for _, n := range ns {
		s.notifier.Send(n.eventType, n.recipient, n.payload)
	}
}

// logEvent writes an event_logs row inside the current transaction.
func (s *Service) logEvent(ctx context.Context, events EventRepository, appointmentID *uuid.UUID, eventType string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("failed to marshal event payload", zap.String("event_type", eventType), zap.Error(err))
		data = nil
	}

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: appointmentID,
		Payload:       data,
		CreatedAt:     s.now(),
	}
	if err := events.InsertEvent(ctx, ev); err != nil {
		return fmt.Errorf("insert event %s: %w", eventType, err)
	}
	return nil
}

// loadForCaller locks the appointment and hides it from callers that are
// neither its patient, its doctor nor staff.
func loadForCaller(ctx context.Context, r Repositories, caller Caller, id uuid.UUID) (*Appointment, error) {
	appt, err := r.Appointments.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	switch caller.Role {
	case RoleStaff:
		return appt, nil
	case RolePatient:
		if appt.PatientID == caller.ID {
			return appt, nil
		}
	case RoleDoctor:
		if appt.DoctorID == caller.ID {
			return appt, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

// requireConfirmed applies lazy completion and rejects anything that can no
// longer be changed. The completion is not persisted here; callers that fail
// roll back and the next read persists it.
func requireConfirmed(appt *Appointment, now time.Time) error {
	ObserveCompletion(appt, now)
	switch appt.Status {
	case StatusConfirmed:
		return nil
	case StatusCompleted:
		return ErrAlreadyCompleted
	default:
		return ErrInvalidTransition.With(map[string]any{"status": string(appt.Status)})
	}
}

// DerivePaymentStatus is the payment's status, or pending when the
// appointment has no payment row.
func DerivePaymentStatus(p *Payment) PaymentStatus {
	if p == nil {
		return PaymentPending
	}
	return p.Status
}

// GetAppointment returns the appointment with its payment, persisting the
// lazy confirmed -> completed transition when the date has passed.
func (s *Service) GetAppointment(ctx context.Context, caller Caller, id uuid.UUID) (*AppointmentView, error) {
	var view *AppointmentView

	err := s.store.WithinTx(ctx, func(ctx context.Context, r Repositories) error {
		appt, err := loadForCaller(ctx, r, caller, id)
		if err != nil {
			return err
		}

		if ObserveCompletion(appt, s.now()) {
			if err := r.Appointments.Update(ctx, appt); err != nil {
				return fmt.Errorf("persist completion: %w", err)
			}
			if err := s.logEvent(ctx, r.Events, &appt.ID, EventAppointmentCompleted, map[string]any{
				"reason": "date_passed",
			}); err != nil {
				return err
			}
		}

		payment, err := r.Payments.GetByAppointment(ctx, appt.ID)
		if err != nil && !errors.Is(err, ErrPaymentNotFound) {
			return fmt.Errorf("load payment: %w", err)
		}

		view = &AppointmentView{
			Appointment:   *appt,
			Payment:       payment,
			PaymentStatus: DerivePaymentStatus(payment),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// TopUp credits an activated patient wallet with money received at the desk.
func (s *Service) TopUp(ctx context.Context, caller Caller, patientID uuid.UUID, amount wallet.Money, notes string) (*TopUpResult, error) {
	if caller.Role != RoleStaff {
		return nil, ErrForbidden
	}
	if amount <= 0 {
		return nil, ErrInvalidRequest.With(map[string]any{"amount": "must be greater than zero"})
	}

	creds, err := s.patients.GetWalletCredentials(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !creds.Activated {
		return nil, ErrWalletNotActivated
	}

	ref := "TOP-" + uuid.NewString()
	var result *TopUpResult

	err = s.store.WithinTx(ctx, func(ctx context.Context, r Repositories) error {
		tx, err := s.ledger.Deposit(ctx, r.Wallets, wallet.PatientAccount(patientID), amount, ref, notes)
		if err != nil {
			if errors.Is(err, wallet.ErrAccountNotFound) {
				return ErrPatientNotFound
			}
			return fmt.Errorf("deposit: %w", err)
		}

		if err := s.logEvent(ctx, r.Events, nil, EventWalletTopUp, map[string]any{
			"patient_id":   patientID.String(),
			"staff_id":     caller.ID.String(),
			"amount_cents": int64(amount),
			"reference":    ref,
		}); err != nil {
			return err
		}

		result = &TopUpResult{
			PatientID:  patientID,
			Amount:     amount,
			NewBalance: tx.BalanceAfter,
			Reference:  ref,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("wallet topped up",
		zap.String("patient_id", patientID.String()),
		zap.String("reference", ref),
		zap.Int64("amount_cents", int64(amount)),
	)
	s.dispatch([]notification{{
		eventType: NotifyWalletFundsAdded,
		recipient: patientID,
		payload: map[string]any{
			"amount":      amount.String(),
			"new_balance": result.NewBalance.String(),
			"reference":   ref,
		},
	}})
	return result, nil
}

// withSlotLocks takes the distributed slot locks in ascending id order and
// runs fn while holding all of them.
func (s *Service) withSlotLocks(ctx context.Context, fn func(ctx context.Context) error, slotIDs ...uuid.UUID) error {
	ids := slices.Clone(slotIDs)
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })

	var run func(ctx context.Context, i int) error
	run = func(ctx context.Context, i int) error {
		if i == len(ids) {
			return fn(ctx)
		}
		return s.locker.WithSlotLock(ctx, ids[i], func(ctx context.Context) error {
			return run(ctx, i+1)
		})
	}

	err := run(ctx, 0)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrSlotBeingBooked
	}
	return err
}
