package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/wallet"
)

func validateBooking(req BookingRequest) error {
	fields := map[string]any{}
	if req.DoctorID == uuid.Nil {
		fields["doctor_id"] = "required"
	}
	if req.SlotID == uuid.Nil {
		fields["slot_id"] = "required"
	}
	switch req.Method {
	case MethodCash:
	case MethodWallet:
		if !ValidPIN(req.WalletPIN) {
			fields["wallet_pin"] = "must be exactly 4 digits"
		}
	default:
		fields["method"] = "must be cash or wallet"
	}
	if len(fields) > 0 {
		return ErrInvalidRequest.With(fields)
	}
	return nil
}

// Book reserves the slot for the calling patient and takes payment in one
// transaction. Nothing of a failed booking is left behind.
func (s *Service) Book(ctx context.Context, caller Caller, req BookingRequest) (*BookingResult, error) {
	if caller.Role != RolePatient {
		return nil, ErrForbidden
	}
	if err := validateBooking(req); err != nil {
		return nil, err
	}
	patientID := caller.ID

	doctor, err := s.doctors.GetActiveDoctor(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.Bookable() {
		return nil, ErrDoctorInactive
	}

	var creds *WalletCredentials
	if req.Method == MethodWallet {
		creds, err = s.patients.GetWalletCredentials(ctx, patientID)
		if err != nil {
			return nil, err
		}
	}

	var (
		result  *BookingResult
		blocked BlockDecision
		notes   []notification
	)

	err = s.withSlotLocks(ctx, func(ctx context.Context) error {
		return s.store.WithinTx(ctx, func(ctx context.Context, r Repositories) error {
			notes = nil

			decision, err := EvaluateBlock(ctx, r.Appointments, patientID)
			if err != nil {
				return err
			}
			blocked = decision
			if decision.Blocked {
				return ErrAccountBlocked
			}

			slots := NewSlotStore(r.Slots, s.log)
			slot, err := slots.Acquire(ctx, req.SlotID, doctor.ID)
			if err != nil {
				return err
			}

			now := s.now()
			appt := &Appointment{
				ID:              uuid.New(),
				PatientID:       patientID,
				DoctorID:        doctor.ID,
				ClinicID:        doctor.ClinicID,
				TimeSlotID:      slot.ID,
				AppointmentDate: slot.StartsAt(s.loc),
				Status:          StatusConfirmed,
				PaymentStatus:   PaymentPending,
				Price:           doctor.ConsultationFee,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if err := r.Appointments.Create(ctx, appt); err != nil {
				return err
			}

			payment := &Payment{
				ID:            uuid.New(),
				AppointmentID: appt.ID,
				PatientID:     patientID,
				Amount:        appt.Price,
				Method:        req.Method,
				Status:        PaymentPending,
				CreatedAt:     now,
			}

			if req.Method == MethodWallet {
				if err := s.chargeWallet(ctx, r, appt, creds, req.WalletPIN); err != nil {
					return err
				}
				payment.Status = PaymentPaid
				if appt.Price > 0 {
					payment.TransactionReference = appt.Reference()
				}
				payment.PaidAt = &now
				appt.PaymentStatus = PaymentPaid
				if err := r.Appointments.Update(ctx, appt); err != nil {
					return fmt.Errorf("mark appointment paid: %w", err)
				}
			}

			if err := r.Payments.Create(ctx, payment); err != nil {
				return fmt.Errorf("create payment: %w", err)
			}

			if err := slots.Commit(ctx, slot.ID); err != nil {
				return err
			}

			if err := s.logEvent(ctx, r.Events, &appt.ID, EventAppointmentBooked, map[string]any{
				"slot_id":      slot.ID.String(),
				"patient_id":   patientID.String(),
				"doctor_id":    doctor.ID.String(),
				"method":       string(req.Method),
				"price_cents":  int64(appt.Price),
				"payment_paid": payment.Status == PaymentPaid,
			}); err != nil {
				return err
			}

			result = &BookingResult{
				AppointmentID:        appt.ID,
				DoctorID:             doctor.ID,
				ClinicID:             doctor.ClinicID,
				SlotID:               slot.ID,
				AppointmentDate:      appt.AppointmentDate,
				Price:                appt.Price,
				Method:               req.Method,
				PaymentStatus:        DerivePaymentStatus(payment),
				TransactionReference: payment.TransactionReference,
			}

			summary := map[string]any{
				"appointment_id":   appt.ID.String(),
				"doctor_name":      doctor.Name,
				"appointment_date": appt.AppointmentDate,
				"price":            appt.Price.String(),
				"payment_method":   string(req.Method),
			}
			notes = append(notes,
				notification{eventType: NotifyAppointmentBooked, recipient: patientID, payload: summary},
				notification{eventType: NotifyDoctorAppointmentBooked, recipient: doctor.ID, payload: summary},
			)
			return nil
		})
	}, req.SlotID)

	if err != nil {
		if errors.Is(err, ErrAccountBlocked) {
			s.dispatch([]notification{{
				eventType: NotifyPatientBlocked,
				recipient: patientID,
				payload:   map[string]any{"absent_count": blocked.AbsentCount},
			}})
		}
		s.log.Info("booking rejected",
			zap.String("patient_id", patientID.String()),
			zap.String("slot_id", req.SlotID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	s.log.Info("appointment booked",
		zap.String("appointment_id", result.AppointmentID.String()),
		zap.String("slot_id", result.SlotID.String()),
		zap.String("payment_status", string(result.PaymentStatus)),
	)
	s.dispatch(notes)
	return result, nil
}

// chargeWallet checks activation and PIN before any money moves, then
// transfers the fee from the patient to the clinic.
func (s *Service) chargeWallet(ctx context.Context, r Repositories, appt *Appointment, creds *WalletCredentials, pin string) error {
	if !creds.Activated {
		return ErrWalletNotActivated
	}

	ok, err := s.pins.Verify(creds.PinHash, pin)
	if err != nil {
		return fmt.Errorf("verify pin: %w", err)
	}
	if !ok {
		return ErrInvalidPIN
	}

	if appt.Price == 0 {
		return nil
	}

	_, err = s.ledger.Transfer(ctx, r.Wallets, wallet.Transfer{
		From:      wallet.PatientAccount(appt.PatientID),
		To:        wallet.ClinicAccount(appt.ClinicID),
		Amount:    appt.Price,
		Reference: appt.Reference(),
		Type:      wallet.TypePayment,
		Notes:     "appointment payment",
	})
	if err != nil {
		var insufficient *wallet.InsufficientFundsError
		switch {
		case errors.As(err, &insufficient):
			return ErrInsufficientBalance.With(map[string]any{
				"current_balance": insufficient.Balance,
				"required_amount": insufficient.Required,
				"shortfall":       insufficient.Shortfall(),
			})
		case errors.Is(err, wallet.ErrAccountNotFound):
			return ErrPatientNotFound
		default:
			return fmt.Errorf("wallet payment: %w", err)
		}
	}
	return nil
}
