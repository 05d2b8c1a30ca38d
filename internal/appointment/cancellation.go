package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/wallet"
)

const MaxCancellationReasonLength = 500

type cancelOptions struct {
	fullRefund bool
	emergency  bool
}

// Cancel cancels the calling patient's confirmed appointment. A paid wallet
// payment is refunded minus the cancellation discount; if the clinic cannot
// cover it nothing is cancelled.
func (s *Service) Cancel(ctx context.Context, caller Caller, appointmentID uuid.UUID, reason string) (*CancellationResult, error) {
	if caller.Role != RolePatient {
		return nil, ErrForbidden
	}
	return s.cancel(ctx, caller, appointmentID, reason, cancelOptions{})
}

// CancelByDoctor cancels one of the doctor's own appointments. The patient is
// refunded in full.
func (s *Service) CancelByDoctor(ctx context.Context, caller Caller, appointmentID uuid.UUID, reason string, emergency bool) (*CancellationResult, error) {
	if caller.Role != RoleDoctor {
		return nil, ErrForbidden
	}
	return s.cancel(ctx, caller, appointmentID, reason, cancelOptions{fullRefund: true, emergency: emergency})
}

func (s *Service) cancel(ctx context.Context, caller Caller, appointmentID uuid.UUID, reason string, opts cancelOptions) (*CancellationResult, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrInvalidRequest.With(map[string]any{"reason": "is required"})
	}
	if utf8.RuneCountInString(reason) > MaxCancellationReasonLength {
		return nil, ErrInvalidRequest.With(map[string]any{"reason": "must be at most 500 characters"})
	}

	var (
		result *CancellationResult
		notes  []notification
	)

	err := s.store.WithinTx(ctx, func(ctx context.Context, r Repositories) error {
		appt, err := loadForCaller(ctx, r, caller, appointmentID)
		if err != nil {
			return err
		}

		now := s.now()
		if err := requireConfirmed(appt, now); err != nil {
			return err
		}
		if err := Cancel(appt, reason, now); err != nil {
			return err
		}
		appt.UpdatedAt = now

		slots := NewSlotStore(r.Slots, s.log)
		freed, err := slots.Release(ctx, appt.TimeSlotID)
		if err != nil {
			return err
		}

		result = &CancellationResult{
			AppointmentID:  appt.ID,
			OriginalAmount: appt.Price,
		}
		if freed != nil {
			id := freed.ID
			result.SlotFreed = &id
		}

		payment, err := r.Payments.GetByAppointment(ctx, appt.ID)
		if err != nil && !errors.Is(err, ErrPaymentNotFound) {
			return fmt.Errorf("load payment: %w", err)
		}

		if payment != nil && payment.Method == MethodWallet && payment.Status == PaymentPaid {
			refund := wallet.ComputeRefund(appt.Price)
			if opts.fullRefund {
				refund = wallet.FullRefund(appt.Price)
			}

			balance, err := s.refund(ctx, r, appt, refund)
			if err != nil {
				return err
			}

			payment.Status = PaymentRefunded
			payment.RefundAmount = &refund.Amount
			payment.DiscountApplied = &refund.Discount
			payment.RefundedAt = &now
			if err := r.Payments.Update(ctx, payment); err != nil {
				return fmt.Errorf("mark payment refunded: %w", err)
			}
			appt.PaymentStatus = PaymentRefunded

			result.RefundProcessed = true
			result.RefundAmount = refund.Amount
			result.DiscountApplied = refund.Discount
			result.NewPatientBalance = balance
		} else {
			balance, err := s.ledger.Balance(ctx, r.Wallets, wallet.PatientAccount(appt.PatientID))
			if err != nil && !errors.Is(err, wallet.ErrAccountNotFound) {
				return fmt.Errorf("read patient balance: %w", err)
			}
			result.NewPatientBalance = balance
		}

		if err := r.Appointments.Update(ctx, appt); err != nil {
			return fmt.Errorf("cancel appointment: %w", err)
		}

		if err := s.logEvent(ctx, r.Events, &appt.ID, EventAppointmentCancelled, map[string]any{
			"cancelled_by":     string(caller.Role),
			"reason":           reason,
			"emergency":        opts.emergency,
			"refund_processed": result.RefundProcessed,
			"refund_cents":     int64(result.RefundAmount),
		}); err != nil {
			return err
		}

		payload := map[string]any{
			"appointment_id":   appt.ID.String(),
			"appointment_date": appt.AppointmentDate,
			"reason":           reason,
			"refund_processed": result.RefundProcessed,
			"refund_amount":    result.RefundAmount.String(),
		}
		patientEvent := NotifyAppointmentCancelled
		if opts.emergency {
			patientEvent = NotifyEmergencyCancellation
		}
		notes = []notification{
			{eventType: patientEvent, recipient: appt.PatientID, payload: payload},
		}
		if caller.Role != RoleDoctor {
			notes = append(notes, notification{eventType: NotifyAppointmentCancelled, recipient: appt.DoctorID, payload: payload})
		}
		return nil
	})
	if err != nil {
		s.log.Info("cancellation rejected",
			zap.String("appointment_id", appointmentID.String()),
			zap.String("caller_role", string(caller.Role)),
			zap.Error(err),
		)
		return nil, err
	}

	s.log.Info("appointment cancelled",
		zap.String("appointment_id", appointmentID.String()),
		zap.Bool("refund_processed", result.RefundProcessed),
		zap.Int64("refund_cents", int64(result.RefundAmount)),
	)
	s.dispatch(notes)
	return result, nil
}

// refund moves the refund from the clinic back to the patient and returns the
// patient's new balance. The clinic must hold the full original price.
func (s *Service) refund(ctx context.Context, r Repositories, appt *Appointment, refund wallet.Refund) (wallet.Money, error) {
	patient := wallet.PatientAccount(appt.PatientID)

	if refund.Amount == 0 {
		return s.ledger.Balance(ctx, r.Wallets, patient)
	}

	pair, err := s.ledger.Transfer(ctx, r.Wallets, wallet.Transfer{
		From:      wallet.ClinicAccount(appt.ClinicID),
		To:        patient,
		Amount:    refund.Amount,
		Reference: appt.Reference(),
		Type:      wallet.TypeRefund,
		Notes:     "appointment cancellation refund",
		Guard: func(clinicBalance, _ wallet.Money) bool {
			return wallet.CanRefund(clinicBalance, appt.Price)
		},
	})
	if err != nil {
		var insufficient *wallet.InsufficientFundsError
		if errors.Is(err, wallet.ErrTransferRejected) || errors.As(err, &insufficient) {
			return 0, ErrInsufficientClinicFunds
		}
		return 0, fmt.Errorf("refund: %w", err)
	}
	return pair.Credit.BalanceAfter, nil
}
