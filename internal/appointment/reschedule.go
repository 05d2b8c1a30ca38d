package appointment

import (
	"bytes"
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reschedule moves the calling patient's confirmed appointment to another
// free slot of the same doctor. The payment is left as it is.
func (s *Service) Reschedule(ctx context.Context, caller Caller, appointmentID, newSlotID uuid.UUID) (*RescheduleResult, error) {
	if caller.Role != RolePatient {
		return nil, ErrForbidden
	}
	if newSlotID == uuid.Nil {
		return nil, ErrInvalidRequest.With(map[string]any{"slot_id": "required"})
	}

	var (
		result *RescheduleResult
		notes  []notification
	)

	// The old slot id is only known inside the transaction; the distributed
	// lock guards the slot being taken.
	err := s.withSlotLocks(ctx, func(ctx context.Context) error {
		return s.store.WithinTx(ctx, func(ctx context.Context, r Repositories) error {
			appt, err := loadForCaller(ctx, r, caller, appointmentID)
			if err != nil {
				return err
			}

			now := s.now()
			if err := requireConfirmed(appt, now); err != nil {
				return err
			}
			oldSlotID := appt.TimeSlotID
			if oldSlotID == newSlotID {
				return ErrInvalidRequest.With(map[string]any{"slot_id": "appointment already holds this slot"})
			}

			doctor, err := s.doctors.GetActiveDoctor(ctx, appt.DoctorID)
			if err != nil {
				return err
			}
			if !doctor.Bookable() {
				return ErrDoctorInactive
			}

			slots := NewSlotStore(r.Slots, s.log)
			var newSlot *TimeSlot
			acquire := func() error {
				newSlot, err = slots.Acquire(ctx, newSlotID, appt.DoctorID)
				return err
			}
			release := func() error {
				_, err := slots.Release(ctx, oldSlotID)
				return err
			}
			steps := []func() error{release, acquire}
			if bytes.Compare(newSlotID[:], oldSlotID[:]) < 0 {
				steps = []func() error{acquire, release}
			}
			for _, step := range steps {
				if err := step(); err != nil {
					return err
				}
			}

			appt.TimeSlotID = newSlot.ID
			appt.AppointmentDate = newSlot.StartsAt(s.loc)
			appt.UpdatedAt = now
			if err := r.Appointments.Update(ctx, appt); err != nil {
				return err
			}
			if err := slots.Commit(ctx, newSlot.ID); err != nil {
				return err
			}

			if err := s.logEvent(ctx, r.Events, &appt.ID, EventAppointmentRescheduled, map[string]any{
				"old_slot_id": oldSlotID.String(),
				"new_slot_id": newSlot.ID.String(),
			}); err != nil {
				return err
			}

			result = &RescheduleResult{
				AppointmentID:   appt.ID,
				OldSlotID:       oldSlotID,
				NewSlotID:       newSlot.ID,
				AppointmentDate: appt.AppointmentDate,
			}
			payload := map[string]any{
				"appointment_id":   appt.ID.String(),
				"appointment_date": appt.AppointmentDate,
			}
			notes = []notification{
				{eventType: NotifyAppointmentRescheduled, recipient: appt.PatientID, payload: payload},
				{eventType: NotifyAppointmentRescheduled, recipient: appt.DoctorID, payload: payload},
			}
			return nil
		})
	}, newSlotID)
	if err != nil {
		return nil, err
	}

	s.log.Info("appointment rescheduled",
		zap.String("appointment_id", appointmentID.String()),
		zap.String("old_slot_id", result.OldSlotID.String()),
		zap.String("new_slot_id", result.NewSlotID.String()),
	)
	s.dispatch(notes)
	return result, nil
}
