package appointment

import "time"

// transitions lists every legal status change. absent is only ever written
// by the attendance process outside this service.
var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to AppointmentStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves a to the target status or explains why it cannot.
func Transition(a *Appointment, to AppointmentStatus) error {
	if CanTransition(a.Status, to) {
		a.Status = to
		return nil
	}
	if a.Status == StatusCompleted {
		return ErrAlreadyCompleted
	}
	return ErrInvalidTransition.With(map[string]any{"status": string(a.Status)})
}

// ObserveCompletion applies the lazy confirmed -> completed transition for an
// appointment whose date has passed. Reports whether a changed.
func ObserveCompletion(a *Appointment, now time.Time) bool {
	if a.Status == StatusConfirmed && a.AppointmentDate.Before(now) {
		a.Status = StatusCompleted
		return true
	}
	return false
}

// Cancel transitions a to cancelled, stamping reason and time.
func Cancel(a *Appointment, reason string, at time.Time) error {
	if err := Transition(a, StatusCancelled); err != nil {
		return err
	}
	a.CancellationReason = &reason
	a.CancelledAt = &at
	return nil
}
