package appointment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const AbsenceBlockThreshold = 3

type BlockDecision struct {
	Blocked     bool
	AbsentCount int
}

// EvaluateBlock counts the patient's absences. Read only; rejecting the
// booking and notifying the patient is up to the caller.
func EvaluateBlock(ctx context.Context, appts AppointmentRepository, patientID uuid.UUID) (BlockDecision, error) {
	n, err := appts.CountByStatus(ctx, patientID, StatusAbsent)
	if err != nil {
		return BlockDecision{}, fmt.Errorf("count absences: %w", err)
	}
	return BlockDecision{Blocked: n >= AbsenceBlockThreshold, AbsentCount: n}, nil
}

func IsBlocked(ctx context.Context, appts AppointmentRepository, patientID uuid.UUID) (bool, error) {
	d, err := EvaluateBlock(ctx, appts, patientID)
	return d.Blocked, err
}
