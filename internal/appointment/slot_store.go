package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SlotStore is the only writer of time_slots.is_booked. It is bound to one
// transaction's SlotRepository.
type SlotStore struct {
	repo SlotRepository
	log  *zap.Logger
}

func NewSlotStore(repo SlotRepository, log *zap.Logger) *SlotStore {
	return &SlotStore{repo: repo, log: log}
}

// Acquire locks the slot and checks it is free. A slot flagged booked with no
// active appointment behind it is left over from a failed booking; the flag
// is cleared and the acquire proceeds.
func (s *SlotStore) Acquire(ctx context.Context, slotID, doctorID uuid.UUID) (*TimeSlot, error) {
	slot, err := s.repo.LockSlot(ctx, slotID, doctorID)
	if err != nil {
		return nil, err
	}

	if !slot.IsBooked {
		return slot, nil
	}

	active, err := s.repo.HasActiveAppointment(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("check active appointment: %w", err)
	}
	if active {
		return nil, ErrSlotAlreadyBooked
	}

	s.log.Warn("slot flagged booked without active appointment, repairing",
		zap.String("slot_id", slotID.String()),
		zap.String("doctor_id", doctorID.String()),
	)
	if err := s.repo.SetBooked(ctx, slotID, false); err != nil {
		return nil, fmt.Errorf("repair slot flag: %w", err)
	}
	slot.IsBooked = false
	return slot, nil
}

// Commit marks an acquired slot booked. Call it after the appointment and
// payment rows are written in the same transaction.
func (s *SlotStore) Commit(ctx context.Context, slotID uuid.UUID) error {
	if err := s.repo.SetBooked(ctx, slotID, true); err != nil {
		return fmt.Errorf("commit slot: %w", err)
	}
	return nil
}

// Release frees the slot. Releasing a free or missing slot is a no-op; the
// returned slot is nil when it does not exist.
func (s *SlotStore) Release(ctx context.Context, slotID uuid.UUID) (*TimeSlot, error) {
	slot, err := s.repo.LockSlotByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !slot.IsBooked {
		return slot, nil
	}
	if err := s.repo.SetBooked(ctx, slotID, false); err != nil {
		return nil, fmt.Errorf("release slot: %w", err)
	}
	slot.IsBooked = false
	return slot, nil
}
