package redisclient

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotLockKey(t *testing.T) {
	id := uuid.MustParse("6f1c2d9e-2f1b-4b6a-9d8e-1a2b3c4d5e6f")
	assert.Equal(t, "lock:slot:6f1c2d9e-2f1b-4b6a-9d8e-1a2b3c4d5e6f", SlotLockKey(id))
}

func TestLocalSlotLocker_FailsFastWhenHeld(t *testing.T) {
	l := NewLocalSlotLocker()
	slot := uuid.New()

	err := l.WithSlotLock(context.Background(), slot, func(ctx context.Context) error {
		inner := l.WithSlotLock(ctx, slot, func(context.Context) error { return nil })
		assert.ErrorIs(t, inner, ErrLockNotAcquired)

		other := l.WithSlotLock(ctx, uuid.New(), func(context.Context) error { return nil })
		assert.NoError(t, other)
		return nil
	})
	require.NoError(t, err)

	// released after fn returns, even on error
	boom := errors.New("boom")
	err = l.WithSlotLock(context.Background(), slot, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, l.WithSlotLock(context.Background(), slot, func(context.Context) error { return nil }))
}
