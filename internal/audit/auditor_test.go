package audit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/wallet"
)

func TestReportLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)

	Report{CheckedAt: time.Now()}.Log(log)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "ledger audit clean", logs.All()[0].Message)

	r := Report{
		Slots:      []SlotDrift{{SlotID: uuid.New(), IsBooked: true}},
		Unbalanced: []UnbalancedReference{{Reference: "APT-x", Type: wallet.TypePayment, Rows: 1, NetDelta: -500}},
		BalanceDrift: []BalanceDrift{
			{Account: wallet.ClinicAccount(uuid.New()), Stored: 100, LedgerSum: 0},
		},
	}
	assert.False(t, r.Clean())
	r.Log(log)
	assert.Equal(t, 1, logs.FilterMessage("slot flag drift").Len())
	assert.Equal(t, 1, logs.FilterMessage("unbalanced ledger reference").Len())
	assert.Equal(t, 1, logs.FilterMessage("wallet balance drift").Len())
}

func TestAuditor_DetectsSlotDrift(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := db.ConnectPostgres(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, db.Migrate(ctx, pool))

	clinicID, doctorID, slotID := uuid.New(), uuid.New(), uuid.New()
	_, err = pool.Exec(ctx, `INSERT INTO clinics (id, name) VALUES ($1, 'Audit Clinic')`, clinicID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `
		INSERT INTO doctors (id, clinic_id, name, consultation_fee_cents) VALUES ($1, $2, 'Dr. Audit', 1000)
	`, doctorID, clinicID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `
		INSERT INTO time_slots (id, doctor_id, date, start_time, end_time, is_booked)
		VALUES ($1, $2, CURRENT_DATE, '09:00', '09:30', TRUE)
	`, slotID, doctorID)
	require.NoError(t, err)

	drift, err := NewAuditor(pool).SlotDrift(ctx)
	require.NoError(t, err)

	var found bool
	for _, d := range drift {
		if d.SlotID == slotID {
			found = true
			assert.True(t, d.IsBooked)
			assert.Zero(t, d.ActiveBookings)
		}
	}
	assert.True(t, found, "flagged slot without appointment should be reported")
}
