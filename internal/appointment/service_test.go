package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-booking/internal/wallet"
)

func TestGetAppointment_PersistsLazyCompletion(t *testing.T) {
	h := newHarness(t)
	w := h.newWorld(10000)
	patient := h.store.addPatient(t, 10000, true)
	booked := h.bookWallet(t, w, patient)

	view, err := h.svc.GetAppointment(context.Background(), PatientCaller(patient), booked.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, view.Appointment.Status)
	assert.Equal(t, PaymentPaid, view.PaymentStatus)

	h.now = slotDate.Add(24 * time.Hour)
	view, err = h.svc.GetAppointment(context.Background(), PatientCaller(patient), booked.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, view.Appointment.Status)

	st := h.store.snapshot()
	assert.Equal(t, StatusCompleted, st.appts[booked.AppointmentID].Status)
	assert.True(t, st.slots[w.slotID].IsBooked)
	assert.Equal(t, EventAppointmentCompleted, st.events[len(st.events)-1].EventType)
	requireSlotInvariant(t, st)
}

func TestGetAppointment_Visibility(t *testing.T) {
	h := newHarness(t)
	w := h.newWorld(10000)
	patient := h.store.addPatient(t, 10000, true)
	stranger := h.store.addPatient(t, 0, false)
	booked := h.bookWallet(t, w, patient)

	for _, c := range []Caller{PatientCaller(patient), DoctorCaller(w.doctor.ID), StaffCaller(stranger)} {
		_, err := h.svc.GetAppointment(context.Background(), c, booked.AppointmentID)
		assert.NoError(t, err, "caller %s", c.Role)
	}

	_, err := h.svc.GetAppointment(context.Background(), PatientCaller(stranger), booked.AppointmentID)
	require.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestDerivePaymentStatus(t *testing.T) {
	assert.Equal(t, PaymentPending, DerivePaymentStatus(nil))
	assert.Equal(t, PaymentPaid, DerivePaymentStatus(&Payment{Status: PaymentPaid}))
	assert.Equal(t, PaymentRefunded, DerivePaymentStatus(&Payment{Status: PaymentRefunded}))
}

func TestTopUp_WritesSingleDepositRow(t *testing.T) {
	h := newHarness(t)
	patient := h.store.addPatient(t, 1500, true)
	staff := StaffCaller(h.store.addPatient(t, 0, false))

	res, err := h.svc.TopUp(context.Background(), staff, patient, 5000, "cash at desk")
	require.NoError(t, err)
	assert.Equal(t, wallet.Money(6500), res.NewBalance)
	assert.Contains(t, res.Reference, "TOP-")

	st := h.store.snapshot()
	assert.Equal(t, wallet.Money(6500), st.patients[patient])
	require.Len(t, st.txs, 1)
	tx := st.txs[0]
	assert.Equal(t, wallet.TypeDeposit, tx.Type)
	assert.Equal(t, wallet.Money(1500), tx.BalanceBefore)
	assert.Equal(t, wallet.Money(6500), tx.BalanceAfter)
	assert.Equal(t, "cash at desk", tx.Notes)

	require.Len(t, h.notifier.sent, 1)
	assert.Equal(t, NotifyWalletFundsAdded, h.notifier.sent[0].EventType)
}

func TestTopUp_Rejections(t *testing.T) {
	h := newHarness(t)
	active := h.store.addPatient(t, 0, true)
	inactive := h.store.addPatient(t, 0, false)
	staff := StaffCaller(inactive)

	_, err := h.svc.TopUp(context.Background(), PatientCaller(active), active, 100, "")
	require.ErrorIs(t, err, ErrForbidden)

	_, err = h.svc.TopUp(context.Background(), staff, active, 0, "")
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = h.svc.TopUp(context.Background(), staff, inactive, 100, "")
	require.ErrorIs(t, err, ErrWalletNotActivated)

	assert.Empty(t, h.store.snapshot().txs)
}
