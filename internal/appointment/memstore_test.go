package appointment

import (
	"context"
	"errors"
	"maps"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/hackgods/clinic-booking/internal/wallet"
)

// memState is everything a unit of work can change.
type memState struct {
	slots    map[uuid.UUID]TimeSlot
	appts    map[uuid.UUID]Appointment
	payments map[uuid.UUID]Payment // keyed by appointment id
	patients map[uuid.UUID]wallet.Money
	clinics  map[uuid.UUID]wallet.Money
	txs      []wallet.Transaction
	events   []EventLog
}

func (s memState) clone() memState {
	return memState{
		slots:    maps.Clone(s.slots),
		appts:    maps.Clone(s.appts),
		payments: maps.Clone(s.payments),
		patients: maps.Clone(s.patients),
		clinics:  maps.Clone(s.clinics),
		txs:      append([]wallet.Transaction(nil), s.txs...),
		events:   append([]EventLog(nil), s.events...),
	}
}

// memStore is a transactional fake: units of work run one at a time and a
// failing unit is rolled back to the snapshot taken when it started.
type memStore struct {
	mu    sync.Mutex
	state memState

	dirMu   sync.RWMutex
	doctors map[uuid.UUID]Doctor
	creds   map[uuid.UUID]WalletCredentials
}

func newMemStore() *memStore {
	return &memStore{
		state: memState{
			slots:    map[uuid.UUID]TimeSlot{},
			appts:    map[uuid.UUID]Appointment{},
			payments: map[uuid.UUID]Payment{},
			patients: map[uuid.UUID]wallet.Money{},
			clinics:  map[uuid.UUID]wallet.Money{},
		},
		doctors: map[uuid.UUID]Doctor{},
		creds:   map[uuid.UUID]WalletCredentials{},
	}
}

func (m *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	st := &m.state
	err := fn(ctx, Repositories{
		Slots:        &memSlots{st: st},
		Appointments: &memAppointments{st: st},
		Payments:     &memPayments{st: st},
		Wallets:      &memWallets{st: st},
		Events:       &memEvents{st: st},
	})
	if err != nil {
		m.state = snapshot
	}
	return err
}

func (m *memStore) snapshot() memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (m *memStore) GetActiveDoctor(_ context.Context, id uuid.UUID) (*Doctor, error) {
	m.dirMu.RLock()
	defer m.dirMu.RUnlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (m *memStore) GetWalletCredentials(_ context.Context, patientID uuid.UUID) (*WalletCredentials, error) {
	m.dirMu.RLock()
	defer m.dirMu.RUnlock()
	c, ok := m.creds[patientID]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &c, nil
}

// fixtures

func (m *memStore) addClinic(balance wallet.Money) uuid.UUID {
	id := uuid.New()
	m.mu.Lock()
	m.state.clinics[id] = balance
	m.mu.Unlock()
	return id
}

func (m *memStore) setClinicBalance(id uuid.UUID, balance wallet.Money) {
	m.mu.Lock()
	m.state.clinics[id] = balance
	m.mu.Unlock()
}

func (m *memStore) addDoctor(clinicID uuid.UUID, fee wallet.Money) Doctor {
	d := Doctor{ID: uuid.New(), ClinicID: clinicID, Name: "Dr. Test", ConsultationFee: fee, IsActive: true}
	m.putDoctor(d)
	return d
}

func (m *memStore) putDoctor(d Doctor) {
	m.dirMu.Lock()
	m.doctors[d.ID] = d
	m.dirMu.Unlock()
}

const testPIN = "1234"

func (m *memStore) addPatient(t *testing.T, balance wallet.Money, activated bool) uuid.UUID {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPIN), bcrypt.MinCost)
	require.NoError(t, err)

	id := uuid.New()
	m.mu.Lock()
	m.state.patients[id] = balance
	m.mu.Unlock()

	m.dirMu.Lock()
	m.creds[id] = WalletCredentials{PatientID: id, PinHash: string(hash), Activated: activated, Balance: balance}
	m.dirMu.Unlock()
	return id
}

var slotDate = time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

func (m *memStore) addSlot(doctorID uuid.UUID, start time.Duration) uuid.UUID {
	s := TimeSlot{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		Date:      slotDate,
		StartTime: start,
		EndTime:   start + 30*time.Minute,
	}
	m.mu.Lock()
	m.state.slots[s.ID] = s
	m.mu.Unlock()
	return s.ID
}

func (m *memStore) setSlotBooked(id uuid.UUID, booked bool) {
	m.mu.Lock()
	s := m.state.slots[id]
	s.IsBooked = booked
	m.state.slots[id] = s
	m.mu.Unlock()
}

func (m *memStore) putAppointment(a Appointment) {
	m.mu.Lock()
	m.state.appts[a.ID] = a
	m.mu.Unlock()
}

// repositories over a memState

type memSlots struct{ st *memState }

func (r *memSlots) LockSlot(_ context.Context, slotID, doctorID uuid.UUID) (*TimeSlot, error) {
	s, ok := r.st.slots[slotID]
	if !ok || s.DoctorID != doctorID {
		return nil, ErrSlotNotFound
	}
	return &s, nil
}

func (r *memSlots) LockSlotByID(_ context.Context, slotID uuid.UUID) (*TimeSlot, error) {
	s, ok := r.st.slots[slotID]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return &s, nil
}

func (r *memSlots) HasActiveAppointment(_ context.Context, slotID uuid.UUID) (bool, error) {
	for _, a := range r.st.appts {
		if a.TimeSlotID == slotID && a.Status.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (r *memSlots) SetBooked(_ context.Context, slotID uuid.UUID, booked bool) error {
	s, ok := r.st.slots[slotID]
	if !ok {
		return ErrSlotNotFound
	}
	s.IsBooked = booked
	r.st.slots[slotID] = s
	return nil
}

type memAppointments struct{ st *memState }

// activeSlotTaken mirrors the partial unique index on active appointments.
func (r *memAppointments) activeSlotTaken(a *Appointment) bool {
	if !a.Status.Active() {
		return false
	}
	for id, other := range r.st.appts {
		if id != a.ID && other.TimeSlotID == a.TimeSlotID && other.Status.Active() {
			return true
		}
	}
	return false
}

func (r *memAppointments) Create(_ context.Context, a *Appointment) error {
	if _, ok := r.st.patients[a.PatientID]; !ok {
		return ErrPatientNotFound
	}
	if r.activeSlotTaken(a) {
		return ErrSlotAlreadyBooked
	}
	r.st.appts[a.ID] = *a
	return nil
}

func (r *memAppointments) GetForUpdate(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := r.st.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *memAppointments) Update(_ context.Context, a *Appointment) error {
	if _, ok := r.st.appts[a.ID]; !ok {
		return ErrAppointmentNotFound
	}
	if r.activeSlotTaken(a) {
		return ErrSlotAlreadyBooked
	}
	r.st.appts[a.ID] = *a
	return nil
}

func (r *memAppointments) CountByStatus(_ context.Context, patientID uuid.UUID, status AppointmentStatus) (int, error) {
	n := 0
	for _, a := range r.st.appts {
		if a.PatientID == patientID && a.Status == status {
			n++
		}
	}
	return n, nil
}

type memPayments struct{ st *memState }

func (r *memPayments) Create(_ context.Context, p *Payment) error {
	if _, ok := r.st.payments[p.AppointmentID]; ok {
		return errors.New("duplicate payment for appointment")
	}
	r.st.payments[p.AppointmentID] = *p
	return nil
}

func (r *memPayments) GetByAppointment(_ context.Context, appointmentID uuid.UUID) (*Payment, error) {
	p, ok := r.st.payments[appointmentID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	return &p, nil
}

func (r *memPayments) Update(_ context.Context, p *Payment) error {
	if _, ok := r.st.payments[p.AppointmentID]; !ok {
		return ErrPaymentNotFound
	}
	r.st.payments[p.AppointmentID] = *p
	return nil
}

type memWallets struct{ st *memState }

func (r *memWallets) LockBalance(ctx context.Context, acct wallet.Account) (wallet.Money, error) {
	if acct.Kind == wallet.OwnerClinic {
		if _, ok := r.st.clinics[acct.ID]; !ok {
			r.st.clinics[acct.ID] = 0
		}
	}
	return r.Balance(ctx, acct)
}

func (r *memWallets) Balance(_ context.Context, acct wallet.Account) (wallet.Money, error) {
	if acct.Kind == wallet.OwnerClinic {
		return r.st.clinics[acct.ID], nil
	}
	b, ok := r.st.patients[acct.ID]
	if !ok {
		return 0, wallet.ErrAccountNotFound
	}
	return b, nil
}

func (r *memWallets) SetBalance(_ context.Context, acct wallet.Account, balance wallet.Money) error {
	if acct.Kind == wallet.OwnerClinic {
		r.st.clinics[acct.ID] = balance
		return nil
	}
	if _, ok := r.st.patients[acct.ID]; !ok {
		return wallet.ErrAccountNotFound
	}
	r.st.patients[acct.ID] = balance
	return nil
}

func (r *memWallets) InsertTransaction(_ context.Context, tx *wallet.Transaction) error {
	r.st.txs = append(r.st.txs, *tx)
	return nil
}

type memEvents struct{ st *memState }

func (r *memEvents) InsertEvent(_ context.Context, ev EventLog) error {
	ev.ID = int64(len(r.st.events) + 1)
	r.st.events = append(r.st.events, ev)
	return nil
}

// notifications

type sentNotification struct {
	EventType string
	Recipient uuid.UUID
	Payload   map[string]any
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Send(eventType string, recipientID uuid.UUID, payload map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{EventType: eventType, Recipient: recipientID, Payload: payload})
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.EventType)
	}
	return out
}

// harness

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type harness struct {
	store    *memStore
	notifier *recordingNotifier
	svc      *Service
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{store: newMemStore(), notifier: &recordingNotifier{}, now: testNow}
	h.svc = NewService(Deps{
		Store:    h.store,
		Doctors:  h.store,
		Patients: h.store,
		Notifier: h.notifier,
		Log:      zaptest.NewLogger(t),
		Location: time.UTC,
		Now:      func() time.Time { return h.now },
	})
	return h
}

// world is a clinic with one doctor and one free slot.
type world struct {
	clinicID uuid.UUID
	doctor   Doctor
	slotID   uuid.UUID
}

func (h *harness) newWorld(fee wallet.Money) world {
	clinicID := h.store.addClinic(0)
	doc := h.store.addDoctor(clinicID, fee)
	return world{clinicID: clinicID, doctor: doc, slotID: h.store.addSlot(doc.ID, 10*time.Hour)}
}

func (h *harness) bookWallet(t *testing.T, w world, patientID uuid.UUID) *BookingResult {
	t.Helper()
	res, err := h.svc.Book(context.Background(), PatientCaller(patientID), BookingRequest{
		DoctorID: w.doctor.ID, SlotID: w.slotID, Method: MethodWallet, WalletPIN: testPIN,
	})
	require.NoError(t, err)
	return res
}

// requireSlotInvariant checks is_booked against the active appointments.
func requireSlotInvariant(t *testing.T, st memState) {
	t.Helper()
	for id, s := range st.slots {
		active := 0
		for _, a := range st.appts {
			if a.TimeSlotID == id && a.Status.Active() {
				active++
			}
		}
		require.LessOrEqual(t, active, 1, "slot %s held by %d active appointments", id, active)
		require.Equal(t, active == 1, s.IsBooked, "slot %s flag out of sync", id)
	}
}

// requireDoubleEntry checks every payment/refund reference has a mirrored pair.
func requireDoubleEntry(t *testing.T, st memState) {
	t.Helper()
	byRef := map[string][]wallet.Transaction{}
	for _, tx := range st.txs {
		if tx.Type == wallet.TypeDeposit {
			continue
		}
		key := tx.Reference + "/" + string(tx.Type)
		byRef[key] = append(byRef[key], tx)
	}
	for ref, pair := range byRef {
		require.Len(t, pair, 2, "reference %s", ref)
		require.Equal(t, pair[0].Amount, pair[1].Amount, "reference %s", ref)
		require.Equal(t, pair[0].Delta(), -pair[1].Delta(), "reference %s", ref)
	}
}
