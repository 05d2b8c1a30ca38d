package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakePublisher struct {
	mu   sync.Mutex
	msgs []Message
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

func TestQueue_PublishesBufferedMessagesOnStop(t *testing.T) {
	pub := &fakePublisher{}
	q := NewQueue(pub, 10, zaptest.NewLogger(t))
	q.Start()

	recipient := uuid.New()
	for i := 0; i < 5; i++ {
		q.Send("appointment_booked", recipient, map[string]any{"n": i})
	}
	require.NoError(t, q.Stop(context.Background()))

	assert.Equal(t, 5, pub.count())
	assert.Equal(t, "appointment_booked", pub.msgs[0].Type)
	assert.Equal(t, recipient, pub.msgs[0].RecipientID)
}

func TestQueue_DropsWhenFull(t *testing.T) {
	pub := &fakePublisher{}
	q := NewQueue(pub, 2, zaptest.NewLogger(t))

	for i := 0; i < 5; i++ {
		q.Send("patient_blocked", uuid.New(), nil)
	}
	q.Start()
	require.NoError(t, q.Stop(context.Background()))

	assert.Equal(t, 2, pub.count())
}

func TestQueue_SendAfterStopIsDropped(t *testing.T) {
	pub := &fakePublisher{}
	q := NewQueue(pub, 2, zaptest.NewLogger(t))
	q.Start()
	require.NoError(t, q.Stop(context.Background()))

	q.Send("wallet_funds_added", uuid.New(), nil)
	assert.Zero(t, pub.count())
}

func TestQueue_PublishFailureDoesNotStopWorker(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	q := NewQueue(pub, 4, zaptest.NewLogger(t))
	q.Start()

	q.Send("appointment_cancelled", uuid.New(), nil)
	q.Send("appointment_cancelled", uuid.New(), nil)
	require.NoError(t, q.Stop(context.Background()))

	assert.Equal(t, 2, pub.count())
}

func TestMessageWireFormat(t *testing.T) {
	msg := Message{
		ID:          uuid.MustParse("7d1f4c1e-8d7a-4a52-9a4e-6f1c1d0e2b3a"),
		Type:        "appointment_booked",
		RecipientID: uuid.MustParse("0b4f3a2c-1d6e-4f7a-8b9c-0d1e2f3a4b5c"),
		Payload:     map[string]any{"price": "95.00"},
	}
	body, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "appointment_booked", decoded["type"])
	assert.Equal(t, "0b4f3a2c-1d6e-4f7a-8b9c-0d1e2f3a4b5c", decoded["recipient_id"])
	assert.Equal(t, map[string]any{"price": "95.00"}, decoded["payload"])
}

func TestLogPublisher(t *testing.T) {
	p := NewLogPublisher(zaptest.NewLogger(t))
	assert.NoError(t, p.Publish(context.Background(), Message{ID: uuid.New(), Type: "patient_blocked"}))
}
