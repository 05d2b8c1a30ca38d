package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// Queue decouples callers from the broker. Send never blocks: when the buffer
// is full the message is dropped and logged. Delivery is best effort.
type Queue struct {
	pub  Publisher
	log  *zap.Logger
	msgs chan Message
	now  func() time.Time

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

func NewQueue(pub Publisher, buffer int, log *zap.Logger) *Queue {
	if buffer <= 0 {
		buffer = 1
	}
	return &Queue{
		pub:  pub,
		log:  log,
		msgs: make(chan Message, buffer),
		now:  time.Now,
	}
}

func (q *Queue) Send(eventType string, recipientID uuid.UUID, payload map[string]any) {
	msg := Message{
		ID:          uuid.New(),
		Type:        eventType,
		RecipientID: recipientID,
		Payload:     payload,
		CreatedAt:   q.now(),
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		q.log.Warn("notification dropped, queue stopped", zap.String("type", eventType))
		return
	}

	select {
	case q.msgs <- msg:
	default:
		q.log.Warn("notification dropped, queue full",
			zap.String("type", eventType),
			zap.String("recipient_id", recipientID.String()),
		)
	}
}

// Start runs the publishing worker until Stop is called.
func (q *Queue) Start() {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for msg := range q.msgs {
			q.publish(msg)
		}
	}()
}

func (q *Queue) publish(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := q.pub.Publish(ctx, msg); err != nil {
		q.log.Warn("notification publish failed",
			zap.String("notification_id", msg.ID.String()),
			zap.String("type", msg.Type),
			zap.Error(err),
		)
	}
}

// Stop refuses new messages and waits for buffered ones to be published or
// for ctx to end.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.stopped {
		q.stopped = true
		close(q.msgs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
