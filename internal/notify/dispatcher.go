package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	queueDepth     = 256
	publishTimeout = 10 * time.Second
)

type envelope struct {
	queue   string
	payload any
}

// Dispatcher drains a buffered event queue into a Publisher. Handlers call
// the Enqueue* methods after their transaction commits; delivery failures
// are logged and dropped rather than surfaced, since the store is already
// consistent by then.
type Dispatcher struct {
	publisher Publisher
	events    chan envelope
	logger    *slog.Logger

	stopOnce sync.Once
	done     chan struct{}
}

func NewDispatcher(publisher Publisher, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		events:    make(chan envelope, queueDepth),
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start runs the delivery worker until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	go func() {
		defer close(d.done)
		for {
			select {
			case <-ctx.Done():
				return
			case env := <-d.events:
				d.deliver(env)
			}
		}
	}()
}

// Wait blocks until the worker has exited.
func (d *Dispatcher) Wait() {
	<-d.done
}

func (d *Dispatcher) deliver(env envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := d.publisher.Publish(ctx, env.queue, env.payload); err != nil {
		d.logger.Error("publish event", "queue", env.queue, "error", err)
	}
}

func (d *Dispatcher) enqueue(queue string, payload any) {
	select {
	case d.events <- envelope{queue: queue, payload: payload}:
	default:
		d.logger.Warn("notification queue full, dropping event", "queue", queue)
	}
}

// EnqueueCredentialIssued queues a credential-issuance notification.
func (d *Dispatcher) EnqueueCredentialIssued(e CredentialIssued) {
	d.enqueue(QueueCredentialIssued, e)
}

// EnqueueCoinsAwarded queues a coin-award notification.
func (d *Dispatcher) EnqueueCoinsAwarded(e CoinsAwarded) {
	d.enqueue(QueueCoinsAwarded, e)
}
