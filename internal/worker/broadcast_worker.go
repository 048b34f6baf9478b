package worker

import (
	"context"
	"errors"
	"sync/atomic"

	"campsite/internal/events"
	"campsite/internal/models"

	"github.com/rs/zerolog"
)

var ErrQueueFull = errors.New("broadcast queue is full")

// Publisher delivers one serialized event to the broker.
type Publisher interface {
	Publish(ctx context.Context, eventType string, body []byte) error
}

// BroadcastWorker forwards committed reservation events to the broker.
// Delivery is best-effort: an event that exhausts its retries is dropped and
// logged.
type BroadcastWorker struct {
	publisher   Publisher
	retryPolicy RetryPolicy
	queue       chan *events.Event
	logger      *zerolog.Logger

	delivered atomic.Int64
	dropped   atomic.Int64
}

func NewBroadcastWorker(publisher Publisher, retry RetryPolicy, logger *zerolog.Logger) *BroadcastWorker {
	return &BroadcastWorker{
		publisher:   publisher,
		retryPolicy: retry.withDefaults(),
		queue:       make(chan *events.Event, models.BroadcastQueueSize),
		logger:      logger,
	}
}

// Subscribe registers the worker for every mutation event on bus.
func (w *BroadcastWorker) Subscribe(bus *events.EventBus) {
	bus.SubscribeMany(events.MutationEvents, w.Enqueue)
}

// Enqueue never blocks the publishing request.
func (w *BroadcastWorker) Enqueue(event *events.Event) error {
	select {
	case w.queue <- event:
		return nil
	default:
		w.dropped.Add(1)
		w.logger.Warn().Str("event_type", event.Type).Int64("event_id", event.ID).Msg("broadcast queue full, event dropped")
		return ErrQueueFull
	}
}

// Start launches main loop; stops when ctx is done.
func (w *BroadcastWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("broadcast worker started")
	defer w.logger.Info().Msg("broadcast worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-w.queue:
			w.deliver(ctx, event)
		}
	}
}

func (w *BroadcastWorker) deliver(ctx context.Context, event *events.Event) {
	for attempt := 1; ; attempt++ {
		err := w.publisher.Publish(ctx, event.Type, event.Payload)
		if err == nil {
			w.delivered.Add(1)
			return
		}

		if attempt >= w.retryPolicy.MaxRetries {
			w.dropped.Add(1)
			w.logger.Error().Err(err).Str("event_type", event.Type).Int64("event_id", event.ID).Int("attempts", attempt).Msg("broadcast failed, event dropped")
			return
		}

		w.logger.Warn().Err(err).Str("event_type", event.Type).Int("attempt", attempt).Msg("broadcast failed, retrying")
		if !w.retryPolicy.Wait(ctx, attempt) {
			w.dropped.Add(1)
			return
		}
	}
}

// Stats returns delivered and dropped event counts.
func (w *BroadcastWorker) Stats() (delivered, dropped int64) {
	return w.delivered.Load(), w.dropped.Load()
}
