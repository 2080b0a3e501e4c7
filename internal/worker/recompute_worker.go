package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	json "github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"listwise/internal/model"
)

var errMalformedEvent = errors.New("malformed affinity event")

// Warmer recomputes and caches the prediction for one category.
type Warmer interface {
	Warm(ctx context.Context, category string) error
}

// RecomputeWorker consumes affinity events and refreshes the cached prediction of
// the category each event touched.
type RecomputeWorker struct {
	conn      *amqp.Connection
	warmer    Warmer
	queueName string
	log       *zap.Logger

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
}

func NewRecomputeWorker(conn *amqp.Connection, warmer Warmer, queueName string, log *zap.Logger) *RecomputeWorker {
	return &RecomputeWorker{
		conn:      conn,
		warmer:    warmer,
		queueName: queueName,
		log:       log.Named("recompute"),
	}
}

func (w *RecomputeWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.running.Store(true)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer w.running.Store(false)
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				if err := w.handle(workerCtx, d.Body); err != nil {
					w.log.Warn("recompute failed", zap.String("message_id", d.MessageId), zap.Error(err))
					// malformed events would fail forever; everything else gets one more try
					_ = d.Nack(false, !errors.Is(err, errMalformedEvent) && !d.Redelivered)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	w.log.Info("worker started", zap.String("queue", w.queueName))
	return nil
}

func (w *RecomputeWorker) handle(ctx context.Context, body []byte) error {
	var event model.AffinityEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: %v", errMalformedEvent, err)
	}
	if event.Category == "" {
		return fmt.Errorf("%w: empty category", errMalformedEvent)
	}
	if err := w.warmer.Warm(ctx, event.Category); err != nil {
		return fmt.Errorf("warm category %q failed: %w", event.Category, err)
	}
	w.log.Debug("prediction warmed",
		zap.String("event_id", event.ID),
		zap.String("category", event.Category),
		zap.String("kind", event.Kind))
	return nil
}

// Running reports whether the consume loop is alive. It turns false once the
// worker is closed or the broker closes the delivery channel.
func (w *RecomputeWorker) Running() bool {
	return w.running.Load()
}

func (w *RecomputeWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
