package rabbitmq

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"listwise/internal/model"
)

// EventPublisher sends affinity events to the broker. After repeated failures the
// breaker opens and publishes fail fast until the broker has had time to recover.
type EventPublisher struct {
	conn      *amqp.Connection
	queueName string
	breaker   *gobreaker.CircuitBreaker[struct{}]
}

func NewEventPublisher(conn *amqp.Connection, queueName string, log *zap.Logger) *EventPublisher {
	settings := gobreaker.Settings{
		Name:        "rabbitmq-" + queueName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("publisher breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &EventPublisher{
		conn:      conn,
		queueName: queueName,
		breaker:   gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

func (p *EventPublisher) Publish(ctx context.Context, event model.AffinityEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	_, err := p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.publish(ctx, event)
	})
	return err
}

// State is the breaker state; open means publishes are currently rejected.
func (p *EventPublisher) State() gobreaker.State {
	return p.breaker.State()
}

func (p *EventPublisher) publish(ctx context.Context, event model.AffinityEvent) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := declareQueue(ch, p.queueName); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event payload failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    event.ID,
			Timestamp:    event.OccurredAt,
			Type:         event.Kind,
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish event failed: %w", err)
	}
	return nil
}
