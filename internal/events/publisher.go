package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/THuebbe/yardsign/internal/app"
)

const producerName = "yardsign-api"

// Envelope is the wire format on the order lifecycle topic.
type Envelope struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	EventVersion int             `json:"event_version"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Producer     string          `json:"producer"`
	TenantID     string          `json:"tenant_id"`
	OrderID      string          `json:"order_id"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// Publisher is an async kafka producer for order lifecycle events. Publish
// hands the message to a buffered inbox; a single goroutine drains it so a
// slow broker never blocks a request.
type Publisher struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
	logger  *zap.Logger
}

func NewPublisher(brokers []string, topic string, buf int, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
		logger:  logger,
	}
}

// Start launches the drain loop. Cancel the context to flush and stop.
func (p *Publisher) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				p.drain()
				_ = p.w.Close()
				return
			case m, ok := <-p.inbox:
				if !ok {
					_ = p.w.Close()
					return
				}
				p.write(m)
			}
		}
	}()
}

func (p *Publisher) drain() {
	for {
		select {
		case m, ok := <-p.inbox:
			if !ok {
				return
			}
			p.write(m)
		default:
			return
		}
	}
}

func (p *Publisher) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		p.logger.Warn("publish event", zap.Error(err))
	}
}

// Publish implements app.EventPublisher. Messages are keyed by order id so
// one order's events stay in partition order. A full inbox drops the event
// rather than stalling the caller.
func (p *Publisher) Publish(ctx context.Context, evt app.Event) {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		p.logger.Warn("encode event payload", zap.String("type", evt.Type), zap.Error(err))
		return
	}
	env := Envelope{
		EventID:      uuid.NewString(),
		EventType:    evt.Type,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     producerName,
		TenantID:     evt.TenantID,
		OrderID:      evt.OrderID,
		Payload:      payload,
	}
	value, err := json.Marshal(env)
	if err != nil {
		p.logger.Warn("encode event envelope", zap.String("type", evt.Type), zap.Error(err))
		return
	}

	msg := kafka.Message{
		Key:   []byte(evt.OrderID),
		Value: value,
		Time:  env.OccurredAt,
	}
	select {
	case p.inbox <- msg:
	default:
		p.logger.Warn("event inbox full, dropping",
			zap.String("type", evt.Type), zap.String("order_id", evt.OrderID))
	}
}

// Close stops intake; the drain goroutine flushes what is buffered.
func (p *Publisher) Close() { close(p.inbox) }

// WaitClosed blocks until the drain goroutine exits.
func (p *Publisher) WaitClosed() { <-p.closeCh }
