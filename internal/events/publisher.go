package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/zzy10151020/MBTI-System-sub000/internal/services"
)

const (
	DefaultExchange = "mbti.events"

	RoutingAnswerSubmitted = "answer.submitted"
)

// Envelope wraps every published payload.
type Envelope struct {
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

func encode(eventType string, data any, at time.Time) ([]byte, error) {
	body, err := json.Marshal(Envelope{EventType: eventType, OccurredAt: at.UTC(), Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return body, nil
}

// Publisher sends domain events to a RabbitMQ topic exchange. A Publisher built with an
// empty URI is disabled and drops events.
type Publisher struct {
	mu           sync.Mutex
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	enabled      bool
}

var _ services.AnswerPublisher = (*Publisher)(nil)

func NewPublisher(rabbitURI, exchange string) (*Publisher, error) {
	if rabbitURI == "" {
		log.Println("amqp url empty, event publishing disabled")
		return &Publisher{enabled: false}, nil
	}
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp091.Dial(rabbitURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return &Publisher{conn: conn, channel: channel, exchangeName: exchange, enabled: true}, nil
}

func (p *Publisher) Enabled() bool { return p != nil && p.enabled }

func (p *Publisher) publish(ctx context.Context, routingKey string, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.channel.PublishWithContext(
		pubCtx,
		p.exchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// PublishAnswerSubmitted is best effort: failures are logged, never returned.
func (p *Publisher) PublishAnswerSubmitted(ctx context.Context, ev services.AnswerSubmitted) {
	if !p.Enabled() {
		return
	}
	body, err := encode(RoutingAnswerSubmitted, ev, ev.SubmittedAt)
	if err != nil {
		log.Printf("event %s: %v", RoutingAnswerSubmitted, err)
		return
	}
	// detach from request cancellation so a finished request still publishes
	if err := p.publish(context.WithoutCancel(ctx), RoutingAnswerSubmitted, body); err != nil {
		log.Printf("event %s answer=%s: %v", RoutingAnswerSubmitted, ev.AnswerID, err)
	}
}

func (p *Publisher) Close() error {
	if !p.Enabled() {
		return nil
	}
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			log.Printf("error closing RabbitMQ channel: %v", err)
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("error closing RabbitMQ connection: %w", err)
		}
	}
	return nil
}
