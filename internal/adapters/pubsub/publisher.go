// Package pubsub implements the assistant-gateway port over RabbitMQ.
// Inbound messages are published as persistent JSON envelopes to a topic
// exchange; the assistant runtime consumes them and delivers its own
// replies through the connector's outbound contract.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"woot-bridge/internal/core/domain"
	"woot-bridge/internal/core/ports"
)

// inboundRoutingKey routes normalized connector messages
const inboundRoutingKey = "inbound.chatwoot"

// Envelope wraps a published message with delivery metadata
type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// Meta carries message identity and origin
type Meta struct {
	ID         string    `json:"id"`
	SessionKey string    `json:"session_key"`
	Source     string    `json:"source"`
	StreamMode string    `json:"stream_mode"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Ensure both gateways satisfy the port
var (
	_ ports.MessageGateway = (*AMQPGateway)(nil)
	_ ports.MessageGateway = (*FallbackGateway)(nil)
)

// AMQPGateway publishes normalized inbound messages to RabbitMQ
type AMQPGateway struct {
	conn     *amqp091.Connection
	exchange string
	log      *slog.Logger
}

// NewAMQPGateway dials the broker and declares the topic exchange
func NewAMQPGateway(url, exchange string, logger *slog.Logger) (*AMQPGateway, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(
		exchange, "topic", true, false, false, false, nil,
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &AMQPGateway{
		conn:     conn,
		exchange: exchange,
		log:      logger,
	}, nil
}

// ProcessMessage publishes the message and returns an empty stream: partial
// results flow back out of band, so the connector has nothing to drain.
func (g *AMQPGateway) ProcessMessage(ctx context.Context, msg *domain.Message, mode ports.StreamMode) (<-chan domain.OutgoingMessage, error) {
	ch, err := g.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	msgID := uuid.NewString()
	body, err := json.Marshal(Envelope{
		Meta: Meta{
			ID:         msgID,
			SessionKey: msg.Lead.SessionID(),
			Source:     domain.ConnectorName,
			StreamMode: string(mode),
			OccurredAt: time.Now(),
		},
		Data: msg,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	err = ch.PublishWithContext(
		ctx, g.exchange, inboundRoutingKey, false, false,
		amqp091.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp091.Persistent,
			MessageId:     msgID,
			CorrelationId: msg.Lead.SessionID(),
			Timestamp:     time.Now(),
			Body:          body,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("publish inbound message: %w", err)
	}

	g.log.Info("Published inbound message",
		slog.String("key", inboundRoutingKey),
		slog.String("exchange", g.exchange),
		slog.String("session", msg.Lead.SessionID()),
	)

	stream := make(chan domain.OutgoingMessage)
	close(stream)
	return stream, nil
}

// Close releases the broker connection
func (g *AMQPGateway) Close() error {
	return g.conn.Close()
}

// FallbackGateway is the no-broker gateway: messages are logged and
// acknowledged with an empty stream. Used when AMQP is not configured.
type FallbackGateway struct {
	log *slog.Logger
}

// NewFallbackGateway creates a log-only gateway
func NewFallbackGateway(logger *slog.Logger) *FallbackGateway {
	return &FallbackGateway{log: logger}
}

// ProcessMessage logs the message and returns an empty stream
func (g *FallbackGateway) ProcessMessage(ctx context.Context, msg *domain.Message, mode ports.StreamMode) (<-chan domain.OutgoingMessage, error) {
	g.log.Warn("FallbackGateway: no broker configured, message dropped",
		slog.String("session", msg.Lead.SessionID()),
		slog.Int("attachments", len(msg.Attachments)),
	)
	stream := make(chan domain.OutgoingMessage)
	close(stream)
	return stream, nil
}
