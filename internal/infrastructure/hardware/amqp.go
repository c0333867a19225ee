package hardware

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/dispense"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability/logctx"
)

const (
	DefaultExchange   = "kiosk.hardware"
	DefaultRoutingKey = "dispense.command"
)

type AMQPConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
	// TTL drops commands the bridge has not picked up in time; a late pump is worse than none.
	TTL time.Duration
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPDispenser publishes dispense commands to a RabbitMQ exchange consumed
// by the microcontroller bridge.
type AMQPDispenser struct {
	conn       *amqp.Connection
	ch         channel
	exchange   string
	routingKey string
	ttl        time.Duration
	log        observability.Logger
}

// DialAMQP connects and declares the durable topic exchange once at startup.
func DialAMQP(cfg AMQPConfig, logger observability.Logger) (*AMQPDispenser, error) {
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("hardware: dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("hardware: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		cfg.Exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("hardware: declare exchange: %w", err)
	}
	d := newAMQPDispenser(ch, cfg, logger)
	d.conn = conn
	return d, nil
}

func newAMQPDispenser(ch channel, cfg AMQPConfig, logger observability.Logger) *AMQPDispenser {
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}
	if cfg.RoutingKey == "" {
		cfg.RoutingKey = DefaultRoutingKey
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &AMQPDispenser{
		ch:         ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		ttl:        cfg.TTL,
		log:        logger.With(observability.F("component", "hardware_amqp")),
	}
}

func (d *AMQPDispenser) Dispense(ctx context.Context, cmd dispense.Command) error {
	body, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("hardware: marshal command: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     uuid.NewString(),
		CorrelationId: cmd.OrderID,
		Timestamp:     time.Now().UTC(),
		Type:          "dispense.command",
		Body:          body,
	}
	if d.ttl > 0 {
		msg.Expiration = fmt.Sprintf("%d", d.ttl.Milliseconds())
	}
	if err := d.ch.PublishWithContext(ctx, d.exchange, d.routingKey, false, false, msg); err != nil {
		return fmt.Errorf("hardware: publish: %w", err)
	}
	logctx.FromOr(ctx, d.log).Info("hardware_dispense_command",
		observability.F("order_id", cmd.OrderID),
		observability.F("product_name", cmd.ProductName),
		observability.F("quantity", cmd.Quantity),
		observability.F("exchange", d.exchange),
	)
	return nil
}

func (d *AMQPDispenser) Close() error {
	err := d.ch.Close()
	if d.conn != nil {
		if cerr := d.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
