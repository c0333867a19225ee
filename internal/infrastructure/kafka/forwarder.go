package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	domorder "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/order"
	domoutbox "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/outbox"
	dompay "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/payment"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability/logctx"
)

const DefaultTopic = "kiosk.order-events"

type Config struct {
	Brokers  []string
	Topic    string
	ClientID string
	Timeout  time.Duration
}

// envelope is the wire format of a forwarded event.
type envelope struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Source    string          `json:"source"`
	ForwardAt time.Time       `json:"forwardedAt"`
	Payload   json.RawMessage `json:"payload"`
}

// Forwarder copies lifecycle events from the in-process bus to a Kafka topic
// for downstream analytics. Events are keyed by order id so one order's
// history stays in one partition.
type Forwarder struct {
	producer sarama.SyncProducer
	topic    string
	source   string
	log      observability.Logger
}

// NewProducer builds a synchronous producer that waits for all in-sync replicas.
func NewProducer(cfg Config) (sarama.SyncProducer, error) {
	sc := sarama.NewConfig()
	sc.Version = sarama.V2_6_0_0
	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Return.Successes = true
	sc.Producer.Retry.Max = 3
	sc.Producer.Idempotent = true
	sc.Net.MaxOpenRequests = 1
	if cfg.Timeout > 0 {
		sc.Net.DialTimeout = cfg.Timeout
		sc.Producer.Timeout = cfg.Timeout
	}
	p, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("kafka: new producer: %w", err)
	}
	return p, nil
}

func NewForwarder(producer sarama.SyncProducer, topic, source string, logger observability.Logger) *Forwarder {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Forwarder{
		producer: producer,
		topic:    topic,
		source:   source,
		log:      logger.With(observability.F("component", "kafka_forwarder")),
	}
}

// Start subscribes to every event on the bus.
func (f *Forwarder) Start(sub domoutbox.Subscriber) {
	sub.Subscribe(domoutbox.Wildcard, f.Forward)
}

func (f *Forwarder) Forward(ctx context.Context, e domoutbox.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("kafka: marshal %s: %w", e.EventName(), err)
	}
	body, err := json.Marshal(envelope{
		ID:        uuid.NewString(),
		Name:      e.EventName(),
		Source:    f.source,
		ForwardAt: time.Now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("kafka: marshal envelope: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: f.topic,
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event"), Value: []byte(e.EventName())},
		},
	}
	if key := partitionKey(e); key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	partition, offset, err := f.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("kafka: send %s: %w", e.EventName(), err)
	}
	logctx.FromOr(ctx, f.log).Debug("event_forwarded",
		observability.F("topic", f.topic),
		observability.F("partition", partition),
		observability.F("offset", offset),
	)
	return nil
}

func (f *Forwarder) Close() error {
	return f.producer.Close()
}

func partitionKey(e domoutbox.Event) string {
	switch evt := e.(type) {
	case domorder.OrderCreatedEvent:
		return evt.OrderID
	case domorder.StatusChangedEvent:
		return evt.OrderID
	case dompay.NotificationUnmatchedEvent:
		return evt.PaymentLinkID
	}
	return ""
}
