package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domorder "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/order"
)

func TestForwardKeysByOrderID(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	var sent *sarama.ProducerMessage
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		sent = msg
		return nil
	})

	f := NewForwarder(producer, "", "kiosk-1", nil)
	o := &domorder.Order{ID: "o-1", ProductName: "Rose Mist", Quantity: 5, Status: domorder.StatusPaid}
	require.NoError(t, f.Forward(context.Background(), domorder.NewStatusChangedEvent(o, domorder.StatusCreated)))
	require.NoError(t, f.Close())

	require.NotNil(t, sent)
	assert.Equal(t, DefaultTopic, sent.Topic)
	key, err := sent.Key.Encode()
	require.NoError(t, err)
	assert.Equal(t, "o-1", string(key))

	raw, err := sent.Value.Encode()
	require.NoError(t, err)
	var env struct {
		Name    string `json:"name"`
		Source  string `json:"source"`
		Payload struct {
			OrderID string `json:"orderId"`
			From    string `json:"from"`
			To      string `json:"to"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, "order.paid", env.Name)
	assert.Equal(t, "kiosk-1", env.Source)
	assert.Equal(t, "o-1", env.Payload.OrderID)
	assert.Equal(t, "CREATED", env.Payload.From)
	assert.Equal(t, "PAID", env.Payload.To)
}

func TestForwardReportsProducerError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(errors.New("broker down"))

	f := NewForwarder(producer, "events", "kiosk-1", nil)
	err := f.Forward(context.Background(), domorder.NewOrderCreatedEvent(&domorder.Order{ID: "o-1"}))
	assert.ErrorContains(t, err, "broker down")
	require.NoError(t, f.Close())
}
