package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/rentals-backend/pkg/config"
	"github.com/angelmondragon/rentals-backend/pkg/db/models"
	"github.com/angelmondragon/rentals-backend/pkg/enums"
	"github.com/angelmondragon/rentals-backend/pkg/outbox"
	"github.com/angelmondragon/rentals-backend/pkg/outbox/payloads"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)

	orderID := uuid.New()
	event := models.OutboxEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload: mustEnvelope(t, payloads.OrderStatusChangedEvent{
			OrderID:       orderID,
			From:          enums.OrderStatusBooked,
			To:            enums.OrderStatusCanceled,
			ReleasedStock: true,
		}),
	}

	resolved, err := reg.Resolve(event)
	require.NoError(t, err)
	assert.Equal(t, "booking-topic", resolved.Descriptor.Topic)
	payload, ok := resolved.Payload.(*payloads.OrderStatusChangedEvent)
	require.True(t, ok, "unexpected payload type %T", resolved.Payload)
	assert.Equal(t, enums.OrderStatusCanceled, payload.To)
	assert.True(t, payload.ReleasedStock)
	assert.NotEmpty(t, resolved.Envelope.EventID)
	assert.False(t, resolved.Envelope.OccurredAt.IsZero())
}

func TestEventRegistryResolvePaymentPayload(t *testing.T) {
	reg := newTestEventRegistry(t)
	orderID := uuid.New()

	resolved, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventPaymentRecorded,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload: mustEnvelope(t, payloads.PaymentRecordedEvent{
			OrderID:   orderID,
			Amount:    decimal.RequireFromString("150.50"),
			EntryType: enums.PaymentEntryTypePayment,
			Method:    enums.PaymentMethodCash,
		}),
	})
	require.NoError(t, err)
	payload := resolved.Payload.(*payloads.PaymentRecordedEvent)
	assert.True(t, payload.Amount.Equal(decimal.RequireFromString("150.50")))
}

func TestEventRegistryRejectsBadRows(t *testing.T) {
	reg := newTestEventRegistry(t)
	valid := mustEnvelope(t, payloads.VariantStatusChangedEvent{VariantID: uuid.New()})

	tests := []struct {
		name  string
		event models.OutboxEvent
	}{
		{
			name:  "unknown event",
			event: models.OutboxEvent{EventType: "item_renamed", AggregateType: enums.AggregateVariant, AggregateID: uuid.New(), Payload: valid},
		},
		{
			name:  "aggregate mismatch",
			event: models.OutboxEvent{EventType: enums.EventVariantStatusChanged, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: valid},
		},
		{
			name:  "missing aggregate id",
			event: models.OutboxEvent{EventType: enums.EventVariantStatusChanged, AggregateType: enums.AggregateVariant, Payload: valid},
		},
		{
			name:  "broken envelope",
			event: models.OutboxEvent{EventType: enums.EventVariantStatusChanged, AggregateType: enums.AggregateVariant, AggregateID: uuid.New(), Payload: json.RawMessage(`{`)},
		},
		{
			name:  "null data",
			event: models.OutboxEvent{EventType: enums.EventVariantStatusChanged, AggregateType: enums.AggregateVariant, AggregateID: uuid.New(), Payload: json.RawMessage(`{"version":1,"eventId":"x","data":null}`)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Resolve(tt.event)
			require.Error(t, err)
			var nonRetry NonRetryableError
			assert.True(t, errors.As(err, &nonRetry), "expected non-retryable, got %T", err)
		})
	}
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{})
	require.Error(t, err)
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{BookingTopic: "booking-topic"})
	require.NoError(t, err)
	return reg
}

func mustEnvelope(t *testing.T, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)
	return envelope
}
