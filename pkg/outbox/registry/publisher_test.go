package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hpratama/resellhub-backend/pkg/config"
	"github.com/hpratama/resellhub-backend/pkg/db/models"
	"github.com/hpratama/resellhub-backend/pkg/enums"
	"github.com/hpratama/resellhub-backend/pkg/outbox"
	"github.com/hpratama/resellhub-backend/pkg/outbox/payloads"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)

	orderID := uuid.New()
	payloadBytes := mustMarshal(t, payloads.NewOrderEvent{
		OrderID:      orderID,
		ResellerID:   uuid.New(),
		ResellerName: "Atelier Nusantara",
		OrderDate:    time.Now().UTC(),
	})

	event := models.OutboxEvent{
		EventType:     enums.EventNewOrder,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Audience:      enums.AudienceAdmin,
		Payload:       mustEnvelope(t, payloadBytes),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Topic != "admin-topic" {
		t.Fatalf("unexpected topic %q", resolved.Topic)
	}
	if resolved.Descriptor.EventType != enums.EventNewOrder {
		t.Fatalf("unexpected event type %s", resolved.Descriptor.EventType)
	}
	payload, ok := resolved.Payload.(*payloads.NewOrderEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.OrderID != orderID {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if resolved.Envelope.EventID == "" {
		t.Fatalf("envelope missing event id")
	}
	if resolved.Envelope.OccurredAt.IsZero() {
		t.Fatalf("envelope missing occurred_at")
	}
}

func TestEventRegistryRoutesResellerEvents(t *testing.T) {
	reg := newTestEventRegistry(t)

	shipmentID := uuid.New()
	payloadBytes := mustMarshal(t, payloads.ShippingUpdateEvent{
		ShippingID: shipmentID,
		OrderID:    uuid.New(),
		Status:     enums.ShippingStatusShipped,
		ResellerID: uuid.New(),
		UpdatedAt:  time.Now().UTC(),
	})

	event := models.OutboxEvent{
		EventType:     enums.EventShippingUpdate,
		AggregateType: enums.AggregateShipment,
		AggregateID:   shipmentID,
		Audience:      enums.AudienceReseller,
		Payload:       mustEnvelope(t, payloadBytes),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Topic != "reseller-topic" {
		t.Fatalf("unexpected topic %q", resolved.Topic)
	}
}

func TestEventRegistryRoutesOrderUpdatedByAudience(t *testing.T) {
	reg := newTestEventRegistry(t)

	orderID := uuid.New()
	payloadBytes := mustMarshal(t, payloads.OrderUpdatedEvent{
		OrderID:    orderID,
		Status:     enums.OrderStatusCompleted,
		ResellerID: uuid.New(),
	})

	for audience, wantTopic := range map[enums.OutboxAudience]string{
		enums.AudienceReseller: "reseller-topic",
		enums.AudienceAdmin:    "admin-topic",
	} {
		event := models.OutboxEvent{
			EventType:     enums.EventOrderUpdated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Audience:      audience,
			Payload:       mustEnvelope(t, payloadBytes),
		}

		resolved, err := reg.Resolve(event)
		if err != nil {
			t.Fatalf("resolve for %s: %v", audience, err)
		}
		if resolved.Topic != wantTopic {
			t.Fatalf("audience %s routed to %q, want %q", audience, resolved.Topic, wantTopic)
		}
	}
}

func TestEventRegistryResolveUnknownEvent(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.OutboxEventType("inventory_audit"),
		AggregateType: enums.AggregateWarehouse,
		AggregateID:   uuid.New(),
		Audience:      enums.AudienceAdmin,
		Payload:       mustEnvelope(t, []byte(`{"reason":"none"}`)),
	}

	_, err := reg.Resolve(event)
	if err == nil {
		t.Fatalf("expected error")
	}
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error, got %T", err)
	}
}

func TestEventRegistryResolveAggregateMismatch(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.EventNewOrder,
		AggregateType: enums.AggregateShipment,
		AggregateID:   uuid.New(),
		Audience:      enums.AudienceAdmin,
		Payload:       mustEnvelope(t, []byte(`{}`)),
	}

	_, err := reg.Resolve(event)
	if err == nil {
		t.Fatalf("expected error")
	}
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error")
	}
}

func TestEventRegistryResolveAudienceMismatch(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.EventNewOrder,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Audience:      enums.AudienceReseller,
		Payload:       mustEnvelope(t, []byte(`{}`)),
	}

	_, err := reg.Resolve(event)
	if err == nil {
		t.Fatalf("expected error")
	}
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error")
	}
}

func TestEventRegistryResolveMissingAggregateID(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.EventNewOrder,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.Nil,
		Audience:      enums.AudienceAdmin,
		Payload:       mustEnvelope(t, []byte(`{}`)),
	}

	_, err := reg.Resolve(event)
	if err == nil {
		t.Fatalf("expected error")
	}
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error")
	}
}

func TestEventRegistryResolveNullPayload(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.EventNewOrder,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Audience:      enums.AudienceAdmin,
		Payload:       mustEnvelope(t, []byte("null")),
	}

	_, err := reg.Resolve(event)
	if err == nil {
		t.Fatalf("expected error")
	}
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error")
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	cfg := config.PubSubConfig{
		AdminTopic:    "admin-topic",
		ResellerTopic: "reseller-topic",
	}
	reg, err := NewEventRegistry(cfg)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func mustEnvelope(t *testing.T, payload []byte) json.RawMessage {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}
