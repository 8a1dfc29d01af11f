package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/hpratama/resellhub-backend/pkg/config"
	"github.com/hpratama/resellhub-backend/pkg/db/models"
	"github.com/hpratama/resellhub-backend/pkg/enums"
	"github.com/hpratama/resellhub-backend/pkg/outbox"
	"github.com/hpratama/resellhub-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate and payload schema,
// plus the topic each permitted audience publishes to. An event type can
// reach both sides: order updates flow to the reseller when an administrator
// decides and to the admin channel when the reseller confirms receipt.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topics         map[enums.OutboxAudience]string
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an outbox row. Topic is already
// selected for the row's audience.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Topic      string
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewEventRegistry builds the registry with the configured topic names.
// Admin-facing events fan out to the admin topic and reseller-facing events
// to the owning reseller's channel; order updates carry their audience per
// row because both sides can originate them.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.AdminTopic == "" {
		return nil, fmt.Errorf("admin topic is required")
	}
	if cfg.ResellerTopic == "" {
		return nil, fmt.Errorf("reseller topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}

	for _, desc := range []EventDescriptor{
		{
			EventType:     enums.EventNewOrder,
			AggregateType: enums.AggregateOrder,
			Topics: map[enums.OutboxAudience]string{
				enums.AudienceAdmin: cfg.AdminTopic,
			},
			PayloadFactory: func() interface{} { return &payloads.NewOrderEvent{} },
		},
		{
			EventType:     enums.EventOrderUpdated,
			AggregateType: enums.AggregateOrder,
			Topics: map[enums.OutboxAudience]string{
				enums.AudienceReseller: cfg.ResellerTopic,
				enums.AudienceAdmin:    cfg.AdminTopic,
			},
			PayloadFactory: func() interface{} { return &payloads.OrderUpdatedEvent{} },
		},
		{
			EventType:     enums.EventShippingUpdate,
			AggregateType: enums.AggregateShipment,
			Topics: map[enums.OutboxAudience]string{
				enums.AudienceReseller: cfg.ResellerTopic,
			},
			PayloadFactory: func() interface{} { return &payloads.ShippingUpdateEvent{} },
		},
		{
			EventType:     enums.EventReturnStatus,
			AggregateType: enums.AggregateReturnRequest,
			Topics: map[enums.OutboxAudience]string{
				enums.AudienceReseller: cfg.ResellerTopic,
			},
			PayloadFactory: func() interface{} { return &payloads.ReturnStatusEvent{} },
		},
	} {
		reg.register(desc)
	}

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	topic, ok := desc.Topics[event.Audience]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("audience mismatch: %s does not publish to %s", event.EventType, event.Audience))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if payload == nil {
		return nil, NewNonRetryableError(fmt.Errorf("payload factory not configured for %s", event.EventType))
	}
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Topic:      topic,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
