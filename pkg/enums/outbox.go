package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder         OutboxAggregateType = "order"
	AggregateShipment      OutboxAggregateType = "shipment"
	AggregateReturnRequest OutboxAggregateType = "return_request"
	AggregateWarehouse     OutboxAggregateType = "warehouse"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateShipment,
	AggregateReturnRequest,
	AggregateWarehouse,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventNewOrder       OutboxEventType = "new_order"
	EventOrderUpdated   OutboxEventType = "order_updated"
	EventShippingUpdate OutboxEventType = "shipping_update"
	EventReturnStatus   OutboxEventType = "return_status"
)

var validOutboxEventTypes = []OutboxEventType{
	EventNewOrder,
	EventOrderUpdated,
	EventShippingUpdate,
	EventReturnStatus,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxAudience selects the notification channel an event is delivered on.
type OutboxAudience string

const (
	AudienceAdmin    OutboxAudience = "admin"
	AudienceReseller OutboxAudience = "reseller"
)

var validOutboxAudiences = []OutboxAudience{
	AudienceAdmin,
	AudienceReseller,
}

// IsValid reports whether the value is a known OutboxAudience.
func (a OutboxAudience) IsValid() bool {
	for _, candidate := range validOutboxAudiences {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAudience converts raw input into an OutboxAudience.
func ParseOutboxAudience(value string) (OutboxAudience, error) {
	for _, candidate := range validOutboxAudiences {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox audience %q", value)
}
