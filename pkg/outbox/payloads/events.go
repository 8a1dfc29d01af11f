package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hpratama/resellhub-backend/pkg/enums"
)

// NewOrderEvent alerts administrators that a reseller placed an order.
type NewOrderEvent struct {
	OrderID      uuid.UUID       `json:"order_id"`
	ResellerID   uuid.UUID       `json:"reseller_id"`
	ResellerName string          `json:"reseller_name"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	OrderDate    time.Time       `json:"order_date"`
}

// OrderUpdatedEvent tells the owning reseller their order changed state.
type OrderUpdatedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	Status     enums.OrderStatus `json:"status"`
	ResellerID uuid.UUID         `json:"reseller_id"`
}

// ShippingUpdateEvent carries shipment progress to the owning reseller.
type ShippingUpdateEvent struct {
	ShippingID uuid.UUID            `json:"shipping_id"`
	OrderID    uuid.UUID            `json:"order_id"`
	Status     enums.ShippingStatus `json:"status"`
	ResellerID uuid.UUID            `json:"reseller_id"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

// ReturnStatusEvent reports a return request decision to the owning reseller.
type ReturnStatusEvent struct {
	ReturnID   uuid.UUID          `json:"return_id"`
	Status     enums.ReturnStatus `json:"status"`
	ResellerID uuid.UUID          `json:"reseller_id"`
}
