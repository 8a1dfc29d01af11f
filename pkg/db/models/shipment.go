package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/hpratama/resellhub-backend/pkg/enums"
)

// Shipment tracks the fulfillment of exactly one approved order. The unique
// order_id index enforces the one-to-one binding at the storage layer.
type Shipment struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	ResellerID        uuid.UUID            `gorm:"column:reseller_id;type:uuid;not null"`
	Status            enums.ShippingStatus `gorm:"column:status;type:shipping_status;not null;default:'preparing'"`
	ShippingMethod    string               `gorm:"column:shipping_method;not null"`
	TrackingNumber    *string              `gorm:"column:tracking_number"`
	Carrier           *string              `gorm:"column:carrier"`
	ShippingDate      *time.Time           `gorm:"column:shipping_date"`
	EstimatedDelivery *time.Time           `gorm:"column:estimated_delivery"`
	ActualDelivery    *time.Time           `gorm:"column:actual_delivery"`
	Notes             *string              `gorm:"column:notes"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
