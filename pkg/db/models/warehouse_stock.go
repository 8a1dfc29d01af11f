package models

import (
	"time"

	"github.com/google/uuid"
)

// WarehouseStock tracks the central on-hand count per product. Quantity never
// goes negative; mutations happen through conditional updates only.
type WarehouseStock struct {
	ProductID     uuid.UUID  `gorm:"column:product_id;type:uuid;primaryKey"`
	Quantity      int        `gorm:"column:quantity;not null;default:0"`
	LastRestocked *time.Time `gorm:"column:last_restocked"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
